// Copyright (c) 2026 Quanta Exchange Contributors

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	qx "github.com/quantaex/qx-store"
	"github.com/quantaex/qx-store/config"
	"github.com/quantaex/qx-store/diff"
	"github.com/quantaex/qx-store/marketdata"
	"github.com/quantaex/qx-store/notify"
	"github.com/quantaex/qx-store/recovery"
	"github.com/quantaex/qx-store/snapshot"
	"github.com/quantaex/qx-store/storage"
)

var (
	dataDir    string
	listenAddr string
	statsAddr  string
	feed       feedFlags
)

var rootCmd = &cobra.Command{
	Use:   "qx-gateway",
	Short: "qx-gateway serves the DIFF protocol over WebSocket, backed by the hybrid OLTP/OLAP store.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Opens the store, recovers from the WAL, and accepts DIFF client connections.",
	Run: func(cmd *cobra.Command, args []string) {
		requireNoError(runServe(cmd.Context()))
	},
}

func requireNoError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err.Error())
		os.Exit(1)
	}
}

// orderInsertKey derives the OLTP key for a replayed OrderInsert record;
// every other record type is still durable via the WAL but carries no
// point-lookup key of its own.
func orderInsertKey(rt qx.RecordType, raw []byte) (string, bool) {
	if rt != qx.RecordType_OrderInsert {
		return "", false
	}
	var rec qx.OrderInsert
	if err := rec.Fill_Raw(raw); err != nil {
		return "", false
	}
	return qx.TrimNullBytes(rec.OrderID[:]), true
}

// gatewayServer holds every live connection's diff.Session, keyed by
// user id, so a notify.Gateway FlushFunc can route a batch to the
// right socket.
type gatewayServer struct {
	mu       sync.RWMutex
	sessions map[string]*diff.Session
}

func newGatewayServer() *gatewayServer {
	return &gatewayServer{sessions: make(map[string]*diff.Session)}
}

func (g *gatewayServer) register(userID string, s *diff.Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[userID] = s
}

func (g *gatewayServer) remove(userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sessions, userID)
}

// flushFunc builds a notify.FlushFunc that looks up the session's live
// connection and writes one rtn_data frame carrying every notification
// payload in the batch.
func (g *gatewayServer) flushFunc(log *slog.Logger) notify.FlushFunc {
	return func(sessionID string, batch []notify.Notification) {
		g.mu.RLock()
		s, ok := g.sessions[sessionID]
		g.mu.RUnlock()
		if !ok || len(batch) == 0 {
			return
		}

		body := []byte(`{"aid":"rtn_data","data":[`)
		for i, n := range batch {
			if i > 0 {
				body = append(body, ',')
			}
			body = append(body, n.Payload...)
		}
		body = append(body, ']', '}')

		if err := s.WriteRaw(body); err != nil {
			log.Warn("qx-gateway: flush to session failed", "user_id", sessionID, "error", err)
		}
	}
}

func runServe(ctx context.Context) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg := config.Default()
	if err := cfg.SetFromEnv(); err != nil {
		return fmt.Errorf("qx-gateway: config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("qx-gateway: config: %w", err)
	}

	store, err := storage.Open(cfg.StorageConfig(filepath.Join(dataDir, "store")), logger)
	if err != nil {
		return fmt.Errorf("qx-gateway: open store: %w", err)
	}
	defer store.Close()

	storeDir := filepath.Join(dataDir, "store")
	walDir := filepath.Join(storeDir, "wal")
	afterSeq, err := storage.ReadCheckpointSeq(storeDir)
	if err != nil {
		return fmt.Errorf("qx-gateway: read checkpoint: %w", err)
	}
	report, err := recovery.New(store, walDir, orderInsertKey, logger).Recover(ctx, afterSeq)
	if err != nil {
		return fmt.Errorf("qx-gateway: recovery: %w", err)
	}
	logger.Info("qx-gateway: recovery complete", "after_seq", afterSeq,
		"entries_applied", report.EntriesApplied, "last_seq", report.LastSeq, "gaps", len(report.Gaps))

	snapMgr := snapshot.NewManager(cfg.SnapshotPeekTimeout(), cfg.SnapshotDedupCache())

	cache := marketdata.New(cfg.MarketDataCacheTTL())
	mdReport, err := cache.Recover(ctx, walDir, time.Now(), cfg.MarketDataRecoveryWindow())
	if err != nil {
		logger.Warn("qx-gateway: market-data recovery failed", "error", err)
	} else {
		logger.Info("qx-gateway: market-data recovery complete", "ticks_applied", mdReport.TicksApplied, "books_applied", mdReport.BooksApplied)
	}

	srv := newGatewayServer()
	broker := notify.NewBroker(cfg.Snapshot.DedupCache, 50*time.Millisecond, logger)
	gateway := notify.NewGateway(cfg.GatewayBatchSize(), cfg.GatewayBatchInterval(), cfg.GatewayBackpressureThreshold(),
		notify.DefaultHeartbeatTimeout, srv.flushFunc(logger), logger)
	broker.RegisterGateway(gateway)
	broker.Start()
	gateway.Start()
	defer gateway.Close()
	defer broker.Close()

	alerts := notify.NewAlertWebhook(cfg.AlertWebhookURL, logger)
	alerts.Send(ctx, "qx-gateway", "startup", "qx-gateway is serving")

	if feed.addr != "" {
		feedCtx, cancelFeed := context.WithCancel(ctx)
		defer cancelFeed()
		go runFeedSupervisor(feedCtx, feed, cache, logger)
	}

	handler := newGatewayOrderHandler(store, logger)

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("qx-gateway: listen %s: %w", listenAddr, err)
	}
	defer ln.Close()
	logger.Info("qx-gateway: listening", "addr", listenAddr)

	statsSrv := &http.Server{Addr: statsAddr, Handler: newStatsHandler(store, broker, gateway)}
	go func() {
		if err := statsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("qx-gateway: stats server failed", "error", err)
		}
	}()
	logger.Info("qx-gateway: stats endpoint listening", "addr", statsAddr)

	serveCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-serveCtx.Done()
		ln.Close()
		statsSrv.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(serveCtx.Err(), context.Canceled) {
				return nil
			}
			logger.Warn("qx-gateway: accept failed", "error", err)
			continue
		}
		go acceptConn(serveCtx, conn, snapMgr, handler, srv, gateway, logger)
	}
}

func acceptConn(ctx context.Context, conn net.Conn, snapMgr *snapshot.Manager, handler diff.OrderHandler,
	srv *gatewayServer, gateway *notify.Gateway, logger *slog.Logger) {
	userID, err := diff.UpgradeWithUserID(conn)
	if err != nil {
		logger.Warn("qx-gateway: websocket upgrade failed", "error", err)
		conn.Close()
		return
	}
	if userID == "" {
		logger.Warn("qx-gateway: connection missing user_id, rejecting")
		conn.Close()
		return
	}

	session := diff.NewSession(conn, userID, snapMgr, handler, logger)
	snapMgr.InitializeUser(userID)
	srv.register(userID, session)
	gateway.RegisterSession(userID)

	defer func() {
		srv.remove(userID)
		gateway.RemoveSession(userID)
		snapMgr.RemoveUser(userID)
		conn.Close()
	}()

	if err := session.Serve(ctx); err != nil {
		logger.Info("qx-gateway: session ended", "user_id", userID, "error", err)
	}
}

func main() {
	cobra.OnInitialize()

	rootCmd.PersistentFlags().StringVarP(&dataDir, "dir", "d", "./data", "Data directory for the store and WAL")

	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", ":7070", "TCP address to accept DIFF WebSocket connections on")
	serveCmd.Flags().StringVarP(&statsAddr, "stats-listen", "", ":7071", "TCP address to serve the /stats introspection endpoint on")
	serveCmd.Flags().StringVarP(&feed.addr, "feed-addr", "", "", "Upstream market-data feed gateway address (host:port); empty disables feed ingestion")
	serveCmd.Flags().StringVarP(&feed.apiKey, "feed-api-key", "", "", "Shared secret for the feed gateway's CRAM handshake")
	serveCmd.Flags().StringVarP(&feed.instruments, "feed-instruments", "", "", "Comma-separated instrument ids to subscribe to on the feed")

	err := rootCmd.Execute()
	requireNoError(err)
}
