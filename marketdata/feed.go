// Copyright (c) 2026 Quanta Exchange Contributors
//
// feed connects outbound to an upstream market-data feed gateway and
// applies its tick/book stream to a Cache as it arrives. The connect,
// CRAM-style challenge/response authentication, and line-protocol
// control messages are adapted from the teacher's LiveClient
// (live/live.go, live/gateway.go): a greeting and challenge line are
// read on connect, the client answers with a salted-hash auth request,
// and once accepted the gateway switches to a binary record stream --
// here decoded with the record codec's own RecordScanner instead of a
// DBN-specific scanner.

package marketdata

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"

	qx "github.com/quantaex/qx-store"
)

// feedApiKeyLength matches the teacher's CRAM reply convention: the
// last feedBucketIDLength characters of the key are appended to the
// reply unsalted, so the gateway can route the challenge to the shard
// that minted it without decrypting anything.
const (
	feedApiKeyLength    = 32
	feedBucketIDLength  = 5
	feedMaxControlLine  = 4 * 1024
)

// FeedConfig configures a FeedClient's connection to an upstream
// market-data gateway.
type FeedConfig struct {
	Addr   string // host:port of the feed gateway
	ApiKey string // feedApiKeyLength-byte shared secret
	Client string // client identifier sent during auth

	Logger *slog.Logger
}

func (c *FeedConfig) validate() error {
	if c.Addr == "" {
		return errors.New("marketdata: feed config missing Addr")
	}
	if len(c.ApiKey) != feedApiKeyLength {
		return fmt.Errorf("marketdata: feed ApiKey must be %d characters", feedApiKeyLength)
	}
	return nil
}

// FeedClient is a blocking client for an upstream market-data feed
// gateway: dial, authenticate, subscribe, then drain records into a
// Cache until the connection ends.
type FeedClient struct {
	config FeedConfig
	logger *slog.Logger

	conn      net.Conn
	bufReader *bufio.Reader

	sessionID string
}

// NewFeedClient dials config.Addr. The connection is left unauthenticated;
// call Authenticate, then Subscribe and Run.
func NewFeedClient(config FeedConfig) (*FeedClient, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := net.Dial("tcp", config.Addr)
	if err != nil {
		return nil, fmt.Errorf("marketdata: dial feed %s: %w", config.Addr, err)
	}

	return &FeedClient{
		config:    config,
		logger:    logger,
		conn:      conn,
		bufReader: bufio.NewReaderSize(conn, feedMaxControlLine),
	}, nil
}

// Close closes the underlying connection.
func (c *FeedClient) Close() error {
	return c.conn.Close()
}

// Authenticate performs the greeting/challenge/response handshake and
// returns the session ID the gateway assigned.
func (c *FeedClient) Authenticate() (string, error) {
	challenge, err := c.readChallenge()
	if err != nil {
		return "", err
	}

	reply := signChallenge(c.config.ApiKey, challenge)
	authLine := fmt.Appendf(nil, "auth=%s|client=%s\n", reply, c.config.Client)
	if _, err := c.conn.Write(authLine); err != nil {
		return "", fmt.Errorf("marketdata: send auth request: %w", err)
	}

	sessionID, err := c.readAuthResponse()
	if err != nil {
		return "", err
	}
	c.sessionID = sessionID
	c.logger.Info("marketdata: feed authenticated", "session_id", sessionID)
	return sessionID, nil
}

// Subscribe requests the feed's tick/book stream for instrumentIDs and
// notifies the gateway to begin sending records. Both must be called
// exactly once, after Authenticate and before Run.
func (c *FeedClient) Subscribe(instrumentIDs []string) error {
	if len(instrumentIDs) == 0 {
		return errors.New("marketdata: subscribe requires at least one instrument")
	}
	subLine := fmt.Appendf(nil, "instruments=%s\n", strings.Join(instrumentIDs, ","))
	if _, err := c.conn.Write(subLine); err != nil {
		return fmt.Errorf("marketdata: send subscribe: %w", err)
	}
	if _, err := c.conn.Write([]byte("start_session=1\n")); err != nil {
		return fmt.Errorf("marketdata: send start_session: %w", err)
	}
	return nil
}

// Run scans the connection for binary records and applies every
// TickData, OrderBookSnapshot, and OrderBookDelta to cache until the
// stream ends. It takes no context: it returns only when the connection
// is closed or a read or decode fails. Returns nil on a clean io.EOF;
// any decode or I/O error is returned.
func (c *FeedClient) Run(cache *Cache) error {
	scanner := qx.NewRecordScanner(c.bufReader)
	v := &feedVisitor{cache: cache, logger: c.logger}
	for scanner.Next() {
		if err := scanner.Visit(v); err != nil {
			return fmt.Errorf("marketdata: feed record: %w", err)
		}
	}
	if err := scanner.Error(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("marketdata: feed stream: %w", err)
	}
	return nil
}

func (c *FeedClient) readChallenge() (string, error) {
	line, err := c.readControlLine()
	if err != nil {
		return "", fmt.Errorf("marketdata: read greeting: %w", err)
	}
	greeting := parseControlMessage(line)
	if _, ok := greeting["feed_version"]; !ok {
		return "", errors.New("marketdata: malformed greeting, missing feed_version")
	}

	line, err = c.readControlLine()
	if err != nil {
		return "", fmt.Errorf("marketdata: read challenge: %w", err)
	}
	challenge := parseControlMessage(line)
	cram, ok := challenge["cram"]
	if !ok {
		return "", errors.New("marketdata: malformed challenge, missing cram")
	}
	return cram, nil
}

func (c *FeedClient) readAuthResponse() (string, error) {
	line, err := c.readControlLine()
	if err != nil {
		return "", fmt.Errorf("marketdata: read auth response: %w", err)
	}
	resp := parseControlMessage(line)
	if resp["success"] == "0" {
		return "", fmt.Errorf("marketdata: feed auth rejected: %s", resp["error"])
	}
	return resp["session_id"], nil
}

func (c *FeedClient) readControlLine() ([]byte, error) {
	line, err := c.bufReader.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	return line, nil
}

// parseControlMessage parses a "k1=v1|k2=v2\n" line into a map, the
// same wire shape the teacher's Databento gateway uses for its
// handshake control messages.
func parseControlMessage(line []byte) map[string]string {
	m := make(map[string]string)
	if len(line) > 0 && line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}
	for _, kv := range bytes.Split(line, []byte{'|'}) {
		eq := bytes.IndexByte(kv, '=')
		if eq == -1 {
			continue
		}
		m[string(kv[:eq])] = string(kv[eq+1:])
	}
	return m
}

// signChallenge computes the CRAM reply: sha256("challenge|apiKey")
// as hex, with the key's trailing bucket ID appended unsalted so the
// gateway can route the reply without first decrypting it.
func signChallenge(apiKey, challenge string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s", challenge, apiKey)
	sum := h.Sum(nil)
	bucketID := apiKey[len(apiKey)-feedBucketIDLength:]
	return fmt.Sprintf("%x-%s", sum, bucketID)
}

// feedVisitor applies an incoming record stream to a Cache. All other
// record types are ignored: order/trade/account events reach the
// store over the DIFF gateway's own write path, not this feed.
type feedVisitor struct {
	qx.NullVisitor
	cache  *Cache
	logger *slog.Logger
}

func (v *feedVisitor) OnTickData(record *qx.TickData) error {
	v.cache.UpdateTick(qx.TrimNullBytes(record.InstrumentID[:]), record)
	return nil
}

func (v *feedVisitor) OnOrderBookSnapshot(record *qx.OrderBookSnapshot) error {
	v.cache.UpdateBook(qx.TrimNullBytes(record.InstrumentID[:]), record)
	return nil
}

func (v *feedVisitor) OnOrderBookDelta(record *qx.OrderBookDelta) error {
	// A delta without the snapshot it applies to can't update the
	// cache's full-depth view; log it and wait for the next snapshot.
	v.logger.Debug("marketdata: feed delta received without snapshot application",
		"instrument_id", qx.TrimNullBytes(record.InstrumentID[:]),
		"timestamp_ns", strconv.FormatInt(record.Header.TimestampNs, 10))
	return nil
}
