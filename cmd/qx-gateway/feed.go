// Copyright (c) 2026 Quanta Exchange Contributors
//
// Optional upstream market-data feed ingestion: when --feed-addr is
// set, qx-gateway dials an external feed gateway and keeps the
// marketdata.Cache current for as long as the process runs, using the
// same reconnect-on-drop shape the teacher's LiveClient callers used
// around their own connect/Authenticate/Subscribe/Start sequence.

package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/quantaex/qx-store/marketdata"
)

func runFeedSupervisor(ctx context.Context, cfg feedFlags, cache *marketdata.Cache, logger *slog.Logger) {
	instruments := strings.Split(cfg.instruments, ",")

	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return
		}

		client, err := marketdata.NewFeedClient(marketdata.FeedConfig{
			Addr:   cfg.addr,
			ApiKey: cfg.apiKey,
			Client: "qx-gateway",
			Logger: logger,
		})
		if err != nil {
			logger.Warn("qx-gateway: feed dial failed", "addr", cfg.addr, "error", err)
			sleepOrDone(ctx, feedBackoff(attempt))
			continue
		}

		if err := connectAndRun(ctx, client, instruments, cache, logger); err != nil {
			logger.Warn("qx-gateway: feed session ended", "error", err)
		}
		client.Close()

		attempt = 0
		sleepOrDone(ctx, feedBackoff(1))
	}
}

func connectAndRun(ctx context.Context, client *marketdata.FeedClient, instruments []string, cache *marketdata.Cache, logger *slog.Logger) error {
	if _, err := client.Authenticate(); err != nil {
		return err
	}
	if err := client.Subscribe(instruments); err != nil {
		return err
	}
	logger.Info("qx-gateway: feed subscribed", "instruments", instruments)
	return client.Run(cache)
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func feedBackoff(attempt int) time.Duration {
	d := time.Second << attempt
	if d <= 0 || d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

type feedFlags struct {
	addr        string
	apiKey      string
	instruments string
}
