// Copyright (c) 2026 Quanta Exchange Contributors
//
// alert raises an operational alert over HTTP when a background task
// (compaction, flush) has exhausted its retry budget. Built on
// go-retryablehttp the same way the teacher's DownloadManager uses it for
// resumable file downloads, retargeted here from fetching bytes to
// delivering a best-effort POST with the library's own exponential backoff.

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/hashicorp/go-retryablehttp"
)

// AlertWebhook posts operational alerts (persistent compaction/flush
// failure, disk pressure, etc.) to a configured URL, retrying transient
// failures with exponential backoff.
type AlertWebhook struct {
	client *retryablehttp.Client
	url    string
	log    *slog.Logger
}

// NewAlertWebhook creates an AlertWebhook posting to url. A disabled/empty
// url is permitted: Send becomes a no-op, so callers don't need to branch
// on whether alerting is configured.
func NewAlertWebhook(url string, logger *slog.Logger) *AlertWebhook {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 5
	client.Logger = nil // route via slog ourselves instead of retryablehttp's default logger
	return &AlertWebhook{client: client, url: url, log: logger}
}

// alertBody is the JSON payload posted to the webhook.
type alertBody struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Component string `json:"component"`
}

// Send posts one alert. A delivery failure (after retries) is logged, not
// returned: an alert webhook being down must never block the foreground
// path it's reporting on.
func (w *AlertWebhook) Send(ctx context.Context, component, kind, message string) {
	if w.url == "" {
		return
	}
	body, err := json.Marshal(alertBody{Kind: kind, Message: message, Component: component})
	if err != nil {
		w.log.Error("notify: marshal alert body", "error", err)
		return
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		w.log.Error("notify: build alert request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.log.Error("notify: alert webhook delivery failed", "component", component, "kind", kind, "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		w.log.Error("notify: alert webhook rejected alert", "component", component, "kind", kind, "status", resp.StatusCode)
	}
}
