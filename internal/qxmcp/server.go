// Copyright (c) 2026 Quanta Exchange Contributors

package qxmcp

import (
	"log/slog"
	"net/http"
	"time"
)

// Server holds shared state for qx-mcp's tool handlers: an HTTP client
// pointed at a running cmd/qx-gateway's introspection endpoints. It
// never opens the store directly -- a second process holding the WAL
// open alongside the live qx-gateway would race it.
type Server struct {
	BaseURL string
	Client  *http.Client
	Logger  *slog.Logger
}

// NewServer creates a Server polling baseURL (cmd/qx-gateway's
// --stats-listen address, e.g. "http://127.0.0.1:7071").
func NewServer(baseURL string, logger *slog.Logger) *Server {
	return &Server{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 5 * time.Second},
		Logger:  logger,
	}
}
