// Copyright (c) 2026 Quanta Exchange Contributors
//
// qx-mcp is a Model Context Protocol server bridging LLM clients to a
// running qx-gateway's read-only introspection endpoints (get_stats,
// get_order). Flag/logging wiring follows dbn-go-mcp-meta's main.go:
// pflag for CLI options, slog for text/JSON logging to stderr or a
// file, STDIO transport by default with an SSE fallback.

package main

import (
	"fmt"
	"log/slog"
	"os"

	mcp_server "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/pflag"

	"github.com/quantaex/qx-store/internal/qxmcp"
)

const (
	mcpServerVersion = "0.1.0"
	defaultSSEHostPort = ":8890"

	serverInstructions = `qx-mcp provides read-only introspection into a running qx-gateway process.

Recommended workflow:
1. Use get_stats for an overview of store size, WAL sequence numbers, and connected sessions.
2. Use get_order to look up one order's current persisted state by id.

This server never mutates state: order placement and cancellation happen over the DIFF WebSocket protocol qx-gateway itself serves, not through these tools.`
)

var (
	gatewayURL  string
	useSSE      bool
	sseHostPort string
	logJSON     bool
	verbose     bool
	logFilename string
)

func main() {
	var showHelp bool

	pflag.StringVarP(&gatewayURL, "gateway-url", "g", "http://127.0.0.1:7071", "Base URL of a running qx-gateway's stats endpoint")
	pflag.StringVarP(&sseHostPort, "port", "p", "", "host:port to listen to SSE connections")
	pflag.BoolVarP(&useSSE, "sse", "", false, "Use SSE transport (default is STDIO transport)")
	pflag.StringVarP(&logFilename, "log-file", "l", "", "Log file destination (default is stderr)")
	pflag.BoolVarP(&logJSON, "log-json", "j", false, "Log in JSON (default is plaintext)")
	pflag.BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	pflag.BoolVarP(&showHelp, "help", "h", false, "Show help")
	pflag.Parse()

	if showHelp {
		fmt.Fprintf(os.Stdout, "usage: %s [opts]\n\n", os.Args[0])
		pflag.PrintDefaults()
		os.Exit(0)
	}

	if sseHostPort == "" {
		sseHostPort = defaultSSEHostPort
	}

	logWriter := os.Stderr
	if logFilename != "" {
		logFile, err := os.OpenFile(logFilename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %s\n", err.Error())
			os.Exit(1)
		}
		logWriter = logFile
		defer logFile.Close()
	}

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	var logger *slog.Logger
	if logJSON {
		logger = slog.New(slog.NewJSONHandler(logWriter, &slog.HandlerOptions{Level: logLevel}))
	} else {
		logger = slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{Level: logLevel}))
	}

	if err := run(logger); err != nil {
		logger.Error("run loop error", "error", err.Error())
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	mcpServer := mcp_server.NewMCPServer("qx-mcp", mcpServerVersion,
		mcp_server.WithRecovery(),
		mcp_server.WithInstructions(serverInstructions),
	)

	srv := qxmcp.NewServer(gatewayURL, logger)
	srv.RegisterTools(mcpServer)

	if useSSE {
		sseServer := mcp_server.NewSSEServer(mcpServer)
		logger.Info("MCP SSE server started", "hostPort", sseHostPort)
		if err := sseServer.Start(sseHostPort); err != nil {
			return fmt.Errorf("MCP SSE server error: %w", err)
		}
		return nil
	}

	logger.Info("MCP STDIO server started")
	if err := mcp_server.ServeStdio(mcpServer); err != nil {
		return fmt.Errorf("MCP STDIO server error: %w", err)
	}
	return nil
}
