// Copyright (c) 2026 Quanta Exchange Contributors

package qxmcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcp_server "github.com/mark3labs/mcp-go/server"
)

// RegisterTools registers qx-mcp's read-only introspection tools
// against a running cmd/qx-gateway.
func (s *Server) RegisterTools(mcpServer *mcp_server.MCPServer) {
	mcpServer.AddTool(
		mcp.NewTool("get_stats",
			mcp.WithDescription("Returns a point-in-time snapshot of a running qx-gateway: live/frozen memtable sizes, per-level SSTable run counts, WAL sequence numbers, notification queue depths, and connected session count."),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithIdempotentHintAnnotation(true),
		),
		s.getStatsHandler,
	)
	mcpServer.AddTool(
		mcp.NewTool("get_order",
			mcp.WithDescription("Looks up the current persisted state of one order by id: the OLTP point lookup through the live memtable, frozen memtables, and sealed SSTable runs."),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithIdempotentHintAnnotation(true),
			mcp.WithString("order_id",
				mcp.Required(),
				mcp.Description("Order id to look up"),
			),
		),
		s.getOrderHandler,
	)
}
