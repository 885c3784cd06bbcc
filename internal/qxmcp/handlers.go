// Copyright (c) 2026 Quanta Exchange Contributors

package qxmcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := s.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("qx-gateway returned %s: %s", resp.Status, string(body))
	}
	return body, nil
}

func (s *Server) getStatsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body, err := s.get(ctx, "/stats", nil)
	if err != nil {
		return mcp.NewToolResultErrorf("failed to fetch stats: %s", err), nil
	}
	s.Logger.Info("get_stats")
	return mcp.NewToolResultText(string(body)), nil
}

func (s *Server) getOrderHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	orderID, err := request.RequireString("order_id")
	if err != nil {
		return mcp.NewToolResultError("order_id must be set"), nil
	}

	body, err := s.get(ctx, "/order", url.Values{"id": {orderID}})
	if err != nil {
		return mcp.NewToolResultErrorf("failed to fetch order: %s", err), nil
	}

	// re-marshal to confirm it decodes, matching the teacher's
	// marshal-after-fetch validation step before returning tool output.
	var v json.RawMessage
	if err := json.Unmarshal(body, &v); err != nil {
		return mcp.NewToolResultErrorf("malformed response from qx-gateway: %s", err), nil
	}

	s.Logger.Info("get_order", "order_id", orderID)
	return mcp.NewToolResultText(string(body)), nil
}
