// Copyright (c) 2026 Quanta Exchange Contributors
//
// gatewayOrderHandler implements diff.OrderHandler by persisting the
// client's intent into the store rather than matching it: an
// insert_order frame becomes an OrderInsert record keyed by order id,
// a cancel_order frame a tombstone justified by a synthetic
// CancelAccepted ExchangeResponse. Real matching lives downstream of
// this process and is out of scope here, per diff.OrderHandler's own
// doc comment.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/encoding/json"

	qx "github.com/quantaex/qx-store"
	"github.com/quantaex/qx-store/storage"
)

type gatewayOrderHandler struct {
	store *storage.Store
	log   *slog.Logger
}

func newGatewayOrderHandler(store *storage.Store, logger *slog.Logger) *gatewayOrderHandler {
	return &gatewayOrderHandler{store: store, log: logger}
}

// insertOrderRequest mirrors the wire shape of a DIFF insert_order frame.
type insertOrderRequest struct {
	OrderID      string `json:"order_id"`
	InstrumentID string `json:"instrument_id"`
	Price        int64  `json:"price"`
	Volume       int64  `json:"volume"`
	Direction    string `json:"direction"`
	Offset       string `json:"offset"`
}

// cancelOrderRequest mirrors the wire shape of a DIFF cancel_order frame.
type cancelOrderRequest struct {
	OrderID string `json:"order_id"`
}

func (h *gatewayOrderHandler) InsertOrder(ctx context.Context, userID string, raw json.RawMessage) error {
	var req insertOrderRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("qx-gateway: decode insert_order: %w", err)
	}
	if req.OrderID == "" {
		return fmt.Errorf("qx-gateway: insert_order missing order_id")
	}

	var rec qx.OrderInsert
	rec.Header = qx.Header{Type: qx.RecordType_OrderInsert, TimestampNs: time.Now().UnixNano()}
	copy(rec.InstrumentID[:], req.InstrumentID)
	copy(rec.OrderID[:], req.OrderID)
	copy(rec.UserID[:], userID)
	rec.Price = req.Price
	rec.Volume = req.Volume
	if req.Direction != "" {
		rec.Direction = qx.Direction(req.Direction[0])
	}
	if req.Offset != "" {
		rec.Offset = qx.Offset(req.Offset[0])
	}

	raw2 := make([]byte, qx.OrderInsert_Size)
	rec.PutRaw(raw2)

	_, err := h.store.Write(ctx, req.OrderID, raw2, qx.RecordType_OrderInsert)
	return err
}

func (h *gatewayOrderHandler) CancelOrder(ctx context.Context, userID string, raw json.RawMessage) error {
	var req cancelOrderRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("qx-gateway: decode cancel_order: %w", err)
	}
	if req.OrderID == "" {
		return fmt.Errorf("qx-gateway: cancel_order missing order_id")
	}

	var rec qx.ExchangeResponse
	rec.Header = qx.Header{Type: qx.RecordType_ExchangeResponse, TimestampNs: time.Now().UnixNano()}
	copy(rec.OrderID[:], req.OrderID)
	rec.Kind = qx.ExchangeResponseKind_CancelAccepted

	raw2 := make([]byte, qx.ExchangeResponse_Size)
	rec.PutRaw(raw2)

	_, err := h.store.Delete(ctx, req.OrderID, raw2)
	return err
}

// SubscribeQuote and SetChart have no store-side or notify-side effect:
// nothing in this binary pushes market-data quotes to sessions through
// notify.Gateway. Both calls are accepted and logged so an operator can
// see demand.
func (h *gatewayOrderHandler) SubscribeQuote(ctx context.Context, userID string, insList string) error {
	h.log.Info("qx-gateway: subscribe_quote", "user_id", userID, "ins_list", insList)
	return nil
}

func (h *gatewayOrderHandler) SetChart(ctx context.Context, userID string, raw json.RawMessage) error {
	h.log.Info("qx-gateway: set_chart", "user_id", userID, "raw", string(raw))
	return nil
}
