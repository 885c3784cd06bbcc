// Copyright (c) 2026 Quanta Exchange Contributors

package qx_test

import (
	"bytes"
	"testing"

	qx "github.com/quantaex/qx-store"
)

func TestOrderInsertRoundTrip(t *testing.T) {
	var want qx.OrderInsert
	want.Header = qx.Header{Type: qx.RecordType_OrderInsert, TimestampNs: 1_700_000_000_000_000_000}
	copy(want.InstrumentID[:], "IF2512")
	copy(want.OrderID[:], "order-abc-123")
	copy(want.UserID[:], "user-001")
	want.Price = qx.Float64ToFixed9(3456.2)
	want.Volume = 5
	want.Direction = qx.Direction_Buy
	want.Offset = qx.Offset_Open

	buf := make([]byte, qx.OrderInsert_Size)
	want.PutRaw(buf)

	var got qx.OrderInsert
	if err := got.Fill_Raw(buf); err != nil {
		t.Fatalf("Fill_Raw: %v", err)
	}
	if got.Header.Type != want.Header.Type || got.Header.TimestampNs != want.Header.TimestampNs {
		t.Fatalf("header mismatch: got %+v want %+v", got.Header, want.Header)
	}
	if got.Price != want.Price || got.Volume != want.Volume {
		t.Fatalf("price/volume mismatch: got %+v want %+v", got, want)
	}
	if got.Direction != want.Direction || got.Offset != want.Offset {
		t.Fatalf("direction/offset mismatch: got %+v want %+v", got, want)
	}
}

func TestExchangeResponseRoundTrip(t *testing.T) {
	var want qx.ExchangeResponse
	want.Header = qx.Header{Type: qx.RecordType_ExchangeResponse, TimestampNs: 42}
	copy(want.OrderID[:], "order-xyz")
	want.Kind = qx.ExchangeResponseKind_Trade
	want.TradeID = 7
	want.Volume = 3
	want.Price = qx.Float64ToFixed9(101.5)
	copy(want.Reason[:], "")

	buf := make([]byte, qx.ExchangeResponse_Size)
	want.PutRaw(buf)

	var got qx.ExchangeResponse
	if err := got.Fill_Raw(buf); err != nil {
		t.Fatalf("Fill_Raw: %v", err)
	}
	if got.Kind != qx.ExchangeResponseKind_Trade {
		t.Fatalf("kind mismatch: got %v", got.Kind)
	}
	if got.Kind.String() != "TRADE" {
		t.Fatalf("String() mismatch: got %q", got.Kind.String())
	}
	if !bytes.Equal(got.OrderID[:], want.OrderID[:]) {
		t.Fatalf("order id mismatch")
	}
}

func TestOrderBookSnapshotRoundTrip(t *testing.T) {
	var want qx.OrderBookSnapshot
	want.Header = qx.Header{Type: qx.RecordType_OrderBookSnapshot, TimestampNs: 99}
	copy(want.InstrumentID[:], "IF2512")
	for i := 0; i < qx.OrderBookDepth; i++ {
		want.Asks[i] = qx.PriceVolume{Price: int64(1000 + i), Volume: int64(10 + i)}
		want.Bids[i] = qx.PriceVolume{Price: int64(900 - i), Volume: int64(20 + i)}
	}

	buf := make([]byte, qx.OrderBookSnapshot_Size)
	want.PutRaw(buf)

	var got qx.OrderBookSnapshot
	if err := got.Fill_Raw(buf); err != nil {
		t.Fatalf("Fill_Raw: %v", err)
	}
	if got.Asks != want.Asks || got.Bids != want.Bids {
		t.Fatalf("level mismatch: got %+v want %+v", got, want)
	}
}

func TestScannerRoundTripsMixedRecordStream(t *testing.T) {
	var buf bytes.Buffer

	var insert qx.OrderInsert
	insert.Header = qx.Header{Type: qx.RecordType_OrderInsert, TimestampNs: 1}
	copy(insert.OrderID[:], "o1")
	b1 := make([]byte, qx.OrderInsert_Size)
	insert.PutRaw(b1)
	buf.Write(b1)

	var cp qx.Checkpoint
	cp.Header = qx.Header{Type: qx.RecordType_Checkpoint, TimestampNs: 2}
	cp.LastAppliedSeq = 10
	b2 := make([]byte, qx.Checkpoint_Size)
	cp.PutRaw(b2)
	buf.Write(b2)

	scanner := qx.NewRecordScanner(&buf)

	if !scanner.Next() {
		t.Fatalf("expected first record, got error %v", scanner.Error())
	}
	r1, err := qx.RecordScannerDecode[qx.OrderInsert, *qx.OrderInsert](scanner)
	if err != nil {
		t.Fatalf("decode OrderInsert: %v", err)
	}
	if string(bytes.TrimRight(r1.OrderID[:], "\x00")) != "o1" {
		t.Fatalf("order id mismatch: %q", r1.OrderID)
	}

	if !scanner.Next() {
		t.Fatalf("expected second record, got error %v", scanner.Error())
	}
	r2, err := qx.RecordScannerDecode[qx.Checkpoint, *qx.Checkpoint](scanner)
	if err != nil {
		t.Fatalf("decode Checkpoint: %v", err)
	}
	if r2.LastAppliedSeq != 10 {
		t.Fatalf("last applied seq mismatch: %d", r2.LastAppliedSeq)
	}

	if scanner.Next() {
		t.Fatalf("expected stream to be exhausted")
	}
}

func TestGranularityParseRoundTrip(t *testing.T) {
	for _, s := range []string{"3s", "1m", "5m", "15m", "30m", "1h", "4h", "1d"} {
		g, err := qx.ParseGranularity(s)
		if err != nil {
			t.Fatalf("ParseGranularity(%q): %v", s, err)
		}
		if g.String() != s {
			t.Fatalf("round trip mismatch: %q -> %v -> %q", s, g, g.String())
		}
	}
	if _, err := qx.ParseGranularity("2m"); err == nil {
		t.Fatalf("expected error for unsupported granularity")
	}
}

func TestKLineID(t *testing.T) {
	id := qx.KLineID(60_000, qx.Granularity_1m)
	if id != 1 {
		t.Fatalf("expected bucket 1, got %d", id)
	}
}
