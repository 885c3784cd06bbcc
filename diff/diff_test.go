// Copyright (c) 2026 Quanta Exchange Contributors

package diff_test

import (
	"testing"

	"github.com/valyala/fastjson"

	"github.com/quantaex/qx-store/diff"
	"github.com/quantaex/qx-store/patch"
)

func TestAccountUpdateShape(t *testing.T) {
	p := diff.AccountUpdate("u1", "ACC", map[string]float64{"balance": 105000.0})
	got := string(p.MarshalTo(nil))
	want := `{"trade":{"u1":{"accounts":{"ACC":{"balance":105000}}}}}`
	if got != want {
		t.Fatalf("AccountUpdate = %s, want %s", got, want)
	}
}

func TestOrderRemovedIsNullSentinel(t *testing.T) {
	p := diff.OrderRemoved("u1", "ORD-1")
	target := fastjson.MustParse(`{"trade":{"u1":{"orders":{"ORD-1":{"status":"FILLED"},"ORD-2":{"status":"ACCEPTED"}}}}}`)
	merged := patch.Merge(target, p)
	got := string(merged.MarshalTo(nil))
	want := `{"trade":{"u1":{"orders":{"ORD-2":{"status":"ACCEPTED"}}}}}`
	if got != want {
		t.Fatalf("merged = %s, want %s", got, want)
	}
}

func TestKlineID(t *testing.T) {
	// A 1-minute (60s) bar: duration_ns = 60_000_000_000.
	got := diff.KlineID(1_700_000_000_000, 60_000_000_000)
	want := (1_700_000_000_000 * 1_000_000) / 60_000_000_000
	if got != want {
		t.Fatalf("KlineID = %d, want %d", got, want)
	}
}

func TestInstrumentCountersStrictlyIncreasingPerInstrument(t *testing.T) {
	c := diff.NewInstrumentCounters()

	a1 := c.NextExchangeOrderID("IF2501")
	a2 := c.NextExchangeOrderID("IF2501")
	b1 := c.NextExchangeOrderID("IC2501")

	if a2 <= a1 {
		t.Fatalf("expected strictly increasing ids for same instrument, got %d then %d", a1, a2)
	}
	if b1 != 1 {
		t.Fatalf("expected a fresh counter for a new instrument to start at 1, got %d", b1)
	}

	t1 := c.NextTradeID("IF2501")
	t2 := c.NextTradeID("IF2501")
	if t2 <= t1 {
		t.Fatalf("expected strictly increasing trade ids, got %d then %d", t1, t2)
	}
}

func TestApplyResponseTradeDecrementsVolumeLeftAndDerivesFillStatus(t *testing.T) {
	state := &diff.OrderState{TotalVolume: 10, VolumeLeft: 10}

	partial := diff.ApplyResponse(diff.ExchangeResponse{
		Kind: diff.Trade, UserID: "u1", OrderID: "ORD-1", TradeID: "T-1", Price: 100, Volume: 4,
	}, state)
	if state.VolumeLeft != 6 {
		t.Fatalf("expected volume_left=6 after partial fill, got %v", state.VolumeLeft)
	}

	target := fastjson.MustParse(`{}`)
	merged := patch.Merge(target, partial)
	orderStatus := merged.Get("trade", "u1", "orders", "ORD-1", "status")
	if orderStatus == nil || string(orderStatus.MarshalTo(nil)) != `"PARTIAL_FILLED"` {
		t.Fatalf("expected PARTIAL_FILLED status, got %v", orderStatus)
	}
	tradeEntry := merged.Get("trade", "u1", "trades", "T-1")
	if tradeEntry == nil {
		t.Fatalf("expected trade T-1 to be present in merged snapshot")
	}

	full := diff.ApplyResponse(diff.ExchangeResponse{
		Kind: diff.Trade, UserID: "u1", OrderID: "ORD-1", TradeID: "T-2", Price: 101, Volume: 6,
	}, state)
	if state.VolumeLeft != 0 {
		t.Fatalf("expected volume_left=0 after full fill, got %v", state.VolumeLeft)
	}
	merged2 := patch.Merge(merged, full)
	status2 := merged2.Get("trade", "u1", "orders", "ORD-1", "status")
	if status2 == nil || string(status2.MarshalTo(nil)) != `"FILLED"` {
		t.Fatalf("expected FILLED status after full fill, got %v", status2)
	}
}

func TestApplyResponseRejectedCarriesReason(t *testing.T) {
	p := diff.ApplyResponse(diff.ExchangeResponse{
		Kind: diff.Rejected, UserID: "u1", OrderID: "ORD-9", RejectReason: "insufficient margin",
	}, nil)
	merged := patch.Merge(fastjson.MustParse(`{}`), p)
	reason := merged.Get("trade", "u1", "orders", "ORD-9", "reason")
	if reason == nil || string(reason.MarshalTo(nil)) != `"insufficient margin"` {
		t.Fatalf("expected reject reason in patch, got %v", reason)
	}
}
