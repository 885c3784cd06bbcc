// Copyright (c) 2026 Quanta Exchange Contributors

package marketdata_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	qx "github.com/quantaex/qx-store"
	"github.com/quantaex/qx-store/marketdata"
	"github.com/quantaex/qx-store/wal"
)

func TestCacheUpdateAndGetWithinTTL(t *testing.T) {
	c := marketdata.New(50 * time.Millisecond)

	tick := &qx.TickData{Header: qx.Header{Type: qx.RecordType_TickData}, LastPrice: 1000}
	c.UpdateTick("IF2501", tick)

	got, ok := c.GetTick("IF2501")
	if !ok || got.LastPrice != 1000 {
		t.Fatalf("expected fresh tick hit, got ok=%v tick=%v", ok, got)
	}
}

func TestCacheMissesAfterTTLExpires(t *testing.T) {
	c := marketdata.New(10 * time.Millisecond)
	c.UpdateTick("IF2501", &qx.TickData{LastPrice: 1000})

	time.Sleep(30 * time.Millisecond)

	if _, ok := c.GetTick("IF2501"); ok {
		t.Fatalf("expected stale tick to miss")
	}
}

func TestCacheMissesUnknownInstrument(t *testing.T) {
	c := marketdata.New(0)
	if _, ok := c.GetBook("GHOST"); ok {
		t.Fatalf("expected miss for unknown instrument")
	}
}

func TestCacheUpdateReplacesUnconditionally(t *testing.T) {
	c := marketdata.New(time.Second)
	c.UpdateTick("IF2501", &qx.TickData{LastPrice: 1000})
	c.UpdateTick("IF2501", &qx.TickData{LastPrice: 1001})

	got, ok := c.GetTick("IF2501")
	if !ok || got.LastPrice != 1001 {
		t.Fatalf("expected latest tick to replace the previous one, got %v", got)
	}
}

func TestRecoverAppliesTicksWithinWindow(t *testing.T) {
	dir := t.TempDir()
	walDir := filepath.Join(dir, "wal")

	w, err := wal.Open(walDir, wal.DefaultConfig())
	if err != nil {
		t.Fatalf("wal.Open: %v", err)
	}

	now := time.Now()
	var instrumentID [qx.InstrumentIDLen]byte
	copy(instrumentID[:], "IF2501")

	old := qx.TickData{
		Header:       qx.Header{Type: qx.RecordType_TickData, TimestampNs: now.Add(-time.Hour).UnixNano()},
		InstrumentID: instrumentID,
		LastPrice:    500,
	}
	recent := qx.TickData{
		Header:       qx.Header{Type: qx.RecordType_TickData, TimestampNs: now.Add(-time.Second).UnixNano()},
		InstrumentID: instrumentID,
		LastPrice:    1500,
	}

	for _, rec := range []qx.TickData{old, recent} {
		raw := make([]byte, qx.TickData_Size)
		rec.PutRaw(raw)
		seq, err := w.Append(raw, rec.Header.TimestampNs)
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if err := w.Sync(context.Background(), seq); err != nil {
			t.Fatalf("Sync: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close wal: %v", err)
	}

	c := marketdata.New(time.Minute)
	report, err := c.Recover(context.Background(), walDir, now, 5*time.Minute)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if report.TicksApplied != 1 {
		t.Fatalf("expected exactly 1 tick within the recovery window, got %d", report.TicksApplied)
	}

	got, ok := c.GetTick("IF2501")
	if !ok || got.LastPrice != 1500 {
		t.Fatalf("expected the recent tick to win, got ok=%v tick=%v", ok, got)
	}
}
