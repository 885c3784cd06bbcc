// Copyright (c) 2026 Quanta Exchange Contributors

package storage_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	qx "github.com/quantaex/qx-store"
	"github.com/quantaex/qx-store/memtable"
	"github.com/quantaex/qx-store/sstable"
	"github.com/quantaex/qx-store/storage"
)

func TestStoreQueryScansSealedOLAPRuns(t *testing.T) {
	dir := t.TempDir()
	s, err := storage.Open(storage.DefaultConfig(dir), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	sstableDir := filepath.Join(dir, "sstable")
	if err := os.MkdirAll(sstableDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	var tick qx.TickData
	tick.Header = qx.Header{Type: qx.RecordType_TickData, TimestampNs: time.Now().UnixNano()}
	copy(tick.InstrumentID[:], "INST-1")
	tick.LastPrice = 12345

	raw := make([]byte, qx.TickData_Size)
	tick.PutRaw(raw)

	path := filepath.Join(sstableDir, "olap-TickData-00000000000000000001.parquet")
	rows := []memtable.Row{{Type: qx.RecordType_TickData, Raw: raw, Seq: 1}}
	if err := sstable.WriteOLAPRun(path, qx.RecordType_TickData, rows); err != nil {
		t.Fatalf("WriteOLAPRun: %v", err)
	}

	result, err := s.Query("TickData", "SELECT instrument_id, last_price FROM olap_TickData")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row from the sealed run, got %d", len(result.Rows))
	}
}

func TestStoreQueryRejectsUnsafeRecordType(t *testing.T) {
	dir := t.TempDir()
	s, err := storage.Open(storage.DefaultConfig(dir), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := s.Query(`Tick"; DROP TABLE x; --`, "SELECT 1"); err == nil {
		t.Fatalf("expected an error for an unsafe record type identifier")
	}
}
