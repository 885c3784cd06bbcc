// Copyright (c) 2026 Quanta Exchange Contributors

package recovery_test

import (
	"context"
	"path/filepath"
	"testing"

	qx "github.com/quantaex/qx-store"
	"github.com/quantaex/qx-store/recovery"
	"github.com/quantaex/qx-store/storage"
	"github.com/quantaex/qx-store/wal"
)

func orderIDKey(rt qx.RecordType, raw []byte) (string, bool) {
	if rt != qx.RecordType_OrderInsert {
		return "", false
	}
	var rec qx.OrderInsert
	if err := rec.Fill_Raw(raw); err != nil {
		return "", false
	}
	return qx.TrimNullBytes(rec.OrderID[:]), true
}

// TestRecoverReplaysWalIntoStore exercises recovery against the store's own
// WAL directory, not a standalone one: Store.Open and the Coordinator must
// agree on filepath.Join(storeDir, "wal"), or recovery silently replays
// nothing. Using the store's actual directory also lets this test catch
// ApplyRecovered re-appending replayed entries into the live WAL, which a
// separate scratch walDir never would.
func TestRecoverReplaysWalIntoStore(t *testing.T) {
	dir := t.TempDir()
	storeDir := filepath.Join(dir, "store")
	walDir := filepath.Join(storeDir, "wal")

	var orderID [qx.OrderIDLen]byte
	copy(orderID[:], "ORD-0001")
	rec := qx.OrderInsert{
		Header:  qx.Header{Type: qx.RecordType_OrderInsert, TimestampNs: 1},
		OrderID: orderID,
		Price:   1_000_000_000,
		Volume:  5,
	}
	raw := make([]byte, qx.OrderInsert_Size)
	rec.PutRaw(raw)

	// Write directly into the store's own WAL directory before the store
	// has ever been opened, simulating entries that reached disk but were
	// never applied before a crash.
	w, err := wal.Open(walDir, wal.DefaultConfig())
	if err != nil {
		t.Fatalf("wal.Open: %v", err)
	}
	seq, err := w.Append(raw, rec.Header.TimestampNs)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Sync(context.Background(), seq); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close wal: %v", err)
	}

	store, err := storage.Open(storage.DefaultConfig(storeDir), nil)
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer store.Close()

	coord := recovery.New(store, walDir, orderIDKey, nil)
	report, err := coord.Recover(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if report.EntriesApplied != 1 {
		t.Fatalf("expected 1 applied entry, got %d", report.EntriesApplied)
	}

	value, ok, err := store.Get("ORD-0001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || len(value) != qx.OrderInsert_Size {
		t.Fatalf("expected recovered order, got ok=%v len=%d", ok, len(value))
	}

	// Recovery must apply replayed entries without re-appending them to the
	// live WAL: the directory still holds exactly the one entry written
	// above, not two.
	recheck, err := wal.Replay(walDir, 0, func(wal.Entry) error { return nil })
	if err != nil {
		t.Fatalf("Replay recheck: %v", err)
	}
	if recheck.EntriesRead != 1 {
		t.Fatalf("expected recovery to leave the wal with exactly 1 entry, found %d (ApplyRecovered must not re-append)", recheck.EntriesRead)
	}
}
