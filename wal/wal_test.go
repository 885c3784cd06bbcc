// Copyright (c) 2026 Quanta Exchange Contributors

package wal_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quantaex/qx-store/wal"
)

// testFrameHeaderSize mirrors the unexported frameHeaderSize in
// wal/segment.go: [Type(1)][pad(3)][Length(4)][Seq(8)][TimestampNs(8)][CRC32(4)].
const testFrameHeaderSize = 28

func segmentFilePath(dir string, idx int) string {
	return filepath.Join(dir, fmt.Sprintf("%020d.wal", idx))
}

func TestAppendSyncReplay(t *testing.T) {
	dir := t.TempDir()
	w, err := wal.Open(dir, wal.Config{MaxSegmentBytes: 1 << 20, GroupCommitInterval: 2 * time.Millisecond})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var seqs []uint64
	for i := 0; i < 5; i++ {
		seq, err := w.Append([]byte{byte(i)}, time.Now().UnixNano())
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		seqs = append(seqs, seq)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Sync(ctx, seqs[len(seqs)-1]); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	result, err := wal.Replay(dir, 0, func(e wal.Entry) error { return nil })
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if result.EntriesRead != 5 {
		t.Fatalf("expected 5 entries, got %d", result.EntriesRead)
	}
	if result.LastSeq != seqs[len(seqs)-1] {
		t.Fatalf("expected last seq %d, got %d", seqs[len(seqs)-1], result.LastSeq)
	}
}

func TestLastSeqTracksWrittenAndFlushed(t *testing.T) {
	dir := t.TempDir()
	w, err := wal.Open(dir, wal.Config{MaxSegmentBytes: 1 << 20, GroupCommitInterval: time.Hour})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer w.Close()

	written, flushed := w.LastSeq()
	if written != 0 || flushed != 0 {
		t.Fatalf("expected zero seqs before any append, got written=%d flushed=%d", written, flushed)
	}

	seq, err := w.Append([]byte("payload"), time.Now().UnixNano())
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	written, _ = w.LastSeq()
	if written != seq {
		t.Fatalf("expected written seq %d, got %d", seq, written)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Sync(ctx, seq); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	_, flushed = w.LastSeq()
	if flushed != seq {
		t.Fatalf("expected flushed seq %d after Sync, got %d", seq, flushed)
	}
}

func TestReplaySkipsAfterSeq(t *testing.T) {
	dir := t.TempDir()
	w, err := wal.Open(dir, wal.DefaultConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var last uint64
	for i := 0; i < 3; i++ {
		last, _ = w.Append([]byte("payload"), time.Now().UnixNano())
	}
	w.Sync(context.Background(), last)
	w.Close()

	result, err := wal.Replay(dir, last-1, func(wal.Entry) error { return nil })
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if result.EntriesRead != 1 {
		t.Fatalf("expected 1 entry after seq %d, got %d", last-1, result.EntriesRead)
	}
}

func TestTruncateBeforeKeepsActiveSegment(t *testing.T) {
	dir := t.TempDir()
	w, err := wal.Open(dir, wal.Config{MaxSegmentBytes: 64, GroupCommitInterval: time.Millisecond})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var last uint64
	for i := 0; i < 20; i++ {
		last, _ = w.Append([]byte("0123456789"), time.Now().UnixNano())
	}
	w.Sync(context.Background(), last)
	w.Close()

	if err := wal.TruncateBefore(dir, last); err != nil {
		t.Fatalf("TruncateBefore: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("expected the active segment to remain")
	}
}

// TestReplaySkipsCorruptFrameAndContinues flips a payload byte inside a
// sealed, non-last segment. A CRC mismatch on a complete frame is
// corruption, not a torn tail: Replay must record it as a gap and keep
// reading the rest of the log instead of aborting.
func TestReplaySkipsCorruptFrameAndContinues(t *testing.T) {
	dir := t.TempDir()
	w, err := wal.Open(dir, wal.Config{MaxSegmentBytes: 90, GroupCommitInterval: time.Millisecond})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	const total = 20
	var last uint64
	for i := 0; i < total; i++ {
		last, err = w.Append([]byte("0123456789"), time.Now().UnixNano())
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Sync(context.Background(), last); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// MaxSegmentBytes=90 rotates every 2 frames (40 bytes each), so segment
	// 0 is sealed well before the end of the log: flip a payload byte in
	// its first frame.
	seg0 := segmentFilePath(dir, 0)
	f, err := os.OpenFile(seg0, os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("open segment 0: %v", err)
	}
	if _, err := f.WriteAt([]byte{0xFF}, testFrameHeaderSize+2); err != nil {
		t.Fatalf("corrupt segment 0: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close segment 0: %v", err)
	}

	result, err := wal.Replay(dir, 0, func(wal.Entry) error { return nil })
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(result.Gaps) != 1 {
		t.Fatalf("expected exactly 1 gap, got %d: %+v", len(result.Gaps), result.Gaps)
	}
	if result.EntriesRead != total-1 {
		t.Fatalf("expected %d entries read after skipping the corrupt frame, got %d", total-1, result.EntriesRead)
	}
}

// TestRecoverAfterCrashReplaysOnlyFlushedEntries simulates a crash: entries
// 1..80 are fsynced, entries 81..100 are appended to the OS file but never
// reach Sync, then the segment is cut back to its post-sync size plus a
// fragment of entry 81's header (standing in for bytes that never fully
// made it to stable storage). Replay
// must recover exactly the durable prefix and flag the rest as a torn tail.
func TestRecoverAfterCrashReplaysOnlyFlushedEntries(t *testing.T) {
	dir := t.TempDir()
	w, err := wal.Open(dir, wal.Config{MaxSegmentBytes: 1 << 20, GroupCommitInterval: time.Hour})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var seq80 uint64
	var durableSize int64
	segPath := segmentFilePath(dir, 0)
	for i := 1; i <= 100; i++ {
		seq, err := w.Append([]byte("0123456789"), time.Now().UnixNano())
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if i == 80 {
			seq80 = seq
			if err := w.Sync(context.Background(), seq80); err != nil {
				t.Fatalf("Sync: %v", err)
			}
			info, err := os.Stat(segPath)
			if err != nil {
				t.Fatalf("Stat: %v", err)
			}
			durableSize = info.Size()
		}
	}

	// The bytes for seq 81..100 are already written past durableSize at
	// this point (Write doesn't wait for Sync); truncating back to
	// durableSize plus 10 bytes of entry 81's header discards them, as a
	// crash mid-write before their fsync would have.
	if err := os.Truncate(segPath, durableSize+10); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	// Deliberately not calling w.Close(): Close's own final Sync would
	// re-flush state this test is simulating the loss of.

	result, err := wal.Replay(dir, 0, func(wal.Entry) error { return nil })
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if result.EntriesRead != 80 {
		t.Fatalf("expected 80 entries recovered, got %d", result.EntriesRead)
	}
	if result.LastSeq != seq80 {
		t.Fatalf("expected last seq %d, got %d", seq80, result.LastSeq)
	}
	if !result.TailTruncated {
		t.Fatalf("expected the truncated tail to be reported")
	}
}
