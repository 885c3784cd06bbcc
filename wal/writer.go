// Copyright (c) 2026 Quanta Exchange Contributors
//
// WAL is an append-only, segment-rotated log with CRC32-framed entries
// and group-commit fsync batching: writers append without blocking on
// disk, and a single background goroutine periodically (or on demand)
// fsyncs and wakes every caller waiting on Sync up to the durable
// sequence number. Grounded on the LeeNgari RDBMS wal writer's
// LSN-allocate-under-mutex / explicit-Commit-fsync split, generalized
// from per-call fsync to batched group commit.

package wal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	qx "github.com/quantaex/qx-store"
)

// Config tunes a WAL instance. Zero-value fields fall back to defaults
// in DefaultConfig.
type Config struct {
	// MaxSegmentBytes rotates to a new segment file once the active one
	// would exceed this size.
	MaxSegmentBytes int64
	// GroupCommitInterval bounds how long an Append can wait for its
	// fsync if no other caller forces an earlier flush.
	GroupCommitInterval time.Duration
	// MaxBatchEntries forces an immediate fsync once this many entries
	// have accumulated since the last flush, rather than waiting for
	// GroupCommitInterval: group commit flushes by count or interval,
	// whichever comes first.
	MaxBatchEntries int
	// CompressClosedSegments zstd-compresses a segment in the
	// background immediately after rotation closes it.
	CompressClosedSegments bool
}

// DefaultConfig returns the WAL's default tuning.
func DefaultConfig() Config {
	return Config{
		MaxSegmentBytes:        64 * 1024 * 1024,
		GroupCommitInterval:    3 * time.Millisecond,
		MaxBatchEntries:        100,
		CompressClosedSegments: true,
	}
}

// WAL is a single logical stream's write-ahead log directory.
type WAL struct {
	dir string
	cfg Config

	mu               sync.Mutex
	cond             *sync.Cond
	file             *os.File
	segmentIndex     int
	currentOffset    int64
	nextSeq          uint64
	writtenSeq       uint64
	flushedSeq       uint64
	unflushedEntries int
	closed           bool

	flushSignal chan struct{}
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// Open opens (or creates) a WAL rooted at dir.
func Open(dir string, cfg Config) (*WAL, error) {
	if cfg.MaxSegmentBytes <= 0 {
		cfg.MaxSegmentBytes = DefaultConfig().MaxSegmentBytes
	}
	if cfg.GroupCommitInterval <= 0 {
		cfg.GroupCommitInterval = DefaultConfig().GroupCommitInterval
	}
	if cfg.MaxBatchEntries <= 0 {
		cfg.MaxBatchEntries = DefaultConfig().MaxBatchEntries
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("wal: mkdir %s: %w", dir, err)
	}

	segIdx, seq, err := discoverTail(dir)
	if err != nil {
		return nil, err
	}
	if seq == 0 {
		seq = 1 // sequence numbers start at 1 in a fresh log
	}

	w := &WAL{
		dir:          dir,
		cfg:          cfg,
		segmentIndex: segIdx,
		nextSeq:      seq,
		writtenSeq:   seq - 1,
		flushedSeq:   seq - 1,
		flushSignal:  make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)

	f, offset, err := openSegmentForAppend(dir, segIdx)
	if err != nil {
		return nil, err
	}
	w.file = f
	w.currentOffset = offset

	go w.flushLoop()
	return w, nil
}

func segmentPath(dir string, idx int) string {
	return filepath.Join(dir, fmt.Sprintf("%020d.wal", idx))
}

func openSegmentForAppend(dir string, idx int) (*os.File, int64, error) {
	path := segmentPath(dir, idx)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, 0, fmt.Errorf("wal: open segment %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// Append writes payload as a new data entry timestamped timestampNs,
// returning its assigned sequence number. The write is buffered in the
// OS page cache; call Sync to wait for durability.
func (w *WAL) Append(payload []byte, timestampNs int64) (uint64, error) {
	return w.appendEntry(EntryType_Data, payload, timestampNs)
}

func (w *WAL) appendEntry(typ EntryType, payload []byte, timestampNs int64) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, ErrClosed
	}

	seq := w.nextSeq
	w.nextSeq++

	frame := encodeFrame(typ, seq, timestampNs, payload)
	if w.currentOffset+int64(len(frame)) > w.cfg.MaxSegmentBytes && w.currentOffset > 0 {
		if err := w.rotateLocked(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(frame)
	if err != nil {
		return 0, fmt.Errorf("wal: write entry %d: %w", seq, classifyIOErr(err))
	}
	w.currentOffset += int64(n)
	w.writtenSeq = seq
	w.unflushedEntries++

	// Group commit flushes by count or by GroupCommitInterval, whichever
	// comes first: only force an early flush once a full batch has
	// accumulated, instead of signaling on every single append.
	if w.unflushedEntries >= w.cfg.MaxBatchEntries {
		w.unflushedEntries = 0
		select {
		case w.flushSignal <- struct{}{}:
		default:
		}
	}
	return seq, nil
}

// isDiskFullError reports whether err (possibly wrapped) ultimately
// came from the kernel refusing a write for lack of space.
func isDiskFullError(err error) bool {
	return errors.Is(err, unix.ENOSPC)
}

// classifyIOErr maps a disk-full condition to the domain-level
// qx.ErrWalFull sentinel so callers (Store, recovery) can distinguish
// "out of space" from an arbitrary I/O failure; any other error passes
// through unchanged.
func classifyIOErr(err error) error {
	if err == nil {
		return nil
	}
	if isDiskFullError(err) {
		return fmt.Errorf("%w: %v", qx.ErrWalFull, err)
	}
	return err
}

// Checkpoint writes a checkpoint marker entry recording lastAppliedSeq,
// then forces an immediate fsync so the marker is durable before
// returning. Store also persists lastAppliedSeq to a sidecar file
// outside the WAL (storage.Checkpoint): truncating segments at or below
// this marker would otherwise delete the very entry recovery needs to
// find it, so this in-band marker is kept for forensic value, not as
// the mechanism recovery actually relies on.
func (w *WAL) Checkpoint(lastAppliedSeq uint64, payload []byte) (uint64, error) {
	seq, err := w.appendEntry(EntryType_Checkpoint, payload, time.Now().UnixNano())
	if err != nil {
		return 0, err
	}
	return seq, w.Sync(context.Background(), seq)
}

// LastSeq returns the most recently assigned and most recently
// fsynced sequence numbers, for introspection (e.g. cmd/qx-tui's
// status dashboard).
func (w *WAL) LastSeq() (written, flushed uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writtenSeq, w.flushedSeq
}

// Sync blocks until seq is durably fsynced, ctx is done, or the WAL is
// closed. While seq is not yet durable it asks the flusher for an
// immediate fsync, which also covers every other entry written so far.
func (w *WAL) Sync(ctx context.Context, seq uint64) error {
	w.mu.Lock()
	for w.flushedSeq < seq && !w.closed {
		select {
		case w.flushSignal <- struct{}{}:
		default:
		}
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				w.cond.Broadcast()
			case <-done:
			}
		}()
		w.cond.Wait()
		close(done)
		if ctx.Err() != nil {
			w.mu.Unlock()
			return ctx.Err()
		}
	}
	closed := w.closed
	w.mu.Unlock()
	if closed && seq > w.flushedSeq {
		return ErrClosed
	}
	return nil
}

func (w *WAL) flushLoop() {
	defer close(w.doneCh)
	ticker := time.NewTicker(w.cfg.GroupCommitInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.flushSignal:
		case <-ticker.C:
		case <-w.stopCh:
			w.flushOnce()
			return
		}
		w.flushOnce()
	}
}

func (w *WAL) flushOnce() {
	w.mu.Lock()
	if w.writtenSeq == w.flushedSeq || w.file == nil {
		w.mu.Unlock()
		return
	}
	file := w.file
	target := w.writtenSeq
	w.mu.Unlock()

	err := file.Sync()

	w.mu.Lock()
	if err == nil {
		w.flushedSeq = target
		w.unflushedEntries = 0
	}
	w.cond.Broadcast()
	w.mu.Unlock()
}

// rotateLocked closes the active segment and opens the next one. Must
// be called with mu held.
func (w *WAL) rotateLocked() error {
	oldPath := segmentPath(w.dir, w.segmentIndex)
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal: fsync before rotate: %w", classifyIOErr(err))
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("wal: close segment before rotate: %w", err)
	}

	w.segmentIndex++
	f, offset, err := openSegmentForAppend(w.dir, w.segmentIndex)
	if err != nil {
		return classifyIOErr(err)
	}
	w.file = f
	w.currentOffset = offset

	if w.cfg.CompressClosedSegments {
		go compressSegment(oldPath)
	}
	return nil
}

// compressSegment zstd-compresses path to path+".zst" via the shared
// qx.MakeCompressedReader/MakeCompressedWriter helpers and removes the
// original on success. Best-effort: failures are not propagated since
// the segment remains valid uncompressed.
func compressSegment(path string) {
	src, srcCloser, err := qx.MakeCompressedReader(path, false)
	if err != nil {
		return
	}
	defer srcCloser.Close()

	dst, dstCloser, err := qx.MakeCompressedWriter(path+".zst", true)
	if err != nil {
		return
	}
	if _, err := io.Copy(dst, src); err != nil {
		dstCloser()
		os.Remove(path + ".zst")
		return
	}
	dstCloser()
	os.Remove(path)
}

// Close stops the background flusher, performs a final fsync, and
// closes the active segment file.
func (w *WAL) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	defer w.mu.Unlock()
	w.cond.Broadcast()
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}
