// Copyright (c) 2026 Quanta Exchange Contributors
//
// Store is the hybrid storage facade: one object per stream owning a
// WAL, an OLTP memtable pair (mutable + frozen-pending-flush), an OLAP
// memtable, the level manifest, and a background compactor. Shape
// ("one object owns scanner+writer+small state machine" wiring a
// protocol client to a file writer) follows live.LiveClient and
// file.WriteDbnFileAsParquet.

package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	qx "github.com/quantaex/qx-store"
	"github.com/quantaex/qx-store/compaction"
	"github.com/quantaex/qx-store/memtable"
	"github.com/quantaex/qx-store/sstable"
	"github.com/quantaex/qx-store/wal"
)

// Config controls a Store's on-disk layout and flush/compaction
// thresholds.
type Config struct {
	Dir                  string
	OLTPMemtableBytes    int64
	OLAPMemtableRows     int
	CompactionLevels     int
	CompactionL0Trigger  int
	CompactionSizeRatio  int
	CompactionMaxActive  int
	CompactionPollEvery  time.Duration
	SSTableIndexInterval int
	SSTableBloomFPRate   float64
	// MemtableMaxAge rotates the live OLTP/OLAP memtables once they've
	// been open this long, even if their size threshold hasn't been
	// crossed, bounding how much unflushed data a crash can lose.
	MemtableMaxAge time.Duration
	// CheckpointInterval is how often Store synchronously flushes live
	// memtables, records a checkpoint, and truncates sealed WAL segments
	// below it. Zero disables automatic checkpointing.
	CheckpointInterval time.Duration
	WAL                wal.Config
}

// DefaultConfig returns reasonable defaults rooted at dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:                  dir,
		OLTPMemtableBytes:    16 << 20,
		OLAPMemtableRows:     100_000,
		CompactionLevels:     4,
		CompactionL0Trigger:  compaction.L0CompactionTrigger,
		CompactionSizeRatio:  compaction.DefaultSizeRatio,
		CompactionMaxActive:  2,
		CompactionPollEvery:  500 * time.Millisecond,
		SSTableIndexInterval: sstable.IndexInterval,
		SSTableBloomFPRate:   sstable.DefaultBloomFPRate,
		MemtableMaxAge:       10 * time.Second,
		CheckpointInterval:   30 * time.Second,
		WAL:                  wal.DefaultConfig(),
	}
}

// Store is the per-stream hybrid OLTP/OLAP storage engine.
type Store struct {
	cfg Config
	log *slog.Logger

	wal *wal.WAL

	mu            sync.RWMutex
	oltpLive      *memtable.OLTP
	oltpOld       []*memtable.OLTP // frozen, awaiting flush
	oltpLiveSince time.Time
	olapLive      *memtable.OLAP
	olapLiveSince time.Time

	manifest  *compaction.Manifest
	compactor *compaction.Compactor

	nextRunSeq int

	// oltpFlushedSeq/olapFlushedSeq track the highest WAL sequence number
	// reflected in a sealed run for each tier, monotonically. Checkpoint's
	// safe recovery floor is the minimum of the two: below that point,
	// every record -- keyed or not -- is durably represented in the
	// sstable/parquet tier, not just sitting in an in-memory memtable.
	oltpFlushedSeq atomic.Uint64
	olapFlushedSeq atomic.Uint64
	flushWG        sync.WaitGroup

	ageTicker *time.Ticker
	ageStop   chan struct{}
	ageDone   chan struct{}

	checkpointTicker *time.Ticker
	checkpointStop   chan struct{}
	checkpointDone   chan struct{}
}

func bumpSeqHighWater(a *atomic.Uint64, candidate uint64) {
	for {
		cur := a.Load()
		if candidate <= cur {
			return
		}
		if a.CompareAndSwap(cur, candidate) {
			return
		}
	}
}

// Open creates (or reopens) a Store rooted at cfg.Dir. The manifest
// (sealed SSTable run bookkeeping) is loaded from cfg.Dir's sidecar
// file so runs written by a previous process remain reachable; callers
// still run recovery.Coordinator against the WAL afterward to rebuild
// the in-memory memtables, via Store.ApplyRecovered or Checkpoint's
// last-applied-seq, before serving new writes.
func Open(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	for _, sub := range []string{"wal", "sstable", "compaction"} {
		if err := os.MkdirAll(filepath.Join(cfg.Dir, sub), 0o755); err != nil {
			return nil, err
		}
	}

	w, err := wal.Open(filepath.Join(cfg.Dir, "wal"), cfg.WAL)
	if err != nil {
		return nil, fmt.Errorf("storage: open wal: %w", err)
	}

	manifestPath := filepath.Join(cfg.Dir, compaction.ManifestFileName)
	manifest, err := compaction.LoadManifest(manifestPath, cfg.CompactionLevels, cfg.CompactionL0Trigger, cfg.CompactionSizeRatio, logger)
	if err != nil {
		return nil, fmt.Errorf("storage: load manifest: %w", err)
	}
	compactor := compaction.NewWithTuning(manifest, filepath.Join(cfg.Dir, "sstable"), cfg.CompactionMaxActive, cfg.CompactionPollEvery,
		cfg.SSTableIndexInterval, cfg.SSTableBloomFPRate, logger)
	compactor.Start()

	nextRunSeq, err := discoverNextRunSeq(filepath.Join(cfg.Dir, "sstable"))
	if err != nil {
		return nil, fmt.Errorf("storage: discover next run sequence: %w", err)
	}

	now := time.Now()
	maxAge := cfg.MemtableMaxAge
	if maxAge <= 0 {
		maxAge = 10 * time.Second
	}
	checkpointEvery := cfg.CheckpointInterval

	s := &Store{
		cfg:           cfg,
		log:           logger,
		wal:           w,
		oltpLive:      memtable.New(cfg.OLTPMemtableBytes),
		oltpLiveSince: now,
		olapLive:      memtable.NewOLAP(cfg.OLAPMemtableRows),
		olapLiveSince: now,
		manifest:      manifest,
		compactor:     compactor,
		nextRunSeq:    nextRunSeq,
		ageTicker:     time.NewTicker(maxAge / 4),
		ageStop:       make(chan struct{}),
		ageDone:       make(chan struct{}),
	}
	go s.drainCompactionResults()
	go s.ageRotateLoop(maxAge)

	if checkpointEvery > 0 {
		s.checkpointTicker = time.NewTicker(checkpointEvery)
		s.checkpointStop = make(chan struct{})
		s.checkpointDone = make(chan struct{})
		go s.checkpointLoop()
	}
	return s, nil
}

// runFileSeqPattern matches the trailing numeric sequence embedded in a
// sealed run's filename, e.g. "L0-00000000000000000007.sst" or
// "olap-order_insert-00000000000000000012.parquet".
var runFileSeqPattern = regexp.MustCompile(`-(\d+)\.(sst|parquet)$`)

// discoverNextRunSeq scans sstableDir for existing run files and
// returns one past the highest sequence number found in their names, so
// a restarted Store doesn't mint new run filenames that collide with
// ones the restored manifest already references.
func discoverNextRunSeq(sstableDir string) (int, error) {
	entries, err := os.ReadDir(sstableDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	maxSeq := -1
	for _, e := range entries {
		m := runFileSeqPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > maxSeq {
			maxSeq = n
		}
	}
	return maxSeq + 1, nil
}

// checkpointLoop periodically checkpoints the store until checkpointStop
// is closed.
func (s *Store) checkpointLoop() {
	defer close(s.checkpointDone)
	for {
		select {
		case <-s.checkpointStop:
			return
		case <-s.checkpointTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := s.Checkpoint(ctx); err != nil {
				s.log.Error("periodic checkpoint failed", "err", err)
			}
			cancel()
		}
	}
}

// ageRotateLoop periodically rotates the live memtables once they've
// been open longer than maxAge, even if still under their size
// threshold, bounding how much unflushed data a crash can lose.
func (s *Store) ageRotateLoop(maxAge time.Duration) {
	defer close(s.ageDone)
	for {
		select {
		case <-s.ageStop:
			return
		case <-s.ageTicker.C:
			s.mu.Lock()
			if time.Since(s.oltpLiveSince) >= maxAge {
				s.rotateOLTPLocked()
			}
			if time.Since(s.olapLiveSince) >= maxAge {
				s.rotateOLAPLocked()
			}
			s.mu.Unlock()
		}
	}
}

func (s *Store) drainCompactionResults() {
	for result := range s.compactor.Results() {
		if result.Err != nil {
			s.log.Error("compaction result error", "err", result.Err)
		}
	}
}

// recordTimestamp extracts the timestamp_ns field embedded at byte
// offset 8 of a record's fixed header, the same convention Header's
// wire layout uses (type(1) + pad(7) + timestamp_ns(8)).
func recordTimestamp(raw []byte) int64 {
	if len(raw) < 16 {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(raw[8:16]))
}

// Write appends a record to the WAL, then applies it to the
// appropriate in-memory structures: keyed point lookups go to the
// OLTP memtable, everything goes to the OLAP memtable for analytical
// queries. The WAL append and memtable apply happen under the same
// lock as Checkpoint's flush-and-record-seq sequence, so a checkpoint
// can never observe a WAL entry as durable without the memtable mutation
// that must accompany it.
func (s *Store) Write(ctx context.Context, key string, raw []byte, rt qx.RecordType) (seq uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, err = s.wal.Append(raw, recordTimestamp(raw))
	if err != nil {
		return 0, err
	}

	if s.oltpLive.IsFull() {
		s.rotateOLTPLocked()
	}
	if s.olapLive.IsFull() {
		s.rotateOLAPLocked()
	}
	putErr := s.oltpLive.Put(key, raw, seq)
	appendErr := s.olapLive.Append(memtable.Row{Type: rt, Raw: raw, Seq: seq})

	if putErr != nil {
		return seq, putErr
	}
	return seq, appendErr
}

// Delete appends raw (the domain event justifying the deletion, e.g. an
// ExchangeResponse with Kind CancelAccepted) to the WAL and marks key
// tombstoned in the OLTP memtable.
func (s *Store) Delete(ctx context.Context, key string, raw []byte) (seq uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := recordTimestamp(raw)
	seq, err = s.wal.Append(raw, ts)
	if err != nil {
		return 0, err
	}

	if s.oltpLive.IsFull() {
		s.rotateOLTPLocked()
	}
	err = s.oltpLive.Delete(key, seq, ts)
	return seq, err
}

// ApplyRecovered applies a single replayed WAL entry directly to the
// live memtables, bypassing Write/Delete entirely: recovered entries
// already exist in the WAL at seq, so re-appending them (as Write would)
// would duplicate the log's history on every restart. hasKey/key come
// from the caller's own key-extraction logic; OLAP is always updated
// since it indexes every record type, keyed or not.
func (s *Store) ApplyRecovered(key string, hasKey bool, raw []byte, rt qx.RecordType, seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.oltpLive.IsFull() {
		s.rotateOLTPLocked()
	}
	if s.olapLive.IsFull() {
		s.rotateOLAPLocked()
	}

	var putErr error
	if hasKey {
		putErr = s.oltpLive.Put(key, raw, seq)
	}
	appendErr := s.olapLive.Append(memtable.Row{Type: rt, Raw: raw, Seq: seq})
	if putErr != nil {
		return putErr
	}
	return appendErr
}

// Checkpoint synchronously freezes and flushes the live OLTP/OLAP
// memtables, waits for every in-flight flush (including ones from
// earlier size- or age-triggered rotations) to land in a sealed run,
// records the resulting safe recovery floor to a sidecar file (see
// writeCheckpointMeta), and truncates WAL segments fully below it.
// Unlike WAL's own in-band checkpoint marker, this sidecar file is what
// recovery actually trusts: truncating segments at or below the
// checkpoint would otherwise delete the very marker a future recovery
// needs to find.
func (s *Store) Checkpoint(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	s.rotateOLTPLocked()
	s.rotateOLAPLocked()
	s.mu.Unlock()

	s.flushWG.Wait()

	lastAppliedSeq := s.oltpFlushedSeq.Load()
	if olap := s.olapFlushedSeq.Load(); olap < lastAppliedSeq {
		lastAppliedSeq = olap
	}

	if _, err := s.wal.Checkpoint(lastAppliedSeq, checkpointMarkerPayload(lastAppliedSeq)); err != nil {
		return 0, fmt.Errorf("storage: wal checkpoint marker: %w", err)
	}
	if err := writeCheckpointMeta(s.cfg.Dir, lastAppliedSeq); err != nil {
		return 0, fmt.Errorf("storage: write checkpoint metadata: %w", err)
	}
	if err := s.manifest.Save(); err != nil {
		return 0, fmt.Errorf("storage: save manifest: %w", err)
	}
	if err := wal.TruncateBefore(filepath.Join(s.cfg.Dir, "wal"), lastAppliedSeq); err != nil {
		return 0, fmt.Errorf("storage: truncate wal: %w", err)
	}
	return lastAppliedSeq, nil
}

// Sync blocks until seq has been durably fsynced to the WAL.
func (s *Store) Sync(ctx context.Context, seq uint64) error {
	return s.wal.Sync(ctx, seq)
}

// Get performs a point lookup: live memtable, then frozen memtables
// (newest first), then L0..Ln sealed runs (newest level first).
func (s *Store) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	if e, ok := s.oltpLive.Get(key); ok {
		s.mu.RUnlock()
		if e.Tombstone {
			return nil, false, nil
		}
		return e.Value, true, nil
	}
	for i := len(s.oltpOld) - 1; i >= 0; i-- {
		if e, ok := s.oltpOld[i].Get(key); ok {
			s.mu.RUnlock()
			if e.Tombstone {
				return nil, false, nil
			}
			return e.Value, true, nil
		}
	}
	s.mu.RUnlock()

	for _, level := range s.manifest.Levels() {
		for i := len(level) - 1; i >= 0; i-- {
			meta := level[i]
			if key < meta.MinKey || key > meta.MaxKey {
				continue
			}
			run, err := sstable.OpenOLTPRun(meta.Path)
			if err != nil {
				return nil, false, err
			}
			value, _, tombstone, ok := run.Get(key)
			run.Close()
			if ok {
				if tombstone {
					return nil, false, nil
				}
				return value, true, nil
			}
		}
	}
	return nil, false, nil
}

// GetAsOf performs a point-in-time lookup: key's most recent version
// with a timestamp <= maxTimestampNs. The live and frozen OLTP
// memtables retain only the single latest version per key (compaction
// drops all but the newest entry per key too -- see
// compaction.MergeRuns), so a version newer than maxTimestampNs falls
// through to the next tier rather than being returned; a not-yet-sealed
// older version genuinely isn't retained anywhere once superseded.
func (s *Store) GetAsOf(key string, maxTimestampNs int64) ([]byte, bool, error) {
	s.mu.RLock()
	if e, ok := s.oltpLive.GetAsOf(key, maxTimestampNs); ok {
		s.mu.RUnlock()
		if e.Tombstone {
			return nil, false, nil
		}
		return e.Value, true, nil
	}
	for i := len(s.oltpOld) - 1; i >= 0; i-- {
		if e, ok := s.oltpOld[i].GetAsOf(key, maxTimestampNs); ok {
			s.mu.RUnlock()
			if e.Tombstone {
				return nil, false, nil
			}
			return e.Value, true, nil
		}
	}
	s.mu.RUnlock()

	for _, level := range s.manifest.Levels() {
		for i := len(level) - 1; i >= 0; i-- {
			meta := level[i]
			if key < meta.MinKey || key > meta.MaxKey {
				continue
			}
			run, err := sstable.OpenOLTPRun(meta.Path)
			if err != nil {
				return nil, false, err
			}
			value, _, tombstone, ok := run.Get(key)
			run.Close()
			if !ok {
				continue
			}
			if recordTimestamp(value) > maxTimestampNs {
				continue
			}
			if tombstone {
				return nil, false, nil
			}
			return value, true, nil
		}
	}
	return nil, false, nil
}

// RangeEntry is one row returned by RangeScan.
type RangeEntry struct {
	Key       string
	Value     []byte
	Tombstone bool
}

// rangeMayOverlapPrefix is a loose lexicographic test for whether a
// sealed run's [minKey, maxKey] span could contain any key starting
// with prefix. False positives are fine -- RangeScan filters precisely
// with strings.HasPrefix afterward -- but false negatives would
// silently drop real matches, so this only rules a run out when no
// overlap is possible.
func rangeMayOverlapPrefix(minKey, maxKey, prefix string) bool {
	upper := prefix + "\xff"
	return maxKey >= prefix && minKey <= upper
}

// RangeScan returns every non-tombstoned entry whose key begins with
// prefix, merged across the live memtable, frozen memtables, and sealed
// runs (newest version per key wins), in ascending key order.
func (s *Store) RangeScan(prefix string) ([]RangeEntry, error) {
	seen := make(map[string]RangeEntry)
	order := func(entries []memtable.Entry) {
		for _, e := range entries {
			if _, ok := seen[e.Key]; ok {
				continue
			}
			seen[e.Key] = RangeEntry{Key: e.Key, Value: e.Value, Tombstone: e.Tombstone}
		}
	}

	s.mu.RLock()
	order(s.oltpLive.RangeScan(prefix))
	for i := len(s.oltpOld) - 1; i >= 0; i-- {
		order(s.oltpOld[i].RangeScan(prefix))
	}
	s.mu.RUnlock()

	for _, level := range s.manifest.Levels() {
		for i := len(level) - 1; i >= 0; i-- {
			meta := level[i]
			if !rangeMayOverlapPrefix(meta.MinKey, meta.MaxKey, prefix) {
				continue
			}
			run, err := sstable.OpenOLTPRun(meta.Path)
			if err != nil {
				return nil, err
			}
			for _, e := range run.Entries() {
				if !strings.HasPrefix(e.Key, prefix) {
					continue
				}
				if _, ok := seen[e.Key]; ok {
					continue
				}
				seen[e.Key] = RangeEntry{Key: e.Key, Value: e.Value, Tombstone: e.Tombstone}
			}
			run.Close()
		}
	}

	out := make([]RangeEntry, 0, len(seen))
	for _, e := range seen {
		if e.Tombstone {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// rotateOLTPLocked freezes the live OLTP memtable and flushes it to an
// L0 run in the background. Caller must hold s.mu.
func (s *Store) rotateOLTPLocked() {
	s.oltpLive.Freeze()
	frozen := s.oltpLive
	s.oltpOld = append(s.oltpOld, frozen)
	s.oltpLive = memtable.New(s.cfg.OLTPMemtableBytes)
	s.oltpLiveSince = time.Now()

	seq := s.nextRunSeq
	s.nextRunSeq++
	s.flushWG.Add(1)
	go s.flushOLTP(frozen, seq)
}

func (s *Store) flushOLTP(m *memtable.OLTP, seq int) {
	defer s.flushWG.Done()
	entries := m.SortedEntries()
	if len(entries) == 0 {
		s.forgetFrozenOLTP(m)
		return
	}
	var maxSeq uint64
	for _, e := range entries {
		if e.Seq > maxSeq {
			maxSeq = e.Seq
		}
	}
	path := filepath.Join(s.cfg.Dir, "sstable", fmt.Sprintf("L0-%020d.sst", seq))
	if err := sstable.WriteOLTPRunWithOptions(path, entries, s.cfg.SSTableIndexInterval, s.cfg.SSTableBloomFPRate); err != nil {
		s.log.Error("flush oltp memtable failed", "err", err)
		return
	}
	s.manifest.AddL0Run(compaction.RunMeta{
		Path:   path,
		MinKey: entries[0].Key,
		MaxKey: entries[len(entries)-1].Key,
	})
	bumpSeqHighWater(&s.oltpFlushedSeq, maxSeq)
	s.forgetFrozenOLTP(m)
}

func (s *Store) forgetFrozenOLTP(m *memtable.OLTP) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, old := range s.oltpOld {
		if old == m {
			s.oltpOld = append(s.oltpOld[:i], s.oltpOld[i+1:]...)
			return
		}
	}
}

// rotateOLAPLocked freezes the live OLAP memtable and flushes each
// record type's rows to its own Parquet run. Caller must hold s.mu.
func (s *Store) rotateOLAPLocked() {
	s.olapLive.Freeze()
	frozen := s.olapLive
	s.olapLive = memtable.NewOLAP(s.cfg.OLAPMemtableRows)
	s.olapLiveSince = time.Now()

	seq := s.nextRunSeq
	s.nextRunSeq++
	s.flushWG.Add(1)
	go s.flushOLAP(frozen, seq)
}

func (s *Store) flushOLAP(m *memtable.OLAP, seq int) {
	defer s.flushWG.Done()
	var maxSeq uint64
	for _, rt := range m.Types() {
		rows := m.RowsByType(rt)
		if len(rows) == 0 {
			continue
		}
		for _, row := range rows {
			if row.Seq > maxSeq {
				maxSeq = row.Seq
			}
		}
		path := filepath.Join(s.cfg.Dir, "sstable", fmt.Sprintf("olap-%s-%020d.parquet", rt, seq))
		if err := sstable.WriteOLAPRun(path, rt, rows); err != nil {
			s.log.Error("flush olap memtable failed", "record_type", rt, "err", err)
			return
		}
	}
	bumpSeqHighWater(&s.olapFlushedSeq, maxSeq)
}

// Stats is a point-in-time snapshot of a Store's size, exposed for
// introspection (cmd/qx-gateway's /stats endpoint, polled by cmd/qx-tui).
type Stats struct {
	OLTPLiveEntries int
	OLTPLiveBytes   int64
	OLTPFrozenRuns  int
	OLAPLiveRows    int
	LevelRunCounts  []int
	WALWrittenSeq   uint64
	WALFlushedSeq   uint64
}

// Stats returns a Stats snapshot of s's current state.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	st := Stats{
		OLTPLiveEntries: s.oltpLive.Len(),
		OLTPLiveBytes:   s.oltpLive.ApproxBytes(),
		OLTPFrozenRuns:  len(s.oltpOld),
		OLAPLiveRows:    s.olapLive.Len(),
	}
	s.mu.RUnlock()

	levels := s.manifest.Levels()
	st.LevelRunCounts = make([]int, len(levels))
	for i, level := range levels {
		st.LevelRunCounts[i] = len(level)
	}
	st.WALWrittenSeq, st.WALFlushedSeq = s.wal.LastSeq()
	return st
}

// Close stops the compactor, age-rotation, and WAL background loops.
func (s *Store) Close() error {
	if s.checkpointStop != nil {
		close(s.checkpointStop)
		<-s.checkpointDone
		s.checkpointTicker.Stop()
	}
	close(s.ageStop)
	<-s.ageDone
	s.ageTicker.Stop()
	s.compactor.Close()
	return s.wal.Close()
}
