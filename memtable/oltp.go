// Copyright (c) 2026 Quanta Exchange Contributors
//
// OLTP is the in-memory, point-lookup-optimized write buffer ahead of
// the OLTP SSTable tier: a sharded map (entries are sorted when read
// out) that freezes once its approximate byte size crosses a threshold,
// at which point the storage facade flushes it to an immutable sorted
// run. Grounded on
// the teacher's TsSymbolMap (explicit key, plain map, small accessor
// surface), scaled out to sharded form for write concurrency.

package memtable

import (
	"encoding/binary"
	"hash/maphash"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

const numShards = 16

var shardSeed = maphash.MakeSeed()

// Entry is one OLTP memtable row: a record's raw bytes keyed by its
// business key, versioned by the WAL sequence number that produced it.
// Tombstone marks a logical delete that must still shadow older
// versions of the same key in lower SSTable levels until compacted away.
type Entry struct {
	Key         string
	Value       []byte
	Seq         uint64
	Tombstone   bool
	TimestampNs int64
}

// headerTimestampNs reads the timestamp_ns field embedded at byte
// offset 8 of a record's fixed header (mirrors Header's wire layout:
// type(1) + pad(7) + timestamp_ns(8)). Returns 0 for a value too short
// to hold a header, which tombstones (no stored value) always are.
func headerTimestampNs(value []byte) int64 {
	if len(value) < 16 {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(value[8:16]))
}

type shard struct {
	mu   sync.RWMutex
	data map[string]Entry
}

// OLTP is a sharded, concurrent, freeze-on-threshold memtable.
type OLTP struct {
	shards    [numShards]*shard
	threshold int64
	approxBytes atomic.Int64
	frozen    atomic.Bool
}

// New creates an empty OLTP memtable that freezes once its accumulated
// entry size reaches thresholdBytes.
func New(thresholdBytes int64) *OLTP {
	m := &OLTP{threshold: thresholdBytes}
	for i := range m.shards {
		m.shards[i] = &shard{data: make(map[string]Entry)}
	}
	return m
}

func shardIndex(key string) int {
	var h maphash.Hash
	h.SetSeed(shardSeed)
	h.WriteString(key)
	return int(h.Sum64() % numShards)
}

// ErrFrozen is returned by Put/Delete once the memtable has frozen and
// is awaiting flush to the SSTable tier.
var ErrFrozen = errFrozen{}

type errFrozen struct{}

func (errFrozen) Error() string { return "memtable: frozen, awaiting flush" }

// Put inserts or overwrites the value for key, recording seq as its
// version. Returns ErrFrozen if the memtable has already frozen.
func (m *OLTP) Put(key string, value []byte, seq uint64) error {
	return m.put(key, value, seq, false, headerTimestampNs(value))
}

// Delete records a tombstone for key at seq. timestampNs is the
// deleting event's own timestamp (a tombstone carries no stored value
// to read one back out of), so GetAsOf can still shadow older versions
// correctly at a given point in time.
func (m *OLTP) Delete(key string, seq uint64, timestampNs int64) error {
	return m.put(key, nil, seq, true, timestampNs)
}

func (m *OLTP) put(key string, value []byte, seq uint64, tombstone bool, timestampNs int64) error {
	if m.frozen.Load() {
		return ErrFrozen
	}
	s := m.shards[shardIndex(key)]
	s.mu.Lock()
	prev, existed := s.data[key]
	s.data[key] = Entry{Key: key, Value: value, Seq: seq, Tombstone: tombstone, TimestampNs: timestampNs}
	s.mu.Unlock()

	delta := int64(len(key) + len(value) + 16)
	if existed {
		delta -= int64(len(prev.Key) + len(prev.Value) + 16)
	}
	m.approxBytes.Add(delta)
	return nil
}

// Get returns the most recent entry for key, if present.
func (m *OLTP) Get(key string) (Entry, bool) {
	s := m.shards[shardIndex(key)]
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	return e, ok
}

// GetAsOf returns key's entry if its version was written at or before
// maxTimestampNs. Since this memtable only ever holds the latest
// version per key, a version newer than maxTimestampNs reports not
// found rather than returning stale data -- callers fall through to
// older frozen memtables or sealed SSTable runs for a true
// point-in-time view.
func (m *OLTP) GetAsOf(key string, maxTimestampNs int64) (Entry, bool) {
	e, ok := m.Get(key)
	if !ok || e.TimestampNs > maxTimestampNs {
		return Entry{}, false
	}
	return e, true
}

// RangeScan returns every entry (including tombstones, which callers
// must filter) whose key begins with prefix, in ascending key order.
func (m *OLTP) RangeScan(prefix string) []Entry {
	var out []Entry
	for _, s := range m.shards {
		s.mu.RLock()
		for k, e := range s.data {
			if strings.HasPrefix(k, prefix) {
				out = append(out, e)
			}
		}
		s.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// ApproxBytes returns the memtable's estimated in-memory size.
func (m *OLTP) ApproxBytes() int64 {
	return m.approxBytes.Load()
}

// IsFull reports whether the memtable has crossed its freeze threshold.
func (m *OLTP) IsFull() bool {
	return m.approxBytes.Load() >= m.threshold
}

// Freeze marks the memtable read-only: subsequent Put/Delete calls fail
// with ErrFrozen. Safe to call more than once.
func (m *OLTP) Freeze() {
	m.frozen.Store(true)
}

// IsFrozen reports whether Freeze has been called.
func (m *OLTP) IsFrozen() bool {
	return m.frozen.Load()
}

// Len returns the number of distinct keys (including tombstones).
func (m *OLTP) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.data)
		s.mu.RUnlock()
	}
	return n
}

// SortedEntries returns every entry in ascending key order, suitable
// for writing an OLTP SSTable run. The memtable must be frozen first so
// the snapshot is stable.
func (m *OLTP) SortedEntries() []Entry {
	entries := make([]Entry, 0, m.Len())
	for _, s := range m.shards {
		s.mu.RLock()
		for _, e := range s.data {
			entries = append(entries, e)
		}
		s.mu.RUnlock()
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}
