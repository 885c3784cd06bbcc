// Copyright (c) 2026 Quanta Exchange Contributors
//
// OLAP is the append-only row buffer ahead of the OLAP SSTable tier
// (parquet row groups). Rows are kept grouped by qx.RecordType so the
// eventual columnar writer can apply the teacher's per-schema
// ParquetGroupNode/ParquetWriteRow pattern (internal/file/parquet_writer.go)
// without a reflection-based generic column builder.

package memtable

import (
	"sync"

	qx "github.com/quantaex/qx-store"
)

// Row is one buffered OLAP row: the record type, the record's raw
// encoded bytes, and the WAL sequence number that produced it.
type Row struct {
	Type  qx.RecordType
	Raw   []byte
	Seq   uint64
}

// OLAP buffers rows per record type until a row-count threshold is
// crossed, then freezes for flush.
type OLAP struct {
	mu        sync.Mutex
	threshold int
	rows      map[qx.RecordType][]Row
	total     int
	frozen    bool
}

// NewOLAP creates an empty OLAP memtable that freezes once it holds
// thresholdRows total rows across all record types.
func NewOLAP(thresholdRows int) *OLAP {
	return &OLAP{
		threshold: thresholdRows,
		rows:      make(map[qx.RecordType][]Row),
	}
}

// Append buffers one row. Returns ErrFrozen if the memtable has frozen.
func (m *OLAP) Append(row Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frozen {
		return ErrFrozen
	}
	m.rows[row.Type] = append(m.rows[row.Type], row)
	m.total++
	return nil
}

// IsFull reports whether the memtable has crossed its freeze threshold.
func (m *OLAP) IsFull() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total >= m.threshold
}

// Freeze marks the memtable read-only.
func (m *OLAP) Freeze() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frozen = true
}

// IsFrozen reports whether Freeze has been called.
func (m *OLAP) IsFrozen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frozen
}

// Len returns the total buffered row count across all record types.
func (m *OLAP) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// RowsByType returns a snapshot of the buffered rows for rt, in append
// order. The memtable should be frozen first for a stable snapshot.
func (m *OLAP) RowsByType(rt qx.RecordType) []Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.rows[rt]
	out := make([]Row, len(src))
	copy(out, src)
	return out
}

// Types returns the distinct record types currently buffered.
func (m *OLAP) Types() []qx.RecordType {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]qx.RecordType, 0, len(m.rows))
	for rt := range m.rows {
		types = append(types, rt)
	}
	return types
}
