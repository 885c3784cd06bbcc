// Copyright (c) 2026 Quanta Exchange Contributors
//
// StreamMetadata describes a WAL segment or OLTP SSTable's record
// range, generalized from the teacher's DBN stream Metadata (version,
// symbology window, record counts) to this engine's per-stream
// sequencing.

package qx

import "encoding/binary"

// StreamMetadata_Version is the current on-disk metadata encoding
// version. Bump and branch on read when the layout changes.
const StreamMetadata_Version uint8 = 1

// StreamMetadata is a fixed-layout description of a WAL segment's or
// OLTP SSTable's contents. Neither the WAL writer nor the SSTable writer
// emits it; it is encoded and decoded only via PutRaw and Fill_Raw.
type StreamMetadata struct {
	Version   uint8
	StreamID  [StreamIDLen]byte
	MinSeq    uint64
	MaxSeq    uint64
	RecordCount uint64
}

const StreamMetadata_Size = 1 + StreamIDLen + 8 + 8 + 8

// Fill_Raw decodes a StreamMetadata from its fixed-layout encoding.
func (m *StreamMetadata) Fill_Raw(b []byte) error {
	if len(b) < StreamMetadata_Size {
		return unexpectedBytesError(len(b), StreamMetadata_Size)
	}
	m.Version = b[0]
	pos := 1
	copy(m.StreamID[:], b[pos:pos+StreamIDLen])
	pos += StreamIDLen
	m.MinSeq = binary.LittleEndian.Uint64(b[pos : pos+8])
	pos += 8
	m.MaxSeq = binary.LittleEndian.Uint64(b[pos : pos+8])
	pos += 8
	m.RecordCount = binary.LittleEndian.Uint64(b[pos : pos+8])
	return nil
}

// PutRaw encodes m into b, which must be at least StreamMetadata_Size
// bytes.
func (m *StreamMetadata) PutRaw(b []byte) {
	b[0] = m.Version
	pos := 1
	copy(b[pos:pos+StreamIDLen], m.StreamID[:])
	pos += StreamIDLen
	binary.LittleEndian.PutUint64(b[pos:pos+8], m.MinSeq)
	pos += 8
	binary.LittleEndian.PutUint64(b[pos:pos+8], m.MaxSeq)
	pos += 8
	binary.LittleEndian.PutUint64(b[pos:pos+8], m.RecordCount)
}

// IsEmpty reports whether the metadata describes a stream with no
// recorded entries yet.
func (m *StreamMetadata) IsEmpty() bool {
	return m.RecordCount == 0
}

// Covers reports whether seq falls within [MinSeq, MaxSeq].
func (m *StreamMetadata) Covers(seq uint64) bool {
	return !m.IsEmpty() && seq >= m.MinSeq && seq <= m.MaxSeq
}
