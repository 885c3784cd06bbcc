// Copyright (c) 2026 Quanta Exchange Contributors
//
// On-disk frame layout for one WAL entry:
//
//	[Type(1)][pad(3)][Length(4)][Seq(8)][TimestampNs(8)][CRC32(4)] .. 28-byte frame header
//	[Payload(Length bytes)]
//	[padding to 8-byte alignment]
//
// CRC32 covers seq, timestamp_ns, payload length, and payload jointly,
// so a bit flip in any of them is detectable, not just one in the
// payload bytes.
//
// Grounded on the LeeNgari RDBMS WAL writer's header+payload+padding
// record shape (type, length, LSN, CRC32, then payload).

package wal

import (
	"encoding/binary"
	"hash/crc32"
)

const frameHeaderSize = 28

// EntryType distinguishes a normal data entry from a checkpoint marker
// within the log stream.
type EntryType uint8

const (
	EntryType_Data       EntryType = 0
	EntryType_Checkpoint EntryType = 1
)

func alignTo8(n int) int {
	if rem := n % 8; rem != 0 {
		return n + (8 - rem)
	}
	return n
}

// frameChecksum computes the CRC32 covering seq, timestampNs, the
// payload's length, and the payload bytes themselves, so corruption of
// any of those fields is caught, not only corruption inside payload.
func frameChecksum(seq uint64, timestampNs int64, payload []byte) uint32 {
	var scratch [20]byte
	binary.LittleEndian.PutUint64(scratch[0:8], seq)
	binary.LittleEndian.PutUint64(scratch[8:16], uint64(timestampNs))
	binary.LittleEndian.PutUint32(scratch[16:20], uint32(len(payload)))

	h := crc32.NewIEEE()
	h.Write(scratch[:])
	h.Write(payload)
	return h.Sum32()
}

// encodeFrame returns the complete on-disk bytes (header + payload +
// padding) for one entry.
func encodeFrame(typ EntryType, seq uint64, timestampNs int64, payload []byte) []byte {
	total := frameHeaderSize + len(payload)
	aligned := alignTo8(total)
	buf := make([]byte, aligned)

	buf[0] = byte(typ)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(payload)))
	binary.LittleEndian.PutUint64(buf[8:16], seq)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(timestampNs))
	binary.LittleEndian.PutUint32(buf[24:28], frameChecksum(seq, timestampNs, payload))
	copy(buf[frameHeaderSize:total], payload)
	return buf
}

type frameHeader struct {
	Type        EntryType
	Length      uint32
	Seq         uint64
	TimestampNs int64
	CRC32       uint32
}

func decodeFrameHeader(b []byte) frameHeader {
	return frameHeader{
		Type:        EntryType(b[0]),
		Length:      binary.LittleEndian.Uint32(b[4:8]),
		Seq:         binary.LittleEndian.Uint64(b[8:16]),
		TimestampNs: int64(binary.LittleEndian.Uint64(b[16:24])),
		CRC32:       binary.LittleEndian.Uint32(b[24:28]),
	}
}
