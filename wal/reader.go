// Copyright (c) 2026 Quanta Exchange Contributors

package wal

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	qx "github.com/quantaex/qx-store"
)

// Entry is one decoded, CRC-validated log entry.
type Entry struct {
	Type        EntryType
	Seq         uint64
	TimestampNs int64
	Payload     []byte
}

// GapReport records one frame that failed CRC validation mid-log (as
// opposed to a torn tail write): the frame's bytes were read completely
// at their declared length, but the checksum does not validate,
// indicating bit rot or a partial write that wasn't the true end of the
// segment's recorded data. Replay skips it and continues scanning
// rather than aborting.
type GapReport struct {
	Segment string
	Offset  int64
	Seq     uint64
	Reason  string
}

func listSegments(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	seen := make(map[int]bool)
	var indices []int
	for _, e := range entries {
		name := e.Name()
		var base string
		switch {
		case strings.HasSuffix(name, ".wal"):
			base = strings.TrimSuffix(name, ".wal")
		case strings.HasSuffix(name, ".wal.zst"):
			base = strings.TrimSuffix(name, ".wal.zst")
		default:
			continue
		}
		idx, err := strconv.Atoi(base)
		if err != nil {
			continue
		}
		if !seen[idx] {
			seen[idx] = true
			indices = append(indices, idx)
		}
	}
	sort.Ints(indices)
	return indices, nil
}

// openSegmentForScan opens segment idx for sequential reading, honoring
// a rotation-compressed ".wal.zst" sibling transparently when the plain
// ".wal" file no longer exists.
func openSegmentForScan(dir string, idx int) (io.ReadCloser, string, error) {
	path := segmentPath(dir, idx)
	f, err := os.Open(path)
	if err == nil {
		return f, path, nil
	}
	if !os.IsNotExist(err) {
		return nil, path, err
	}

	zpath := path + ".zst"
	r, closer, zerr := qx.MakeCompressedReader(zpath, true)
	if zerr != nil {
		return nil, path, err
	}
	return readCloser{Reader: r, closer: closer}, zpath, nil
}

// readCloser adapts the (io.Reader, io.Closer) pair MakeCompressedReader
// returns into a single io.ReadCloser.
type readCloser struct {
	io.Reader
	closer io.Closer
}

func (r readCloser) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// discoverTail scans dir's segments and returns the index of the
// highest-numbered (active) segment and the sequence number to resume
// appending from.
func discoverTail(dir string) (int, uint64, error) {
	indices, err := listSegments(dir)
	if err != nil {
		return 0, 0, err
	}
	if len(indices) == 0 {
		return 0, 0, nil
	}

	lastSeq := uint64(0)
	for _, idx := range indices {
		f, path, err := openSegmentForScan(dir, idx)
		if err != nil {
			return 0, 0, err
		}
		seq, _, err := scanSegment(f, path, func(Entry) error { return nil }, nil)
		f.Close()
		if err != nil {
			return 0, 0, err
		}
		if seq > lastSeq {
			lastSeq = seq
		}
	}
	return indices[len(indices)-1], lastSeq + 1, nil
}

// scanSegment reads every frame from r (a single segment's bytes, in
// order), invoking visit for each well-formed one. A CRC mismatch
// encountered mid-stream is reported via reportGap (if non-nil) and
// scanning continues with the next frame; only a torn write at the true
// end of the stream (declared length or header extends past available
// bytes) is reported back to the caller as a torn tail. Reads
// sequentially rather than seeking, so it works equally over a plain
// segment file or a zstd-decompressing reader.
func scanSegment(r io.Reader, segmentName string, visit func(Entry) error, reportGap func(GapReport)) (uint64, bool, error) {
	var lastSeq uint64
	header := make([]byte, frameHeaderSize)
	offset := int64(0)

	for {
		n, err := io.ReadFull(r, header)
		if err == io.EOF || (err == io.ErrUnexpectedEOF && n == 0) {
			return lastSeq, false, nil
		}
		if err == io.ErrUnexpectedEOF {
			return lastSeq, true, nil // truncated header: torn tail write
		}
		if err != nil {
			return lastSeq, false, err
		}

		fh := decodeFrameHeader(header)
		payload := make([]byte, fh.Length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return lastSeq, true, nil // truncated payload: torn tail write
		}
		padLen := int64(alignTo8(frameHeaderSize+len(payload)) - (frameHeaderSize + len(payload)))
		if padLen > 0 {
			if _, err := io.CopyN(io.Discard, r, padLen); err != nil {
				return lastSeq, true, nil // truncated padding: torn tail write
			}
		}
		frameLen := int64(alignTo8(frameHeaderSize + len(payload)))

		if crc := frameChecksum(fh.Seq, fh.TimestampNs, payload); crc != fh.CRC32 {
			if reportGap != nil {
				reportGap(GapReport{Segment: segmentName, Offset: offset, Seq: fh.Seq, Reason: "crc mismatch"})
			}
			offset += frameLen
			continue
		}

		if err := visit(Entry{Type: fh.Type, Seq: fh.Seq, TimestampNs: fh.TimestampNs, Payload: payload}); err != nil {
			return lastSeq, false, err
		}
		lastSeq = fh.Seq
		offset += frameLen
	}
}

// ReplayResult summarizes a Replay call.
type ReplayResult struct {
	LastSeq       uint64
	EntriesRead   int
	TailTruncated bool        // the final segment ended in an incomplete (torn) frame
	Gaps          []GapReport // mid-log frames skipped due to CRC mismatch
}

// Replay walks every segment in dir in order, invoking visit for each
// well-formed entry with sequence > afterSeq. An incomplete frame
// (header, payload or padding cut short) at the end of the final segment
// is treated as a torn tail write from an unflushed group commit: it is
// skipped and reported via TailTruncated; the same in an earlier segment
// is returned as a *CorruptFrameError. A CRC mismatch on a complete
// frame, in any segment, is recorded as a GapReport and scanning resumes
// with the next frame, since bit rot can occur anywhere in
// already-fsynced data, not only at a segment's end.
func Replay(dir string, afterSeq uint64, visit func(Entry) error) (ReplayResult, error) {
	indices, err := listSegments(dir)
	if err != nil {
		return ReplayResult{}, err
	}

	var result ReplayResult
	for i, idx := range indices {
		isLast := i == len(indices)-1
		f, path, err := openSegmentForScan(dir, idx)
		if err != nil {
			return result, fmt.Errorf("wal: open segment index %d: %w", idx, err)
		}

		lastSeq, truncated, err := scanSegment(f, path, func(e Entry) error {
			if e.Seq <= afterSeq {
				return nil
			}
			result.EntriesRead++
			if e.Seq > result.LastSeq {
				result.LastSeq = e.Seq
			}
			return visit(e)
		}, func(g GapReport) {
			result.Gaps = append(result.Gaps, g)
		})
		f.Close()
		if err != nil {
			return result, err
		}
		if truncated {
			if !isLast {
				return result, &CorruptFrameError{Segment: path, Reason: "non-tail segment ended in a torn frame"}
			}
			result.TailTruncated = true
		}
		if lastSeq > result.LastSeq {
			result.LastSeq = lastSeq
		}
	}
	return result, nil
}

// TruncateBefore deletes every fully-sealed segment in dir whose
// highest sequence number is <= seq, i.e. every entry it contains has
// already been applied to the SSTable tier. The active (highest index)
// segment is never removed.
func TruncateBefore(dir string, seq uint64) error {
	indices, err := listSegments(dir)
	if err != nil {
		return err
	}
	if len(indices) <= 1 {
		return nil
	}

	for _, idx := range indices[:len(indices)-1] {
		f, path, err := openSegmentForScan(dir, idx)
		if err != nil {
			return err
		}
		lastSeq, _, err := scanSegment(f, path, func(Entry) error { return nil }, nil)
		f.Close()
		if err != nil {
			return err
		}
		if lastSeq <= seq {
			plain := segmentPath(dir, idx)
			if err := os.Remove(plain); err != nil && !os.IsNotExist(err) {
				return err
			}
			os.Remove(plain + ".zst")
		}
	}
	return nil
}
