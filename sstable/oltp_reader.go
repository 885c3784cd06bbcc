// Copyright (c) 2026 Quanta Exchange Contributors

package sstable

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"golang.org/x/sys/unix"

	"github.com/quantaex/qx-store/memtable"
)

// OLTPRun is an opened, read-only, mmap-backed OLTP SSTable run. Zero
// heap copies are made for the data section: Get returns slices backed
// directly by the mapped file.
type OLTPRun struct {
	path   string
	data   []byte // full mmap
	bloom  *Bloom
	index  []oltpIndexEntry
	dataEnd int64
}

type oltpIndexEntry struct {
	key    string
	offset int64
}

// OpenOLTPRun mmaps path and parses its footer, index, and bloom
// filter.
func OpenOLTPRun(path string) (*OLTPRun, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size < oltpFooterSize {
		return nil, fmt.Errorf("sstable: %s too small to be a valid OLTP run", path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("sstable: mmap %s: %w", path, err)
	}

	footer := data[size-oltpFooterSize:]
	magic := binary.LittleEndian.Uint64(footer[32:40])
	if magic != oltpMagic {
		unix.Munmap(data)
		return nil, fmt.Errorf("sstable: %s has bad magic, not an OLTP run", path)
	}
	indexOffset := int64(binary.LittleEndian.Uint64(footer[0:8]))
	indexLength := int64(binary.LittleEndian.Uint64(footer[8:16]))
	bloomOffset := int64(binary.LittleEndian.Uint64(footer[16:24]))
	bloomLength := int64(binary.LittleEndian.Uint64(footer[24:32]))

	run := &OLTPRun{path: path, data: data, dataEnd: indexOffset}
	run.bloom = DecodeBloom(data[bloomOffset : bloomOffset+bloomLength])
	run.index = parseIndex(data[indexOffset : indexOffset+indexLength])
	return run, nil
}

func parseIndex(b []byte) []oltpIndexEntry {
	var entries []oltpIndexEntry
	pos := 0
	for pos < len(b) {
		keyLen := int(binary.LittleEndian.Uint32(b[pos : pos+4]))
		pos += 4
		key := string(b[pos : pos+keyLen])
		pos += keyLen
		offset := int64(binary.LittleEndian.Uint64(b[pos : pos+8]))
		pos += 8
		entries = append(entries, oltpIndexEntry{key: key, offset: offset})
	}
	return entries
}

// Close unmaps the run's backing file.
func (r *OLTPRun) Close() error {
	return unix.Munmap(r.data)
}

// Get performs a point lookup. ok is false if key is definitely absent
// (bloom miss) or not found after scanning the candidate block.
func (r *OLTPRun) Get(key string) (value []byte, seq uint64, tombstone bool, ok bool) {
	if !r.bloom.MayContain([]byte(key)) {
		return nil, 0, false, false
	}

	blockStart := sort.Search(len(r.index), func(i int) bool { return r.index[i].key > key }) - 1
	if blockStart < 0 {
		blockStart = 0
	}
	offset := r.index[blockStart].offset

	for offset < r.dataEnd {
		hdr := r.data[offset : offset+17]
		keyLen := int(binary.LittleEndian.Uint32(hdr[0:4]))
		valLen := int(binary.LittleEndian.Uint32(hdr[4:8]))
		entrySeq := binary.LittleEndian.Uint64(hdr[8:16])
		entryTombstone := hdr[16] == 1

		keyStart := offset + 17
		entryKey := string(r.data[keyStart : keyStart+int64(keyLen)])
		valStart := keyStart + int64(keyLen)

		if entryKey == key {
			return r.data[valStart : valStart+int64(valLen)], entrySeq, entryTombstone, true
		}
		if entryKey > key {
			return nil, 0, false, false
		}
		offset = valStart + int64(valLen)
	}
	return nil, 0, false, false
}

// Entries decodes the full data section in key order. Used by
// compaction merges, which need to walk entire runs rather than point
// lookups.
func (r *OLTPRun) Entries() []memtable.Entry {
	var out []memtable.Entry
	offset := int64(0)
	for offset < r.dataEnd {
		hdr := r.data[offset : offset+17]
		keyLen := int(binary.LittleEndian.Uint32(hdr[0:4]))
		valLen := int(binary.LittleEndian.Uint32(hdr[4:8]))
		seq := binary.LittleEndian.Uint64(hdr[8:16])
		tombstone := hdr[16] == 1

		keyStart := offset + 17
		key := string(r.data[keyStart : keyStart+int64(keyLen)])
		valStart := keyStart + int64(keyLen)
		value := make([]byte, valLen)
		copy(value, r.data[valStart:valStart+int64(valLen)])

		out = append(out, memtable.Entry{Key: key, Value: value, Seq: seq, Tombstone: tombstone})
		offset = valStart + int64(valLen)
	}
	return out
}

// MinMaxKey returns the run's smallest and largest keys, useful for
// compaction overlap checks. The largest key is found by scanning the
// block after the last sparse-index entry.
func (r *OLTPRun) MinMaxKey() (string, string) {
	if len(r.index) == 0 {
		return "", ""
	}
	min := r.index[0].key
	max := min
	offset := r.index[len(r.index)-1].offset
	for offset < r.dataEnd {
		hdr := r.data[offset : offset+17]
		keyLen := int64(binary.LittleEndian.Uint32(hdr[0:4]))
		valLen := int64(binary.LittleEndian.Uint32(hdr[4:8]))
		keyStart := offset + 17
		max = string(r.data[keyStart : keyStart+keyLen])
		offset = keyStart + keyLen + valLen
	}
	return min, max
}

// Path returns the backing file path.
func (r *OLTPRun) Path() string {
	return r.path
}
