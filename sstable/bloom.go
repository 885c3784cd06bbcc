// Copyright (c) 2026 Quanta Exchange Contributors
//
// Bloom is a Kirsch-Mitzenmacher double-hashed bloom filter used to
// short-circuit OLTP SSTable point lookups for keys that are definitely
// absent from a run. Grounded on the teacher's dependency on
// cespare/xxhash (already present in the pack's transitive graph) for
// fast, well-distributed hashing.

package sstable

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Bloom is a fixed-size bit-array bloom filter.
type Bloom struct {
	bits []byte
	k    int
}

// NewBloom sizes a filter for n expected entries at falsePositiveRate.
func NewBloom(n int, falsePositiveRate float64) *Bloom {
	if n <= 0 {
		n = 1
	}
	m := optimalBits(n, falsePositiveRate)
	k := optimalHashes(m, n)
	return &Bloom{bits: make([]byte, (m+7)/8), k: k}
}

func optimalBits(n int, p float64) int {
	m := -1 * float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)
	return int(math.Ceil(m))
}

func optimalHashes(m, n int) int {
	k := int(math.Round(float64(m) / float64(n) * math.Ln2))
	if k < 1 {
		k = 1
	}
	return k
}

func (b *Bloom) hashes(key []byte) (uint64, uint64) {
	h1 := xxhash.Sum64(key)
	h2 := xxhash.Sum64([]byte{byte(h1), byte(h1 >> 8), byte(h1 >> 16), byte(h1 >> 24)})
	return h1, h2
}

// Add inserts key into the filter.
func (b *Bloom) Add(key []byte) {
	h1, h2 := b.hashes(key)
	nbits := uint64(len(b.bits) * 8)
	for i := 0; i < b.k; i++ {
		pos := (h1 + uint64(i)*h2) % nbits
		b.bits[pos/8] |= 1 << (pos % 8)
	}
}

// MayContain returns false only when key is certainly absent; true may
// be a false positive.
func (b *Bloom) MayContain(key []byte) bool {
	h1, h2 := b.hashes(key)
	nbits := uint64(len(b.bits) * 8)
	for i := 0; i < b.k; i++ {
		pos := (h1 + uint64(i)*h2) % nbits
		if b.bits[pos/8]&(1<<(pos%8)) == 0 {
			return false
		}
	}
	return true
}

// Bytes serializes the filter as [k(4)][nbits(4)][bitset...].
func (b *Bloom) Bytes() []byte {
	buf := make([]byte, 8+len(b.bits))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(b.k))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(b.bits)*8))
	copy(buf[8:], b.bits)
	return buf
}

// DecodeBloom parses the format produced by Bytes.
func DecodeBloom(b []byte) *Bloom {
	k := int(binary.LittleEndian.Uint32(b[0:4]))
	nbits := int(binary.LittleEndian.Uint32(b[4:8]))
	bits := make([]byte, (nbits+7)/8)
	copy(bits, b[8:])
	return &Bloom{bits: bits, k: k}
}
