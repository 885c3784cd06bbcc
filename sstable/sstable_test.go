// Copyright (c) 2026 Quanta Exchange Contributors

package sstable_test

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/quantaex/qx-store/memtable"
	"github.com/quantaex/qx-store/sstable"
)

func TestBloomNoFalseNegatives(t *testing.T) {
	b := sstable.NewBloom(1000, 0.01)
	for i := 0; i < 1000; i++ {
		b.Add([]byte(fmt.Sprintf("key-%d", i)))
	}
	for i := 0; i < 1000; i++ {
		if !b.MayContain([]byte(fmt.Sprintf("key-%d", i))) {
			t.Fatalf("false negative for key-%d", i)
		}
	}
}

func TestBloomSerializeRoundTrip(t *testing.T) {
	b := sstable.NewBloom(100, 0.01)
	b.Add([]byte("present"))
	decoded := sstable.DecodeBloom(b.Bytes())
	if !decoded.MayContain([]byte("present")) {
		t.Fatalf("decoded bloom lost membership")
	}
}

func TestWriteAndReadOLTPRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "000001.sst")

	entries := []memtable.Entry{
		{Key: "order-0001", Value: []byte("alpha"), Seq: 1},
		{Key: "order-0002", Value: []byte("bravo"), Seq: 2},
		{Key: "order-0003", Value: []byte("charlie"), Seq: 3, Tombstone: true},
		{Key: "order-0004", Value: []byte("delta"), Seq: 4},
	}
	if err := sstable.WriteOLTPRun(path, entries); err != nil {
		t.Fatalf("WriteOLTPRun: %v", err)
	}

	run, err := sstable.OpenOLTPRun(path)
	if err != nil {
		t.Fatalf("OpenOLTPRun: %v", err)
	}
	defer run.Close()

	value, seq, tombstone, ok := run.Get("order-0002")
	if !ok || string(value) != "bravo" || seq != 2 || tombstone {
		t.Fatalf("unexpected lookup result: %q %d %v %v", value, seq, tombstone, ok)
	}

	_, _, tombstone, ok = run.Get("order-0003")
	if !ok || !tombstone {
		t.Fatalf("expected tombstone entry to be found with Tombstone=true")
	}

	_, _, _, ok = run.Get("order-9999")
	if ok {
		t.Fatalf("expected miss for absent key")
	}

	min, max := run.MinMaxKey()
	if min != "order-0001" || max != "order-0004" {
		t.Fatalf("unexpected MinMaxKey: %s %s", min, max)
	}
}

func TestWriteOLTPRunManyEntriesCrossesIndexIntervals(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "000002.sst")

	entries := make([]memtable.Entry, 0, 200)
	for i := 0; i < 200; i++ {
		entries = append(entries, memtable.Entry{
			Key:   fmt.Sprintf("k-%04d", i),
			Value: []byte(fmt.Sprintf("v-%04d", i)),
			Seq:   uint64(i + 1),
		})
	}
	if err := sstable.WriteOLTPRun(path, entries); err != nil {
		t.Fatalf("WriteOLTPRun: %v", err)
	}

	run, err := sstable.OpenOLTPRun(path)
	if err != nil {
		t.Fatalf("OpenOLTPRun: %v", err)
	}
	defer run.Close()

	for _, i := range []int{0, 15, 16, 17, 150, 199} {
		key := fmt.Sprintf("k-%04d", i)
		value, _, _, ok := run.Get(key)
		if !ok || string(value) != fmt.Sprintf("v-%04d", i) {
			t.Fatalf("lookup failed for %s: %q %v", key, value, ok)
		}
	}
}
