// Copyright (c) 2026 Quanta Exchange Contributors

package compaction

import (
	"container/heap"

	"github.com/quantaex/qx-store/memtable"
)

// mergeItem is one candidate entry in the merge heap, tagged with the
// run it came from so newer runs (higher runIndex) win ties on key.
type mergeItem struct {
	entry    memtable.Entry
	runIndex int
	pos      int
}

type mergeHeap []mergeItem

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if h[i].entry.Key != h[j].entry.Key {
		return h[i].entry.Key < h[j].entry.Key
	}
	return h[i].runIndex > h[j].runIndex // newer run sorts first on tie
}
func (h mergeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)        { *h = append(*h, x.(mergeItem)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// MergeRuns performs a k-way merge of runs (ordered oldest to newest,
// i.e. runs[0] is the oldest / lowest priority on key ties), dropping
// superseded versions of each key and, when dropTombstones is true
// (the merge target is the last level holding that key range),
// dropping tombstone entries entirely instead of carrying them
// forward forever.
func MergeRuns(runs [][]memtable.Entry, dropTombstones bool) []memtable.Entry {
	h := &mergeHeap{}
	heap.Init(h)
	for runIndex, entries := range runs {
		if len(entries) > 0 {
			heap.Push(h, mergeItem{entry: entries[0], runIndex: runIndex, pos: 0})
		}
	}

	var out []memtable.Entry
	for h.Len() > 0 {
		item := heap.Pop(h).(mergeItem)

		// advance the source run this item came from
		if item.pos+1 < len(runs[item.runIndex]) {
			heap.Push(h, mergeItem{
				entry:    runs[item.runIndex][item.pos+1],
				runIndex: item.runIndex,
				pos:      item.pos + 1,
			})
		}

		// skip superseded duplicates of the same key
		for h.Len() > 0 && (*h)[0].entry.Key == item.entry.Key {
			dup := heap.Pop(h).(mergeItem)
			if dup.pos+1 < len(runs[dup.runIndex]) {
				heap.Push(h, mergeItem{
					entry:    runs[dup.runIndex][dup.pos+1],
					runIndex: dup.runIndex,
					pos:      dup.pos + 1,
				})
			}
		}

		if item.entry.Tombstone && dropTombstones {
			continue
		}
		out = append(out, item.entry)
	}
	return out
}
