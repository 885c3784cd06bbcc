// Copyright (c) 2026 Quanta Exchange Contributors

package notify

import "container/list"

// dedupSet is a bounded FIFO set of message ids, the same shape as
// snapshot's dedup set: once full, admitting a new id evicts the oldest.
type dedupSet struct {
	capacity int
	order    *list.List
	seen     map[string]*list.Element
}

func newDedupSet(capacity int) *dedupSet {
	if capacity <= 0 {
		capacity = 10_000
	}
	return &dedupSet{
		capacity: capacity,
		order:    list.New(),
		seen:     make(map[string]*list.Element, capacity),
	}
}

// admit returns true if id has not been seen before (and records it),
// false if id is a duplicate. A dropped message's id stays admitted, so a
// later republish of that same id is still recognized as a duplicate.
func (d *dedupSet) admit(id string) bool {
	if id == "" {
		return true
	}
	if _, ok := d.seen[id]; ok {
		return false
	}
	elem := d.order.PushBack(id)
	d.seen[id] = elem
	for d.order.Len() > d.capacity {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.seen, oldest.Value.(string))
	}
	return true
}
