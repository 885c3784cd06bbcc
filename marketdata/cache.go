// Copyright (c) 2026 Quanta Exchange Contributors
//
// cache holds the latest tick and order-book snapshot per instrument with a
// short TTL: a miss means "too stale to trust", not "never seen". The
// empty-value-is-a-miss convention and the single map-wide lock mirror the
// teacher's TsSymbolMap, generalized from a static instrument directory to
// a continuously-updated, time-bounded market-data view.

package marketdata

import (
	"sync"
	"time"

	qx "github.com/quantaex/qx-store"
)

// DefaultTTL is the spec default for a cache read: a value older than this
// is treated as a miss.
const DefaultTTL = 100 * time.Millisecond

type tickEntry struct {
	tick *qx.TickData
	at   time.Time
}

type bookEntry struct {
	book *qx.OrderBookSnapshot
	at   time.Time
}

// Cache is a per-instrument concurrent map of the latest Tick and the
// latest OrderBookSnapshot, each independently timestamped and TTL-bound.
type Cache struct {
	ttl time.Duration

	mu     sync.RWMutex
	ticks  map[string]tickEntry
	books  map[string]bookEntry
}

// New creates a Cache. A zero ttl falls back to DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:   ttl,
		ticks: make(map[string]tickEntry),
		books: make(map[string]bookEntry),
	}
}

// UpdateTick replaces instrumentID's latest tick unconditionally.
func (c *Cache) UpdateTick(instrumentID string, tick *qx.TickData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks[instrumentID] = tickEntry{tick: tick, at: time.Now()}
}

// UpdateBook replaces instrumentID's latest order-book snapshot
// unconditionally.
func (c *Cache) UpdateBook(instrumentID string, book *qx.OrderBookSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.books[instrumentID] = bookEntry{book: book, at: time.Now()}
}

// GetTick returns instrumentID's latest tick, or ok=false if there is none
// or it is older than the cache's TTL.
func (c *Cache) GetTick(instrumentID string) (*qx.TickData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.ticks[instrumentID]
	if !ok || time.Since(e.at) >= c.ttl {
		return nil, false
	}
	return e.tick, true
}

// GetBook returns instrumentID's latest order-book snapshot, or ok=false
// if there is none or it is older than the cache's TTL.
func (c *Cache) GetBook(instrumentID string) (*qx.OrderBookSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.books[instrumentID]
	if !ok || time.Since(e.at) >= c.ttl {
		return nil, false
	}
	return e.book, true
}
