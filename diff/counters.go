// Copyright (c) 2026 Quanta Exchange Contributors

package diff

import (
	"sync"
	"sync/atomic"
)

// InstrumentCounters hands out strictly increasing, never-reused
// exchange_order_id and trade_id values, one independent counter per
// instrument, per spec (C11 "ID rules").
type InstrumentCounters struct {
	mu       sync.Mutex
	counters map[string]*perInstrument
}

type perInstrument struct {
	nextOrderID uint64
	nextTradeID uint64
}

func NewInstrumentCounters() *InstrumentCounters {
	return &InstrumentCounters{counters: make(map[string]*perInstrument)}
}

func (c *InstrumentCounters) instrument(instrumentID string) *perInstrument {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.counters[instrumentID]
	if !ok {
		p = &perInstrument{}
		c.counters[instrumentID] = p
	}
	return p
}

// NextExchangeOrderID returns the next order id for instrumentID, starting
// at 1 and incrementing by 1 per call.
func (c *InstrumentCounters) NextExchangeOrderID(instrumentID string) uint64 {
	p := c.instrument(instrumentID)
	return atomic.AddUint64(&p.nextOrderID, 1)
}

// NextTradeID returns the next trade id for instrumentID, starting at 1 and
// incrementing by 1 per call.
func (c *InstrumentCounters) NextTradeID(instrumentID string) uint64 {
	p := c.instrument(instrumentID)
	return atomic.AddUint64(&p.nextTradeID, 1)
}
