// Copyright (c) 2026 Quanta Exchange Contributors
//
// InstrumentRegistry maps exchange-internal instrument IDs to their
// human-readable symbols, generalized from the teacher's point-in-time
// symbol map to this engine's fixed-width instrument identifiers.

package qx

import (
	"sync"
)

type instrumentKey [InstrumentIDLen]byte

// InstrumentRegistry is a concurrency-safe, bidirectional instrument ID
// <-> symbol map. A miss returns the zero value, matching the teacher's
// "empty string/ID is not found" convention.
type InstrumentRegistry struct {
	mu      sync.RWMutex
	bySym   map[instrumentKey]string
	byID    map[string]instrumentKey
}

// NewInstrumentRegistry creates an empty InstrumentRegistry.
func NewInstrumentRegistry() *InstrumentRegistry {
	return &InstrumentRegistry{
		bySym: make(map[instrumentKey]string),
		byID:  make(map[string]instrumentKey),
	}
}

// Len returns the number of registered instruments.
func (r *InstrumentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySym)
}

// Symbol returns the human-readable symbol for instrumentID, or "" if
// unregistered.
func (r *InstrumentRegistry) Symbol(instrumentID [InstrumentIDLen]byte) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bySym[instrumentKey(instrumentID)]
}

// InstrumentID returns the instrument ID registered for symbol, or the
// zero value and false if unregistered.
func (r *InstrumentRegistry) InstrumentID(symbol string) ([InstrumentIDLen]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byID[symbol]
	return [InstrumentIDLen]byte(id), ok
}

// Register associates instrumentID with symbol, overwriting any prior
// mapping for either key.
func (r *InstrumentRegistry) Register(instrumentID [InstrumentIDLen]byte, symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := instrumentKey(instrumentID)
	if old, ok := r.bySym[key]; ok {
		delete(r.byID, old)
	}
	r.bySym[key] = symbol
	r.byID[symbol] = key
}

// Unregister removes any mapping for instrumentID.
func (r *InstrumentRegistry) Unregister(instrumentID [InstrumentIDLen]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := instrumentKey(instrumentID)
	if sym, ok := r.bySym[key]; ok {
		delete(r.bySym, key)
		delete(r.byID, sym)
	}
}
