// Copyright (c) 2026 Quanta Exchange Contributors

package qx

// NullVisitor implements Visitor with no-op handlers. Embed it and
// override only the methods a particular consumer cares about.
type NullVisitor struct {
}

func (v *NullVisitor) OnOrderInsert(record *OrderInsert) error { return nil }
func (v *NullVisitor) OnOrderStatus(record *OrderStatus) error { return nil }
func (v *NullVisitor) OnTradeExecuted(record *TradeExecuted) error { return nil }

func (v *NullVisitor) OnAccountOpen(record *AccountOpen) error     { return nil }
func (v *NullVisitor) OnAccountUpdate(record *AccountUpdate) error { return nil }

func (v *NullVisitor) OnTickData(record *TickData) error                     { return nil }
func (v *NullVisitor) OnOrderBookSnapshot(record *OrderBookSnapshot) error   { return nil }
func (v *NullVisitor) OnOrderBookDelta(record *OrderBookDelta) error         { return nil }
func (v *NullVisitor) OnKLineFinished(record *KLineFinished) error           { return nil }

func (v *NullVisitor) OnExchangeOrderRecord(record *ExchangeOrderRecord) error { return nil }
func (v *NullVisitor) OnExchangeTradeRecord(record *ExchangeTradeRecord) error { return nil }
func (v *NullVisitor) OnExchangeResponse(record *ExchangeResponse) error       { return nil }

func (v *NullVisitor) OnCheckpoint(record *Checkpoint) error { return nil }

func (v *NullVisitor) OnStreamEnd() error { return nil }
