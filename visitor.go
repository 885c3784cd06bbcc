// Copyright (c) 2026 Quanta Exchange Contributors

package qx

// Visitor dispatches a decoded record to the handler matching its
// RecordType. Implementations that only care about a subset of record
// types typically embed NullVisitor and override selected methods.
type Visitor interface {
	OnOrderInsert(record *OrderInsert) error
	OnOrderStatus(record *OrderStatus) error
	OnTradeExecuted(record *TradeExecuted) error

	OnAccountOpen(record *AccountOpen) error
	OnAccountUpdate(record *AccountUpdate) error

	OnTickData(record *TickData) error
	OnOrderBookSnapshot(record *OrderBookSnapshot) error
	OnOrderBookDelta(record *OrderBookDelta) error
	OnKLineFinished(record *KLineFinished) error

	OnExchangeOrderRecord(record *ExchangeOrderRecord) error
	OnExchangeTradeRecord(record *ExchangeTradeRecord) error
	OnExchangeResponse(record *ExchangeResponse) error

	OnCheckpoint(record *Checkpoint) error

	OnStreamEnd() error
}
