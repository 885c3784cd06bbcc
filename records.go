// Copyright (c) 2026 Quanta Exchange Contributors
//
// Fixed-layout binary records persisted to the WAL and OLTP SSTables
// (C1). Every variant is little-endian, self-describing via Header, and
// round-trips through Fill_Raw/Fill_Json without heap allocation beyond
// the record itself. Adding a field to an existing variant is a breaking
// change; add a new RecordType instead.

package qx

import (
	"encoding/binary"

	"github.com/valyala/fastjson"
	"github.com/valyala/fastjson/fastfloat"
)

// Record is the marker interface implemented by every persisted variant.
type Record interface {
}

// RecordPtr constrains a generic decode target to *T, where T implements
// Record and its pointer implements the codec methods.
type RecordPtr[T any] interface {
	*T
	Record

	Type() RecordType
	RSize() int
	Fill_Raw([]byte) error
	Fill_Json(val *fastjson.Value, header *Header) error
}

func fastjsonInt64(val *fastjson.Value, key string) int64 {
	return fastfloat.ParseInt64BestEffort(string(val.GetStringBytes(key)))
}

func fastjsonUint64(val *fastjson.Value, key string) uint64 {
	return fastfloat.ParseUint64BestEffort(string(val.GetStringBytes(key)))
}

///////////////////////////////////////////////////////////////////////////////

// Header is the common 16-byte prefix of every record: discriminant,
// reserved alignment padding, and the event timestamp.
type Header struct {
	Type        RecordType `json:"type"`
	_           [3]byte    // alignment padding, always zero
	TimestampNs int64      `json:"ts_ns"`
}

const Header_Size = 16

func FillHeader_Raw(b []byte, h *Header) error {
	if len(b) < Header_Size {
		return unexpectedBytesError(len(b), Header_Size)
	}
	h.Type = RecordType(b[0])
	h.TimestampNs = int64(binary.LittleEndian.Uint64(b[8:16]))
	return nil
}

func (h *Header) PutRaw(b []byte) {
	b[0] = byte(h.Type)
	binary.LittleEndian.PutUint64(b[8:16], uint64(h.TimestampNs))
}

func FillHeader_Json(val *fastjson.Value, h *Header) error {
	h.Type = RecordType(val.GetUint("type"))
	h.TimestampNs = fastjsonInt64(val, "ts_ns")
	return nil
}

///////////////////////////////////////////////////////////////////////////////

// OrderInsert is emitted when an account submits a new order for
// matching.
type OrderInsert struct {
	Header       Header                    `json:"hd"`
	InstrumentID [InstrumentIDLen]byte     `json:"instrument_id"`
	OrderID      [OrderIDLen]byte          `json:"order_id"`
	UserID       [UserIDLen]byte           `json:"user_id"`
	Price        int64                     `json:"price"`
	Volume       int64                     `json:"volume"`
	Direction    Direction                 `json:"direction"`
	Offset       Offset                    `json:"offset"`
	_            [6]byte
}

const OrderInsert_Size = Header_Size + InstrumentIDLen + OrderIDLen + UserIDLen + 8 + 8 + 1 + 1 + 6

func (*OrderInsert) Type() RecordType { return RecordType_OrderInsert }
func (*OrderInsert) RSize() int       { return OrderInsert_Size }

func (r *OrderInsert) Fill_Raw(b []byte) error {
	if len(b) < OrderInsert_Size {
		return unexpectedBytesError(len(b), OrderInsert_Size)
	}
	if err := FillHeader_Raw(b[0:Header_Size], &r.Header); err != nil {
		return err
	}
	body := b[Header_Size:]
	pos := 0
	copy(r.InstrumentID[:], body[pos:pos+InstrumentIDLen])
	pos += InstrumentIDLen
	copy(r.OrderID[:], body[pos:pos+OrderIDLen])
	pos += OrderIDLen
	copy(r.UserID[:], body[pos:pos+UserIDLen])
	pos += UserIDLen
	r.Price = int64(binary.LittleEndian.Uint64(body[pos : pos+8]))
	pos += 8
	r.Volume = int64(binary.LittleEndian.Uint64(body[pos : pos+8]))
	pos += 8
	r.Direction = Direction(body[pos])
	r.Offset = Offset(body[pos+1])
	return nil
}

func (r *OrderInsert) PutRaw(b []byte) {
	r.Header.PutRaw(b[0:Header_Size])
	body := b[Header_Size:]
	pos := 0
	copy(body[pos:pos+InstrumentIDLen], r.InstrumentID[:])
	pos += InstrumentIDLen
	copy(body[pos:pos+OrderIDLen], r.OrderID[:])
	pos += OrderIDLen
	copy(body[pos:pos+UserIDLen], r.UserID[:])
	pos += UserIDLen
	binary.LittleEndian.PutUint64(body[pos:pos+8], uint64(r.Price))
	pos += 8
	binary.LittleEndian.PutUint64(body[pos:pos+8], uint64(r.Volume))
	pos += 8
	body[pos] = byte(r.Direction)
	body[pos+1] = byte(r.Offset)
}

func (r *OrderInsert) Fill_Json(val *fastjson.Value, header *Header) error {
	r.Header = *header
	copy(r.InstrumentID[:], val.GetStringBytes("instrument_id"))
	copy(r.OrderID[:], val.GetStringBytes("order_id"))
	copy(r.UserID[:], val.GetStringBytes("user_id"))
	r.Price = fastjsonInt64(val, "price")
	r.Volume = fastjsonInt64(val, "volume")
	r.Direction = Direction(val.GetStringBytes("direction")[0])
	if ob := val.GetStringBytes("offset"); len(ob) > 0 {
		r.Offset = Offset(ob[0])
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////

// OrderStatus reflects a lifecycle transition of a resting order
// (partially/fully filled remaining volume, or cancellation).
type OrderStatus struct {
	Header         Header           `json:"hd"`
	OrderID        [OrderIDLen]byte `json:"order_id"`
	RemainingVolume int64            `json:"remaining_volume"`
	Kind           OrderStatusKind  `json:"kind"`
	_              [7]byte
}

const OrderStatus_Size = Header_Size + OrderIDLen + 8 + 1 + 7

func (*OrderStatus) Type() RecordType { return RecordType_OrderStatus }
func (*OrderStatus) RSize() int       { return OrderStatus_Size }

func (r *OrderStatus) Fill_Raw(b []byte) error {
	if len(b) < OrderStatus_Size {
		return unexpectedBytesError(len(b), OrderStatus_Size)
	}
	if err := FillHeader_Raw(b[0:Header_Size], &r.Header); err != nil {
		return err
	}
	body := b[Header_Size:]
	copy(r.OrderID[:], body[0:OrderIDLen])
	r.RemainingVolume = int64(binary.LittleEndian.Uint64(body[OrderIDLen : OrderIDLen+8]))
	r.Kind = OrderStatusKind(body[OrderIDLen+8])
	return nil
}

func (r *OrderStatus) PutRaw(b []byte) {
	r.Header.PutRaw(b[0:Header_Size])
	body := b[Header_Size:]
	copy(body[0:OrderIDLen], r.OrderID[:])
	binary.LittleEndian.PutUint64(body[OrderIDLen:OrderIDLen+8], uint64(r.RemainingVolume))
	body[OrderIDLen+8] = byte(r.Kind)
}

func (r *OrderStatus) Fill_Json(val *fastjson.Value, header *Header) error {
	r.Header = *header
	copy(r.OrderID[:], val.GetStringBytes("order_id"))
	r.RemainingVolume = fastjsonInt64(val, "remaining_volume")
	r.Kind = OrderStatusKind(val.GetUint("kind"))
	return nil
}

///////////////////////////////////////////////////////////////////////////////

// TradeExecuted records one fill resulting from a match.
type TradeExecuted struct {
	Header         Header           `json:"hd"`
	InstrumentID   [InstrumentIDLen]byte `json:"instrument_id"`
	BuyOrderID     [OrderIDLen]byte `json:"buy_order_id"`
	SellOrderID    [OrderIDLen]byte `json:"sell_order_id"`
	Price          int64            `json:"price"`
	Volume         int64            `json:"volume"`
	TradeID        uint64           `json:"trade_id"`
}

const TradeExecuted_Size = Header_Size + InstrumentIDLen + OrderIDLen*2 + 8 + 8 + 8

func (*TradeExecuted) Type() RecordType { return RecordType_TradeExecuted }
func (*TradeExecuted) RSize() int       { return TradeExecuted_Size }

func (r *TradeExecuted) Fill_Raw(b []byte) error {
	if len(b) < TradeExecuted_Size {
		return unexpectedBytesError(len(b), TradeExecuted_Size)
	}
	if err := FillHeader_Raw(b[0:Header_Size], &r.Header); err != nil {
		return err
	}
	body := b[Header_Size:]
	pos := 0
	copy(r.InstrumentID[:], body[pos:pos+InstrumentIDLen])
	pos += InstrumentIDLen
	copy(r.BuyOrderID[:], body[pos:pos+OrderIDLen])
	pos += OrderIDLen
	copy(r.SellOrderID[:], body[pos:pos+OrderIDLen])
	pos += OrderIDLen
	r.Price = int64(binary.LittleEndian.Uint64(body[pos : pos+8]))
	pos += 8
	r.Volume = int64(binary.LittleEndian.Uint64(body[pos : pos+8]))
	pos += 8
	r.TradeID = binary.LittleEndian.Uint64(body[pos : pos+8])
	return nil
}

func (r *TradeExecuted) PutRaw(b []byte) {
	r.Header.PutRaw(b[0:Header_Size])
	body := b[Header_Size:]
	pos := 0
	copy(body[pos:pos+InstrumentIDLen], r.InstrumentID[:])
	pos += InstrumentIDLen
	copy(body[pos:pos+OrderIDLen], r.BuyOrderID[:])
	pos += OrderIDLen
	copy(body[pos:pos+OrderIDLen], r.SellOrderID[:])
	pos += OrderIDLen
	binary.LittleEndian.PutUint64(body[pos:pos+8], uint64(r.Price))
	pos += 8
	binary.LittleEndian.PutUint64(body[pos:pos+8], uint64(r.Volume))
	pos += 8
	binary.LittleEndian.PutUint64(body[pos:pos+8], r.TradeID)
}

func (r *TradeExecuted) Fill_Json(val *fastjson.Value, header *Header) error {
	r.Header = *header
	copy(r.InstrumentID[:], val.GetStringBytes("instrument_id"))
	copy(r.BuyOrderID[:], val.GetStringBytes("buy_order_id"))
	copy(r.SellOrderID[:], val.GetStringBytes("sell_order_id"))
	r.Price = fastjsonInt64(val, "price")
	r.Volume = fastjsonInt64(val, "volume")
	r.TradeID = fastjsonUint64(val, "trade_id")
	return nil
}

///////////////////////////////////////////////////////////////////////////////

// AccountOpen marks the creation of a trading account.
type AccountOpen struct {
	Header        Header          `json:"hd"`
	UserID        [UserIDLen]byte `json:"user_id"`
	InitialEquity int64           `json:"initial_equity"`
}

const AccountOpen_Size = Header_Size + UserIDLen + 8

func (*AccountOpen) Type() RecordType { return RecordType_AccountOpen }
func (*AccountOpen) RSize() int       { return AccountOpen_Size }

func (r *AccountOpen) Fill_Raw(b []byte) error {
	if len(b) < AccountOpen_Size {
		return unexpectedBytesError(len(b), AccountOpen_Size)
	}
	if err := FillHeader_Raw(b[0:Header_Size], &r.Header); err != nil {
		return err
	}
	body := b[Header_Size:]
	copy(r.UserID[:], body[0:UserIDLen])
	r.InitialEquity = int64(binary.LittleEndian.Uint64(body[UserIDLen : UserIDLen+8]))
	return nil
}

func (r *AccountOpen) PutRaw(b []byte) {
	r.Header.PutRaw(b[0:Header_Size])
	body := b[Header_Size:]
	copy(body[0:UserIDLen], r.UserID[:])
	binary.LittleEndian.PutUint64(body[UserIDLen:UserIDLen+8], uint64(r.InitialEquity))
}

func (r *AccountOpen) Fill_Json(val *fastjson.Value, header *Header) error {
	r.Header = *header
	copy(r.UserID[:], val.GetStringBytes("user_id"))
	r.InitialEquity = fastjsonInt64(val, "initial_equity")
	return nil
}

///////////////////////////////////////////////////////////////////////////////

// AccountUpdate reflects a change in an account's balance/margin state.
type AccountUpdate struct {
	Header    Header          `json:"hd"`
	UserID    [UserIDLen]byte `json:"user_id"`
	Equity    int64           `json:"equity"`
	Available int64           `json:"available"`
	Margin    int64           `json:"margin"`
}

const AccountUpdate_Size = Header_Size + UserIDLen + 8 + 8 + 8

func (*AccountUpdate) Type() RecordType { return RecordType_AccountUpdate }
func (*AccountUpdate) RSize() int       { return AccountUpdate_Size }

func (r *AccountUpdate) Fill_Raw(b []byte) error {
	if len(b) < AccountUpdate_Size {
		return unexpectedBytesError(len(b), AccountUpdate_Size)
	}
	if err := FillHeader_Raw(b[0:Header_Size], &r.Header); err != nil {
		return err
	}
	body := b[Header_Size:]
	pos := 0
	copy(r.UserID[:], body[pos:pos+UserIDLen])
	pos += UserIDLen
	r.Equity = int64(binary.LittleEndian.Uint64(body[pos : pos+8]))
	pos += 8
	r.Available = int64(binary.LittleEndian.Uint64(body[pos : pos+8]))
	pos += 8
	r.Margin = int64(binary.LittleEndian.Uint64(body[pos : pos+8]))
	return nil
}

func (r *AccountUpdate) PutRaw(b []byte) {
	r.Header.PutRaw(b[0:Header_Size])
	body := b[Header_Size:]
	pos := 0
	copy(body[pos:pos+UserIDLen], r.UserID[:])
	pos += UserIDLen
	binary.LittleEndian.PutUint64(body[pos:pos+8], uint64(r.Equity))
	pos += 8
	binary.LittleEndian.PutUint64(body[pos:pos+8], uint64(r.Available))
	pos += 8
	binary.LittleEndian.PutUint64(body[pos:pos+8], uint64(r.Margin))
}

func (r *AccountUpdate) Fill_Json(val *fastjson.Value, header *Header) error {
	r.Header = *header
	copy(r.UserID[:], val.GetStringBytes("user_id"))
	r.Equity = fastjsonInt64(val, "equity")
	r.Available = fastjsonInt64(val, "available")
	r.Margin = fastjsonInt64(val, "margin")
	return nil
}

///////////////////////////////////////////////////////////////////////////////

// TickData is a single last-trade/quote update for an instrument.
type TickData struct {
	Header       Header                `json:"hd"`
	InstrumentID [InstrumentIDLen]byte `json:"instrument_id"`
	LastPrice    int64                 `json:"last_price"`
	BidPrice     int64                 `json:"bid_price"`
	AskPrice     int64                 `json:"ask_price"`
	Volume       int64                 `json:"volume"`
}

const TickData_Size = Header_Size + InstrumentIDLen + 8 + 8 + 8 + 8

func (*TickData) Type() RecordType { return RecordType_TickData }
func (*TickData) RSize() int       { return TickData_Size }

func (r *TickData) Fill_Raw(b []byte) error {
	if len(b) < TickData_Size {
		return unexpectedBytesError(len(b), TickData_Size)
	}
	if err := FillHeader_Raw(b[0:Header_Size], &r.Header); err != nil {
		return err
	}
	body := b[Header_Size:]
	pos := 0
	copy(r.InstrumentID[:], body[pos:pos+InstrumentIDLen])
	pos += InstrumentIDLen
	r.LastPrice = int64(binary.LittleEndian.Uint64(body[pos : pos+8]))
	pos += 8
	r.BidPrice = int64(binary.LittleEndian.Uint64(body[pos : pos+8]))
	pos += 8
	r.AskPrice = int64(binary.LittleEndian.Uint64(body[pos : pos+8]))
	pos += 8
	r.Volume = int64(binary.LittleEndian.Uint64(body[pos : pos+8]))
	return nil
}

func (r *TickData) PutRaw(b []byte) {
	r.Header.PutRaw(b[0:Header_Size])
	body := b[Header_Size:]
	pos := 0
	copy(body[pos:pos+InstrumentIDLen], r.InstrumentID[:])
	pos += InstrumentIDLen
	binary.LittleEndian.PutUint64(body[pos:pos+8], uint64(r.LastPrice))
	pos += 8
	binary.LittleEndian.PutUint64(body[pos:pos+8], uint64(r.BidPrice))
	pos += 8
	binary.LittleEndian.PutUint64(body[pos:pos+8], uint64(r.AskPrice))
	pos += 8
	binary.LittleEndian.PutUint64(body[pos:pos+8], uint64(r.Volume))
}

func (r *TickData) Fill_Json(val *fastjson.Value, header *Header) error {
	r.Header = *header
	copy(r.InstrumentID[:], val.GetStringBytes("instrument_id"))
	r.LastPrice = fastjsonInt64(val, "last_price")
	r.BidPrice = fastjsonInt64(val, "bid_price")
	r.AskPrice = fastjsonInt64(val, "ask_price")
	r.Volume = fastjsonInt64(val, "volume")
	return nil
}

///////////////////////////////////////////////////////////////////////////////

// PriceVolume is one order-book level.
type PriceVolume struct {
	Price  int64 `json:"price"`
	Volume int64 `json:"volume"`
}

const PriceVolume_Size = 16

// OrderBookSnapshot carries the full top-N depth for an instrument.
type OrderBookSnapshot struct {
	Header       Header                         `json:"hd"`
	InstrumentID [InstrumentIDLen]byte          `json:"instrument_id"`
	Asks         [OrderBookDepth]PriceVolume    `json:"asks"`
	Bids         [OrderBookDepth]PriceVolume    `json:"bids"`
}

const OrderBookSnapshot_Size = Header_Size + InstrumentIDLen + PriceVolume_Size*OrderBookDepth*2

func (*OrderBookSnapshot) Type() RecordType { return RecordType_OrderBookSnapshot }
func (*OrderBookSnapshot) RSize() int       { return OrderBookSnapshot_Size }

func (r *OrderBookSnapshot) Fill_Raw(b []byte) error {
	if len(b) < OrderBookSnapshot_Size {
		return unexpectedBytesError(len(b), OrderBookSnapshot_Size)
	}
	if err := FillHeader_Raw(b[0:Header_Size], &r.Header); err != nil {
		return err
	}
	body := b[Header_Size:]
	pos := 0
	copy(r.InstrumentID[:], body[pos:pos+InstrumentIDLen])
	pos += InstrumentIDLen
	for i := 0; i < OrderBookDepth; i++ {
		r.Asks[i].Price = int64(binary.LittleEndian.Uint64(body[pos : pos+8]))
		r.Asks[i].Volume = int64(binary.LittleEndian.Uint64(body[pos+8 : pos+16]))
		pos += PriceVolume_Size
	}
	for i := 0; i < OrderBookDepth; i++ {
		r.Bids[i].Price = int64(binary.LittleEndian.Uint64(body[pos : pos+8]))
		r.Bids[i].Volume = int64(binary.LittleEndian.Uint64(body[pos+8 : pos+16]))
		pos += PriceVolume_Size
	}
	return nil
}

func (r *OrderBookSnapshot) PutRaw(b []byte) {
	r.Header.PutRaw(b[0:Header_Size])
	body := b[Header_Size:]
	pos := 0
	copy(body[pos:pos+InstrumentIDLen], r.InstrumentID[:])
	pos += InstrumentIDLen
	for i := 0; i < OrderBookDepth; i++ {
		binary.LittleEndian.PutUint64(body[pos:pos+8], uint64(r.Asks[i].Price))
		binary.LittleEndian.PutUint64(body[pos+8:pos+16], uint64(r.Asks[i].Volume))
		pos += PriceVolume_Size
	}
	for i := 0; i < OrderBookDepth; i++ {
		binary.LittleEndian.PutUint64(body[pos:pos+8], uint64(r.Bids[i].Price))
		binary.LittleEndian.PutUint64(body[pos+8:pos+16], uint64(r.Bids[i].Volume))
		pos += PriceVolume_Size
	}
}

func (r *OrderBookSnapshot) Fill_Json(val *fastjson.Value, header *Header) error {
	r.Header = *header
	copy(r.InstrumentID[:], val.GetStringBytes("instrument_id"))
	fillLevels := func(arr *fastjson.Value, out *[OrderBookDepth]PriceVolume) {
		items := arr.GetArray()
		for i := 0; i < len(items) && i < OrderBookDepth; i++ {
			out[i].Price = fastjsonInt64(items[i], "price")
			out[i].Volume = fastjsonInt64(items[i], "volume")
		}
	}
	fillLevels(val.Get("asks"), &r.Asks)
	fillLevels(val.Get("bids"), &r.Bids)
	return nil
}

///////////////////////////////////////////////////////////////////////////////

// OrderBookDelta is an incremental change to a single price level.
type OrderBookDelta struct {
	Header       Header                `json:"hd"`
	InstrumentID [InstrumentIDLen]byte `json:"instrument_id"`
	Price        int64                 `json:"price"`
	Volume       int64                 `json:"volume"`
	Direction    Direction             `json:"direction"`
	_            [7]byte
}

const OrderBookDelta_Size = Header_Size + InstrumentIDLen + 8 + 8 + 1 + 7

func (*OrderBookDelta) Type() RecordType { return RecordType_OrderBookDelta }
func (*OrderBookDelta) RSize() int       { return OrderBookDelta_Size }

func (r *OrderBookDelta) Fill_Raw(b []byte) error {
	if len(b) < OrderBookDelta_Size {
		return unexpectedBytesError(len(b), OrderBookDelta_Size)
	}
	if err := FillHeader_Raw(b[0:Header_Size], &r.Header); err != nil {
		return err
	}
	body := b[Header_Size:]
	pos := 0
	copy(r.InstrumentID[:], body[pos:pos+InstrumentIDLen])
	pos += InstrumentIDLen
	r.Price = int64(binary.LittleEndian.Uint64(body[pos : pos+8]))
	pos += 8
	r.Volume = int64(binary.LittleEndian.Uint64(body[pos : pos+8]))
	pos += 8
	r.Direction = Direction(body[pos])
	return nil
}

func (r *OrderBookDelta) PutRaw(b []byte) {
	r.Header.PutRaw(b[0:Header_Size])
	body := b[Header_Size:]
	pos := 0
	copy(body[pos:pos+InstrumentIDLen], r.InstrumentID[:])
	pos += InstrumentIDLen
	binary.LittleEndian.PutUint64(body[pos:pos+8], uint64(r.Price))
	pos += 8
	binary.LittleEndian.PutUint64(body[pos:pos+8], uint64(r.Volume))
	pos += 8
	body[pos] = byte(r.Direction)
}

func (r *OrderBookDelta) Fill_Json(val *fastjson.Value, header *Header) error {
	r.Header = *header
	copy(r.InstrumentID[:], val.GetStringBytes("instrument_id"))
	r.Price = fastjsonInt64(val, "price")
	r.Volume = fastjsonInt64(val, "volume")
	if db := val.GetStringBytes("direction"); len(db) > 0 {
		r.Direction = Direction(db[0])
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////

// KLineFinished marks the close of an aggregation bucket. KLineID is
// derived as timestamp_ms*1_000_000/duration_ns (see Granularity).
type KLineFinished struct {
	Header       Header                `json:"hd"`
	InstrumentID [InstrumentIDLen]byte `json:"instrument_id"`
	KLineID      int64                 `json:"kline_id"`
	DurationNs   int64                 `json:"duration_ns"`
	Open         int64                 `json:"open"`
	High         int64                 `json:"high"`
	Low          int64                 `json:"low"`
	Close        int64                 `json:"close"`
	Volume       int64                 `json:"volume"`
}

const KLineFinished_Size = Header_Size + InstrumentIDLen + 8*7

func (*KLineFinished) Type() RecordType { return RecordType_KLineFinished }
func (*KLineFinished) RSize() int       { return KLineFinished_Size }

func (r *KLineFinished) Fill_Raw(b []byte) error {
	if len(b) < KLineFinished_Size {
		return unexpectedBytesError(len(b), KLineFinished_Size)
	}
	if err := FillHeader_Raw(b[0:Header_Size], &r.Header); err != nil {
		return err
	}
	body := b[Header_Size:]
	pos := 0
	copy(r.InstrumentID[:], body[pos:pos+InstrumentIDLen])
	pos += InstrumentIDLen
	fields := []*int64{&r.KLineID, &r.DurationNs, &r.Open, &r.High, &r.Low, &r.Close, &r.Volume}
	for _, f := range fields {
		*f = int64(binary.LittleEndian.Uint64(body[pos : pos+8]))
		pos += 8
	}
	return nil
}

func (r *KLineFinished) PutRaw(b []byte) {
	r.Header.PutRaw(b[0:Header_Size])
	body := b[Header_Size:]
	pos := 0
	copy(body[pos:pos+InstrumentIDLen], r.InstrumentID[:])
	pos += InstrumentIDLen
	fields := []int64{r.KLineID, r.DurationNs, r.Open, r.High, r.Low, r.Close, r.Volume}
	for _, f := range fields {
		binary.LittleEndian.PutUint64(body[pos:pos+8], uint64(f))
		pos += 8
	}
}

func (r *KLineFinished) Fill_Json(val *fastjson.Value, header *Header) error {
	r.Header = *header
	copy(r.InstrumentID[:], val.GetStringBytes("instrument_id"))
	r.KLineID = fastjsonInt64(val, "kline_id")
	r.DurationNs = fastjsonInt64(val, "duration_ns")
	r.Open = fastjsonInt64(val, "open")
	r.High = fastjsonInt64(val, "high")
	r.Low = fastjsonInt64(val, "low")
	r.Close = fastjsonInt64(val, "close")
	r.Volume = fastjsonInt64(val, "volume")
	return nil
}

///////////////////////////////////////////////////////////////////////////////

// ExchangeOrderRecord is the exchange-assigned, monotonically increasing
// identity given to an accepted order (per-instrument counter).
type ExchangeOrderRecord struct {
	Header          Header           `json:"hd"`
	OrderID         [OrderIDLen]byte `json:"order_id"`
	ExchangeOrderID uint64           `json:"exchange_order_id"`
}

const ExchangeOrderRecord_Size = Header_Size + OrderIDLen + 8

func (*ExchangeOrderRecord) Type() RecordType { return RecordType_ExchangeOrderRecord }
func (*ExchangeOrderRecord) RSize() int       { return ExchangeOrderRecord_Size }

func (r *ExchangeOrderRecord) Fill_Raw(b []byte) error {
	if len(b) < ExchangeOrderRecord_Size {
		return unexpectedBytesError(len(b), ExchangeOrderRecord_Size)
	}
	if err := FillHeader_Raw(b[0:Header_Size], &r.Header); err != nil {
		return err
	}
	body := b[Header_Size:]
	copy(r.OrderID[:], body[0:OrderIDLen])
	r.ExchangeOrderID = binary.LittleEndian.Uint64(body[OrderIDLen : OrderIDLen+8])
	return nil
}

func (r *ExchangeOrderRecord) PutRaw(b []byte) {
	r.Header.PutRaw(b[0:Header_Size])
	body := b[Header_Size:]
	copy(body[0:OrderIDLen], r.OrderID[:])
	binary.LittleEndian.PutUint64(body[OrderIDLen:OrderIDLen+8], r.ExchangeOrderID)
}

func (r *ExchangeOrderRecord) Fill_Json(val *fastjson.Value, header *Header) error {
	r.Header = *header
	copy(r.OrderID[:], val.GetStringBytes("order_id"))
	r.ExchangeOrderID = fastjsonUint64(val, "exchange_order_id")
	return nil
}

///////////////////////////////////////////////////////////////////////////////

// ExchangeTradeRecord is the exchange-assigned identity given to one
// trade execution (per-instrument counter).
type ExchangeTradeRecord struct {
	Header        Header `json:"hd"`
	ExchangeTradeID uint64 `json:"exchange_trade_id"`
	TradeID       uint64 `json:"trade_id"`
}

const ExchangeTradeRecord_Size = Header_Size + 8 + 8

func (*ExchangeTradeRecord) Type() RecordType { return RecordType_ExchangeTradeRecord }
func (*ExchangeTradeRecord) RSize() int       { return ExchangeTradeRecord_Size }

func (r *ExchangeTradeRecord) Fill_Raw(b []byte) error {
	if len(b) < ExchangeTradeRecord_Size {
		return unexpectedBytesError(len(b), ExchangeTradeRecord_Size)
	}
	if err := FillHeader_Raw(b[0:Header_Size], &r.Header); err != nil {
		return err
	}
	body := b[Header_Size:]
	r.ExchangeTradeID = binary.LittleEndian.Uint64(body[0:8])
	r.TradeID = binary.LittleEndian.Uint64(body[8:16])
	return nil
}

func (r *ExchangeTradeRecord) PutRaw(b []byte) {
	r.Header.PutRaw(b[0:Header_Size])
	body := b[Header_Size:]
	binary.LittleEndian.PutUint64(body[0:8], r.ExchangeTradeID)
	binary.LittleEndian.PutUint64(body[8:16], r.TradeID)
}

func (r *ExchangeTradeRecord) Fill_Json(val *fastjson.Value, header *Header) error {
	r.Header = *header
	r.ExchangeTradeID = fastjsonUint64(val, "exchange_trade_id")
	r.TradeID = fastjsonUint64(val, "trade_id")
	return nil
}

///////////////////////////////////////////////////////////////////////////////

// ExchangeResponse is the canonical five-kind vocabulary delivered to an
// account in reply to an order action: ACCEPTED, REJECTED, TRADE,
// CANCEL_ACCEPTED, or CANCEL_REJECTED. There is no FILLED/PARTIAL_FILLED
// kind; fill state is derived from accumulated TRADE volume.
type ExchangeResponse struct {
	Header  Header             `json:"hd"`
	OrderID [OrderIDLen]byte   `json:"order_id"`
	Kind    ExchangeResponseKind `json:"kind"`
	_       [7]byte
	TradeID uint64             `json:"trade_id"`
	Volume  int64              `json:"volume"`
	Price   int64              `json:"price"`
	Reason  [ReasonLen]byte    `json:"reason"`
}

const ExchangeResponse_Size = Header_Size + OrderIDLen + 1 + 7 + 8 + 8 + 8 + ReasonLen

func (*ExchangeResponse) Type() RecordType { return RecordType_ExchangeResponse }
func (*ExchangeResponse) RSize() int       { return ExchangeResponse_Size }

func (r *ExchangeResponse) Fill_Raw(b []byte) error {
	if len(b) < ExchangeResponse_Size {
		return unexpectedBytesError(len(b), ExchangeResponse_Size)
	}
	if err := FillHeader_Raw(b[0:Header_Size], &r.Header); err != nil {
		return err
	}
	body := b[Header_Size:]
	pos := 0
	copy(r.OrderID[:], body[pos:pos+OrderIDLen])
	pos += OrderIDLen
	r.Kind = ExchangeResponseKind(body[pos])
	pos += 1 + 7
	r.TradeID = binary.LittleEndian.Uint64(body[pos : pos+8])
	pos += 8
	r.Volume = int64(binary.LittleEndian.Uint64(body[pos : pos+8]))
	pos += 8
	r.Price = int64(binary.LittleEndian.Uint64(body[pos : pos+8]))
	pos += 8
	copy(r.Reason[:], body[pos:pos+ReasonLen])
	return nil
}

func (r *ExchangeResponse) PutRaw(b []byte) {
	r.Header.PutRaw(b[0:Header_Size])
	body := b[Header_Size:]
	pos := 0
	copy(body[pos:pos+OrderIDLen], r.OrderID[:])
	pos += OrderIDLen
	body[pos] = byte(r.Kind)
	pos += 1 + 7
	binary.LittleEndian.PutUint64(body[pos:pos+8], r.TradeID)
	pos += 8
	binary.LittleEndian.PutUint64(body[pos:pos+8], uint64(r.Volume))
	pos += 8
	binary.LittleEndian.PutUint64(body[pos:pos+8], uint64(r.Price))
	pos += 8
	copy(body[pos:pos+ReasonLen], r.Reason[:])
}

func (r *ExchangeResponse) Fill_Json(val *fastjson.Value, header *Header) error {
	r.Header = *header
	copy(r.OrderID[:], val.GetStringBytes("order_id"))
	r.Kind = ExchangeResponseKind(val.GetUint("kind"))
	r.TradeID = fastjsonUint64(val, "trade_id")
	r.Volume = fastjsonInt64(val, "volume")
	r.Price = fastjsonInt64(val, "price")
	copy(r.Reason[:], val.GetStringBytes("reason"))
	return nil
}

///////////////////////////////////////////////////////////////////////////////

// Checkpoint marks a recovery boundary: every record with sequence <=
// LastAppliedSeq for StreamID is durably reflected in the SSTable tier,
// so WAL replay may resume strictly after it.
type Checkpoint struct {
	Header         Header               `json:"hd"`
	StreamID       [StreamIDLen]byte    `json:"stream_id"`
	LastAppliedSeq uint64               `json:"last_applied_seq"`
}

const Checkpoint_Size = Header_Size + StreamIDLen + 8

func (*Checkpoint) Type() RecordType { return RecordType_Checkpoint }
func (*Checkpoint) RSize() int       { return Checkpoint_Size }

func (r *Checkpoint) Fill_Raw(b []byte) error {
	if len(b) < Checkpoint_Size {
		return unexpectedBytesError(len(b), Checkpoint_Size)
	}
	if err := FillHeader_Raw(b[0:Header_Size], &r.Header); err != nil {
		return err
	}
	body := b[Header_Size:]
	copy(r.StreamID[:], body[0:StreamIDLen])
	r.LastAppliedSeq = binary.LittleEndian.Uint64(body[StreamIDLen : StreamIDLen+8])
	return nil
}

func (r *Checkpoint) PutRaw(b []byte) {
	r.Header.PutRaw(b[0:Header_Size])
	body := b[Header_Size:]
	copy(body[0:StreamIDLen], r.StreamID[:])
	binary.LittleEndian.PutUint64(body[StreamIDLen:StreamIDLen+8], r.LastAppliedSeq)
}

func (r *Checkpoint) Fill_Json(val *fastjson.Value, header *Header) error {
	r.Header = *header
	copy(r.StreamID[:], val.GetStringBytes("stream_id"))
	r.LastAppliedSeq = fastjsonUint64(val, "last_applied_seq")
	return nil
}
