// Copyright (c) 2026 Quanta Exchange Contributors
//
// builders translate domain events (account, order, trade, quote, k-line,
// order-book) into the canonical RFC 7386 merge patches the snapshot
// manager (C10) applies to a user's business snapshot, per the nested-path
// shapes the DIFF protocol specifies.

package diff

import (
	"fmt"

	"github.com/valyala/fastjson"
)

// arena is a tiny fastjson.Arena wrapper: Arena is not safe for concurrent
// use, so every builder call gets its own, matching fastjson's documented
// usage (one Arena per goroutine/call).
func newArena() *fastjson.Arena {
	return new(fastjson.Arena)
}

func wrapTrade(a *fastjson.Arena, userID string, section string, itemID string, item *fastjson.Value) *fastjson.Value {
	inner := a.NewObject()
	inner.Set(section, wrapItem(a, itemID, item))
	user := a.NewObject()
	user.Set(userID, inner)
	root := a.NewObject()
	root.Set("trade", user)
	return root
}

func wrapItem(a *fastjson.Arena, itemID string, item *fastjson.Value) *fastjson.Value {
	obj := a.NewObject()
	obj.Set(itemID, item)
	return obj
}

// AccountUpdate builds {"trade":{user_id:{"accounts":{account_id:{...delta}}}}}.
// delta is any set of account fields that changed (e.g. balance, margin).
func AccountUpdate(userID, accountID string, delta map[string]float64) *fastjson.Value {
	a := newArena()
	deltaObj := a.NewObject()
	for k, v := range delta {
		deltaObj.Set(k, a.NewNumberFloat64(v))
	}
	return wrapTrade(a, userID, "accounts", accountID, deltaObj)
}

// OrderStatusUpdate builds {"trade":{user_id:{"orders":{order_id:{status, volume_left, ...}}}}}.
func OrderStatusUpdate(userID, orderID, status string, volumeLeft float64, extra map[string]float64) *fastjson.Value {
	a := newArena()
	obj := a.NewObject()
	obj.Set("status", a.NewString(status))
	obj.Set("volume_left", a.NewNumberFloat64(volumeLeft))
	for k, v := range extra {
		obj.Set(k, a.NewNumberFloat64(v))
	}
	return wrapTrade(a, userID, "orders", orderID, obj)
}

// OrderRemoved builds {"trade":{user_id:{"orders":{order_id:null}}}}, the
// RFC 7386 delete sentinel for a fully-settled order leaving the snapshot.
func OrderRemoved(userID, orderID string) *fastjson.Value {
	a := newArena()
	return wrapTrade(a, userID, "orders", orderID, a.NewNull())
}

// TradeAppend builds {"trade":{user_id:{"trades":{trade_id:{...}}}}}.
func TradeAppend(userID, tradeID string, price, volume float64, direction string) *fastjson.Value {
	a := newArena()
	obj := a.NewObject()
	obj.Set("price", a.NewNumberFloat64(price))
	obj.Set("volume", a.NewNumberFloat64(volume))
	obj.Set("direction", a.NewString(direction))
	return wrapTrade(a, userID, "trades", tradeID, obj)
}

// PositionUpdate builds {"trade":{user_id:{"positions":{instrument_id:{...}}}}}.
func PositionUpdate(userID, instrumentID string, volume, openPrice, openOI, closeOI float64) *fastjson.Value {
	a := newArena()
	obj := a.NewObject()
	obj.Set("volume", a.NewNumberFloat64(volume))
	obj.Set("open_price", a.NewNumberFloat64(openPrice))
	obj.Set("open_oi", a.NewNumberFloat64(openOI))
	obj.Set("close_oi", a.NewNumberFloat64(closeOI))
	return wrapTrade(a, userID, "positions", instrumentID, obj)
}

// QuoteUpdate builds {"quotes":{instrument_id:{...tick...}}}.
func QuoteUpdate(instrumentID string, last, bid, ask, bidVol, askVol float64) *fastjson.Value {
	a := newArena()
	obj := a.NewObject()
	obj.Set("last_price", a.NewNumberFloat64(last))
	obj.Set("bid_price1", a.NewNumberFloat64(bid))
	obj.Set("ask_price1", a.NewNumberFloat64(ask))
	obj.Set("bid_volume1", a.NewNumberFloat64(bidVol))
	obj.Set("ask_volume1", a.NewNumberFloat64(askVol))
	quotes := a.NewObject()
	quotes.Set(instrumentID, obj)
	root := a.NewObject()
	root.Set("quotes", quotes)
	return root
}

// KlineID computes the DIFF protocol's bar identifier:
// kline_id = (timestamp_ms * 1_000_000) / duration_ns.
func KlineID(timestampMs int64, durationNs int64) int64 {
	return (timestampMs * 1_000_000) / durationNs
}

// KlineUpdate builds the nested
// {"klines":{instrument:{duration_ns:{"data":{kline_id:{...}}}}}} patch.
func KlineUpdate(instrumentID string, durationNs int64, timestampMs int64, open, high, low, close, volume, openOI, closeOI float64) *fastjson.Value {
	a := newArena()
	bar := a.NewObject()
	bar.Set("datetime", a.NewNumberInt(int(timestampMs*1_000_000)))
	bar.Set("open", a.NewNumberFloat64(open))
	bar.Set("high", a.NewNumberFloat64(high))
	bar.Set("low", a.NewNumberFloat64(low))
	bar.Set("close", a.NewNumberFloat64(close))
	bar.Set("volume", a.NewNumberFloat64(volume))
	bar.Set("open_oi", a.NewNumberFloat64(openOI))
	bar.Set("close_oi", a.NewNumberFloat64(closeOI))

	data := a.NewObject()
	klineID := KlineID(timestampMs, durationNs)
	data.Set(fmt.Sprintf("%d", klineID), bar)

	durationObj := a.NewObject()
	durationObj.Set("data", data)

	durations := a.NewObject()
	durations.Set(fmt.Sprintf("%d", durationNs), durationObj)

	instruments := a.NewObject()
	instruments.Set(instrumentID, durations)

	root := a.NewObject()
	root.Set("klines", instruments)
	return root
}

// OrderBookLevelUpdate builds {"quotes":{instrument_id:{"bid_price{n}":...,
// "bid_volume{n}":...}}} (or ask_*) for a single depth level, n in [1,10].
func OrderBookLevelUpdate(instrumentID string, level int, isBid bool, price, volume float64) *fastjson.Value {
	a := newArena()
	side := "ask"
	if isBid {
		side = "bid"
	}
	obj := a.NewObject()
	obj.Set(fmt.Sprintf("%s_price%d", side, level), a.NewNumberFloat64(price))
	obj.Set(fmt.Sprintf("%s_volume%d", side, level), a.NewNumberFloat64(volume))
	quotes := a.NewObject()
	quotes.Set(instrumentID, obj)
	root := a.NewObject()
	root.Set("quotes", quotes)
	return root
}
