// Copyright (c) 2026 Quanta Exchange Contributors
//
// responses maps the five canonical exchange responses onto the order/trade
// patches pushed to a user's snapshot. The exchange never emits a
// FILLED/PARTIAL_FILLED response directly; the account side derives that
// distinction itself by decrementing volume_left on each TRADE response.

package diff

import (
	"github.com/valyala/fastjson"

	"github.com/quantaex/qx-store/patch"
)

// ResponseKind enumerates the five response shapes the exchange can emit
// for an order.
type ResponseKind int

const (
	Accepted ResponseKind = iota
	Rejected
	Trade
	CancelAccepted
	CancelRejected
)

// ExchangeResponse is the account-facing projection of an exchange
// response: exactly the fields relevant to one of the five ResponseKinds.
type ExchangeResponse struct {
	Kind ResponseKind

	UserID  string
	OrderID string

	RejectReason string // Rejected, CancelRejected

	TradeID string // Trade
	Price   float64
	Volume  float64
}

// OrderState tracks what the account side needs to compute volume_left
// across successive TRADE responses for one order.
type OrderState struct {
	TotalVolume float64
	VolumeLeft  float64
}

// ApplyResponse turns one ExchangeResponse into the order/trade patch(es)
// it produces against the account's snapshot, updating state in place for
// TRADE responses (state may be nil for responses that don't need it).
// The caller is responsible for pushing the returned patch via C10.
func ApplyResponse(resp ExchangeResponse, state *OrderState) *fastjson.Value {
	switch resp.Kind {
	case Accepted:
		volumeLeft := 0.0
		if state != nil {
			volumeLeft = state.VolumeLeft
		}
		return OrderStatusUpdate(resp.UserID, resp.OrderID, "ACCEPTED", volumeLeft, nil)
	case Rejected:
		status := OrderStatusUpdate(resp.UserID, resp.OrderID, "REJECTED", 0, nil)
		return withReason(status, resp.RejectReason)
	case Trade:
		if state != nil {
			state.VolumeLeft -= resp.Volume
			if state.VolumeLeft < 0 {
				state.VolumeLeft = 0
			}
		}
		tradePatch := TradeAppend(resp.UserID, resp.TradeID, resp.Price, resp.Volume, "")
		volumeLeft := 0.0
		if state != nil {
			volumeLeft = state.VolumeLeft
		}
		status := "PARTIAL_FILLED"
		if volumeLeft == 0 {
			status = "FILLED"
		}
		orderPatch := OrderStatusUpdate(resp.UserID, resp.OrderID, status, volumeLeft, nil)
		return mergeTopLevel(tradePatch, orderPatch)
	case CancelAccepted:
		return OrderStatusUpdate(resp.UserID, resp.OrderID, "CANCEL_ACCEPTED", 0, nil)
	case CancelRejected:
		status := OrderStatusUpdate(resp.UserID, resp.OrderID, "CANCEL_REJECTED", 0, nil)
		return withReason(status, resp.RejectReason)
	default:
		return nil
	}
}

func withReason(statusPatch *fastjson.Value, reason string) *fastjson.Value {
	// statusPatch is {"trade":{user_id:{"orders":{order_id:{...}}}}}; thread
	// the reject reason into the innermost object.
	tradeVal := statusPatch.Get("trade")
	if tradeVal == nil {
		return statusPatch
	}
	tradeObj, err := tradeVal.Object()
	if err != nil {
		return statusPatch
	}
	var orderObj *fastjson.Value
	tradeObj.Visit(func(_ []byte, user *fastjson.Value) {
		userObj, err := user.Object()
		if err != nil {
			return
		}
		orders := userObj.Get("orders")
		if orders == nil {
			return
		}
		ordersObj, err := orders.Object()
		if err != nil {
			return
		}
		ordersObj.Visit(func(_ []byte, order *fastjson.Value) {
			orderObj = order
		})
	})
	if orderObj != nil {
		if obj, err := orderObj.Object(); err == nil {
			a := new(fastjson.Arena)
			obj.Set("reason", a.NewString(reason))
		}
	}
	return statusPatch
}

// mergeTopLevel combines two patches rooted at "trade" into one, since a
// TRADE response touches both the order (status/volume_left) and the
// trades list in the same snapshot update. Deep-merges via C9 rather than
// a shallow key overwrite, since both patches share the "trade"."user_id"
// path but diverge below it ("orders" vs "trades").
func mergeTopLevel(a, b *fastjson.Value) *fastjson.Value {
	return patch.Merge(a, b)
}
