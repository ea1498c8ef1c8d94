// Package wsevent normalizes raw ORDER_TRADE_UPDATE wire messages into
// order.Event values (spec component C2). Invalid messages are dropped
// silently; the caller never has to special-case malformed input.
package wsevent

import (
	"encoding/json"

	"futures-account-monitor/order"
)

// combinedEnvelope mirrors the Binance "combined stream" wrapper used by
// gateway.BinanceWSReal: {"stream": "...", "data": {...}}. Raw user-data
// messages (not subscribed via combined stream) arrive without the wrapper,
// so Normalize accepts both shapes.
type combinedEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// wireEvent is the top-level ORDER_TRADE_UPDATE payload.
type wireEvent struct {
	EventType string          `json:"e"`
	EventTime int64           `json:"E"`
	TradeTime int64           `json:"T"`
	Order     *wireOrder      `json:"o"`
}

// wireOrder carries Binance's single-letter order fields.
type wireOrder struct {
	Symbol                string `json:"s"`
	ClientOrderID         string `json:"c"`
	OriginalClientOrderID string `json:"C"`
	Side                  string `json:"S"`
	PositionSide          string `json:"ps"`
	OrderType             string `json:"o"`
	ExecType              string `json:"x"`
	Status                string `json:"X"`
	OrderID               int64  `json:"i"`
	OriginalQty           string `json:"q"`
	CumulativeQty         string `json:"z"`
	LastQty               string `json:"l"`
	AveragePrice          string `json:"ap"`
	LastPrice             string `json:"L"`
	OrderPrice            string `json:"p"`
	StopPrice             string `json:"sp"`
	ActivationPrice       string `json:"AP"`
	CallbackRate          string `json:"cr"`
	RealizedPnL           string `json:"rp"`
	IsMaker               bool   `json:"m"`
	TradeTime             int64  `json:"T"`
}

// requiredOrderFields names the wire keys a valid ORDER_TRADE_UPDATE payload
// must carry. Mirrors the "collect missing required keys" idiom used for
// structured log field validation elsewhere in this codebase.
var requiredOrderFields = []string{"s", "c", "S", "X", "i"}

// ListenKeyExpired reports whether a raw message is the out-of-band
// "listenKeyExpired" user-data event, which has no `o` payload and instead
// signals that the stream consumer must recreate its listen key.
func ListenKeyExpired(raw []byte) bool {
	var probe struct {
		EventType string `json:"e"`
		EventTime int64  `json:"E"`
	}
	if err := json.Unmarshal(unwrap(raw), &probe); err != nil {
		return false
	}
	return probe.EventType == "listenKeyExpired"
}

// Normalize validates and projects a raw ORDER_TRADE_UPDATE message into an
// order.Event. It returns nil, false for anything that isn't a well-formed
// order update: wrong event type, missing required fields, or invalid JSON.
func Normalize(raw []byte) (*order.Event, bool) {
	data := unwrap(raw)

	var fieldProbe map[string]json.RawMessage
	if err := json.Unmarshal(data, &fieldProbe); err != nil {
		return nil, false
	}

	var we wireEvent
	if err := json.Unmarshal(data, &we); err != nil {
		return nil, false
	}
	if we.EventType != "ORDER_TRADE_UPDATE" || we.Order == nil {
		return nil, false
	}

	var orderFields map[string]json.RawMessage
	oRaw, ok := fieldProbe["o"]
	if !ok {
		return nil, false
	}
	if err := json.Unmarshal(oRaw, &orderFields); err != nil {
		return nil, false
	}
	if missing := missingFields(orderFields, requiredOrderFields); len(missing) > 0 {
		return nil, false
	}

	status := normalizeStatus(we.Order.Status)

	var raw2 map[string]any
	_ = json.Unmarshal(oRaw, &raw2)

	ev := &order.Event{
		Symbol:                we.Order.Symbol,
		OrderID:               we.Order.OrderID,
		ClientOrderID:         we.Order.ClientOrderID,
		OriginalClientOrderID: we.Order.OriginalClientOrderID,
		Status:                status,
		Side:                  order.Side(we.Order.Side),
		PositionSide:          order.PositionSide(we.Order.PositionSide),
		OrderType:             we.Order.OrderType,
		ExecType:              we.Order.ExecType,
		IsMaker:               we.Order.IsMaker,
		OriginalQty:           we.Order.OriginalQty,
		CumulativeQty:         we.Order.CumulativeQty,
		LastQty:               we.Order.LastQty,
		AveragePrice:          we.Order.AveragePrice,
		LastPrice:             we.Order.LastPrice,
		OrderPrice:            we.Order.OrderPrice,
		StopPrice:             we.Order.StopPrice,
		ActivationPrice:       we.Order.ActivationPrice,
		CallbackRate:          we.Order.CallbackRate,
		RealizedPnL:           we.Order.RealizedPnL,
		EventTime:             we.EventTime,
		TradeTime:             we.Order.TradeTime,
		Raw:                   raw2,
	}
	return ev, true
}

// normalizeStatus folds EXPIRED_IN_MATCH into EXPIRED per the data model.
func normalizeStatus(raw string) order.Status {
	if raw == "EXPIRED_IN_MATCH" {
		return order.StatusExpired
	}
	return order.Status(raw)
}

// ExpiryReason derives the user-facing expiry reason string from the
// original (pre-normalization) execution-type/status values.
func ExpiryReason(execType string) string {
	switch execType {
	case "EXPIRED_IN_MATCH":
		return "撮合过程中超时 (EXPIRED_IN_MATCH)"
	case "EXPIRED":
		return "超过有效期自动过期"
	case "":
		return "订单超时未成交"
	default:
		return "执行状态: " + execType
	}
}

func missingFields(fields map[string]json.RawMessage, required []string) []string {
	var missing []string
	for _, key := range required {
		if _, ok := fields[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

func unwrap(raw []byte) []byte {
	var env combinedEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 {
		return env.Data
	}
	return raw
}
