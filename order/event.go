package order

import (
	"strconv"
	"time"
)

// Status is the exchange-reported order lifecycle state. EXPIRED_IN_MATCH is
// normalized to Expired by the event normalizer before it ever reaches this type.
type Status string

const (
	StatusNew            Status = "NEW"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
	StatusCanceled        Status = "CANCELED"
	StatusExpired         Status = "EXPIRED"
	StatusPendingCancel   Status = "PENDING_CANCEL"
	StatusRejected        Status = "REJECTED"
)

// IsTerminal reports whether st ends the order's life cycle.
func (st Status) IsTerminal() bool {
	switch st {
	case StatusFilled, StatusCanceled, StatusExpired, StatusRejected:
		return true
	default:
		return false
	}
}

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// PositionSide is the hedge-mode position leg an order applies to.
type PositionSide string

const (
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
	PositionSideBoth  PositionSide = "BOTH"
)

// Event is the immutable projection of one ORDER_TRADE_UPDATE wire message.
// Numeric exchange fields are carried as decimal strings to avoid float precision
// loss; arithmetic on them happens with shopspring/decimal at the point of use.
type Event struct {
	Symbol                string
	OrderID               int64
	ClientOrderID         string
	OriginalClientOrderID string // set only on child executions spawned by a stop/TP order

	Status       Status
	Side         Side
	PositionSide PositionSide
	OrderType    string // LIMIT, MARKET, STOP_MARKET, TAKE_PROFIT_MARKET, TRAILING_STOP_MARKET, ...
	ExecType     string // NEW, TRADE, CANCELED, EXPIRED, ...
	IsMaker      bool

	OriginalQty     string
	CumulativeQty   string
	LastQty         string
	AveragePrice    string
	LastPrice       string
	OrderPrice      string
	StopPrice       string
	ActivationPrice string
	CallbackRate    string
	RealizedPnL     string

	EventTime int64 // E, epoch ms
	TradeTime int64 // T, epoch ms

	Raw map[string]any // unknown/extra fields preserved for downstream re-use
}

// EventTimestamp returns EventTime as a UTC time.Time.
func (e Event) EventTimestamp() time.Time {
	return time.UnixMilli(e.EventTime).UTC()
}

// TradeTimestamp returns TradeTime as a UTC time.Time.
func (e Event) TradeTimestamp() time.Time {
	return time.UnixMilli(e.TradeTime).UTC()
}

// Key is the canonical composite identity used throughout the aggregation
// pipeline: "<symbol>:<orderId>:<clientOrderId>". Kept as a plain string
// concatenation rather than a hash, per the spec's design notes — the tuple is
// small and rarely churns.
func (e Event) Key() string {
	return Key(e.Symbol, e.OrderID, e.ClientOrderID)
}

// Key builds the canonical composite order identity string.
func Key(symbol string, orderID int64, clientOrderID string) string {
	return symbol + ":" + strconv.FormatInt(orderID, 10) + ":" + clientOrderID
}
