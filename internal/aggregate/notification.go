package aggregate

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"futures-account-monitor/internal/numeric"
	"futures-account-monitor/internal/tracker"
	"futures-account-monitor/order"
	"futures-account-monitor/position"
)

// Notification is the structurally complete emission C5 hands to C6.
// Optional fields are left at their zero value (empty string) when the
// spec's conditions for including them are not met.
type Notification struct {
	Scenario      Scenario
	Kind          string // "lifecycle" or "fill"
	Symbol        string
	OrderID       int64
	ClientOrderID string
	Category      order.Category
	Title         string
	StateLabel    string

	DisplayPrice string // formatted, 8 decimals

	CumulativeQuoteDisplay      string
	CumulativeQuoteRatioDisplay string
	TradePnlDisplay             string
	LongShortRatioDisplay       string
	LongShortRatioRaw           string

	ExpiryReason string // populated only for EXPIRED-derived emissions

	EventTime time.Time
	Event     order.Event
}

func effectivePriceSource(meta scenarioMeta, ev order.Event) priceSource {
	if ev.OrderType == "MARKET" {
		return priceSourceAverage
	}
	return meta.price
}

// displayPrice implements §4.5.5's fallback chains.
func displayPrice(src priceSource, ev order.Event, ac *tracker.Context) decimal.Decimal {
	switch src {
	case priceSourceAverage:
		if numeric.IsPositive(ev.AveragePrice) {
			return numeric.Parse(ev.AveragePrice)
		}
		if ac.LastAveragePrice.IsPositive() {
			return ac.LastAveragePrice
		}
		if numeric.IsPositive(ev.LastPrice) {
			return numeric.Parse(ev.LastPrice)
		}
		if numeric.IsPositive(ev.OrderPrice) {
			return numeric.Parse(ev.OrderPrice)
		}
		return numeric.Parse(ev.StopPrice)
	default: // priceSourceOrder
		if numeric.IsPositive(ev.OrderPrice) {
			return numeric.Parse(ev.OrderPrice)
		}
		if numeric.IsPositive(ev.StopPrice) {
			return numeric.Parse(ev.StopPrice)
		}
		if numeric.IsPositive(ev.AveragePrice) {
			return numeric.Parse(ev.AveragePrice)
		}
		return numeric.Parse(ev.LastPrice)
	}
}

// formatQuote renders a quote-currency amount as "<amount> <asset>" with 2
// decimals, or 4 when the magnitude is below 1.
func formatQuote(amount decimal.Decimal, asset string) string {
	places := int32(2)
	if amount.Abs().LessThan(decimal.NewFromInt(1)) {
		places = 4
	}
	return fmt.Sprintf("%s %s", amount.StringFixed(places), asset)
}

// formatSignedQuote renders a signed quote-currency amount, showing the sign
// explicitly for strictly positive values and omitting it for negative (the
// minus sign from StringFixed already reads as signed) and exactly-zero
// amounts. Non-zero magnitudes below 1 get 4 decimals; zero gets 2.
func formatSignedQuote(amount decimal.Decimal, asset string) string {
	places := int32(2)
	if !amount.IsZero() && amount.Abs().LessThan(decimal.NewFromInt(1)) {
		places = 4
	}
	sign := "+"
	if amount.IsNegative() || amount.IsZero() {
		sign = ""
	}
	return fmt.Sprintf("%s%s %s", sign, amount.StringFixed(places), asset)
}

func quoteAssetOf(symbol string) string {
	if q := position.QuoteAsset(symbol); q != "" {
		return q
	}
	return "USDT"
}

// sumRealizedPnL sums the rp field across a context's event history as
// per-event deltas (see the aggregator's recorded decision on this: the
// source sums rp as deltas, not cumulative snapshots).
func sumRealizedPnL(history []order.Event) decimal.Decimal {
	total := decimal.Zero
	for _, ev := range history {
		total = total.Add(numeric.Parse(ev.RealizedPnL))
	}
	return total
}

// longShortRatio computes the long/short notional ratio display across all
// of the account's open positions (not just the symbol being notified),
// per §4.5.6.
func longShortRatio(acct position.AccountContext) (display, raw string) {
	var long, short decimal.Decimal
	for _, snap := range acct.Snapshots {
		switch snap.Direction {
		case position.Long:
			long = long.Add(snap.Notional.Abs())
		case position.Short:
			short = short.Add(snap.Notional.Abs())
		}
	}
	if long.IsZero() && short.IsZero() {
		return "", ""
	}
	if short.IsZero() {
		return "∞:1.00", "Infinity:1"
	}
	ratio := long.Div(short)
	return fmt.Sprintf("%s:1.00", ratio.StringFixed(2)), fmt.Sprintf("%s:1", ratio.StringFixed(2))
}

func stateLabelHasFillWord(label string) bool {
	return strings.Contains(label, "成交")
}
