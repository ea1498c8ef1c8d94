// Package tracker implements the per-order aggregation context store (spec
// component C3): a composite-string-keyed map with no locking of its own
// (the aggregator is its only user), grounded on order.Manager's map[string]*Order shape, with the sliding
// accumulation bookkeeping grounded on a recent-fills tracker's
// append-then-recompute idiom.
package tracker

import (
	"time"

	"github.com/shopspring/decimal"

	"futures-account-monitor/internal/numeric"
	"futures-account-monitor/order"
)

// Scenario names the notification outcome a pending deadline will emit if it
// fires, or the outcome just emitted synchronously. Concrete values live in
// the aggregate package, which owns the state machine; tracker only carries
// the string through.
type Scenario string

// Presentation is the category/title snapshot cached from the first
// non-OTHER classification seen for an order, so later child/ambiguous
// events can inherit it.
type Presentation struct {
	Category order.Category
	Title    string
}

// Context is one order's aggregation state (AggregationContext in the data
// model). It is never accessed concurrently by more than one goroutine: the
// aggregator is the sole owner and mutator, per the spec's single-writer
// concurrency model.
type Context struct {
	Symbol        string
	OrderID       int64
	ClientOrderID string

	CumulativeQuantity decimal.Decimal
	CumulativeQuote    decimal.Decimal
	LastAveragePrice   decimal.Decimal
	LastStatus         order.Status
	LastEventTime      time.Time

	History []order.Event

	HadPartialFill bool

	PendingDeadline *time.Time
	PendingScenario Scenario

	Presentation Presentation
}

// Key returns the canonical composite identity for the context.
func (c *Context) Key() string {
	return order.Key(c.Symbol, c.OrderID, c.ClientOrderID)
}

// CancelPending clears any scheduled deadline. The caller (aggregator) is
// responsible for also cancelling the underlying timer/cancel-token; this
// just clears the bookkeeping fields.
func (c *Context) CancelPending() {
	c.PendingDeadline = nil
	c.PendingScenario = ""
}

// Tracker owns the map of live AggregationContexts.
type Tracker struct {
	contexts map[string]*Context
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{contexts: make(map[string]*Context)}
}

// Update upserts the context for ev, recomputing accumulators per the data
// model's invariants, and returns the (possibly newly created) context.
// presentation is only applied when inserting a brand-new context, or when
// the existing context still lacks a non-OTHER presentation (so an initial
// OTHER classification can later be overwritten by a child event inheriting
// its parent's real presentation).
func (t *Tracker) Update(ev order.Event, presentation Presentation) *Context {
	key := ev.Key()
	ctx, ok := t.contexts[key]
	if !ok {
		ctx = &Context{
			Symbol:        ev.Symbol,
			OrderID:       ev.OrderID,
			ClientOrderID: ev.ClientOrderID,
			Presentation:  presentation,
		}
		t.contexts[key] = ctx
	} else if ctx.Presentation.Category.Kind == order.KindOther && presentation.Category.Kind != order.KindOther {
		ctx.Presentation = presentation
	}

	if ev.Status == order.StatusPartiallyFilled {
		ctx.HadPartialFill = true
	}

	cumQty := numeric.Parse(ev.CumulativeQty)
	if cumQty.IsZero() {
		cumQty = ctx.CumulativeQuantity
	}
	ctx.CumulativeQuantity = cumQty

	avg := numeric.Parse(ev.AveragePrice)
	if avg.IsZero() && cumQty.IsPositive() {
		// backfill: exchange reported 0 despite a nonzero cumulative quantity
		avg = ctx.LastAveragePrice
	}
	if avg.IsPositive() {
		ctx.LastAveragePrice = avg
	}

	priceForQuote := numeric.FirstPositive(ev.AveragePrice, ev.LastPrice, ev.OrderPrice)
	if priceForQuote.IsZero() {
		priceForQuote = ctx.LastAveragePrice
	}
	ctx.CumulativeQuote = priceForQuote.Mul(cumQty)

	ctx.LastStatus = ev.Status
	ctx.LastEventTime = ev.TradeTimestamp()
	ctx.History = append(ctx.History, ev)

	return ctx
}

// Get returns the live context for the given identity, if any.
func (t *Tracker) Get(symbol string, orderID int64, clientOrderID string) (*Context, bool) {
	ctx, ok := t.contexts[order.Key(symbol, orderID, clientOrderID)]
	return ctx, ok
}

// GetByKey returns the live context for a pre-built composite key.
func (t *Tracker) GetByKey(key string) (*Context, bool) {
	ctx, ok := t.contexts[key]
	return ctx, ok
}

// SetContext re-inserts ctx (used by the aggregator when mutating pending
// deadline bookkeeping out of band from an event).
func (t *Tracker) SetContext(ctx *Context) {
	t.contexts[ctx.Key()] = ctx
}

// Delete removes the context belonging to ev. Returns false if there was
// nothing to delete.
func (t *Tracker) Delete(ev order.Event) bool {
	key := ev.Key()
	if _, ok := t.contexts[key]; !ok {
		return false
	}
	delete(t.contexts, key)
	return true
}

// DeleteByKey removes a context by composite key.
func (t *Tracker) DeleteByKey(key string) bool {
	if _, ok := t.contexts[key]; !ok {
		return false
	}
	delete(t.contexts, key)
	return true
}

// Len reports the number of live contexts, for tests/metrics.
func (t *Tracker) Len() int {
	return len(t.contexts)
}
