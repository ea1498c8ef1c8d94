// Package aggregate implements the order aggregator (spec component C5):
// the core single-writer state machine that turns a stream of order.Event
// values into a small closed set of Notifications, grounded on the
// teacher's order manager state machine (one goroutine owns order state,
// timers post back through the same channel instead of mutating state from
// their own goroutine) and on its recent-fills tracker's sliding-window
// dedup idiom.
package aggregate

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"futures-account-monitor/internal/ttlcache"
	"futures-account-monitor/internal/tracker"
	"futures-account-monitor/internal/wsevent"
	"futures-account-monitor/order"
	"futures-account-monitor/position"
)

// AccountProvider is the subset of account.Provider the aggregator depends
// on for the total-funds denominator and the long/short notional ratio.
type AccountProvider interface {
	GetSummary(ctx context.Context) (position.AccountContext, error)
}

const (
	defaultWindow      = 10 * time.Second
	dedupTTL           = 60 * time.Second
	finalizedTTL       = 60 * time.Second
	accountFetchBudget = 2 * time.Second
)

// Aggregator is the sole mutator of every tracker.Context it owns; Submit
// hands events to it across goroutines, but all state mutation happens on
// the single goroutine running Run.
type Aggregator struct {
	tracker *tracker.Tracker
	account AccountProvider
	emit    func(Notification)
	window  time.Duration

	dedup     *ttlcache.Cache[struct{}]
	finalized *ttlcache.Cache[struct{}]

	suppressedParents  map[string]bool
	parentPresentation map[string]tracker.Presentation

	events  chan order.Event
	flushes chan flushMsg
	timers  map[string]*time.Timer

	now func() time.Time
}

// New creates an Aggregator. window is the partial-fill timeout (spec
// default 10s, 0 selects the default); account may be nil, in which case
// cumulative-quote-ratio and long/short-ratio fields are simply omitted.
func New(tr *tracker.Tracker, account AccountProvider, window time.Duration, emit func(Notification)) *Aggregator {
	if window <= 0 {
		window = defaultWindow
	}
	return &Aggregator{
		tracker:             tr,
		account:             account,
		emit:                emit,
		window:              window,
		dedup:               ttlcache.New[struct{}](dedupTTL),
		finalized:           ttlcache.New[struct{}](finalizedTTL),
		suppressedParents:   make(map[string]bool),
		parentPresentation:  make(map[string]tracker.Presentation),
		events:              make(chan order.Event, 256),
		flushes:             make(chan flushMsg, 256),
		timers:              make(map[string]*time.Timer),
		now:                 time.Now,
	}
}

// Submit enqueues an event for processing. Safe to call from any goroutine.
func (a *Aggregator) Submit(ev order.Event) {
	a.events <- ev
}

// Run drives the aggregator's serial processing loop until ctx is done.
// Must be called exactly once.
func (a *Aggregator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-a.events:
			a.handleEvent(ctx, ev)
		case msg := <-a.flushes:
			a.handleFlush(ctx, msg)
		}
	}
}

// DedupKey builds the composite identity C5 and C6 both dedup on: order
// identity plus the fields that distinguish one genuine update to that
// order from another (status, exec type, trade time, last/cumulative qty).
func DedupKey(ev order.Event) string {
	return ev.Symbol + "|" + strconv.FormatInt(ev.OrderID, 10) + "|" + ev.ClientOrderID + "|" +
		string(ev.Status) + "|" + ev.ExecType + "|" +
		strconv.FormatInt(ev.TradeTime, 10) + "|" + ev.LastQty + "|" + ev.CumulativeQty
}

func (a *Aggregator) resolvePresentation(ev order.Event) tracker.Presentation {
	category := order.Classify(ev.ClientOrderID)
	isChild := ev.OriginalClientOrderID != "" && ev.OriginalClientOrderID != ev.ClientOrderID
	if isChild && category.Kind == order.KindOther {
		if parent, ok := a.parentPresentation[ev.Symbol+":"+ev.OriginalClientOrderID]; ok {
			return parent
		}
	}
	return tracker.Presentation{Category: category, Title: order.Title(ev.Symbol, category)}
}

func (a *Aggregator) handleEvent(ctx context.Context, ev order.Event) {
	now := a.now()

	if a.dedup.Seen(DedupKey(ev), now) {
		return
	}

	presentation := a.resolvePresentation(ev)
	if presentation.Category.Source == "其他" && ev.Status == order.StatusNew {
		return
	}

	key := ev.Key()
	if ev.Status.IsTerminal() && a.finalized.Has(key, now) {
		return
	}

	isChild := ev.OriginalClientOrderID != "" && ev.OriginalClientOrderID != ev.ClientOrderID
	if isChild {
		a.suppressedParents[ev.Symbol+":"+ev.OriginalClientOrderID] = true
	} else {
		a.parentPresentation[ev.Symbol+":"+ev.ClientOrderID] = presentation
	}

	octx := a.tracker.Update(ev, presentation)

	if presentation.Category.IsStopLike() {
		a.handleStopLike(ctx, ev, octx)
	} else {
		a.handleGeneral(ctx, ev, octx)
	}
}

func (a *Aggregator) handleStopLike(ctx context.Context, ev order.Event, octx *tracker.Context) {
	switch ev.Status {
	case order.StatusNew:
		if ev.OrderType != "MARKET" && ev.OrderType != "LIMIT" {
			a.emitNow(ctx, ScenarioSLTPNew, ev, octx)
		}
	case order.StatusPartiallyFilled:
		a.scheduleTimeout(octx, ScenarioSLTPPartialTimeout)
	case order.StatusFilled:
		a.cancelTimer(octx.Key())
		if a.suppressedParents[ev.Symbol+":"+ev.ClientOrderID] {
			a.destroyContext(octx.Key())
			a.finalized.Set(octx.Key(), struct{}{}, a.now())
			return
		}
		if octx.HadPartialFill {
			a.finalize(ctx, ScenarioSLTPPartialCompleted, ev, octx)
		} else {
			a.finalize(ctx, ScenarioSLTPFilled, ev, octx)
		}
	case order.StatusCanceled:
		a.cancelTimer(octx.Key())
		if octx.HadPartialFill {
			a.finalize(ctx, ScenarioSLTPPartialCanceled, ev, octx)
		} else {
			a.finalize(ctx, ScenarioSLTPCanceled, ev, octx)
		}
	}
}

func (a *Aggregator) handleGeneral(ctx context.Context, ev order.Event, octx *tracker.Context) {
	switch ev.Status {
	case order.StatusPartiallyFilled:
		a.scheduleTimeout(octx, ScenarioGeneralTimeout)
	case order.StatusFilled:
		a.cancelTimer(octx.Key())
		if octx.HadPartialFill {
			a.finalize(ctx, ScenarioGeneralAggregated, ev, octx)
		} else {
			a.finalize(ctx, ScenarioGeneralSingle, ev, octx)
		}
	case order.StatusCanceled:
		a.cancelTimer(octx.Key())
		if octx.HadPartialFill {
			a.finalize(ctx, ScenarioGeneralPartialCanceled, ev, octx)
		} else {
			a.destroyContext(octx.Key())
		}
	}
}

// scheduleTimeout (re)arms the partial-fill deadline for a context. A fresh
// PARTIALLY_FILLED event always cancels the previous timer first.
func (a *Aggregator) scheduleTimeout(octx *tracker.Context, scenario Scenario) {
	key := octx.Key()
	a.cancelTimer(key)

	deadline := a.now().Add(a.window)
	octx.PendingDeadline = &deadline
	octx.PendingScenario = toTrackerScenario(scenario)
	a.tracker.SetContext(octx)

	a.timers[key] = time.AfterFunc(a.window, func() {
		select {
		case a.flushes <- flushMsg{key: key, scenario: scenario}:
		default:
		}
	})
}

func (a *Aggregator) cancelTimer(key string) {
	if t, ok := a.timers[key]; ok {
		t.Stop()
		delete(a.timers, key)
	}
}

// handleFlush fires when a partial-fill deadline expires. The context may
// already have been destroyed by a concurrent terminal event racing the
// timer; if so this is a no-op.
func (a *Aggregator) handleFlush(ctx context.Context, msg flushMsg) {
	delete(a.timers, msg.key)

	octx, ok := a.tracker.GetByKey(msg.key)
	if !ok {
		return
	}
	if octx.PendingScenario != toTrackerScenario(msg.scenario) {
		return
	}

	var lastEvent order.Event
	if n := len(octx.History); n > 0 {
		lastEvent = octx.History[n-1]
	}
	octx.CancelPending()
	a.finalize(ctx, msg.scenario, lastEvent, octx)
}

// finalize emits scenario's notification, then destroys the context and
// marks its key finalized so late-arriving duplicates within the window
// are dropped rather than re-emitted.
func (a *Aggregator) finalize(ctx context.Context, scenario Scenario, ev order.Event, octx *tracker.Context) {
	a.emitNow(ctx, scenario, ev, octx)
	key := octx.Key()
	a.destroyContext(key)
	a.finalized.Set(key, struct{}{}, a.now())
}

func (a *Aggregator) destroyContext(key string) {
	a.cancelTimer(key)
	a.tracker.DeleteByKey(key)
}

func (a *Aggregator) emitNow(ctx context.Context, scenario Scenario, ev order.Event, octx *tracker.Context) {
	meta, ok := scenarioMetaTable[scenario]
	if !ok {
		return
	}

	src := effectivePriceSource(meta, ev)
	price := displayPrice(src, ev, octx)

	n := Notification{
		Scenario:      scenario,
		Kind:          string(meta.kind),
		Symbol:        ev.Symbol,
		OrderID:       ev.OrderID,
		ClientOrderID: ev.ClientOrderID,
		Category:      octx.Presentation.Category,
		Title:         octx.Presentation.Title,
		StateLabel:    meta.stateLabel,
		DisplayPrice:  price.StringFixed(8),
		EventTime:     ev.TradeTimestamp(),
		Event:         ev,
	}
	if ev.Status == order.StatusExpired {
		n.ExpiryReason = wsevent.ExpiryReason(ev.ExecType)
	}

	if meta.includeCumulative && octx.CumulativeQuantity.IsPositive() && octx.CumulativeQuote.IsPositive() {
		a.fillDerivedAggregates(ctx, &n, meta, octx)
	}

	a.emit(n)
}

func (a *Aggregator) fillDerivedAggregates(ctx context.Context, n *Notification, meta scenarioMeta, octx *tracker.Context) {
	quoteAsset := quoteAssetOf(n.Symbol)
	n.CumulativeQuoteDisplay = formatQuote(octx.CumulativeQuote, quoteAsset)
	n.TradePnlDisplay = formatSignedQuote(sumRealizedPnL(octx.History), quoteAsset)

	if a.account == nil {
		return
	}
	fetchCtx, cancel := context.WithTimeout(ctx, accountFetchBudget)
	defer cancel()
	acct, err := a.account.GetSummary(fetchCtx)
	if err != nil {
		return
	}
	if acct.TotalMarginBalance.IsPositive() {
		ratio := octx.CumulativeQuote.Div(acct.TotalMarginBalance).Mul(decimal.NewFromInt(100))
		n.CumulativeQuoteRatioDisplay = ratio.StringFixed(2) + "%"
	}
	if stateLabelHasFillWord(meta.stateLabel) {
		n.LongShortRatioDisplay, n.LongShortRatioRaw = longShortRatio(acct)
	}
}
