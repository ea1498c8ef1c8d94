package aggregate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"futures-account-monitor/internal/tracker"
	"futures-account-monitor/order"
	"futures-account-monitor/position"
)

type collector struct {
	mu   sync.Mutex
	seen []Notification
}

func (c *collector) emit(n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, n)
}

func (c *collector) all() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.seen))
	copy(out, c.seen)
	return out
}

func waitFor(t *testing.T, c *collector, n int) []Notification {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := c.all(); len(got) >= n {
			return got
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d notifications, got %d", n, len(c.all()))
	return nil
}

type stubAccount struct {
	acct position.AccountContext
}

func (s stubAccount) GetSummary(ctx context.Context) (position.AccountContext, error) {
	return s.acct, nil
}

func newTestAggregator(window time.Duration, emit func(Notification)) (*Aggregator, context.CancelFunc) {
	acct := stubAccount{acct: position.AccountContext{TotalMarginBalance: decimal.RequireFromString("10000")}}
	agg := New(tracker.New(), acct, window, emit)
	ctx, cancel := context.WithCancel(context.Background())
	go agg.Run(ctx)
	return agg, cancel
}

func generalEvent(status order.Status, cumQty, lastQty, avgPrice string) order.Event {
	return order.Event{
		Symbol:        "ETHUSDT",
		OrderID:       1001,
		ClientOrderID: "abc123",
		Status:        status,
		Side:          order.SideBuy,
		OrderType:     "LIMIT",
		ExecType:      "TRADE",
		CumulativeQty: cumQty,
		LastQty:       lastQty,
		AveragePrice:  avgPrice,
		OrderPrice:    "2000",
		TradeTime:     1,
	}
}

func TestGeneralSingleFillEmitsImmediately(t *testing.T) {
	c := &collector{}
	agg, cancel := newTestAggregator(50*time.Millisecond, c.emit)
	defer cancel()

	agg.Submit(generalEvent(order.StatusFilled, "1.5", "1.5", "2001.5"))

	got := waitFor(t, c, 1)
	if got[0].Scenario != ScenarioGeneralSingle {
		t.Fatalf("expected %s, got %s", ScenarioGeneralSingle, got[0].Scenario)
	}
	if got[0].StateLabel != "成交" {
		t.Fatalf("unexpected state label: %s", got[0].StateLabel)
	}
}

func TestGeneralAggregatedAfterPartialThenFill(t *testing.T) {
	c := &collector{}
	agg, cancel := newTestAggregator(200*time.Millisecond, c.emit)
	defer cancel()

	agg.Submit(generalEvent(order.StatusPartiallyFilled, "1.0", "1.0", "2000"))
	time.Sleep(10 * time.Millisecond)
	agg.Submit(generalEvent(order.StatusFilled, "2.0", "1.0", "2002"))

	got := waitFor(t, c, 1)
	if got[0].Scenario != ScenarioGeneralAggregated {
		t.Fatalf("expected %s, got %s", ScenarioGeneralAggregated, got[0].Scenario)
	}
	if got[0].CumulativeQuoteDisplay == "" {
		t.Fatalf("expected cumulative quote to be populated for an aggregated fill")
	}
}

func TestPartialFillTimeoutFiresAfterWindow(t *testing.T) {
	c := &collector{}
	agg, cancel := newTestAggregator(20*time.Millisecond, c.emit)
	defer cancel()

	agg.Submit(generalEvent(order.StatusPartiallyFilled, "1.0", "1.0", "2000"))

	got := waitFor(t, c, 1)
	if got[0].Scenario != ScenarioGeneralTimeout {
		t.Fatalf("expected %s, got %s", ScenarioGeneralTimeout, got[0].Scenario)
	}
}

func TestPartialFillTimerResetsOnFreshPartial(t *testing.T) {
	c := &collector{}
	agg, cancel := newTestAggregator(30*time.Millisecond, c.emit)
	defer cancel()

	agg.Submit(generalEvent(order.StatusPartiallyFilled, "1.0", "1.0", "2000"))
	time.Sleep(20 * time.Millisecond)
	agg.Submit(generalEvent(order.StatusPartiallyFilled, "2.0", "1.0", "2001"))

	got := waitFor(t, c, 1)
	if len(got) != 1 {
		t.Fatalf("expected exactly one timeout emission, got %d", len(got))
	}
	if got[0].Scenario != ScenarioGeneralTimeout {
		t.Fatalf("expected %s, got %s", ScenarioGeneralTimeout, got[0].Scenario)
	}
}

func stopEvent(clientID, originalClientID string, status order.Status, orderID int64) order.Event {
	return order.Event{
		Symbol:                "BTCUSDT",
		OrderID:                orderID,
		ClientOrderID:          clientID,
		OriginalClientOrderID:  originalClientID,
		Status:                 status,
		Side:                   order.SideSell,
		OrderType:              "STOP_MARKET",
		ExecType:               "TRADE",
		CumulativeQty:          "1.0",
		LastQty:                "1.0",
		AveragePrice:           "30000",
		StopPrice:              "29500",
		TradeTime:              1,
	}
}

func TestStopChildFillSuppressesParentFill(t *testing.T) {
	c := &collector{}
	agg, cancel := newTestAggregator(50*time.Millisecond, c.emit)
	defer cancel()

	// child execution announces its own fill, marking the parent suppressed.
	child := stopEvent("xyz999", "SL1", order.StatusFilled, 2002)
	child.OrderType = "MARKET"
	agg.Submit(child)

	got := waitFor(t, c, 1)
	if got[0].ClientOrderID != "xyz999" {
		t.Fatalf("expected the child fill notification first, got %+v", got[0])
	}

	// the parent's own FILLED event arrives afterwards and must be dropped.
	parent := stopEvent("SL1", "", order.StatusFilled, 2001)
	agg.Submit(parent)

	time.Sleep(30 * time.Millisecond)
	if len(c.all()) != 1 {
		t.Fatalf("expected the suppressed parent fill to produce no extra notification, got %d", len(c.all()))
	}
}

func TestStopNewEmitsLifecycleNotification(t *testing.T) {
	c := &collector{}
	agg, cancel := newTestAggregator(50*time.Millisecond, c.emit)
	defer cancel()

	ev := stopEvent("SL1", "", order.StatusNew, 3001)
	ev.CumulativeQty = "0"
	ev.LastQty = "0"
	ev.AveragePrice = "0"
	agg.Submit(ev)

	got := waitFor(t, c, 1)
	if got[0].Scenario != ScenarioSLTPNew {
		t.Fatalf("expected %s, got %s", ScenarioSLTPNew, got[0].Scenario)
	}
}

func mustDecimal(s string) (d decimal.Decimal) {
	return decimal.RequireFromString(s)
}
