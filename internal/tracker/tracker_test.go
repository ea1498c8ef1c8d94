package tracker

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"futures-account-monitor/order"
)

func decimalFromString(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newEvent(status order.Status, cumQty, avgPrice, lastPrice string, tradeTime int64) order.Event {
	return order.Event{
		Symbol:        "ETHUSDT",
		OrderID:       1001,
		ClientOrderID: "TP1-abc",
		Status:        status,
		CumulativeQty: cumQty,
		AveragePrice:  avgPrice,
		LastPrice:     lastPrice,
		TradeTime:     tradeTime,
	}
}

func TestUpdateCreatesContextWithPresentation(t *testing.T) {
	tr := New()
	pres := Presentation{Category: order.Classify("TP1-abc"), Title: "ETHUSDT-止盈"}
	ctx := tr.Update(newEvent(order.StatusNew, "0", "0", "0", 1000), pres)

	if ctx.Presentation.Title != "ETHUSDT-止盈" {
		t.Fatalf("presentation not applied: %+v", ctx.Presentation)
	}
	if tr.Len() != 1 {
		t.Fatalf("expected 1 context, got %d", tr.Len())
	}
}

func TestUpdateMonotonicCumulativeQuantity(t *testing.T) {
	tr := New()
	pres := Presentation{Category: order.Classify("TP1-abc")}

	ctx := tr.Update(newEvent(order.StatusPartiallyFilled, "1.5", "100", "100", 1000), pres)
	if !ctx.CumulativeQuantity.Equal(decimalFromString("1.5")) {
		t.Fatalf("cumQty = %s", ctx.CumulativeQuantity)
	}

	// a later event reporting cumQty "0" (exchange glitch) must not regress
	// the already-observed cumulative quantity.
	ctx = tr.Update(newEvent(order.StatusFilled, "0", "0", "0", 2000), pres)
	if !ctx.CumulativeQuantity.Equal(decimalFromString("1.5")) {
		t.Fatalf("cumQty regressed: %s", ctx.CumulativeQuantity)
	}
}

func TestUpdateBackfillsAveragePrice(t *testing.T) {
	tr := New()
	pres := Presentation{Category: order.Classify("TP1-abc")}

	tr.Update(newEvent(order.StatusPartiallyFilled, "1", "100", "100", 1000), pres)
	ctx := tr.Update(newEvent(order.StatusFilled, "2", "0", "0", 2000), pres)

	if !ctx.LastAveragePrice.Equal(decimalFromString("100")) {
		t.Fatalf("expected backfilled average price 100, got %s", ctx.LastAveragePrice)
	}
}

func TestUpdatePreservesNonOtherPresentation(t *testing.T) {
	tr := New()
	other := Presentation{Category: order.Classify("ORD-1")}
	tr.Update(newEvent(order.StatusNew, "0", "0", "0", 1000), other)

	tp := Presentation{Category: order.Classify("TP1-abc"), Title: "ETHUSDT-止盈"}
	ctx := tr.Update(newEvent(order.StatusFilled, "1", "100", "100", 2000), tp)

	if ctx.Presentation.Title != "ETHUSDT-止盈" {
		t.Fatalf("expected OTHER presentation to be overwritten, got %+v", ctx.Presentation)
	}
}

func TestDeleteAndGet(t *testing.T) {
	tr := New()
	ev := newEvent(order.StatusFilled, "1", "100", "100", 1000)
	tr.Update(ev, Presentation{})

	if _, ok := tr.Get("ETHUSDT", 1001, "TP1-abc"); !ok {
		t.Fatal("expected context present")
	}
	if !tr.Delete(ev) {
		t.Fatal("expected delete to report true")
	}
	if _, ok := tr.Get("ETHUSDT", 1001, "TP1-abc"); ok {
		t.Fatal("expected context gone after delete")
	}
	if tr.Delete(ev) {
		t.Fatal("second delete should report false")
	}
}

func TestCancelPending(t *testing.T) {
	ctx := &Context{}
	deadline := time.Now().Add(10 * time.Second)
	ctx.PendingDeadline = &deadline
	ctx.PendingScenario = Scenario("PARTIAL_TIMEOUT")

	ctx.CancelPending()

	if ctx.PendingDeadline != nil || ctx.PendingScenario != "" {
		t.Fatalf("expected pending cleared, got %+v", ctx)
	}
}
