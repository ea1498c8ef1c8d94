// Package notify implements the notification dispatcher (spec component
// C6): routes a fully-built order notification to one of two sinks based on
// its kind, deduplicating independently of the aggregator's own dedup so a
// stream replay or aggregator flush/event race never produces a duplicate
// delivery. Grounded on the teacher's infrastructure/alert.Manager fan-out
// shape (infrastructure/alert/manager.go), generalized from a single
// throttled channel list into two independently-deduped sinks.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"futures-account-monitor/internal/aggregate"
	"futures-account-monitor/internal/card"
	"futures-account-monitor/internal/ttlcache"
)

// DedupWindow is the default TTL for the dispatcher's own event-identity
// dedup, independent of the aggregator's.
const DedupWindow = 60 * time.Second

// Sink delivers a built card to its destination (a webhook, a log line, a
// test recorder).
type Sink interface {
	Send(ctx context.Context, c card.Card) error
}

// Dispatcher routes notifications to the lifecycle or fill sink.
type Dispatcher struct {
	builder card.Builder
	logger  *zap.Logger

	lifecycleSink Sink
	fillSink      Sink

	lifecycleSeen *ttlcache.Cache[struct{}]
	fillSeen      *ttlcache.Cache[struct{}]
}

// New creates a Dispatcher. builder may be nil, in which case
// card.DefaultBuilder{} is used.
func New(lifecycleSink, fillSink Sink, builder card.Builder, logger *zap.Logger) *Dispatcher {
	if builder == nil {
		builder = card.DefaultBuilder{}
	}
	return &Dispatcher{
		builder:       builder,
		logger:        logger,
		lifecycleSink: lifecycleSink,
		fillSink:      fillSink,
		lifecycleSeen: ttlcache.New[struct{}](DedupWindow),
		fillSeen:      ttlcache.New[struct{}](DedupWindow),
	}
}

// Dispatch delivers n to its sink, deduplicating on the same composite
// fields C5's own dedup uses (order identity, status, exec type, trade time,
// last/cumulative qty) plus scenario, so a redelivered or replayed
// notification is dropped silently without also collapsing two distinct,
// legitimate notifications for the same order (e.g. a fresh partial fill
// arriving within the dedup window of an earlier one).
func (d *Dispatcher) Dispatch(ctx context.Context, n aggregate.Notification) {
	now := time.Now()
	key := aggregate.DedupKey(n.Event) + "|" + string(n.Scenario)

	sink := d.lifecycleSink
	seen := d.lifecycleSeen
	if n.Kind == "fill" {
		sink = d.fillSink
		seen = d.fillSeen
	}

	if sink == nil {
		return
	}
	if seen.Seen(key, now) {
		return
	}

	c := d.builder.BuildEventCard(n)
	if err := sink.Send(ctx, c); err != nil && d.logger != nil {
		d.logger.Warn("notification delivery failed",
			zap.String("kind", n.Kind),
			zap.String("symbol", n.Symbol),
			zap.String("scenario", string(n.Scenario)),
			zap.Error(err),
		)
	}
}
