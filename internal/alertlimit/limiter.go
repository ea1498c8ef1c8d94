// Package alertlimit implements the alert limiter (spec component C8):
// per-issue cooldown-gated alert emission plus recovery tracking, grounded
// on the teacher's risk.DrawdownManager cooldown-gated Plan() (risk/
// drawdown_manager.go) and its injectable risk.Clock (risk/clock.go) — needed
// here so tests can drive the exact t=0/30min/61min cooldown scenario from
// the spec without sleeping.
package alertlimit

import (
	"time"

	"futures-account-monitor/internal/rules"
)

// Clock abstracts time so cooldown windows can be driven deterministically
// in tests instead of by wall-clock sleeps.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock is the production Clock.
var RealClock Clock = realClock{}

// EventKind distinguishes a fresh/repeated alert from a recovery.
type EventKind string

const (
	EventAlert    EventKind = "alert"
	EventRecovery EventKind = "recovery"
)

// Event is one limiter output for a single tick.
type Event struct {
	Kind            EventKind
	Issue           rules.Issue
	Repeat          bool // true when this is a renewed alert past cooldown, not the first sighting
	FirstDetectedAt time.Time
	TriggeredAt     time.Time
}

// state is the per-issue bookkeeping the limiter carries between ticks.
type state struct {
	lastIssue        rules.Issue
	firstDetectedAt  time.Time
	lastSentAt       time.Time
	notifyOnRecovery bool
}

// Limiter tracks cooldown and recovery state per (rule, baseAsset,
// direction) identity across successive Process calls.
type Limiter struct {
	clock Clock
	floor time.Duration // minimum cooldown regardless of the issue's own cooldownMinutes
	state map[string]*state
}

// New creates a Limiter. floor, if > 0, is applied as a lower bound on every
// issue's configured cooldown (useful to guarantee a sane minimum even if a
// rule config sets cooldownMinutes=0).
func New(clock Clock, floor time.Duration) *Limiter {
	if clock == nil {
		clock = RealClock
	}
	return &Limiter{clock: clock, floor: floor, state: make(map[string]*state)}
}

// Process evaluates the current tick's issues against the limiter's
// persisted state and returns the ordered event list: every alert in the
// input order, then every recovery in state-iteration order.
func (l *Limiter) Process(issues []rules.Issue) []Event {
	now := l.clock.Now()
	seen := make(map[string]bool, len(issues))

	var alerts []Event
	for _, issue := range issues {
		key := issue.Key()
		seen[key] = true
		alerts = append(alerts, l.processOne(key, issue, now)...)
	}

	var recoveries []Event
	for key, st := range l.state {
		if seen[key] {
			continue
		}
		if st.notifyOnRecovery {
			recoveries = append(recoveries, Event{
				Kind:            EventRecovery,
				Issue:           st.lastIssue,
				FirstDetectedAt: st.firstDetectedAt,
				TriggeredAt:     now,
			})
		}
		delete(l.state, key)
	}

	return append(alerts, recoveries...)
}

func (l *Limiter) processOne(key string, issue rules.Issue, now time.Time) []Event {
	st, exists := l.state[key]
	if !exists {
		l.state[key] = &state{
			lastIssue:        issue,
			firstDetectedAt:  now,
			lastSentAt:       now,
			notifyOnRecovery: issue.NotifyOnRecovery,
		}
		return []Event{{Kind: EventAlert, Issue: issue, Repeat: false, FirstDetectedAt: now, TriggeredAt: now}}
	}

	st.lastIssue = issue
	st.notifyOnRecovery = issue.NotifyOnRecovery

	cooldown := time.Duration(issue.CooldownMinutes) * time.Minute
	if cooldown < l.floor {
		cooldown = l.floor
	}
	if now.Sub(st.lastSentAt) < cooldown {
		return nil
	}

	st.lastSentAt = now
	return []Event{{Kind: EventAlert, Issue: issue, Repeat: true, FirstDetectedAt: st.firstDetectedAt, TriggeredAt: now}}
}
