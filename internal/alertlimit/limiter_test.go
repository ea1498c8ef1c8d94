package alertlimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"futures-account-monitor/internal/rules"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func issue(rule rules.Rule, asset string, dir rules.Direction, cooldownMin int, notifyRecovery bool) rules.Issue {
	return rules.Issue{
		Rule: rule, BaseAsset: asset, Direction: dir,
		Severity: rules.SeverityCritical, Message: "test issue",
		CooldownMinutes: cooldownMin, NotifyOnRecovery: notifyRecovery,
	}
}

// Literal scenario 6 from spec §8: cooldownMinutes=0 on the issue itself but
// a 60-minute limiter floor. t=0 emits; t=30min suppresses; t=61min emits
// again with repeat=true.
func TestProcessCooldownFloorScenario(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	lim := New(clock, 60*time.Minute)

	iss := issue(rules.RuleLeverageLimit, "ETH", rules.DirectionLong, 0, true)

	events := lim.Process([]rules.Issue{iss})
	require.Len(t, events, 1)
	require.Equal(t, EventAlert, events[0].Kind)
	require.False(t, events[0].Repeat)

	clock.advance(30 * time.Minute)
	events = lim.Process([]rules.Issue{iss})
	require.Empty(t, events, "still within the 60 minute floor, must suppress")

	clock.advance(31 * time.Minute) // total elapsed 61 minutes
	events = lim.Process([]rules.Issue{iss})
	require.Len(t, events, 1)
	require.Equal(t, EventAlert, events[0].Kind)
	require.True(t, events[0].Repeat)
}

func TestProcessNewKeyAlwaysAlerts(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	lim := New(clock, 0)

	a := issue(rules.RuleWhitelistViolation, "DOGE", rules.DirectionLong, 15, false)
	b := issue(rules.RuleBlacklistViolation, "SHIB", rules.DirectionShort, 15, false)

	events := lim.Process([]rules.Issue{a, b})
	require.Len(t, events, 2)
	require.Equal(t, EventAlert, events[0].Kind)
	require.Equal(t, EventAlert, events[1].Kind)
	require.False(t, events[0].Repeat)
	require.False(t, events[1].Repeat)
}

func TestProcessResolvedIssueEmitsRecoveryOnlyWhenEnabled(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	lim := New(clock, 0)

	withRecovery := issue(rules.RuleLeverageLimit, "ETH", rules.DirectionLong, 15, true)
	withoutRecovery := issue(rules.RuleMarginShareLimit, "BTC", rules.DirectionLong, 15, false)

	_ = lim.Process([]rules.Issue{withRecovery, withoutRecovery})

	// Both issues resolved on the next tick.
	events := lim.Process(nil)
	require.Len(t, events, 1, "only the issue with NotifyOnRecovery should emit a recovery event")
	require.Equal(t, EventRecovery, events[0].Kind)
	require.Equal(t, "ETH", events[0].Issue.BaseAsset)

	// State is dropped either way: a third tick re-raising the same issue
	// without recovery must be treated as brand new.
	events = lim.Process([]rules.Issue{withoutRecovery})
	require.Len(t, events, 1)
	require.False(t, events[0].Repeat, "state was cleared on recovery, so this re-occurrence starts fresh")
}

func TestProcessOrdersAlertsBeforeRecoveries(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	lim := New(clock, 0)

	resolved := issue(rules.RuleLeverageLimit, "ETH", rules.DirectionLong, 15, true)
	_ = lim.Process([]rules.Issue{resolved})

	fresh := issue(rules.RuleWhitelistViolation, "DOGE", rules.DirectionLong, 15, false)
	events := lim.Process([]rules.Issue{fresh})

	require.Len(t, events, 2)
	require.Equal(t, EventAlert, events[0].Kind)
	require.Equal(t, EventRecovery, events[1].Kind)
}
