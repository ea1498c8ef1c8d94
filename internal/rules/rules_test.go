package rules

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"futures-account-monitor/internal/positionrules"
	"futures-account-monitor/position"
)

func mustRuleSet(t *testing.T, doc string) positionrules.RuleSet {
	t.Helper()
	rs, err := positionrules.Parse([]byte(doc))
	require.NoError(t, err)
	return rs
}

func findIssue(issues []Issue, rule Rule, asset string, dir Direction) (Issue, bool) {
	for _, i := range issues {
		if i.Rule == rule && i.BaseAsset == asset && i.Direction == dir {
			return i, true
		}
	}
	return Issue{}, false
}

// Literal scenario 5 from spec §8: whitelist=["BTC"], maxLeverage=3, one ETH
// long position at leverage 5 and a margin share above 5%.
func TestEvaluateWhitelistLeverageMarginShareScenario(t *testing.T) {
	rs := mustRuleSet(t, `{"defaults": {"whitelistLong": ["BTC"], "maxLeverage": 3, "maxMarginShare": 0.05}}`)

	account := position.AccountContext{
		TotalMarginBalance: decimal.NewFromInt(1000),
		Snapshots: []position.Snapshot{
			{
				BaseAsset: "ETH", Symbol: "ETHUSDT", Direction: position.Long,
				Leverage: decimal.NewFromInt(5), InitialMargin: decimal.NewFromInt(100),
				Notional: decimal.NewFromInt(500),
			},
		},
	}

	issues := Evaluate(account, nil, rs)

	_, hasWhitelist := findIssue(issues, RuleWhitelistViolation, "ETH", DirectionLong)
	require.True(t, hasWhitelist, "ETH not in whitelist should raise whitelist_violation")

	_, hasLeverage := findIssue(issues, RuleLeverageLimit, "ETH", DirectionLong)
	require.True(t, hasLeverage, "leverage 5 > max 3 should raise leverage_limit")

	_, hasMarginShare := findIssue(issues, RuleMarginShareLimit, "ETH", DirectionLong)
	require.True(t, hasMarginShare, "100/1000=0.10 > 0.05 should raise margin_share_limit")
}

func TestEvaluateZeroMarginBalanceRaisesDataMissingNotUsage(t *testing.T) {
	rs := mustRuleSet(t, `{"defaults": {"totalMarginUsageLimit": 0.5}}`)
	account := position.AccountContext{TotalMarginBalance: decimal.Zero}

	issues := Evaluate(account, nil, rs)

	_, hasMissing := findIssue(issues, RuleDataMissing, AccountAsset, DirectionGlobal)
	require.True(t, hasMissing)
	_, hasUsage := findIssue(issues, RuleTotalMarginUsage, AccountAsset, DirectionGlobal)
	require.False(t, hasUsage, "total_margin_usage must not fire when balance is zero")
}

func TestEvaluateConfigErrorOnlyFlagsAssetInBothOwnDirectionLists(t *testing.T) {
	rs := mustRuleSet(t, `{"overrides": {"ETH": {"whitelistLong": ["ETH"], "blacklistLong": ["ETH"]}}}`)
	account := position.AccountContext{TotalMarginBalance: decimal.NewFromInt(1000)}

	issues := Evaluate(account, nil, rs)

	_, has := findIssue(issues, RuleConfigError, "ETH", DirectionLong)
	require.True(t, has)
}

func TestEvaluateBlacklistViolationOnlyWhenPositionOpen(t *testing.T) {
	rs := mustRuleSet(t, `{"defaults": {"blacklistLong": ["DOGE"]}}`)
	account := position.AccountContext{TotalMarginBalance: decimal.NewFromInt(1000)}

	issues := Evaluate(account, nil, rs)
	_, has := findIssue(issues, RuleBlacklistViolation, "DOGE", DirectionLong)
	require.False(t, has, "no open position means nothing to flag even for a configured asset")
}

func TestEvaluateSymbolMetricsDataMissingAggregatesFields(t *testing.T) {
	rs := mustRuleSet(t, `{}`)
	account := position.AccountContext{
		TotalMarginBalance: decimal.NewFromInt(1000),
		Snapshots: []position.Snapshot{
			{BaseAsset: "BTC", Symbol: "BTCUSDT", Direction: position.Long, Notional: decimal.NewFromInt(100)},
		},
	}

	issues := Evaluate(account, map[string]position.Metrics{}, rs)

	issue, has := findIssue(issues, RuleDataMissing, "BTC", DirectionGlobal)
	require.True(t, has)
	require.Contains(t, issue.Message, "未平仓名义价值")
	require.Contains(t, issue.Message, "市值")
}

func TestEvaluateFundingRateMissingRaisesDataMissing(t *testing.T) {
	rs := mustRuleSet(t, `{"defaults": {"fundingThresholdShort": -0.001}}`)
	account := position.AccountContext{
		TotalMarginBalance: decimal.NewFromInt(1000),
		Snapshots: []position.Snapshot{
			{BaseAsset: "ETH", Symbol: "ETHUSDT", Direction: position.Short, Notional: decimal.NewFromInt(100)},
		},
	}

	issues := Evaluate(account, nil, rs)
	_, has := findIssue(issues, RuleDataMissing, "ETH", DirectionShort)
	require.True(t, has, "nil predicted funding rate with a configured threshold raises data_missing")
}
