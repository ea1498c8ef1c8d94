// Package rules implements the position validation engine (spec component
// C7): a fixed battery of checks run in declared order over an
// AccountContext and an optional per-symbol position.Metrics map, producing a
// deterministic, idempotent slice of ValidationIssue values. Grounded on the
// teacher's risk.MultiGuard sequential-evaluation idiom (risk/guard.go),
// generalized here from "abort on first failing guard" to "accumulate every
// issue found".
package rules

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"futures-account-monitor/internal/positionrules"
	"futures-account-monitor/position"
)

// Rule names the closed set of checks this engine can raise.
type Rule string

const (
	RuleConfigError        Rule = "config_error"
	RuleWhitelistViolation Rule = "whitelist_violation"
	RuleBlacklistViolation Rule = "blacklist_violation"
	RuleLeverageLimit      Rule = "leverage_limit"
	RuleMarginShareLimit   Rule = "margin_share_limit"
	RuleTotalMarginUsage   Rule = "total_margin_usage"
	RuleFundingRateLimit   Rule = "funding_rate_limit"
	RuleDataMissing        Rule = "data_missing"
	RuleOIShareLimit       Rule = "oi_share_limit"
	RuleOIMinimum          Rule = "oi_minimum"
	RuleMarketCapMinimum   Rule = "market_cap_minimum"
	RuleVolume24hMinimum   Rule = "volume_24h_minimum"
	RuleConcentrationHHI   Rule = "concentration_hhi_limit"
)

// Severity is the issue's urgency.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Direction scopes an issue to a position side, or "global" for
// account-wide/per-symbol checks that aren't long/short specific.
type Direction string

const (
	DirectionLong   Direction = "long"
	DirectionShort  Direction = "short"
	DirectionGlobal Direction = "global"
)

// AccountAsset is the sentinel baseAsset used for account-wide issues.
const AccountAsset = "__account__"

// Fixed per-symbol thresholds for this release (spec §4.7).
const (
	oiShareThreshold        = "0.02"
	minOpenInterestNotional = "2000000"
	minMarketCap            = "50000000"
	minVolume24h            = "1000000"
	maxHHI                  = "0.2"
)

// Issue is one finding from a single evaluation pass.
type Issue struct {
	Rule             Rule
	BaseAsset        string
	Direction        Direction
	Severity         Severity
	Message          string
	CooldownMinutes  int
	NotifyOnRecovery bool
	Value            *decimal.Decimal
	Threshold        *decimal.Decimal
	Details          map[string]string
}

// Key returns the (rule, baseAsset, direction) identity C8 dedups and
// cools down on.
func (i Issue) Key() string {
	return string(i.Rule) + "|" + i.BaseAsset + "|" + string(i.Direction)
}

// Evaluate runs the full rule battery and returns every issue found, in the
// declared evaluation order: per-asset checks (over configured assets union
// assets with open positions), then account-wide checks, then per-symbol
// market-metrics checks.
func Evaluate(account position.AccountContext, metrics map[string]position.Metrics, rs positionrules.RuleSet) []Issue {
	var issues []Issue

	for _, asset := range assetUniverse(account, rs) {
		issues = append(issues, evaluateAsset(asset, account, rs.For(asset))...)
	}

	issues = append(issues, evaluateAccount(account, rs)...)

	for _, symbol := range account.Symbols() {
		issues = append(issues, evaluateSymbol(symbol, account, metrics[symbol])...)
	}

	return issues
}

// assetUniverse is every configured-override asset plus every asset with an
// open position, deduped and sorted for deterministic output.
func assetUniverse(account position.AccountContext, rs positionrules.RuleSet) []string {
	set := make(map[string]bool)
	for _, a := range rs.ConfiguredAssets() {
		set[a] = true
	}
	for _, a := range account.Assets() {
		set[a] = true
	}
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func evaluateAsset(asset string, account position.AccountContext, rule positionrules.AssetRule) []Issue {
	var issues []Issue
	byDir := account.ByBaseAssetDirection()
	longPos := byDir[asset+":long"]
	shortPos := byDir[asset+":short"]

	// 1. config_error: same asset in both of its own direction's lists.
	if containsAsset(rule.WhitelistLong, asset) && containsAsset(rule.BlacklistLong, asset) {
		issues = append(issues, Issue{
			Rule: RuleConfigError, BaseAsset: asset, Direction: DirectionLong, Severity: SeverityCritical,
			Message: fmt.Sprintf("%s 同时出现在多头白名单和黑名单中，配置冲突", asset),
		})
	}
	if containsAsset(rule.WhitelistShort, asset) && containsAsset(rule.BlacklistShort, asset) {
		issues = append(issues, Issue{
			Rule: RuleConfigError, BaseAsset: asset, Direction: DirectionShort, Severity: SeverityCritical,
			Message: fmt.Sprintf("%s 同时出现在空头白名单和黑名单中，配置冲突", asset),
		})
	}

	// 2. whitelist_violation
	if rule.WhitelistLong != nil && !containsAsset(rule.WhitelistLong, asset) && len(longPos) > 0 {
		issues = append(issues, Issue{
			Rule: RuleWhitelistViolation, BaseAsset: asset, Direction: DirectionLong, Severity: SeverityCritical,
			Message: fmt.Sprintf("%s 多头持仓不在白名单中", asset),
			CooldownMinutes: rule.CooldownMinutes, NotifyOnRecovery: rule.NotifyRecovery,
		})
	}
	if rule.WhitelistShort != nil && !containsAsset(rule.WhitelistShort, asset) && len(shortPos) > 0 {
		issues = append(issues, Issue{
			Rule: RuleWhitelistViolation, BaseAsset: asset, Direction: DirectionShort, Severity: SeverityCritical,
			Message: fmt.Sprintf("%s 空头持仓不在白名单中", asset),
			CooldownMinutes: rule.CooldownMinutes, NotifyOnRecovery: rule.NotifyRecovery,
		})
	}

	// 3. blacklist_violation
	if containsAsset(rule.BlacklistLong, asset) && len(longPos) > 0 {
		issues = append(issues, Issue{
			Rule: RuleBlacklistViolation, BaseAsset: asset, Direction: DirectionLong, Severity: SeverityCritical,
			Message: fmt.Sprintf("%s 多头持仓命中黑名单", asset),
			CooldownMinutes: rule.CooldownMinutes, NotifyOnRecovery: rule.NotifyRecovery,
		})
	}
	if containsAsset(rule.BlacklistShort, asset) && len(shortPos) > 0 {
		issues = append(issues, Issue{
			Rule: RuleBlacklistViolation, BaseAsset: asset, Direction: DirectionShort, Severity: SeverityCritical,
			Message: fmt.Sprintf("%s 空头持仓命中黑名单", asset),
			CooldownMinutes: rule.CooldownMinutes, NotifyOnRecovery: rule.NotifyRecovery,
		})
	}

	allPos := append(append([]position.Snapshot{}, longPos...), shortPos...)

	// 4. leverage_limit
	if rule.MaxLeverage != nil {
		for _, snap := range allPos {
			if snap.Leverage.GreaterThan(*rule.MaxLeverage) {
				v := snap.Leverage
				issues = append(issues, Issue{
					Rule: RuleLeverageLimit, BaseAsset: asset, Direction: Direction(snap.Direction), Severity: SeverityWarning,
					Message:         fmt.Sprintf("%s %s 杠杆 %s 超过上限 %s", asset, snap.Direction, snap.Leverage.String(), rule.MaxLeverage.String()),
					Value:           &v,
					Threshold:       rule.MaxLeverage,
					CooldownMinutes: rule.CooldownMinutes, NotifyOnRecovery: rule.NotifyRecovery,
				})
			}
		}
	}

	// 5. margin_share_limit
	if rule.MaxMarginShare != nil && account.TotalMarginBalance.IsPositive() {
		if share, ok := marginShare(longPos, account.TotalMarginBalance); ok && share.GreaterThan(*rule.MaxMarginShare) {
			issues = append(issues, marginShareIssue(asset, DirectionLong, share, *rule.MaxMarginShare, rule))
		}
		if share, ok := marginShare(shortPos, account.TotalMarginBalance); ok && share.GreaterThan(*rule.MaxMarginShare) {
			issues = append(issues, marginShareIssue(asset, DirectionShort, share, *rule.MaxMarginShare, rule))
		}
	}

	// 6. funding_rate_limit
	if rule.FundingThresholdShort != nil {
		for _, snap := range shortPos {
			issues = append(issues, fundingCheck(asset, DirectionShort, snap, *rule.FundingThresholdShort, false, rule)...)
		}
	}
	if rule.FundingThresholdLong != nil {
		for _, snap := range longPos {
			issues = append(issues, fundingCheck(asset, DirectionLong, snap, *rule.FundingThresholdLong, true, rule)...)
		}
	}

	return issues
}

func marginShare(snaps []position.Snapshot, totalMarginBalance decimal.Decimal) (decimal.Decimal, bool) {
	if len(snaps) == 0 {
		return decimal.Zero, false
	}
	sum := decimal.Zero
	for _, s := range snaps {
		sum = sum.Add(s.InitialMargin.Abs())
	}
	return sum.Div(totalMarginBalance), true
}

func marginShareIssue(asset string, dir Direction, share, threshold decimal.Decimal, rule positionrules.AssetRule) Issue {
	v, th := share, threshold
	return Issue{
		Rule: RuleMarginShareLimit, BaseAsset: asset, Direction: dir, Severity: SeverityWarning,
		Message:         fmt.Sprintf("%s %s 保证金占比 %s 超过上限 %s", asset, dir, share.StringFixed(4), threshold.StringFixed(4)),
		Value:           &v,
		Threshold:       &th,
		CooldownMinutes: rule.CooldownMinutes, NotifyOnRecovery: rule.NotifyRecovery,
	}
}

// fundingCheck evaluates one position's funding rate against its
// direction's threshold, raising data_missing when the rate itself wasn't
// reported rather than silently skipping the position.
func fundingCheck(asset string, dir Direction, snap position.Snapshot, threshold decimal.Decimal, isLong bool, rule positionrules.AssetRule) []Issue {
	if snap.PredictedFundingRate == nil {
		return []Issue{{
			Rule: RuleDataMissing, BaseAsset: asset, Direction: dir, Severity: SeverityCritical,
			Message: fmt.Sprintf("%s %s 缺少预测资金费率数据", asset, dir),
		}}
	}
	rate := *snap.PredictedFundingRate
	breached := false
	if isLong {
		breached = rate.GreaterThan(threshold)
	} else {
		breached = rate.LessThan(threshold)
	}
	if !breached {
		return nil
	}
	v, th := rate, threshold
	return []Issue{{
		Rule: RuleFundingRateLimit, BaseAsset: asset, Direction: dir, Severity: SeverityWarning,
		Message:         fmt.Sprintf("%s %s 预测资金费率 %s 超出阈值 %s", asset, dir, rate.String(), threshold.String()),
		Value:           &v,
		Threshold:       &th,
		CooldownMinutes: rule.CooldownMinutes, NotifyOnRecovery: rule.NotifyRecovery,
	}}
}

func evaluateAccount(account position.AccountContext, rs positionrules.RuleSet) []Issue {
	if !account.TotalMarginBalance.IsPositive() {
		return []Issue{{
			Rule: RuleDataMissing, BaseAsset: AccountAsset, Direction: DirectionGlobal, Severity: SeverityCritical,
			Message: "账户总保证金余额缺失或为零",
		}}
	}

	if rs.TotalMarginUsageLimit == nil {
		return nil
	}
	sum := decimal.Zero
	for _, s := range account.Snapshots {
		sum = sum.Add(s.InitialMargin.Abs())
	}
	usage := sum.Div(account.TotalMarginBalance)
	if usage.LessThanOrEqual(*rs.TotalMarginUsageLimit) {
		return nil
	}
	v, th := usage, *rs.TotalMarginUsageLimit
	return []Issue{{
		Rule: RuleTotalMarginUsage, BaseAsset: AccountAsset, Direction: DirectionGlobal, Severity: SeverityCritical,
		Message:   fmt.Sprintf("账户总保证金使用率 %s 超过上限 %s", usage.StringFixed(4), rs.TotalMarginUsageLimit.StringFixed(4)),
		Value:     &v,
		Threshold: &th,
	}}
}

func evaluateSymbol(symbol string, account position.AccountContext, m position.Metrics) []Issue {
	var issues []Issue
	var missing []string

	sumNotional := decimal.Zero
	for _, s := range account.Snapshots {
		if s.Symbol == symbol {
			sumNotional = sumNotional.Add(s.Notional.Abs())
		}
	}

	shareThreshold := decimal.RequireFromString(oiShareThreshold)
	minOI := decimal.RequireFromString(minOpenInterestNotional)
	minCap := decimal.RequireFromString(minMarketCap)
	minVol := decimal.RequireFromString(minVolume24h)
	maxConcentration := decimal.RequireFromString(maxHHI)

	if m.OpenInterestNotional == nil {
		missing = append(missing, "未平仓名义价值")
	} else {
		oi := *m.OpenInterestNotional
		if oi.IsPositive() {
			share := sumNotional.Div(oi)
			if share.GreaterThan(shareThreshold) {
				v, th := share, shareThreshold
				issues = append(issues, Issue{
					Rule: RuleOIShareLimit, BaseAsset: position.BaseAsset(symbol), Direction: DirectionGlobal, Severity: SeverityCritical,
					Message: fmt.Sprintf("%s 持仓占未平仓比例 %s 超过上限 %s", symbol, share.StringFixed(4), shareThreshold.String()),
					Value: &v, Threshold: &th,
				})
			}
		}
		if oi.LessThan(minOI) {
			v, th := oi, minOI
			issues = append(issues, Issue{
				Rule: RuleOIMinimum, BaseAsset: position.BaseAsset(symbol), Direction: DirectionGlobal, Severity: SeverityWarning,
				Message: fmt.Sprintf("%s 未平仓名义价值 %s 低于最小值 %s", symbol, oi.StringFixed(2), minOI.String()),
				Value: &v, Threshold: &th,
			})
		}
	}

	if m.MarketCap == nil {
		missing = append(missing, "市值")
	} else if m.MarketCap.LessThan(minCap) {
		v, th := *m.MarketCap, minCap
		issues = append(issues, Issue{
			Rule: RuleMarketCapMinimum, BaseAsset: position.BaseAsset(symbol), Direction: DirectionGlobal, Severity: SeverityWarning,
			Message: fmt.Sprintf("%s 市值 %s 低于最小值 %s", symbol, m.MarketCap.StringFixed(2), minCap.String()),
			Value: &v, Threshold: &th,
		})
	}

	if m.Volume24h == nil {
		missing = append(missing, "24小时成交量")
	} else if m.Volume24h.LessThan(minVol) {
		v, th := *m.Volume24h, minVol
		issues = append(issues, Issue{
			Rule: RuleVolume24hMinimum, BaseAsset: position.BaseAsset(symbol), Direction: DirectionGlobal, Severity: SeverityWarning,
			Message: fmt.Sprintf("%s 24小时成交量 %s 低于最小值 %s", symbol, m.Volume24h.StringFixed(2), minVol.String()),
			Value: &v, Threshold: &th,
		})
	}

	if m.HHI == nil {
		missing = append(missing, "集中度指数(HHI)")
	} else if m.HHI.GreaterThan(maxConcentration) {
		v, th := *m.HHI, maxConcentration
		issues = append(issues, Issue{
			Rule: RuleConcentrationHHI, BaseAsset: position.BaseAsset(symbol), Direction: DirectionGlobal, Severity: SeverityWarning,
			Message: fmt.Sprintf("%s 集中度指数 %s 超过上限 %s", symbol, m.HHI.StringFixed(4), maxConcentration.String()),
			Value: &v, Threshold: &th,
		})
	}

	if len(missing) > 0 {
		issues = append(issues, Issue{
			Rule: RuleDataMissing, BaseAsset: position.BaseAsset(symbol), Direction: DirectionGlobal, Severity: SeverityWarning,
			Message: fmt.Sprintf("%s 缺少以下市场指标: %v", symbol, missing),
			Details: map[string]string{"missingFields": fmt.Sprint(missing)},
		})
	}

	return issues
}

func containsAsset(list []string, asset string) bool {
	for _, a := range list {
		if a == asset {
			return true
		}
	}
	return false
}
