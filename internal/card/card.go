// Package card builds the opaque notification payloads handed to the alert
// sinks (webhooks). Event cards come from C6 (order lifecycle/fill
// notifications); digest cards come from C9 (position validation). Neither
// caller inspects a Card's internals beyond Title/Color/Fields — building is
// kept as its own collaborator, grounded on the teacher's infrastructure/
// alert.Alert payload shape (infrastructure/alert/manager.go) generalized
// from a flat Level/Message/Fields struct into a titled, colored, labeled
// field list suited to a chat-card webhook body.
package card

import (
	"time"

	"futures-account-monitor/internal/aggregate"
	"futures-account-monitor/internal/alertlimit"
	"futures-account-monitor/internal/rules"
)

// Field is one labeled line of a card body.
type Field struct {
	Label string
	Value string
}

// Card is the payload a sink serializes and delivers.
type Card struct {
	Title     string
	Color     string // "green", "red", "orange", "blue"
	Fields    []Field
	Timestamp time.Time
}

const (
	ColorGreen  = "green"
	ColorRed    = "red"
	ColorOrange = "orange"
	ColorBlue   = "blue"
)

var ruleLabels = map[rules.Rule]string{
	rules.RuleConfigError:        "配置冲突",
	rules.RuleWhitelistViolation: "白名单违规",
	rules.RuleBlacklistViolation: "黑名单违规",
	rules.RuleLeverageLimit:      "杠杆超限",
	rules.RuleMarginShareLimit:   "保证金占比超限",
	rules.RuleTotalMarginUsage:   "总保证金使用率超限",
	rules.RuleFundingRateLimit:   "资金费率超限",
	rules.RuleDataMissing:        "数据缺失",
	rules.RuleOIShareLimit:       "持仓占未平仓比例超限",
	rules.RuleOIMinimum:          "未平仓名义价值过低",
	rules.RuleMarketCapMinimum:   "市值过低",
	rules.RuleVolume24hMinimum:   "24小时成交量过低",
	rules.RuleConcentrationHHI:   "集中度(HHI)超限",
}

func ruleLabel(r rules.Rule) string {
	if label, ok := ruleLabels[r]; ok {
		return label
	}
	return string(r)
}

// Builder builds card payloads from C5/C9 output. Implementations may vary
// presentation (e.g. a test double that records every card it was handed)
// without changing what notify/validation do with the result.
type Builder interface {
	BuildEventCard(n aggregate.Notification) Card
	BuildDigestCard(events []alertlimit.Event) Card
}

// DefaultBuilder is the production Builder.
type DefaultBuilder struct{}

// BuildEventCard renders a single order lifecycle/fill notification.
func (DefaultBuilder) BuildEventCard(n aggregate.Notification) Card {
	color := ColorBlue
	if n.Kind == "fill" {
		color = ColorGreen
	}

	fields := []Field{
		{Label: "品种", Value: n.Symbol},
		{Label: "类型", Value: n.Title},
		{Label: "状态", Value: n.StateLabel},
	}
	if n.DisplayPrice != "" {
		fields = append(fields, Field{Label: "价格", Value: n.DisplayPrice})
	}
	if n.CumulativeQuoteDisplay != "" {
		fields = append(fields, Field{Label: "累计成交额", Value: n.CumulativeQuoteDisplay})
	}
	if n.CumulativeQuoteRatioDisplay != "" {
		fields = append(fields, Field{Label: "成交比例", Value: n.CumulativeQuoteRatioDisplay})
	}
	if n.TradePnlDisplay != "" {
		fields = append(fields, Field{Label: "已实现盈亏", Value: n.TradePnlDisplay})
	}
	if n.LongShortRatioDisplay != "" {
		fields = append(fields, Field{Label: "多空比", Value: n.LongShortRatioDisplay})
	}
	if n.ExpiryReason != "" {
		fields = append(fields, Field{Label: "过期原因", Value: n.ExpiryReason})
	}

	return Card{
		Title:     n.Title,
		Color:     color,
		Fields:    fields,
		Timestamp: n.EventTime,
	}
}

// BuildDigestCard renders one aggregated card for a validation tick's alert
// limiter output. Header color: green if every event is a recovery, red if
// any critical non-recovery event is present, orange if any warning
// non-recovery event is present, blue as the fallback (no events reaches
// here only via the caller's own "len(events) == 0" short-circuit).
func (DefaultBuilder) BuildDigestCard(events []alertlimit.Event) Card {
	color := ColorBlue
	hasCritical, hasWarning, allRecovery := false, false, len(events) > 0

	fields := make([]Field, 0, len(events))
	var latest time.Time

	for _, ev := range events {
		statusLabel := "告警"
		if ev.Kind == alertlimit.EventRecovery {
			statusLabel = "恢复"
		} else {
			allRecovery = false
			switch ev.Issue.Severity {
			case rules.SeverityCritical:
				hasCritical = true
			case rules.SeverityWarning:
				hasWarning = true
			}
		}

		value := ev.Issue.Message
		if ev.Issue.Value != nil && ev.Issue.Threshold != nil {
			value = value + " (当前 " + ev.Issue.Value.String() + " / 阈值 " + ev.Issue.Threshold.String() + ")"
		}

		label := ruleLabel(ev.Issue.Rule)
		if ev.Issue.BaseAsset != rules.AccountAsset {
			label = ev.Issue.BaseAsset + " " + label
		}

		fields = append(fields, Field{Label: label + " [" + statusLabel + "]", Value: value})

		if ev.TriggeredAt.After(latest) {
			latest = ev.TriggeredAt
		}
	}

	switch {
	case allRecovery:
		color = ColorGreen
	case hasCritical:
		color = ColorRed
	case hasWarning:
		color = ColorOrange
	}

	return Card{
		Title:     "仓位风控巡检",
		Color:     color,
		Fields:    fields,
		Timestamp: latest,
	}
}
