// Package positionrules loads and resolves the per-asset rule configuration
// consumed by the position rule engine (spec component C7): a JSON document
// with a `defaults` object plus an `overrides` map, where each override key
// behaves as "present = override, absent = inherit" — tested via explicit
// key presence in the raw JSON object, never via Go zero-value truthiness.
// Grounded on the teacher's risk-limit config shape (risk.Limits) generalized
// from a single flat struct to a per-asset, inheritance-aware one.
package positionrules

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

// AssetRule is one asset's fully resolved rule set (defaults merged with any
// override already applied).
type AssetRule struct {
	WhitelistLong  []string // nil = not defined, i.e. no whitelist restriction
	WhitelistShort []string
	BlacklistLong  []string
	BlacklistShort []string

	MaxLeverage           *decimal.Decimal
	MaxMarginShare        *decimal.Decimal
	FundingThresholdLong  *decimal.Decimal
	FundingThresholdShort *decimal.Decimal
	MinFundingRateDelta   *decimal.Decimal

	CooldownMinutes int
	NotifyRecovery  bool
}

// RuleSet is the fully resolved configuration: every configured asset's
// AssetRule plus the inherited default for assets that carry a position but
// were never explicitly configured.
type RuleSet struct {
	Defaults              AssetRule
	TotalMarginUsageLimit *decimal.Decimal
	assets                map[string]AssetRule // uppercased asset -> resolved rule
}

// For returns the resolved rule for asset, falling back to Defaults when the
// asset has no override entry.
func (rs RuleSet) For(asset string) AssetRule {
	if rule, ok := rs.assets[strings.ToUpper(asset)]; ok {
		return rule
	}
	return rs.Defaults
}

// ConfiguredAssets returns the assets that carry an explicit override entry.
func (rs RuleSet) ConfiguredAssets() []string {
	out := make([]string, 0, len(rs.assets))
	for a := range rs.assets {
		out = append(out, a)
	}
	return out
}

// rawEntry is one JSON object (defaults or a single override) kept as raw
// fields so presence can be tested key-by-key.
type rawEntry map[string]json.RawMessage

type fileConfig struct {
	Defaults  rawEntry            `json:"defaults"`
	Overrides map[string]rawEntry `json:"overrides"`
}

// Load reads and resolves the position-rules JSON document at path.
func Load(path string) (RuleSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("read position rules: %w", err)
	}
	return Parse(raw)
}

// Parse resolves a position-rules document already read into memory.
func Parse(raw []byte) (RuleSet, error) {
	var fc fileConfig
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fc); err != nil {
			return RuleSet{}, fmt.Errorf("parse position rules: %w", err)
		}
	}

	defaults, err := applyEntry(AssetRule{}, fc.Defaults)
	if err != nil {
		return RuleSet{}, fmt.Errorf("resolve defaults: %w", err)
	}

	rs := RuleSet{Defaults: defaults, assets: make(map[string]AssetRule, len(fc.Overrides))}

	if v, ok := fc.Defaults["totalMarginUsageLimit"]; ok {
		d, err := decodeDecimalPtr(v)
		if err != nil {
			return RuleSet{}, fmt.Errorf("totalMarginUsageLimit: %w", err)
		}
		rs.TotalMarginUsageLimit = d
	}

	for asset, entry := range fc.Overrides {
		resolved, err := applyEntry(defaults, entry)
		if err != nil {
			return RuleSet{}, fmt.Errorf("resolve override %s: %w", asset, err)
		}
		rs.assets[strings.ToUpper(asset)] = resolved
	}

	return rs, nil
}

// applyEntry merges entry's present keys onto base, leaving every absent key
// untouched (i.e. inherited from base).
func applyEntry(base AssetRule, entry rawEntry) (AssetRule, error) {
	out := base

	if v, ok := entry["whitelistLong"]; ok {
		list, err := decodeStringList(v)
		if err != nil {
			return out, fmt.Errorf("whitelistLong: %w", err)
		}
		out.WhitelistLong = list
	}
	if v, ok := entry["whitelistShort"]; ok {
		list, err := decodeStringList(v)
		if err != nil {
			return out, fmt.Errorf("whitelistShort: %w", err)
		}
		out.WhitelistShort = list
	}
	if v, ok := entry["blacklistLong"]; ok {
		list, err := decodeStringList(v)
		if err != nil {
			return out, fmt.Errorf("blacklistLong: %w", err)
		}
		out.BlacklistLong = list
	}
	if v, ok := entry["blacklistShort"]; ok {
		list, err := decodeStringList(v)
		if err != nil {
			return out, fmt.Errorf("blacklistShort: %w", err)
		}
		out.BlacklistShort = list
	}
	if v, ok := entry["maxLeverage"]; ok {
		d, err := decodeDecimalPtr(v)
		if err != nil {
			return out, fmt.Errorf("maxLeverage: %w", err)
		}
		out.MaxLeverage = d
	}
	if v, ok := entry["maxMarginShare"]; ok {
		d, err := decodeDecimalPtr(v)
		if err != nil {
			return out, fmt.Errorf("maxMarginShare: %w", err)
		}
		out.MaxMarginShare = d
	}
	if v, ok := entry["fundingThresholdLong"]; ok {
		d, err := decodeDecimalPtr(v)
		if err != nil {
			return out, fmt.Errorf("fundingThresholdLong: %w", err)
		}
		out.FundingThresholdLong = d
	}
	if v, ok := entry["fundingThresholdShort"]; ok {
		d, err := decodeDecimalPtr(v)
		if err != nil {
			return out, fmt.Errorf("fundingThresholdShort: %w", err)
		}
		out.FundingThresholdShort = d
	}
	if v, ok := entry["minFundingRateDelta"]; ok {
		d, err := decodeDecimalPtr(v)
		if err != nil {
			return out, fmt.Errorf("minFundingRateDelta: %w", err)
		}
		out.MinFundingRateDelta = d
	}
	if v, ok := entry["cooldownMinutes"]; ok {
		var n int
		if err := json.Unmarshal(v, &n); err != nil {
			return out, fmt.Errorf("cooldownMinutes: %w", err)
		}
		out.CooldownMinutes = n
	}
	if v, ok := entry["notifyRecovery"]; ok {
		var b bool
		if err := json.Unmarshal(v, &b); err != nil {
			return out, fmt.Errorf("notifyRecovery: %w", err)
		}
		out.NotifyRecovery = b
	}

	return out, nil
}

// decodeStringList implements the array rule: explicit empty array resolves
// to nil (not defined / no restriction); a populated array overrides,
// uppercased so asset-id comparisons are case-insensitive.
func decodeStringList(raw json.RawMessage) ([]string, error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	return out, nil
}

// decodeDecimalPtr decodes a nullable numeric field; JSON null yields a nil
// pointer (explicitly clearing any inherited value).
func decodeDecimalPtr(raw json.RawMessage) (*decimal.Decimal, error) {
	if string(raw) == "null" {
		return nil, nil
	}
	var d decimal.Decimal
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
