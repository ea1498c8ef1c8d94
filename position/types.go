// Package position holds the account/position/market data model shared by
// the account metrics provider (C4), the market metrics fetcher (C10), and
// the position rule engine (C7).
package position

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarginType is the position's margin mode.
type MarginType string

const (
	MarginCross    MarginType = "cross"
	MarginIsolated MarginType = "isolated"
)

// Direction is the resolved long/short leg of a position.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// Snapshot is one symbol/direction position as reported by positionRisk,
// already resolved to baseAsset + direction.
type Snapshot struct {
	BaseAsset            string // uppercase, quote-currency stripped
	Symbol               string
	PositionAmt          decimal.Decimal // signed
	Notional             decimal.Decimal // absolute
	Leverage             decimal.Decimal
	InitialMargin        decimal.Decimal
	IsolatedMargin       decimal.Decimal
	MarginType           MarginType
	Direction            Direction
	MarkPrice            decimal.Decimal
	PredictedFundingRate *decimal.Decimal // nullable
	UpdatedAt            time.Time
}

// AccountContext is C4's cached snapshot of account + position state.
type AccountContext struct {
	TotalInitialMargin decimal.Decimal
	TotalMarginBalance decimal.Decimal
	AvailableBalance   decimal.Decimal
	Snapshots          []Snapshot
	FetchedAt          time.Time
}

// ByBaseAssetDirection groups snapshots by (baseAsset, direction).
func (a AccountContext) ByBaseAssetDirection() map[string][]Snapshot {
	out := make(map[string][]Snapshot)
	for _, s := range a.Snapshots {
		key := s.BaseAsset + ":" + string(s.Direction)
		out[key] = append(out[key], s)
	}
	return out
}

// Assets returns the distinct base assets with an open position.
func (a AccountContext) Assets() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range a.Snapshots {
		if !seen[s.BaseAsset] {
			seen[s.BaseAsset] = true
			out = append(out, s.BaseAsset)
		}
	}
	return out
}

// Symbols returns the distinct symbols with an open position.
func (a AccountContext) Symbols() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range a.Snapshots {
		if !seen[s.Symbol] {
			seen[s.Symbol] = true
			out = append(out, s.Symbol)
		}
	}
	return out
}

// Metrics is C10's per-symbol market snapshot; any field may be nil when the
// corresponding upstream observation failed or was never reported.
type Metrics struct {
	Symbol               string
	OpenInterest         *decimal.Decimal // base units
	ReferencePrice       *decimal.Decimal
	OpenInterestNotional *decimal.Decimal
	MarketCap            *decimal.Decimal
	Volume24h            *decimal.Decimal
	HHI                  *decimal.Decimal
	FetchedAt            time.Time
}
