// Package account implements the account metrics provider (spec component
// C4): a short-TTL cached, single-flighted view over account info + position
// risk, grounded on the teacher's cached-with-fallback market-data access
// pattern (a service layer never making more upstream calls than its
// consumers need, and never blocking on a query that can reuse a concurrent
// one in flight).
package account

import (
	"context"
	"fmt"
	"sync"
	"time"

	"futures-account-monitor/gateway"
	"futures-account-monitor/internal/numeric"
	"futures-account-monitor/position"
)

// Fetcher is the subset of BinanceRESTClient the provider depends on.
type Fetcher interface {
	AccountInfo(ctx context.Context) (gateway.AccountInfo, error)
	PositionRisk(ctx context.Context) ([]gateway.PositionRiskEntry, error)
	PremiumIndex(ctx context.Context, symbol string) (gateway.PremiumIndex, error)
}

// Provider caches position.AccountContext for TTL, single-flighting
// concurrent Get calls so a burst of validation ticks and dashboard reads
// never turns into a burst of REST calls.
type Provider struct {
	fetcher Fetcher
	ttl     time.Duration

	mu        sync.Mutex
	cached    position.AccountContext
	cachedAt  time.Time
	hasCached bool
	inflight  *inflightCall
}

type inflightCall struct {
	done chan struct{}
	ctx  position.AccountContext
	err  error
}

// New creates a Provider with the given cache TTL (spec default 2s).
func New(fetcher Fetcher, ttl time.Duration) *Provider {
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	return &Provider{fetcher: fetcher, ttl: ttl}
}

// GetSummary returns the account context, refreshing it from upstream if the
// cached value is older than the TTL. On a refresh failure, the last good
// cached value is returned instead (if any) so a single flaky call never
// blanks out the validation pipeline.
func (p *Provider) GetSummary(ctx context.Context) (position.AccountContext, error) {
	now := time.Now()

	p.mu.Lock()
	if p.hasCached && now.Sub(p.cachedAt) < p.ttl {
		cached := p.cached
		p.mu.Unlock()
		return cached, nil
	}
	if p.inflight != nil {
		call := p.inflight
		p.mu.Unlock()
		<-call.done
		return call.ctx, call.err
	}
	call := &inflightCall{done: make(chan struct{})}
	p.inflight = call
	p.mu.Unlock()

	ctxData, err := p.fetch(ctx)

	p.mu.Lock()
	if err == nil {
		p.cached = ctxData
		p.cachedAt = time.Now()
		p.hasCached = true
	}
	result := ctxData
	resultErr := err
	if err != nil && p.hasCached {
		result = p.cached
		resultErr = nil
	}
	call.ctx = result
	call.err = resultErr
	p.inflight = nil
	p.mu.Unlock()

	close(call.done)
	return result, resultErr
}

func (p *Provider) fetch(ctx context.Context) (position.AccountContext, error) {
	info, err := p.fetcher.AccountInfo(ctx)
	if err != nil {
		return position.AccountContext{}, fmt.Errorf("fetch account info: %w", err)
	}
	risks, err := p.fetcher.PositionRisk(ctx)
	if err != nil {
		return position.AccountContext{}, fmt.Errorf("fetch position risk: %w", err)
	}

	out := position.AccountContext{
		TotalInitialMargin: numeric.Parse(info.TotalInitialMargin),
		TotalMarginBalance: numeric.Parse(info.TotalMarginBalance),
		AvailableBalance:   numeric.Parse(info.AvailableBalance),
		FetchedAt:          time.Now().UTC(),
	}

	for _, r := range risks {
		amt := numeric.Parse(r.PositionAmt)
		if amt.IsZero() {
			continue
		}
		sign := 1
		if amt.IsNegative() {
			sign = -1
		}
		snap := position.Snapshot{
			BaseAsset:      position.BaseAsset(r.Symbol),
			Symbol:         r.Symbol,
			PositionAmt:    amt,
			Notional:       numeric.Parse(r.Notional).Abs(),
			Leverage:       numeric.Parse(r.Leverage),
			IsolatedMargin: numeric.Parse(r.IsolatedMargin),
			MarkPrice:      numeric.Parse(r.MarkPrice),
			Direction:      position.ResolveDirection(r.PositionSide, sign),
			UpdatedAt:      out.FetchedAt,
		}
		if r.MarginType == "isolated" {
			snap.MarginType = position.MarginIsolated
		} else {
			snap.MarginType = position.MarginCross
		}
		out.Snapshots = append(out.Snapshots, snap)
	}

	// per-position initial margin isn't on positionRisk; pull it from the
	// account-info positions array by symbol+side when present.
	bySymbolSide := make(map[string]string, len(info.Positions))
	for _, p := range info.Positions {
		bySymbolSide[p.Symbol+":"+p.PositionSide] = p.InitialMargin
	}
	for i := range out.Snapshots {
		s := &out.Snapshots[i]
		side := "BOTH"
		if s.Direction == position.Long {
			side = "LONG"
		} else if s.Direction == position.Short {
			side = "SHORT"
		}
		if im, ok := bySymbolSide[s.Symbol+":"+side]; ok {
			s.InitialMargin = numeric.Parse(im)
		} else if im, ok := bySymbolSide[s.Symbol+":BOTH"]; ok {
			s.InitialMargin = numeric.Parse(im)
		}
	}

	p.attachFundingRates(ctx, out.Snapshots)

	return out, nil
}

// attachFundingRates fans out one premiumIndex call per open symbol,
// populating PredictedFundingRate in place. A failed lookup for one symbol
// leaves its field nil and never aborts the others, mirroring the
// per-endpoint failure isolation in internal/marketmetrics.Fetcher.
func (p *Provider) attachFundingRates(ctx context.Context, snaps []position.Snapshot) {
	var wg sync.WaitGroup
	for i := range snaps {
		wg.Add(1)
		go func(s *position.Snapshot) {
			defer wg.Done()
			pi, err := p.fetcher.PremiumIndex(ctx, s.Symbol)
			if err != nil {
				return
			}
			rate := numeric.Parse(pi.LastFundingRate)
			s.PredictedFundingRate = &rate
		}(&snaps[i])
	}
	wg.Wait()
}
