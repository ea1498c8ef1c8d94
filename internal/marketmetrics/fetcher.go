// Package marketmetrics implements the market metrics fetcher (spec
// component C10): per-symbol, per-endpoint TTL-cached lookups of futures
// open interest and apex token info, fanned out over a bounded worker pool.
// Grounded on the teacher's internal/risk guard-evaluation fan-out idiom,
// generalized from a fixed risk-guard list to an arbitrary symbol set
// dispatched across a small fixed number of workers.
package marketmetrics

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"futures-account-monitor/internal/numeric"
	"futures-account-monitor/internal/ttlcache"
	"futures-account-monitor/position"
)

// DefaultTTL is the per-endpoint cache lifetime.
const DefaultTTL = 180 * time.Second

// DefaultWorkers bounds fetch concurrency.
const DefaultWorkers = 5

// OpenInterestResult is the parsed open-interest observation for a symbol.
type OpenInterestResult struct {
	OpenInterest decimal.Decimal
}

// TokenInfoResult is the parsed apex token-info observation for a symbol.
type TokenInfoResult struct {
	MarketCap decimal.Decimal
	Volume24h decimal.Decimal
	HHI       decimal.Decimal
}

// ReferencePriceResult is the parsed premium-index mark price for a symbol,
// used to translate open interest (base units) into notional terms.
type ReferencePriceResult struct {
	ReferencePrice decimal.Decimal
}

// Source is the upstream the fetcher pulls from (GatewaySource adapts
// gateway.BinanceRESTClient to it by parsing the client's raw wire fields).
type Source interface {
	OpenInterest(ctx context.Context, symbol string) (OpenInterestResult, error)
	TokenInfo(ctx context.Context, symbol string) (TokenInfoResult, error)
	ReferencePrice(ctx context.Context, symbol string) (ReferencePriceResult, error)
}

// Fetcher produces position.Metrics for a symbol set, caching each endpoint
// independently and bounding concurrent upstream calls.
type Fetcher struct {
	source  Source
	logger  *zap.Logger
	workers int
	ttl     time.Duration

	oiCache    *ttlcache.Cache[OpenInterestResult]
	tokenCache *ttlcache.Cache[TokenInfoResult]
	refCache   *ttlcache.Cache[ReferencePriceResult]
}

// New creates a Fetcher. ttl and workers fall back to the package defaults
// when zero.
func New(source Source, logger *zap.Logger, ttl time.Duration, workers int) *Fetcher {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Fetcher{
		source:     source,
		logger:     logger,
		workers:    workers,
		ttl:        ttl,
		oiCache:    ttlcache.New[OpenInterestResult](ttl),
		tokenCache: ttlcache.New[TokenInfoResult](ttl),
		refCache:   ttlcache.New[ReferencePriceResult](ttl),
	}
}

// Fetch returns a Metrics snapshot per symbol, dispatching cache misses
// across a bounded worker pool. A fetch failure for an individual endpoint
// leaves that field nil and is logged at warn, never aborting the batch.
func (f *Fetcher) Fetch(ctx context.Context, symbols []string) map[string]position.Metrics {
	out := make(map[string]position.Metrics, len(symbols))
	var mu sync.Mutex

	jobs := make(chan string)
	var wg sync.WaitGroup

	workers := f.workers
	if workers > len(symbols) {
		workers = len(symbols)
	}
	if workers < 1 {
		workers = 1
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				m := f.fetchOne(ctx, symbol)
				mu.Lock()
				out[symbol] = m
				mu.Unlock()
			}
		}()
	}

	for _, s := range symbols {
		jobs <- s
	}
	close(jobs)
	wg.Wait()

	return out
}

func (f *Fetcher) fetchOne(ctx context.Context, symbol string) position.Metrics {
	m := position.Metrics{Symbol: symbol, FetchedAt: time.Now()}
	now := time.Now()

	if oi, ok := f.oiCache.Get(symbol, now); ok {
		v := oi.OpenInterest
		m.OpenInterest = &v
	} else if res, err := f.source.OpenInterest(ctx, symbol); err != nil {
		f.warn(symbol, "open_interest", err)
	} else {
		f.oiCache.Set(symbol, res, now)
		v := res.OpenInterest
		m.OpenInterest = &v
	}

	if tok, ok := f.tokenCache.Get(symbol, now); ok {
		marketCap, volume, hhi := tok.MarketCap, tok.Volume24h, tok.HHI
		m.MarketCap = &marketCap
		m.Volume24h = &volume
		m.HHI = &hhi
	} else if res, err := f.source.TokenInfo(ctx, symbol); err != nil {
		f.warn(symbol, "apex_token_info", err)
	} else {
		f.tokenCache.Set(symbol, res, now)
		marketCap, volume, hhi := res.MarketCap, res.Volume24h, res.HHI
		m.MarketCap = &marketCap
		m.Volume24h = &volume
		m.HHI = &hhi
	}

	if ref, ok := f.refCache.Get(symbol, now); ok {
		v := ref.ReferencePrice
		m.ReferencePrice = &v
	} else if res, err := f.source.ReferencePrice(ctx, symbol); err != nil {
		f.warn(symbol, "premium_index", err)
	} else {
		f.refCache.Set(symbol, res, now)
		v := res.ReferencePrice
		m.ReferencePrice = &v
	}

	if m.OpenInterest != nil && m.ReferencePrice != nil {
		notional := m.OpenInterest.Mul(*m.ReferencePrice)
		m.OpenInterestNotional = &notional
	}

	return m
}

func (f *Fetcher) warn(symbol, endpoint string, err error) {
	if f.logger == nil {
		return
	}
	f.logger.Warn("market metrics fetch failed",
		zap.String("symbol", symbol),
		zap.String("endpoint", endpoint),
		zap.Error(err),
	)
}

// ParseOpenInterest and ParseTokenInfo adapt raw wire strings (which may
// carry thousands separators) into the fetcher's result types, used by
// GatewaySource.
func ParseOpenInterest(symbol, openInterest string) (OpenInterestResult, error) {
	v, err := numeric.ParseThousands(openInterest)
	if err != nil {
		return OpenInterestResult{}, err
	}
	return OpenInterestResult{OpenInterest: v}, nil
}

func ParseTokenInfo(marketCap, volume24h, hhi string) (TokenInfoResult, error) {
	cap, err := numeric.ParseThousands(marketCap)
	if err != nil {
		return TokenInfoResult{}, err
	}
	vol, err := numeric.ParseThousands(volume24h)
	if err != nil {
		return TokenInfoResult{}, err
	}
	h, err := numeric.ParseThousands(hhi)
	if err != nil {
		return TokenInfoResult{}, err
	}
	return TokenInfoResult{MarketCap: cap, Volume24h: vol, HHI: h}, nil
}

// ParseReferencePrice adapts a premium-index mark-price wire string into the
// fetcher's result type.
func ParseReferencePrice(symbol, markPrice string) (ReferencePriceResult, error) {
	v, err := numeric.ParseThousands(markPrice)
	if err != nil {
		return ReferencePriceResult{}, err
	}
	return ReferencePriceResult{ReferencePrice: v}, nil
}
