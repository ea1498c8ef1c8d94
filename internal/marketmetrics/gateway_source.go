package marketmetrics

import (
	"context"

	"futures-account-monitor/gateway"
)

// GatewaySource adapts gateway.BinanceRESTClient to Source, parsing its raw
// decimal-string wire fields (which may carry thousands separators) into
// decimal.Decimal.
type GatewaySource struct {
	Client *gateway.BinanceRESTClient
}

func (s GatewaySource) OpenInterest(ctx context.Context, symbol string) (OpenInterestResult, error) {
	raw, err := s.Client.OpenInterest(ctx, symbol)
	if err != nil {
		return OpenInterestResult{}, err
	}
	return ParseOpenInterest(symbol, raw.OpenInterest)
}

func (s GatewaySource) TokenInfo(ctx context.Context, symbol string) (TokenInfoResult, error) {
	raw, err := s.Client.ApexTokenInfo(ctx, symbol)
	if err != nil {
		return TokenInfoResult{}, err
	}
	return ParseTokenInfo(raw.MarketCap, raw.Volume24h, raw.ConcentrationHHI)
}

func (s GatewaySource) ReferencePrice(ctx context.Context, symbol string) (ReferencePriceResult, error) {
	raw, err := s.Client.PremiumIndex(ctx, symbol)
	if err != nil {
		return ReferencePriceResult{}, err
	}
	return ParseReferencePrice(symbol, raw.MarkPrice)
}
