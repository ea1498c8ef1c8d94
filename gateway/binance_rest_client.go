package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// BinanceRESTClient is a signed/unsigned USD-M futures REST client. Numeric
// exchange fields are left as raw JSON strings on the response structs so
// callers can route them through internal/numeric instead of losing
// precision to float64 along the way.
type BinanceRESTClient struct {
	BaseURL      string
	APIKey       string
	Secret       string
	RecvWindowMs int
	HTTPClient   *http.Client
	Limiter      RateLimiter
}

// NewDefaultHTTPClient provides an http.Client with a sane timeout.
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

func (c *BinanceRESTClient) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return NewDefaultHTTPClient()
}

func (c *BinanceRESTClient) wait() {
	if c.Limiter != nil {
		c.Limiter.Wait()
	}
}

// doSigned issues a signed request against an authenticated /fapi endpoint.
func (c *BinanceRESTClient) doSigned(ctx context.Context, method, path string, params map[string]string) ([]byte, error) {
	if params == nil {
		params = map[string]string{}
	}
	query, sig := SignParams(params, c.RecvWindowMs, c.Secret)
	endpoint := c.BaseURL + path + "?" + query + "&signature=" + url.QueryEscape(sig)
	return c.do(ctx, method, endpoint, true)
}

// doPublic issues an unsigned request against a public market-data endpoint.
func (c *BinanceRESTClient) doPublic(ctx context.Context, method, path string, params map[string]string) ([]byte, error) {
	vals := url.Values{}
	for k, v := range params {
		vals.Set(k, v)
	}
	endpoint := c.BaseURL + path
	if len(vals) > 0 {
		endpoint += "?" + vals.Encode()
	}
	return c.do(ctx, method, endpoint, false)
}

func (c *BinanceRESTClient) do(ctx context.Context, method, endpoint string, signed bool) ([]byte, error) {
	c.wait()
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", c.APIKey)
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway: %s %s status %d: %s", method, endpoint, resp.StatusCode, string(body))
	}
	return body, nil
}

// AccountPosition is one entry of the /fapi/v2/account "positions" array.
type AccountPosition struct {
	Symbol           string `json:"symbol"`
	PositionAmt      string `json:"positionAmt"`
	InitialMargin    string `json:"initialMargin"`
	MaintMargin      string `json:"maintMargin"`
	UnrealizedProfit string `json:"unrealizedProfit"`
	Leverage         string `json:"leverage"`
	Isolated         bool   `json:"isolated"`
	EntryPrice       string `json:"entryPrice"`
	PositionSide     string `json:"positionSide"`
	Notional         string `json:"notional"`
	IsolatedWallet   string `json:"isolatedWallet"`
}

// AccountInfo is the /fapi/v2/account response, trimmed to the fields the
// position-validation engine needs.
type AccountInfo struct {
	TotalInitialMargin string            `json:"totalInitialMargin"`
	TotalMaintMargin   string            `json:"totalMaintMargin"`
	TotalMarginBalance string            `json:"totalMarginBalance"`
	AvailableBalance   string            `json:"availableBalance"`
	Positions          []AccountPosition `json:"positions"`
}

// AccountInfo calls GET /fapi/v2/account.
func (c *BinanceRESTClient) AccountInfo(ctx context.Context) (AccountInfo, error) {
	var out AccountInfo
	body, err := c.doSigned(ctx, http.MethodGet, "/fapi/v2/account", nil)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("decode account info: %w", err)
	}
	return out, nil
}

// PositionRiskEntry is one entry of /fapi/v2/positionRisk.
type PositionRiskEntry struct {
	Symbol         string `json:"symbol"`
	PositionAmt    string `json:"positionAmt"`
	EntryPrice     string `json:"entryPrice"`
	MarkPrice      string `json:"markPrice"`
	Notional       string `json:"notional"`
	IsolatedMargin string `json:"isolatedMargin"`
	Leverage       string `json:"leverage"`
	MarginType     string `json:"marginType"`
	PositionSide   string `json:"positionSide"`
}

// PositionRisk calls GET /fapi/v2/positionRisk.
func (c *BinanceRESTClient) PositionRisk(ctx context.Context) ([]PositionRiskEntry, error) {
	body, err := c.doSigned(ctx, http.MethodGet, "/fapi/v2/positionRisk", nil)
	if err != nil {
		return nil, err
	}
	var out []PositionRiskEntry
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode position risk: %w", err)
	}
	return out, nil
}

// PremiumIndex is the /fapi/v1/premiumIndex response for one symbol.
type PremiumIndex struct {
	Symbol          string `json:"symbol"`
	MarkPrice       string `json:"markPrice"`
	LastFundingRate string `json:"lastFundingRate"`
}

// PremiumIndex calls GET /fapi/v1/premiumIndex?symbol=...
func (c *BinanceRESTClient) PremiumIndex(ctx context.Context, symbol string) (PremiumIndex, error) {
	var out PremiumIndex
	body, err := c.doPublic(ctx, http.MethodGet, "/fapi/v1/premiumIndex", map[string]string{"symbol": symbol})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("decode premium index: %w", err)
	}
	return out, nil
}

// OpenInterest is the /fapi/v1/openInterest response for one symbol.
type OpenInterest struct {
	Symbol       string `json:"symbol"`
	OpenInterest string `json:"openInterest"`
}

// OpenInterest calls GET /fapi/v1/openInterest?symbol=...
func (c *BinanceRESTClient) OpenInterest(ctx context.Context, symbol string) (OpenInterest, error) {
	var out OpenInterest
	body, err := c.doPublic(ctx, http.MethodGet, "/fapi/v1/openInterest", map[string]string{"symbol": symbol})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("decode open interest: %w", err)
	}
	return out, nil
}

// ApexTokenInfo is the response shape of the apex token-info endpoint used to
// source market cap, 24h volume, and market-concentration HHI, quantities
// Binance's own futures API does not report.
type ApexTokenInfo struct {
	Symbol           string `json:"symbol"`
	MarketCap        string `json:"marketCap"`
	Volume24h        string `json:"volume24h"`
	ConcentrationHHI string `json:"concentrationHhi"`
}

// ApexTokenInfo calls GET {BaseURL}/apex/v1/token-info?symbol=...
func (c *BinanceRESTClient) ApexTokenInfo(ctx context.Context, symbol string) (ApexTokenInfo, error) {
	var out ApexTokenInfo
	body, err := c.doPublic(ctx, http.MethodGet, "/apex/v1/token-info", map[string]string{"symbol": symbol})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("decode apex token info: %w", err)
	}
	return out, nil
}
