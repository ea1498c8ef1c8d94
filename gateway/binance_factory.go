package gateway

import "net/http"

// Clients bundles every gateway collaborator the container wires into the
// aggregation and validation engines.
type Clients struct {
	REST      *BinanceRESTClient
	ListenKey *ListenKeyClient
	WS        *BinanceWSReal
	Webhook   *WebhookClient
}

// BuildConfig is the minimal set of fields BuildRealBinanceClients needs;
// config.AppConfig satisfies it via an adapter in the container package so
// this package does not import config (and invert the dependency).
type BuildConfig struct {
	APIKey       string
	APISecret    string
	RestURL      string
	WSEndpoint   string
	RecvWindowMs int
}

// BuildRealBinanceClients constructs REST/ListenKey/WS/Webhook clients
// against real endpoints. The caller may pass a custom *http.Client (proxy,
// custom timeout); otherwise a sane default is used.
func BuildRealBinanceClients(cfg BuildConfig, httpCli *http.Client) Clients {
	if httpCli == nil {
		httpCli = NewDefaultHTTPClient()
	}
	rest := &BinanceRESTClient{
		BaseURL:      cfg.RestURL,
		APIKey:       cfg.APIKey,
		Secret:       cfg.APISecret,
		RecvWindowMs: cfg.RecvWindowMs,
		HTTPClient:   httpCli,
		Limiter:      NewTokenBucketLimiter(10, 20),
	}
	lk := &ListenKeyClient{
		BaseURL:    cfg.RestURL,
		APIKey:     cfg.APIKey,
		HTTPClient: NewListenKeyHTTPClient(),
	}
	ws := NewBinanceWSReal()
	if cfg.WSEndpoint != "" {
		ws.BaseEndpoint = cfg.WSEndpoint
	}
	return Clients{REST: rest, ListenKey: lk, WS: ws, Webhook: NewWebhookClient()}
}
