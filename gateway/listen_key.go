package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ListenKeyClient manages the listenKey lifecycle (create, keepalive,
// destroy) for the USD-M futures user-data stream. Keys must be refreshed at
// least every 60 minutes or the exchange closes the stream.
type ListenKeyClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewListenKeyHTTPClient provides an http.Client tuned for the short,
// frequent listenKey calls.
func NewListenKeyHTTPClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Second}
}

func (c *ListenKeyClient) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return NewListenKeyHTTPClient()
}

type listenKeyResp struct {
	ListenKey string `json:"listenKey"`
}

func (c *ListenKeyClient) call(ctx context.Context, method string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+"/fapi/v1/listenKey", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-MBX-APIKEY", c.APIKey)
	resp, err := c.client().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("listenKey %s status %d", method, resp.StatusCode)
	}
	if method == http.MethodDelete {
		return "", nil
	}
	var out listenKeyResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode listenKey response: %w", err)
	}
	return out.ListenKey, nil
}

// Create calls POST /fapi/v1/listenKey to obtain a new listenKey.
func (c *ListenKeyClient) Create(ctx context.Context) (string, error) {
	return c.call(ctx, http.MethodPost)
}

// Keepalive calls PUT /fapi/v1/listenKey to extend the current listenKey's
// validity by another 60 minutes.
func (c *ListenKeyClient) Keepalive(ctx context.Context) error {
	_, err := c.call(ctx, http.MethodPut)
	return err
}

// Close calls DELETE /fapi/v1/listenKey to explicitly terminate the stream.
func (c *ListenKeyClient) Close(ctx context.Context) error {
	_, err := c.call(ctx, http.MethodDelete)
	return err
}
