package gateway

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
)

// WebhookClient POSTs a pre-built JSON payload to a notification sink with
// bounded exponential backoff, retrying on transport errors and 5xx
// responses but not on 4xx (the payload itself is the problem then).
type WebhookClient struct {
	HTTPClient  *http.Client
	BackoffBase time.Duration
	BackoffMax  time.Duration
	MaxAttempts int
}

// NewWebhookClient builds a WebhookClient with the documented defaults:
// 500ms base backoff doubling up to 5s, three attempts.
func NewWebhookClient() *WebhookClient {
	return &WebhookClient{
		HTTPClient:  &http.Client{Timeout: 5 * time.Second},
		BackoffBase: 500 * time.Millisecond,
		BackoffMax:  5 * time.Second,
		MaxAttempts: 3,
	}
}

// Send POSTs body to url as application/json, retrying per the client's
// backoff policy.
func (w *WebhookClient) Send(ctx context.Context, url string, body []byte) error {
	attempts := w.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := w.BackoffBase
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	maxBackoff := w.BackoffMax
	if maxBackoff <= 0 {
		maxBackoff = 5 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := w.attempt(ctx, url, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == attempts {
			break
		}
		if !sleepOrDone(ctx, backoff) {
			return ctx.Err()
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
	return fmt.Errorf("webhook send failed after retries: %w", lastErr)
}

type statusError struct {
	code int
}

func (e statusError) Error() string { return fmt.Sprintf("webhook status %d", e.code) }

func isRetryable(err error) bool {
	se, ok := err.(statusError)
	if !ok {
		return true // transport-level error
	}
	return se.code >= 500
}

func (w *WebhookClient) attempt(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return statusError{code: resp.StatusCode}
	}
	return nil
}
