package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"futures-account-monitor/internal/card"
)

// webhookPoster is the subset of gateway.WebhookClient a sink needs.
type webhookPoster interface {
	Send(ctx context.Context, url string, body []byte) error
}

// WebhookSink delivers a card as a JSON POST to a fixed URL.
type WebhookSink struct {
	client webhookPoster
	url    string
}

// NewWebhookSink builds a sink bound to url.
func NewWebhookSink(client webhookPoster, url string) *WebhookSink {
	return &WebhookSink{client: client, url: url}
}

func (s *WebhookSink) Send(ctx context.Context, c card.Card) error {
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal card: %w", err)
	}
	return s.client.Send(ctx, s.url, body)
}
