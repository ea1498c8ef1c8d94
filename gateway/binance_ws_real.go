package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// BinanceFuturesWSEndpoint is the production USD-M futures combined-stream
// host. Tests and alternate environments override BinanceWSReal.BaseEndpoint.
const BinanceFuturesWSEndpoint = "wss://fstream.binance.com"

// WSHandler receives raw combined-stream frames as they arrive.
type WSHandler interface {
	OnRawMessage([]byte)
}

// BinanceWSReal dials the user-data stream and reconnects with backoff on
// any dial/read error, handing every frame to the handler unparsed —
// normalization happens one layer up in internal/wsevent.
type BinanceWSReal struct {
	BaseEndpoint string
	Dialer       *websocket.Dialer

	ReconnectBackoffBase time.Duration
	ReconnectBackoffMax  time.Duration
}

// NewBinanceWSReal builds a BinanceWSReal with production defaults.
func NewBinanceWSReal() *BinanceWSReal {
	return &BinanceWSReal{
		BaseEndpoint:         BinanceFuturesWSEndpoint,
		Dialer:               websocket.DefaultDialer,
		ReconnectBackoffBase: time.Second,
		ReconnectBackoffMax:  30 * time.Second,
	}
}

// Run dials the user-data-stream listenKey and feeds every frame to handler
// until ctx is cancelled, transparently reconnecting on failure.
// listenKeyFn is invoked on every (re)connect so the caller can hand in a
// freshly created listenKey if the previous one expired.
func (b *BinanceWSReal) Run(ctx context.Context, listenKeyFn func(context.Context) (string, error), handler WSHandler) error {
	backoff := b.ReconnectBackoffBase
	if backoff <= 0 {
		backoff = time.Second
	}
	maxBackoff := b.ReconnectBackoffMax
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		listenKey, err := listenKeyFn(ctx)
		if err != nil {
			if !sleepOrDone(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}

		if err := b.runOnce(ctx, listenKey, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !sleepOrDone(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}

		backoff = b.ReconnectBackoffBase
	}
}

func (b *BinanceWSReal) runOnce(ctx context.Context, listenKey string, handler WSHandler) error {
	dialer := b.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	host := strings.TrimPrefix(b.BaseEndpoint, "wss://")
	host = strings.TrimPrefix(host, "ws://")
	u := url.URL{Scheme: "wss", Host: host, Path: "/ws/" + listenKey}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial ws: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if handler != nil {
			handler.OnRawMessage(message)
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}
