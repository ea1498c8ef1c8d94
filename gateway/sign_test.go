package gateway

import (
	"strings"
	"testing"
)

func TestSignParamsDeterministic(t *testing.T) {
	orig := timeNowMillis
	timeNowMillis = func() int64 { return 1234567890000 }
	defer func() { timeNowMillis = orig }()

	query, sig := SignParams(map[string]string{"symbol": "BTCUSDT"}, 5000, "secret")
	if !strings.Contains(query, "symbol=BTCUSDT") {
		t.Fatalf("query missing symbol: %s", query)
	}
	if !strings.Contains(query, "timestamp=1234567890000") {
		t.Fatalf("query missing timestamp: %s", query)
	}
	if sig == "" {
		t.Fatal("expected non-empty signature")
	}

	_, sig2 := SignParams(map[string]string{"symbol": "BTCUSDT"}, 5000, "secret")
	if sig != sig2 {
		t.Fatal("expected deterministic signature for identical inputs")
	}

	_, sig3 := SignParams(map[string]string{"symbol": "ETHUSDT"}, 5000, "secret")
	if sig == sig3 {
		t.Fatal("expected different signature for different params")
	}
}
