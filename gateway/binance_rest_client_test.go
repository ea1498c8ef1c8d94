package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAccountInfoSignsRequest(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "signature=") {
			t.Fatalf("missing signature in query: %s", r.URL.RawQuery)
		}
		if r.Header.Get("X-MBX-APIKEY") != "key" {
			t.Fatalf("missing api key header")
		}
		io.WriteString(w, `{"totalInitialMargin":"10","totalMarginBalance":"100","availableBalance":"90","positions":[{"symbol":"ETHUSDT","positionAmt":"1.5"}]}`)
	}))
	defer ts.Close()

	cli := &BinanceRESTClient{BaseURL: ts.URL, APIKey: "key", Secret: "secret", HTTPClient: ts.Client()}
	info, err := cli.AccountInfo(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.TotalMarginBalance != "100" || len(info.Positions) != 1 {
		t.Fatalf("unexpected account info: %+v", info)
	}
}

func TestPositionRisk(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"symbol":"ETHUSDT","positionAmt":"1.5","markPrice":"2000","leverage":"10"}]`)
	}))
	defer ts.Close()

	cli := &BinanceRESTClient{BaseURL: ts.URL, APIKey: "key", Secret: "secret", HTTPClient: ts.Client()}
	out, err := cli.PositionRisk(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Symbol != "ETHUSDT" {
		t.Fatalf("unexpected position risk: %+v", out)
	}
}

func TestOpenInterestAndPremiumIndexArePublic(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-MBX-APIKEY") != "" {
			t.Fatalf("public endpoint should not carry api key header")
		}
		switch {
		case strings.Contains(r.URL.Path, "openInterest"):
			io.WriteString(w, `{"symbol":"ETHUSDT","openInterest":"1234.5"}`)
		case strings.Contains(r.URL.Path, "premiumIndex"):
			io.WriteString(w, `{"symbol":"ETHUSDT","markPrice":"2000.1","lastFundingRate":"0.0001"}`)
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer ts.Close()

	cli := &BinanceRESTClient{BaseURL: ts.URL, HTTPClient: ts.Client()}

	oi, err := cli.OpenInterest(context.Background(), "ETHUSDT")
	if err != nil || oi.OpenInterest != "1234.5" {
		t.Fatalf("unexpected open interest: %+v err=%v", oi, err)
	}

	pi, err := cli.PremiumIndex(context.Background(), "ETHUSDT")
	if err != nil || pi.LastFundingRate != "0.0001" {
		t.Fatalf("unexpected premium index: %+v err=%v", pi, err)
	}
}

func TestRESTClientErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"code":-1,"msg":"boom"}`)
	}))
	defer ts.Close()

	cli := &BinanceRESTClient{BaseURL: ts.URL, APIKey: "key", Secret: "secret", HTTPClient: ts.Client()}
	if _, err := cli.AccountInfo(context.Background()); err == nil {
		t.Fatal("expected error on 500 response")
	}
}
