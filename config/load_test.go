package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

const validYAML = `
env: dev
gateway:
  apiKey: foo
  apiSecret: bar
  restURL: https://fapi.binance.com
  wsURL: wss://fstream.binance.com
webhook:
  orderWebhookURL: https://hooks.test/order
  validationWebhookURL: https://hooks.test/validation
  alertWebhookURL: https://hooks.test/alert
`

func TestLoad(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Env != "dev" || cfg.Gateway.APIKey != "foo" {
		t.Fatalf("unexpected cfg values: %+v", cfg)
	}
	if cfg.Engine.AggregationWindowMs != 10000 {
		t.Fatalf("expected default aggregation window, got %d", cfg.Engine.AggregationWindowMs)
	}
	if cfg.Webhook.FillWebhookURL != cfg.Webhook.OrderWebhookURL {
		t.Fatalf("expected fillWebhookURL to fall back to orderWebhookURL when unset, got %q", cfg.Webhook.FillWebhookURL)
	}
}

func TestLoadDistinctFillWebhookURL(t *testing.T) {
	const yamlWithFill = validYAML + "  fillWebhookURL: https://hooks.test/fill\n"
	path := writeTempConfig(t, yamlWithFill)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Webhook.FillWebhookURL != "https://hooks.test/fill" {
		t.Fatalf("expected explicit fillWebhookURL to be kept, got %q", cfg.Webhook.FillWebhookURL)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	t.Setenv("MONITOR_API_KEY", "env-key")
	t.Setenv("MONITOR_API_SECRET", "env-secret")
	cfg, err := LoadWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gateway.APIKey != "env-key" || cfg.Gateway.APISecret != "env-secret" {
		t.Fatalf("env overrides not applied: %+v", cfg.Gateway)
	}
}

func TestValidate(t *testing.T) {
	err := Validate(AppConfig{})
	if err == nil {
		t.Fatalf("expected error for empty config")
	}
}
