package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AppConfig holds the main runtime configuration for the account monitor.
type AppConfig struct {
	Env     string        `yaml:"env"`
	Gateway GatewayConfig `yaml:"gateway"`
	Webhook WebhookConfig `yaml:"webhook"`
	Engine  EngineConfig  `yaml:"engine"`
	Logging LoggingConfig `yaml:"logging"`
}

type GatewayConfig struct {
	APIKey    string `yaml:"apiKey"`
	APISecret string `yaml:"apiSecret"`
	RestURL   string `yaml:"restURL"`
	WSURL     string `yaml:"wsURL"`
}

// WebhookConfig carries the four notification sinks: order life-cycle cards
// (orderWebhook), fill cards (fillWebhook), position-validation digests
// (validationWebhook), and general operational alerts (alertWebhook).
// fillWebhook falls back to orderWebhook when unset, so existing single-URL
// deployments keep working unchanged.
type WebhookConfig struct {
	OrderWebhookURL      string `yaml:"orderWebhookURL"`
	FillWebhookURL       string `yaml:"fillWebhookURL"`
	ValidationWebhookURL string `yaml:"validationWebhookURL"`
	AlertWebhookURL      string `yaml:"alertWebhookURL"`
}

// EngineConfig tunes the timers shared by the order-aggregation (C1-C6) and
// position-validation (C7-C10) engines.
type EngineConfig struct {
	AggregationWindowMs          int    `yaml:"aggregationWindowMs"`
	ListenKeyKeepAliveMs         int    `yaml:"listenKeyKeepAliveMs"`
	MaxRetry                     int    `yaml:"maxRetry"`
	PositionValidationIntervalMs int    `yaml:"positionValidationIntervalMs"`
	PositionRulesConfigPath      string `yaml:"positionRulesConfigPath"`
	MarketMetricsTTLMs           int    `yaml:"marketMetricsTTLMs"`
	MarketMetricsWorkers         int    `yaml:"marketMetricsWorkers"`
	AccountSummaryTTLMs          int    `yaml:"accountSummaryTTLMs"`
	DedupWindowMs                int    `yaml:"dedupWindowMs"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// defaults mirrors the documented defaults so a YAML file only needs to
// override what it cares about.
func defaults() AppConfig {
	return AppConfig{
		Env: "production",
		Engine: EngineConfig{
			AggregationWindowMs:          10000,
			ListenKeyKeepAliveMs:         1500000,
			MaxRetry:                     3,
			PositionValidationIntervalMs: 30000,
			PositionRulesConfigPath:      "config/position-rules.json",
			MarketMetricsTTLMs:           180000,
			MarketMetricsWorkers:         5,
			AccountSummaryTTLMs:          2000,
			DedupWindowMs:                60000,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads YAML config from path, layering it over the documented
// defaults, and applies validation.
func Load(path string) (AppConfig, error) {
	cfg := defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if cfg.Webhook.FillWebhookURL == "" {
		cfg.Webhook.FillWebhookURL = cfg.Webhook.OrderWebhookURL
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides credentials and webhook
// URLs from the environment, which is how these secrets are meant to reach
// production deployments rather than living in the YAML file.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	applyEnvOverrides(&cfg)
	if cfg.Webhook.FillWebhookURL == "" {
		cfg.Webhook.FillWebhookURL = cfg.Webhook.OrderWebhookURL
	}
	return cfg, Validate(cfg)
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("MONITOR_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("MONITOR_API_SECRET"); v != "" {
		cfg.Gateway.APISecret = v
	}
	if v := os.Getenv("MONITOR_REST_URL"); v != "" {
		cfg.Gateway.RestURL = v
	}
	if v := os.Getenv("MONITOR_WS_URL"); v != "" {
		cfg.Gateway.WSURL = v
	}
	if v := os.Getenv("MONITOR_ORDER_WEBHOOK_URL"); v != "" {
		cfg.Webhook.OrderWebhookURL = v
	}
	if v := os.Getenv("MONITOR_FILL_WEBHOOK_URL"); v != "" {
		cfg.Webhook.FillWebhookURL = v
	}
	if v := os.Getenv("MONITOR_VALIDATION_WEBHOOK_URL"); v != "" {
		cfg.Webhook.ValidationWebhookURL = v
	}
	if v := os.Getenv("MONITOR_ALERT_WEBHOOK_URL"); v != "" {
		cfg.Webhook.AlertWebhookURL = v
	}
	if v := os.Getenv("MONITOR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Gateway.APIKey == "" || cfg.Gateway.APISecret == "" {
		return errors.New("gateway.apiKey/apiSecret is required (or env overrides)")
	}
	if cfg.Gateway.RestURL == "" {
		return errors.New("gateway.restURL is required")
	}
	if cfg.Gateway.WSURL == "" {
		return errors.New("gateway.wsURL is required")
	}
	if cfg.Webhook.OrderWebhookURL == "" {
		return errors.New("webhook.orderWebhookURL is required")
	}
	if cfg.Webhook.ValidationWebhookURL == "" {
		return errors.New("webhook.validationWebhookURL is required")
	}
	if cfg.Engine.AggregationWindowMs <= 0 {
		return errors.New("engine.aggregationWindowMs must be > 0")
	}
	if cfg.Engine.PositionValidationIntervalMs <= 0 {
		return errors.New("engine.positionValidationIntervalMs must be > 0")
	}
	if cfg.Engine.PositionRulesConfigPath == "" {
		return errors.New("engine.positionRulesConfigPath is required")
	}
	return nil
}
