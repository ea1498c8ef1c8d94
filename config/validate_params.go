package config

// ValidateParams 额外验证引擎计时器相关的关键参数。
func ValidateParams(cfg AppConfig) error {
	if cfg.Gateway.APIKey == "" || cfg.Gateway.APISecret == "" {
		return ErrInvalid("gateway.apiKey/apiSecret is required")
	}
	if cfg.Engine.MaxRetry <= 0 {
		return ErrInvalid("engine.maxRetry must be > 0")
	}
	if cfg.Engine.ListenKeyKeepAliveMs <= 0 {
		return ErrInvalid("engine.listenKeyKeepAliveMs must be > 0")
	}
	if cfg.Engine.MarketMetricsWorkers <= 0 {
		return ErrInvalid("engine.marketMetricsWorkers must be > 0")
	}
	if cfg.Engine.DedupWindowMs <= 0 {
		return ErrInvalid("engine.dedupWindowMs must be > 0")
	}
	return nil
}

// ErrInvalid 用于参数验证错误。
type ErrInvalid string

func (e ErrInvalid) Error() string { return string(e) }
