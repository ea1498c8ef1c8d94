// Package container wires every spec component into one runnable process:
// gateway clients, the order-aggregation pipeline (C1-C6), and the
// position-validation pipeline (C7-C10), grounded on the teacher's
// container.Container composition-root shape (build infrastructure, then
// gateway, then core services, then register everything with a
// LifecycleManager) — generalized here from a market-making order/inventory
// graph to an account-monitoring aggregation/validation graph.
package container

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"futures-account-monitor/config"
	"futures-account-monitor/gateway"
	"futures-account-monitor/infrastructure/alert"
	"futures-account-monitor/infrastructure/logger"
	"futures-account-monitor/infrastructure/monitor"
	"futures-account-monitor/internal/account"
	"futures-account-monitor/internal/aggregate"
	"futures-account-monitor/internal/alertlimit"
	"futures-account-monitor/internal/card"
	hotconfig "futures-account-monitor/internal/config"
	"futures-account-monitor/internal/marketmetrics"
	"futures-account-monitor/internal/notify"
	"futures-account-monitor/internal/positionrules"
	"futures-account-monitor/internal/tracker"
	"futures-account-monitor/internal/validation"
	"futures-account-monitor/internal/wsevent"
)

// alertCooldownFloor is the minimum repeat-alert interval regardless of an
// issue's own configured cooldownMinutes (spec §8).
const alertCooldownFloor = 60 * time.Minute

// Container owns every long-lived collaborator and their startup/shutdown
// order.
type Container struct {
	cfg config.AppConfig
	log *logger.Logger
	mon *monitor.Monitor

	clients gateway.Clients

	accountProvider *account.Provider
	tracker         *tracker.Tracker
	aggregator      *aggregate.Aggregator
	dispatcher      *notify.Dispatcher

	ruleMu  sync.RWMutex
	ruleSet positionrules.RuleSet

	hotReloader   *hotconfig.HotReloader
	marketMetrics *marketmetrics.Fetcher
	limiter       *alertlimit.Limiter
	alertManager  *alert.Manager
	validationSvc *validation.Service

	lifecycle *LifecycleManager

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup

	metricsServer *http.Server
}

// New loads configuration from configPath. Call Build before Start.
func New(configPath string) (*Container, error) {
	cfg, err := config.LoadWithEnvOverrides(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &Container{cfg: cfg}, nil
}

// Build constructs every collaborator but starts nothing.
func (c *Container) Build() error {
	if err := c.buildInfrastructure(); err != nil {
		return err
	}
	if err := c.buildGateway(); err != nil {
		return err
	}
	if err := c.buildOrderPipeline(); err != nil {
		return err
	}
	if err := c.buildValidationPipeline(); err != nil {
		return err
	}
	c.registerLifecycleComponents()
	return nil
}

func (c *Container) buildInfrastructure() error {
	logCfg := logger.DefaultConfig()
	if c.cfg.Logging.Level != "" {
		logCfg.Level = c.cfg.Logging.Level
	}
	logCfg.Outputs = []string{"stdout", "file"}
	logCfg.OutputFile = "/var/log/futures-account-monitor/monitor.log"
	logCfg.ErrorFile = "/var/log/futures-account-monitor/error.log"

	log, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	c.log = log
	c.mon = monitor.New(monitor.DefaultConfig())
	return nil
}

func (c *Container) buildGateway() error {
	c.clients = gateway.BuildRealBinanceClients(gateway.BuildConfig{
		APIKey:       c.cfg.Gateway.APIKey,
		APISecret:    c.cfg.Gateway.APISecret,
		RestURL:      c.cfg.Gateway.RestURL,
		WSEndpoint:   c.cfg.Gateway.WSURL,
		RecvWindowMs: 5000,
	}, nil)
	return nil
}

func (c *Container) buildOrderPipeline() error {
	c.accountProvider = account.New(c.clients.REST, time.Duration(c.cfg.Engine.AccountSummaryTTLMs)*time.Millisecond)
	c.tracker = tracker.New()

	lifecycleSink := notify.NewWebhookSink(c.clients.Webhook, c.cfg.Webhook.OrderWebhookURL)
	fillSink := notify.NewWebhookSink(c.clients.Webhook, c.cfg.Webhook.FillWebhookURL)
	c.dispatcher = notify.New(lifecycleSink, fillSink, card.DefaultBuilder{}, c.log.Logger)

	window := time.Duration(c.cfg.Engine.AggregationWindowMs) * time.Millisecond
	c.aggregator = aggregate.New(c.tracker, c.accountProvider, window, func(n aggregate.Notification) {
		c.mon.RecordNotificationSent(n.Kind)
		c.dispatcher.Dispatch(context.Background(), n)
	})
	return nil
}

func (c *Container) buildValidationPipeline() error {
	ruleSet, err := positionrules.Load(c.cfg.Engine.PositionRulesConfigPath)
	if err != nil {
		return fmt.Errorf("load position rules: %w", err)
	}
	c.ruleSet = ruleSet

	hotCfg := hotconfig.DefaultHotReloadConfig()
	reloader, err := hotconfig.NewHotReloader(c.cfg.Engine.PositionRulesConfigPath, hotCfg)
	if err != nil {
		return fmt.Errorf("build position rules watcher: %w", err)
	}
	reloader.RegisterValidator("positionRules", &hotconfig.PositionRuleParameterValidator{})
	reloader.RegisterValidator("cooldown", &hotconfig.CooldownParameterValidator{})
	reloader.SetReloadHandler(func(interface{}) error { return c.reloadPositionRules() })
	c.hotReloader = reloader

	marketSource := marketmetrics.GatewaySource{Client: c.clients.REST}
	c.marketMetrics = marketmetrics.New(
		marketSource,
		c.log.Logger,
		time.Duration(c.cfg.Engine.MarketMetricsTTLMs)*time.Millisecond,
		c.cfg.Engine.MarketMetricsWorkers,
	)

	c.limiter = alertlimit.New(alertlimit.RealClock, alertCooldownFloor)

	channels := []alert.Channel{alert.NewLogChannel("position-validation", nil)}
	if c.cfg.Webhook.AlertWebhookURL != "" {
		channels = append(channels, webhookAlertChannel{
			name: "validation-webhook",
			sink: notify.NewWebhookSink(c.clients.Webhook, c.cfg.Webhook.AlertWebhookURL),
		})
	}
	c.alertManager = alert.NewManager(channels, 0)

	c.validationSvc = validation.New(validation.Config{
		Account: c.accountProvider,
		Metrics: c.marketMetrics,
		RuleSet: func() positionrules.RuleSet {
			c.ruleMu.RLock()
			defer c.ruleMu.RUnlock()
			return c.ruleSet
		},
		Limiter:  c.limiter,
		Builder:  card.DefaultBuilder{},
		Sink:     validationSink{mgr: c.alertManager, log: c.log},
		Logger:   c.log.Logger,
		Interval: time.Duration(c.cfg.Engine.PositionValidationIntervalMs) * time.Millisecond,
	})
	return nil
}

func (c *Container) reloadPositionRules() error {
	ruleSet, err := positionrules.Load(c.cfg.Engine.PositionRulesConfigPath)
	if err != nil {
		c.log.LogError(err, map[string]interface{}{"action": "reload_position_rules"})
		return err
	}
	c.ruleMu.Lock()
	c.ruleSet = ruleSet
	c.ruleMu.Unlock()
	c.log.LogRuleReload(c.cfg.Engine.PositionRulesConfigPath, nil)
	return nil
}

func (c *Container) registerLifecycleComponents() {
	c.lifecycle = NewLifecycleManager()

	c.lifecycle.Register(&streamComponent{container: c})
	c.lifecycle.Register(&aggregatorComponent{container: c})
	c.lifecycle.Register(&hotReloadComponent{reloader: c.hotReloader})
	c.lifecycle.Register(&validationComponent{svc: c.validationSvc})

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.mon.Handler())
	c.lifecycle.Register(&httpServerComponent{
		name:    "metrics",
		handler: mux,
		addr:    ":9100",
		logger:  c.log,
		server:  &c.metricsServer,
	})
}

// Start brings every registered component up in registration order, then
// tells systemd (if this process runs as a Type=notify unit) that it's
// ready to serve.
func (c *Container) Start(ctx context.Context) error {
	c.runCtx, c.runCancel = context.WithCancel(ctx)
	if err := c.lifecycle.StartAll(c.runCtx); err != nil {
		return err
	}
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		c.log.LogError(err, map[string]interface{}{"action": "sd_notify_ready"})
	}
	c.log.LogLifecycleEvent("started", nil)
	return nil
}

// Stop tears every component down in reverse registration order. Unlike a
// market-making process, there is nothing to flatten or cancel on shutdown —
// this process only ever observes the account, it never trades.
func (c *Container) Stop() error {
	c.log.LogLifecycleEvent("stopping", nil)
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		c.log.LogError(err, map[string]interface{}{"action": "sd_notify_stopping"})
	}
	if c.runCancel != nil {
		c.runCancel()
	}
	err := c.lifecycle.StopAll()
	c.wg.Wait()
	if closeErr := c.log.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// HealthCheck reports whether every component is up.
func (c *Container) HealthCheck() error {
	return c.lifecycle.CheckHealth()
}

// validationSink adapts alert.Manager to validation.Sink, logging each
// routed issue/recovery card alongside the fan-out.
type validationSink struct {
	mgr *alert.Manager
	log *logger.Logger
}

func (s validationSink) Send(ctx context.Context, c card.Card) error {
	if s.log != nil {
		s.log.LogAlertEvent(c.Title, map[string]interface{}{"color": c.Color})
	}
	return s.mgr.Send(ctx, c)
}

// webhookAlertChannel adapts notify.Sink to alert.Channel for the optional
// alert-webhook destination.
type webhookAlertChannel struct {
	name string
	sink *notify.WebhookSink
}

func (w webhookAlertChannel) Send(ctx context.Context, c card.Card) error { return w.sink.Send(ctx, c) }
func (w webhookAlertChannel) Name() string                                { return w.name }

// streamHandler feeds normalized order events from the raw WS frame stream
// into the aggregator, recording ingestion metrics along the way.
type streamHandler struct {
	container *Container
}

func (h *streamHandler) OnRawMessage(raw []byte) {
	h.container.mon.RecordEventReceived()
	if wsevent.ListenKeyExpired(raw) {
		return
	}
	ev, ok := wsevent.Normalize(raw)
	if !ok {
		return
	}
	h.container.aggregator.Submit(*ev)
}
