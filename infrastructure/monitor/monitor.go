package monitor

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor collects Prometheus metrics for the account monitor process.
type Monitor struct {
	registry *prometheus.Registry

	// 事件流指标
	wsConnections  prometheus.Counter
	wsDisconnects  prometheus.Counter
	eventsReceived prometheus.Counter
	listenKeyRenew prometheus.Counter

	// REST指标
	restRequests *prometheus.CounterVec
	restErrors   *prometheus.CounterVec
	restLatency  *prometheus.HistogramVec

	// 通知指标
	notificationsSent    *prometheus.CounterVec
	notificationsDeduped *prometheus.CounterVec
	webhookFailures      *prometheus.CounterVec

	// 校验指标
	validationTickDuration prometheus.Histogram
	validationTicksDropped prometheus.Counter
	alertsEmitted          *prometheus.CounterVec

	mu sync.RWMutex
}

// Config names the metric namespace/subsystem.
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig returns the production metric naming.
func DefaultConfig() Config {
	return Config{
		Namespace: "futures_monitor",
		Subsystem: "account",
	}
}

// New creates a Monitor with its own private registry.
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Monitor{
		registry: reg,

		wsConnections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "ws_connections_total", Help: "WebSocket连接建立次数",
		}),
		wsDisconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "ws_disconnects_total", Help: "WebSocket断开次数",
		}),
		eventsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "order_events_received_total", Help: "接收到的订单事件总数",
		}),
		listenKeyRenew: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "listen_key_renewals_total", Help: "listenKey续期次数",
		}),

		restRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "rest_requests_total", Help: "REST请求总数",
		}, []string{"action"}),
		restErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "rest_errors_total", Help: "REST错误总数",
		}, []string{"action"}),
		restLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "rest_latency_seconds", Help: "REST请求延迟（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),

		notificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "notifications_sent_total", Help: "已发送通知总数",
		}, []string{"kind"}),
		notificationsDeduped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "notifications_deduped_total", Help: "被去重丢弃的通知总数",
		}, []string{"kind"}),
		webhookFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "webhook_failures_total", Help: "Webhook投递失败总数",
		}, []string{"sink"}),

		validationTickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "validation_tick_duration_seconds", Help: "仓位校验单次巡检耗时（秒）",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		validationTicksDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "validation_ticks_dropped_total", Help: "因上一轮巡检未结束而跳过的次数",
		}),
		alertsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "alerts_emitted_total", Help: "告警限流器发出的事件总数",
		}, []string{"kind"}),
	}

	return m
}

// RecordWSConnection records a WebSocket connection established.
func (m *Monitor) RecordWSConnection() { m.wsConnections.Inc() }

// RecordWSDisconnect records a WebSocket disconnection.
func (m *Monitor) RecordWSDisconnect() { m.wsDisconnects.Inc() }

// RecordEventReceived records one order event pulled off the stream.
func (m *Monitor) RecordEventReceived() { m.eventsReceived.Inc() }

// RecordListenKeyRenewal records a listen-key keepalive call.
func (m *Monitor) RecordListenKeyRenewal() { m.listenKeyRenew.Inc() }

// RecordRESTRequest records one REST call by logical action name.
func (m *Monitor) RecordRESTRequest(action string) { m.restRequests.WithLabelValues(action).Inc() }

// RecordRESTError records a failed REST call by logical action name.
func (m *Monitor) RecordRESTError(action string) { m.restErrors.WithLabelValues(action).Inc() }

// RecordRESTLatency records REST call latency by logical action name.
func (m *Monitor) RecordRESTLatency(action string, seconds float64) {
	m.restLatency.WithLabelValues(action).Observe(seconds)
}

// RecordNotificationSent records a delivered notification by kind
// ("lifecycle" or "fill").
func (m *Monitor) RecordNotificationSent(kind string) { m.notificationsSent.WithLabelValues(kind).Inc() }

// RecordNotificationDeduped records a notification dropped by C6's dedup.
func (m *Monitor) RecordNotificationDeduped(kind string) {
	m.notificationsDeduped.WithLabelValues(kind).Inc()
}

// RecordWebhookFailure records a failed delivery to a named sink.
func (m *Monitor) RecordWebhookFailure(sink string) { m.webhookFailures.WithLabelValues(sink).Inc() }

// RecordValidationTick records the wall-clock duration of one completed
// validation tick.
func (m *Monitor) RecordValidationTick(seconds float64) { m.validationTickDuration.Observe(seconds) }

// RecordValidationTickDropped records a tick skipped due to an in-progress
// prior run.
func (m *Monitor) RecordValidationTickDropped() { m.validationTicksDropped.Inc() }

// RecordAlertEmitted records one alert-limiter output event by kind
// ("alert" or "recovery").
func (m *Monitor) RecordAlertEmitted(kind string) { m.alertsEmitted.WithLabelValues(kind).Inc() }

// Handler returns the HTTP handler exposing metrics for scraping.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
