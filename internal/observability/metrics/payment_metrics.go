package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type PaymentMetrics struct {
	initiations       *prometheus.CounterVec
	gatewayLatency    *prometheus.HistogramVec
	tokenExchanges    *prometheus.CounterVec
	callbacks         *prometheus.CounterVec
	settlementLag     prometheus.Histogram
	webhookDeliveries *prometheus.CounterVec
	sweptInitiations  prometheus.Counter
}

var (
	paymentMetricsOnce sync.Once
	paymentMetrics     *PaymentMetrics
)

func Payment() *PaymentMetrics {
	return PaymentWithConfig(Config{})
}

func PaymentWithConfig(cfg Config) *PaymentMetrics {
	paymentMetricsOnce.Do(func() {
		paymentMetrics = newPaymentMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return paymentMetrics
}

// NewPaymentMetricsForTest registers on a private registry.
func NewPaymentMetricsForTest(registerer prometheus.Registerer) *PaymentMetrics {
	return newPaymentMetrics(registerer, Config{ServiceName: "test", Environment: "test"})
}

func newPaymentMetrics(registerer prometheus.Registerer, cfg Config) *PaymentMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "mpesaprompt"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	initiations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "mpesaprompt_stk_push_total",
			Help:        "STK push initiations by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // accepted | rejected | unavailable | auth_failed | not_configured | replayed
	)

	gatewayLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "mpesaprompt_gateway_request_seconds",
			Help:        "Latency of outbound gateway calls.",
			Buckets:     []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			ConstLabels: constLabels,
		},
		[]string{"operation"}, // token | stk_push
	)

	tokenExchanges := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "mpesaprompt_token_exchange_total",
			Help:        "OAuth token exchanges against the gateway by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // success | failed
	)

	callbacks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "mpesaprompt_callback_total",
			Help:        "Gateway callbacks by reconciliation outcome.",
			ConstLabels: constLabels,
		},
		[]string{"outcome"}, // completed | failed | duplicate | not_found | invalid | error
	)

	settlementLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "mpesaprompt_settlement_lag_seconds",
			Help: "Time from initiation to callback settlement.",
			Buckets: []float64{
				5,
				15,
				30,
				60,
				120,
				300,
				900,
				3600,
			},
			ConstLabels: constLabels,
		},
	)

	webhookDeliveries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "mpesaprompt_webhook_delivery_total",
			Help:        "Merchant webhook deliveries by result.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // delivered | retry | failed | skipped
	)

	sweptInitiations := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "mpesaprompt_swept_initiations_total",
			Help:        "Initiated transactions failed by the stale initiation sweep.",
			ConstLabels: constLabels,
		},
	)

	registerer.MustRegister(
		initiations,
		gatewayLatency,
		tokenExchanges,
		callbacks,
		settlementLag,
		webhookDeliveries,
		sweptInitiations,
	)

	return &PaymentMetrics{
		initiations:       initiations,
		gatewayLatency:    gatewayLatency,
		tokenExchanges:    tokenExchanges,
		callbacks:         callbacks,
		settlementLag:     settlementLag,
		webhookDeliveries: webhookDeliveries,
		sweptInitiations:  sweptInitiations,
	}
}

func (m *PaymentMetrics) IncInitiation(result string) {
	if m == nil {
		return
	}
	m.initiations.WithLabelValues(result).Inc()
}

func (m *PaymentMetrics) ObserveGatewayLatency(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.gatewayLatency.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *PaymentMetrics) IncTokenExchange(result string) {
	if m == nil {
		return
	}
	m.tokenExchanges.WithLabelValues(result).Inc()
}

func (m *PaymentMetrics) IncCallback(outcome string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(outcome).Inc()
}

func (m *PaymentMetrics) ObserveSettlementLag(lag time.Duration) {
	if m == nil {
		return
	}
	seconds := lag.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.settlementLag.Observe(seconds)
}

func (m *PaymentMetrics) IncWebhookDelivery(result string) {
	if m == nil {
		return
	}
	m.webhookDeliveries.WithLabelValues(result).Inc()
}

func (m *PaymentMetrics) AddSweptInitiations(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweptInitiations.Add(float64(n))
}
