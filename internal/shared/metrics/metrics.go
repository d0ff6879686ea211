package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Generation metrics
	GenerationsTotal    *prometheus.CounterVec
	GenerationDuration  *prometheus.HistogramVec
	GenerationFailures  *prometheus.CounterVec
	ModelCallsTotal     *prometheus.CounterVec
	ModelCallDuration   *prometheus.HistogramVec

	// Credit metrics
	CreditDebitsTotal  *prometheus.CounterVec
	CreditCreditsTotal *prometheus.CounterVec

	// Webhook metrics
	WebhookEventsTotal *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered on the
// given registerer. Pass nil to use the default registerer.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "draftly"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		GenerationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "requests_total",
				Help:      "Total number of design generation requests",
			},
			[]string{"type", "outcome"},
		),
		GenerationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "duration_seconds",
				Help:      "End-to-end design generation duration in seconds",
				Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 90, 120, 180},
			},
			[]string{"type"},
		),
		GenerationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "failures_total",
				Help:      "Design generation failures by stage",
			},
			[]string{"stage"},
		),
		ModelCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "model",
				Name:      "calls_total",
				Help:      "Total number of external model calls",
			},
			[]string{"model", "status"},
		),
		ModelCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "model",
				Name:      "call_duration_seconds",
				Help:      "External model call duration in seconds",
				Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 90, 120},
			},
			[]string{"model"},
		),

		CreditDebitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "credits",
				Name:      "debits_total",
				Help:      "Total credit debits by outcome",
			},
			[]string{"outcome"},
		),
		CreditCreditsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "credits",
				Name:      "credits_total",
				Help:      "Total credit grants by reason",
			},
			[]string{"reason"},
		),

		WebhookEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhook",
				Name:      "events_total",
				Help:      "Total webhook events by type and outcome",
			},
			[]string{"type", "outcome"},
		),
	}
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusStr := statusCodeToString(status)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordGeneration records a finished generation request.
func (m *Metrics) RecordGeneration(designType, outcome string, duration time.Duration) {
	m.GenerationsTotal.WithLabelValues(designType, outcome).Inc()
	m.GenerationDuration.WithLabelValues(designType).Observe(duration.Seconds())
}

// RecordGenerationFailure records a generation failure at a stage.
func (m *Metrics) RecordGenerationFailure(stage string) {
	m.GenerationFailures.WithLabelValues(stage).Inc()
}

// RecordModelCall records an external model call.
func (m *Metrics) RecordModelCall(model, status string, duration time.Duration) {
	m.ModelCallsTotal.WithLabelValues(model, status).Inc()
	m.ModelCallDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordDebit records a credit debit attempt.
func (m *Metrics) RecordDebit(outcome string) {
	m.CreditDebitsTotal.WithLabelValues(outcome).Inc()
}

// RecordCredit records a credit grant.
func (m *Metrics) RecordCredit(reason string) {
	m.CreditCreditsTotal.WithLabelValues(reason).Inc()
}

// RecordWebhookEvent records a processed webhook event.
func (m *Metrics) RecordWebhookEvent(eventType, outcome string) {
	m.WebhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
}

// statusCodeToString converts an HTTP status code to a string category.
func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
