// Package metrics exposes Prometheus collectors for the booking and payment
// flows. Collectors register on a caller-supplied registry so tests can use
// isolated registries.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PaymentMetrics exposes counters/histograms for the payment intent and
// webhook pipelines.
type PaymentMetrics struct {
	intentsCreated  *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
	webhookLatency  *prometheus.HistogramVec
	confirmOutcomes *prometheus.CounterVec
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	m := &PaymentMetrics{
		intentsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "payments",
			Name:      "intents_created_total",
			Help:      "Total payment intents created",
		}, []string{"result"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "payments",
			Name:      "webhook_events_total",
			Help:      "Total gateway webhook events received",
		}, []string{"event_type", "outcome"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portfolio",
			Subsystem: "payments",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		confirmOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "payments",
			Name:      "confirms_total",
			Help:      "Total synchronous payment confirmations",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.intentsCreated, m.webhookEvents, m.webhookLatency, m.confirmOutcomes)
	return m
}

func (m *PaymentMetrics) ObserveIntentCreated(result string) {
	if m == nil {
		return
	}
	m.intentsCreated.WithLabelValues(result).Inc()
}

func (m *PaymentMetrics) ObserveWebhook(eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *PaymentMetrics) ObserveWebhookLatency(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(eventType).Observe(seconds)
}

func (m *PaymentMetrics) ObserveConfirm(outcome string) {
	if m == nil {
		return
	}
	m.confirmOutcomes.WithLabelValues(outcome).Inc()
}

// BookingMetrics exposes counters for the scheduling wizard.
type BookingMetrics struct {
	sessionsStarted prometheus.Counter
	stepTransitions *prometheus.CounterVec
	submissions     *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "bookings",
			Name:      "sessions_started_total",
			Help:      "Total booking sessions created",
		}),
		stepTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "bookings",
			Name:      "step_transitions_total",
			Help:      "Total wizard step transition attempts",
		}, []string{"step", "result"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "bookings",
			Name:      "submissions_total",
			Help:      "Total completed booking submissions",
		}, []string{"path", "topic"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.sessionsStarted, m.stepTransitions, m.submissions)
	return m
}

func (m *BookingMetrics) ObserveSessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
}

func (m *BookingMetrics) ObserveStep(step, result string) {
	if m == nil {
		return
	}
	m.stepTransitions.WithLabelValues(step, result).Inc()
}

// ObserveSubmission records a completed booking. Path is "deposit", "free",
// or "deferred".
func (m *BookingMetrics) ObserveSubmission(path, topic string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(path, topic).Inc()
}

// Registry bundles the application collectors with the Prometheus registry
// backing the /metrics endpoint.
type Registry struct {
	reg      *prometheus.Registry
	Payments *PaymentMetrics
	Bookings *BookingMetrics
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	return &Registry{
		reg:      reg,
		Payments: NewPaymentMetrics(reg),
		Bookings: NewBookingMetrics(reg),
	}
}

// Handler returns the scrape handler for the bundled registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
