package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPaymentMetricsObserve(t *testing.T) {
	m := NewPaymentMetrics(prometheus.NewRegistry())
	m.ObserveIntentCreated("created")
	m.ObserveWebhook("payment_intent.succeeded", "applied")
	m.ObserveWebhookLatency("payment_intent.succeeded", 0.02)
	m.ObserveConfirm("applied")
}

func TestBookingMetricsObserve(t *testing.T) {
	m := NewBookingMetrics(prometheus.NewRegistry())
	m.ObserveSessionStarted()
	m.ObserveStep("select_date", "ok")
	m.ObserveSubmission("deposit", "development")
}

func TestMetricsNilSafe(t *testing.T) {
	var pm *PaymentMetrics
	pm.ObserveIntentCreated("created")
	pm.ObserveWebhook("event", "outcome")
	pm.ObserveWebhookLatency("event", 0.1)
	pm.ObserveConfirm("applied")

	var bm *BookingMetrics
	bm.ObserveSessionStarted()
	bm.ObserveStep("step", "result")
	bm.ObserveSubmission("free", "consultation")
}

func TestRegistryHandlerServesCollectors(t *testing.T) {
	reg := NewRegistry()
	reg.Payments.ObserveWebhook("payment_intent.succeeded", "applied")
	reg.Bookings.ObserveSessionStarted()

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "portfolio_payments_webhook_events_total") {
		t.Fatalf("expected payment collector in scrape output:\n%s", body)
	}
	if !strings.Contains(body, "portfolio_bookings_sessions_started_total 1") {
		t.Fatalf("expected booking counter in scrape output:\n%s", body)
	}
}
