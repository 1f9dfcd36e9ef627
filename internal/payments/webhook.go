package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jparrish/portfolio-platform/internal/appointments"
	"github.com/jparrish/portfolio-platform/internal/observability/metrics"
	"github.com/jparrish/portfolio-platform/pkg/logging"
)

// Webhook event types that mutate appointment state. Everything else is
// acknowledged untouched; failing to acknowledge makes the gateway retry
// indefinitely.
const (
	eventIntentSucceeded = "payment_intent.succeeded"
	eventIntentFailed    = "payment_intent.payment_failed"
)

// reconcileStore is the appointments surface the reconciler writes through.
type reconcileStore interface {
	ConfirmByIntent(ctx context.Context, intentRef string) (appointments.ReconcileOutcome, error)
	FailByIntent(ctx context.Context, intentRef string) (appointments.ReconcileOutcome, error)
}

// processedTracker de-duplicates gateway event ids.
type processedTracker interface {
	AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

// confirmationNotifier is invoked once per appointment, on the first
// successful confirm only.
type confirmationNotifier interface {
	AppointmentConfirmed(ctx context.Context, name, email, intentID string)
}

// WebhookHandler is the authoritative asynchronous path turning payment
// lifecycle events into appointment-state changes, independent of whether the
// visitor's browser is still connected.
type WebhookHandler struct {
	signingSecret string
	appts         reconcileStore
	processed     processedTracker
	notifier      confirmationNotifier
	metrics       *metrics.PaymentMetrics
	logger        *logging.Logger
}

// NewWebhookHandler creates the payment webhook handler.
func NewWebhookHandler(
	signingSecret string,
	appts reconcileStore,
	processed processedTracker,
	notifier confirmationNotifier,
	m *metrics.PaymentMetrics,
	logger *logging.Logger,
) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		signingSecret: signingSecret,
		appts:         appts,
		processed:     processed,
		notifier:      notifier,
		metrics:       m,
		logger:        logger,
	}
}

// webhookEvent is the gateway's event envelope.
type webhookEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID          string            `json:"id"`
			Status      string            `json:"status"`
			AmountCents int64             `json:"amount"`
			Metadata    map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// Handle processes POST /payment-webhook. Signature verification happens over
// the exact raw body before any parsing of event semantics. Every branch past
// verification resolves to a 200 acknowledgment; reconciliation anomalies are
// logged, never surfaced.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if !verifySignature(h.signingSecret, payload, sigHeader) {
		h.logger.Warn("webhook signature verification failed", "remote_ip", r.RemoteAddr)
		h.metrics.ObserveWebhook("unknown", "signature_rejected")
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var evt webhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.logger.Warn("webhook payload malformed", "error", err)
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}
	if evt.ID == "" {
		http.Error(w, "missing event id", http.StatusBadRequest)
		return
	}

	outcome := h.dispatch(r.Context(), &evt)
	h.metrics.ObserveWebhook(evt.Type, outcome)
	h.metrics.ObserveWebhookLatency(evt.Type, time.Since(start).Seconds())

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"received": true})
}

// dispatch applies the event and returns an outcome label for metrics.
func (h *WebhookHandler) dispatch(ctx context.Context, evt *webhookEvent) string {
	if evt.Type != eventIntentSucceeded && evt.Type != eventIntentFailed {
		return "ignored"
	}

	intentID := evt.Data.Object.ID
	if intentID == "" {
		h.logger.Warn("webhook event missing intent id", "event_id", evt.ID, "type", evt.Type)
		return "anomaly"
	}

	if h.processed != nil {
		already, err := h.processed.AlreadyProcessed(ctx, "stripe", evt.ID)
		if err != nil {
			h.logger.Error("processed lookup failed", "error", err, "event_id", evt.ID)
			// Fall through: the conditional write below is idempotent anyway.
		} else if already {
			return "duplicate"
		}
	}

	var (
		out appointments.ReconcileOutcome
		err error
	)
	target := appointments.StatusConfirmed
	if evt.Type == eventIntentFailed {
		target = appointments.StatusPaymentFailed
		out, err = h.appts.FailByIntent(ctx, intentID)
	} else {
		out, err = h.appts.ConfirmByIntent(ctx, intentID)
	}
	if err != nil {
		h.logger.Error("webhook reconcile write failed", "error", err, "event_id", evt.ID, "intent_id", intentID)
		return "error"
	}

	label := "applied"
	switch {
	case !out.Found:
		// The appointment-creation call may not have completed yet, or may
		// never complete. Non-fatal; acknowledge so the gateway stops retrying.
		h.logger.Warn("webhook references unknown appointment",
			"event_id", evt.ID, "intent_id", intentID, "type", evt.Type)
		label = "unmatched"
	case out.Applied:
		h.logger.Info("appointment reconciled from webhook",
			"event_id", evt.ID,
			"intent_id", intentID,
			"appointment_id", out.ID,
			"status", out.Status,
		)
		if target == appointments.StatusConfirmed && h.notifier != nil {
			h.notifier.AppointmentConfirmed(ctx, out.Name, out.Email, intentID)
		}
	case out.Conflicting(target):
		// A different terminal status is already durable. First writer wins.
		h.logger.Warn("conflicting terminal webhook event not applied",
			"event_id", evt.ID,
			"intent_id", intentID,
			"event_status", target,
			"stored_status", out.Status,
		)
		label = "conflict"
	default:
		// Same terminal status reasserted: idempotent no-op.
		label = "noop"
	}

	if h.processed != nil {
		if _, err := h.processed.MarkProcessed(ctx, "stripe", evt.ID); err != nil {
			h.logger.Error("failed to record processed event", "error", err, "event_id", evt.ID)
		}
	}
	return label
}

// verifySignature checks an HMAC-SHA256 signature computed over
// "<timestamp>.<payload>" with the shared signing secret. The header format
// is t=<timestamp>,v1=<hex signature>[,v1=...], with a 5 minute tolerance.
func verifySignature(secret string, payload []byte, header string) bool {
	if secret == "" {
		return true // bypass for development
	}
	if header == "" {
		return false
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if abs64(time.Now().Unix()-ts) > 300 {
		return false
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return true
		}
	}
	return false
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
