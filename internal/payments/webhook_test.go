package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jparrish/portfolio-platform/internal/appointments"
)

const testSigningSecret = "whsec_test_secret"

func signPayload(t *testing.T, secret string, payload []byte) string {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func intentEvent(eventID, eventType, intentID string) []byte {
	payload := map[string]any{
		"id":   eventID,
		"type": eventType,
		"data": map[string]any{
			"object": map[string]any{
				"id":     intentID,
				"amount": 10000,
			},
		},
	}
	b, _ := json.Marshal(payload)
	return b
}

type fakeReconciler struct {
	confirm      appointments.ReconcileOutcome
	fail         appointments.ReconcileOutcome
	confirmCalls int
	failCalls    int
}

func (f *fakeReconciler) ConfirmByIntent(_ context.Context, _ string) (appointments.ReconcileOutcome, error) {
	f.confirmCalls++
	return f.confirm, nil
}

func (f *fakeReconciler) FailByIntent(_ context.Context, _ string) (appointments.ReconcileOutcome, error) {
	f.failCalls++
	return f.fail, nil
}

type fakeTracker struct {
	seen   map[string]bool
	marked []string
}

func newFakeTracker() *fakeTracker { return &fakeTracker{seen: map[string]bool{}} }

func (f *fakeTracker) AlreadyProcessed(_ context.Context, _, eventID string) (bool, error) {
	return f.seen[eventID], nil
}

func (f *fakeTracker) MarkProcessed(_ context.Context, _, eventID string) (bool, error) {
	dup := f.seen[eventID]
	f.seen[eventID] = true
	f.marked = append(f.marked, eventID)
	return !dup, nil
}

type fakeNotifier struct {
	calls int
	email string
}

func (f *fakeNotifier) AppointmentConfirmed(_ context.Context, _, email, _ string) {
	f.calls++
	f.email = email
}

func postWebhook(h *WebhookHandler, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/payment-webhook", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	recon := &fakeReconciler{}
	h := NewWebhookHandler(testSigningSecret, recon, newFakeTracker(), nil, nil, nil)

	payload := intentEvent("evt_1", "payment_intent.succeeded", "pi_123")

	rec := postWebhook(h, payload, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing signature: expected 400, got %d", rec.Code)
	}

	rec = postWebhook(h, payload, "t=123,v1=deadbeef")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("forged signature: expected 400, got %d", rec.Code)
	}

	tampered := append([]byte{}, payload...)
	tampered[len(tampered)-2] = 'x'
	rec = postWebhook(h, tampered, signPayload(t, testSigningSecret, payload))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("tampered payload: expected 400, got %d", rec.Code)
	}

	if recon.confirmCalls != 0 || recon.failCalls != 0 {
		t.Fatal("unverified events must never reach the store")
	}
}

func TestWebhookRejectsStaleTimestamp(t *testing.T) {
	h := NewWebhookHandler(testSigningSecret, &fakeReconciler{}, newFakeTracker(), nil, nil, nil)

	payload := intentEvent("evt_1", "payment_intent.succeeded", "pi_123")
	ts := time.Now().Add(-10 * time.Minute).Unix()
	mac := hmac.New(sha256.New, []byte(testSigningSecret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	stale := fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))

	rec := postWebhook(h, payload, stale)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for stale timestamp, got %d", rec.Code)
	}
}

func TestWebhookConfirmsOnSucceededEvent(t *testing.T) {
	recon := &fakeReconciler{
		confirm: appointments.ReconcileOutcome{
			Found:   true,
			Applied: true,
			Status:  appointments.StatusConfirmed,
			ID:      uuid.New(),
			Email:   "jane@example.com",
			Name:    "Jane Doe",
		},
	}
	tracker := newFakeTracker()
	notifier := &fakeNotifier{}
	h := NewWebhookHandler(testSigningSecret, recon, tracker, notifier, nil, nil)

	payload := intentEvent("evt_1", "payment_intent.succeeded", "pi_123")
	rec := postWebhook(h, payload, signPayload(t, testSigningSecret, payload))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || !body["received"] {
		t.Fatalf("expected received ack, got %s", rec.Body.String())
	}
	if recon.confirmCalls != 1 {
		t.Fatalf("expected one confirm call, got %d", recon.confirmCalls)
	}
	if notifier.calls != 1 || notifier.email != "jane@example.com" {
		t.Fatalf("expected one confirmation notification, got %+v", notifier)
	}
	if len(tracker.marked) != 1 || tracker.marked[0] != "evt_1" {
		t.Fatalf("expected event marked processed, got %v", tracker.marked)
	}
}

func TestWebhookDuplicateEventIsSkipped(t *testing.T) {
	recon := &fakeReconciler{
		confirm: appointments.ReconcileOutcome{Found: true, Applied: true, Status: appointments.StatusConfirmed},
	}
	tracker := newFakeTracker()
	notifier := &fakeNotifier{}
	h := NewWebhookHandler(testSigningSecret, recon, tracker, notifier, nil, nil)

	payload := intentEvent("evt_1", "payment_intent.succeeded", "pi_123")
	for i := 0; i < 3; i++ {
		rec := postWebhook(h, payload, signPayload(t, testSigningSecret, payload))
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i, rec.Code)
		}
	}

	if recon.confirmCalls != 1 {
		t.Fatalf("redelivered event must be applied once, got %d confirms", recon.confirmCalls)
	}
	if notifier.calls != 1 {
		t.Fatalf("redelivered event must notify once, got %d", notifier.calls)
	}
}

func TestWebhookFailureAfterConfirmDoesNotRegress(t *testing.T) {
	recon := &fakeReconciler{
		fail: appointments.ReconcileOutcome{
			Found:  true,
			Status: appointments.StatusConfirmed,
		},
	}
	h := NewWebhookHandler(testSigningSecret, recon, newFakeTracker(), nil, nil, nil)

	payload := intentEvent("evt_2", "payment_intent.payment_failed", "pi_123")
	rec := postWebhook(h, payload, signPayload(t, testSigningSecret, payload))

	if rec.Code != http.StatusOK {
		t.Fatalf("conflicting event is still acknowledged, got %d", rec.Code)
	}
	if recon.failCalls != 1 {
		t.Fatalf("expected conditional fail write attempted, got %d", recon.failCalls)
	}
}

func TestWebhookUnknownIntentStillAcknowledged(t *testing.T) {
	recon := &fakeReconciler{confirm: appointments.ReconcileOutcome{Found: false}}
	h := NewWebhookHandler(testSigningSecret, recon, newFakeTracker(), nil, nil, nil)

	payload := intentEvent("evt_3", "payment_intent.succeeded", "pi_unknown")
	rec := postWebhook(h, payload, signPayload(t, testSigningSecret, payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("unknown intent must not fail the webhook, got %d", rec.Code)
	}
}

func TestWebhookIgnoresUnrelatedEventTypes(t *testing.T) {
	recon := &fakeReconciler{}
	h := NewWebhookHandler(testSigningSecret, recon, newFakeTracker(), nil, nil, nil)

	payload := intentEvent("evt_4", "charge.refunded", "pi_123")
	rec := postWebhook(h, payload, signPayload(t, testSigningSecret, payload))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if recon.confirmCalls != 0 || recon.failCalls != 0 {
		t.Fatal("unrelated event types must not touch the store")
	}
}
