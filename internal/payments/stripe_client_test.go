package payments

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreatePaymentIntentSendsForm(t *testing.T) {
	var gotPath, gotAuth, gotAmount, gotCurrency, gotTopic string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotAmount = r.PostForm.Get("amount")
		gotCurrency = r.PostForm.Get("currency")
		gotTopic = r.PostForm.Get("metadata[topic]")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_123","client_secret":"pi_123_secret","status":"requires_payment_method","amount":10000,"currency":"usd"}`))
	}))
	defer srv.Close()

	client := NewStripeClient("sk_test_abc", nil).WithBaseURL(srv.URL)
	intent, err := client.CreatePaymentIntent(context.Background(), 10000, "usd", map[string]string{"topic": "development"})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	if gotPath != "/v1/payment_intents" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotAuth != "Bearer sk_test_abc" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotAmount != "10000" || gotCurrency != "usd" || gotTopic != "development" {
		t.Fatalf("unexpected form values amount=%s currency=%s topic=%s", gotAmount, gotCurrency, gotTopic)
	}
	if intent.ID != "pi_123" || intent.ClientSecret != "pi_123_secret" {
		t.Fatalf("unexpected intent %+v", intent)
	}
}

func TestGetPaymentIntentReturnsAuthoritativeStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/payment_intents/pi_123" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_123","status":"succeeded","amount":10000,"currency":"usd"}`))
	}))
	defer srv.Close()

	client := NewStripeClient("sk_test_abc", nil).WithBaseURL(srv.URL)
	intent, err := client.GetPaymentIntent(context.Background(), "pi_123")
	if err != nil {
		t.Fatalf("get intent: %v", err)
	}
	if intent.Status != IntentStatusSucceeded {
		t.Fatalf("expected succeeded, got %s", intent.Status)
	}
	if intent.AmountCents != 10000 {
		t.Fatalf("expected amount 10000, got %d", intent.AmountCents)
	}
}

func TestStripeErrorsSurfaceAsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"message":"Your card was declined.","type":"card_error","code":"card_declined"}}`))
	}))
	defer srv.Close()

	client := NewStripeClient("sk_test_abc", nil).WithBaseURL(srv.URL)
	_, err := client.CreatePaymentIntent(context.Background(), 5000, "usd", nil)

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gwErr.Status != http.StatusPaymentRequired {
		t.Fatalf("unexpected status %d", gwErr.Status)
	}
	if gwErr.Message != "Your card was declined." {
		t.Fatalf("unexpected message %q", gwErr.Message)
	}
}

func TestUnconfiguredClientRejectsCalls(t *testing.T) {
	client := NewStripeClient("", nil)
	if client.Configured() {
		t.Fatal("expected unconfigured client")
	}
	if _, err := client.CreatePaymentIntent(context.Background(), 5000, "usd", nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := client.GetPaymentIntent(context.Background(), "pi_123"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestToMinorUnitsIsExact(t *testing.T) {
	cases := []struct {
		amount float64
		want   int64
	}{
		{100, 10000},
		{50, 5000},
		{19.99, 1999},
		{0.1, 10},
		{249.95, 24995},
	}
	for _, tc := range cases {
		if got := ToMinorUnits(tc.amount); got != tc.want {
			t.Fatalf("ToMinorUnits(%v) = %d, want %d", tc.amount, got, tc.want)
		}
	}
}
