package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jparrish/portfolio-platform/pkg/logging"
)

var stripeTracer = otel.Tracer("portfolio.internal.payments.stripe")

// Intent is the subset of the gateway's payment intent visible to this
// system. The client secret is opaque and only handed to the payment UI.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	AmountCents  int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// Terminal intent statuses reported by the gateway.
const (
	IntentStatusSucceeded             = "succeeded"
	IntentStatusRequiresPaymentMethod = "requires_payment_method"
)

// StripeClient talks to the Stripe PaymentIntents API over raw HTTP.
type StripeClient struct {
	secretKey  string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewStripeClient creates a PaymentIntents API client. An empty secret key is
// allowed; calls will return ErrNotConfigured so the payment path degrades
// gracefully.
func NewStripeClient(secretKey string, logger *logging.Logger) *StripeClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &StripeClient{
		secretKey:  strings.TrimSpace(secretKey),
		baseURL:    "https://api.stripe.com",
		apiVersion: "2024-12-18.acacia",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the Stripe API base URL (for testing).
func (c *StripeClient) WithBaseURL(baseURL string) *StripeClient {
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// Configured reports whether credentials are present.
func (c *StripeClient) Configured() bool {
	return c.secretKey != ""
}

// CreatePaymentIntent creates an intent for amountCents in the given
// currency, echoing metadata back on later events.
func (c *StripeClient) CreatePaymentIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if currency == "" {
		currency = "usd"
	}

	ctx, span := stripeTracer.Start(ctx, "stripe.create_payment_intent")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("portfolio.amount_cents", amountCents),
		attribute.String("portfolio.currency", currency),
	)

	form := url.Values{}
	form.Set("amount", fmt.Sprintf("%d", amountCents))
	form.Set("currency", currency)
	form.Set("automatic_payment_methods[enabled]", "true")
	for k, v := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	return c.do(ctx, http.MethodPost, "/v1/payment_intents", strings.NewReader(form.Encode()))
}

// GetPaymentIntent fetches the authoritative state of an intent. Callers must
// never trust a client-side claim that payment succeeded.
func (c *StripeClient) GetPaymentIntent(ctx context.Context, intentID string) (*Intent, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(intentID) == "" {
		return nil, fmt.Errorf("payments: intent id required")
	}

	ctx, span := stripeTracer.Start(ctx, "stripe.get_payment_intent")
	defer span.End()
	span.SetAttributes(attribute.String("portfolio.intent_id", intentID))

	return c.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(intentID), nil)
}

func (c *StripeClient) do(ctx context.Context, method, path string, body io.Reader) (*Intent, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("payments: stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Stripe-Version", c.apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payments: stripe http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &GatewayError{
			Status:  resp.StatusCode,
			Message: readStripeError(resp.Body),
		}
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, fmt.Errorf("payments: stripe decode: %w", err)
	}
	if intent.ID == "" {
		return nil, fmt.Errorf("payments: stripe response missing intent id")
	}
	return &intent, nil
}

// stripeErrorResponse represents a Stripe API error.
type stripeErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func readStripeError(body io.Reader) string {
	data, err := io.ReadAll(body)
	if err != nil {
		return "unknown error"
	}
	var parsed stripeErrorResponse
	if json.Unmarshal(data, &parsed) == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return string(data)
}

// ToMinorUnits converts an amount in the site's base currency unit to the
// processor's minor-unit representation, rounding to the nearest cent so the
// conversion is exact for all representable currency amounts.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
