package payments

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jparrish/portfolio-platform/internal/appointments"
	"github.com/jparrish/portfolio-platform/pkg/logging"
)

var coordinatorTracer = otel.Tracer("portfolio.internal.payments.coordinator")

// gateway is the PaymentGateway contract the coordinator consumes.
type gateway interface {
	Configured() bool
	CreatePaymentIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error)
	GetPaymentIntent(ctx context.Context, intentID string) (*Intent, error)
}

// appointmentStore is the slice of the appointments repository the
// coordinator writes through.
type appointmentStore interface {
	Create(ctx context.Context, req *appointments.CreateRequest) (*appointments.Appointment, error)
	ConfirmByIntent(ctx context.Context, intentRef string) (appointments.ReconcileOutcome, error)
}

// Coordinator bridges the booking flow to the payment gateway for deposit
// collection and runs the synchronous half of payment reconciliation.
type Coordinator struct {
	gateway  gateway
	appts    appointmentStore
	currency string
	logger   *logging.Logger
}

// NewCoordinator creates a payment intent coordinator.
func NewCoordinator(gw gateway, appts appointmentStore, currency string, logger *logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.Default()
	}
	if currency == "" {
		currency = "usd"
	}
	return &Coordinator{gateway: gw, appts: appts, currency: currency, logger: logger}
}

// Configured reports whether the gateway credentials are present.
func (c *Coordinator) Configured() bool {
	return c.gateway != nil && c.gateway.Configured()
}

// CreateIntent requests a payment intent for amount (base currency units).
// The caller attaches the returned intent id to the in-progress appointment
// before the payment UI is shown.
func (c *Coordinator) CreateIntent(ctx context.Context, amount float64, metadata map[string]string) (*Intent, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	ctx, span := coordinatorTracer.Start(ctx, "payments.create_intent")
	defer span.End()
	span.SetAttributes(attribute.Float64("portfolio.amount", amount))

	intent, err := c.gateway.CreatePaymentIntent(ctx, ToMinorUnits(amount), c.currency, metadata)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	c.logger.Info("payment intent created",
		"intent_id", intent.ID,
		"amount_cents", intent.AmountCents,
	)
	return intent, nil
}

// ConfirmResult reports the outcome of the synchronous finalize path.
type ConfirmResult struct {
	Success bool                      `json:"success"`
	Status  string                    `json:"status"` // gateway-reported intent status
	Intent  *Intent                   `json:"payment_intent,omitempty"`
	Appt    *appointments.Appointment `json:"appointment,omitempty"`
}

// ConfirmAndFinalize re-fetches the intent's authoritative status from the
// gateway and, on success, records the appointment as confirmed. The
// client-side belief that payment succeeded is never trusted. This path races
// the webhook reconciler for the same intent; both converge through the same
// conditional write, and losing the race is not an error.
func (c *Coordinator) ConfirmAndFinalize(ctx context.Context, intentID string, data appointments.CreateRequest) (*ConfirmResult, error) {
	if strings.TrimSpace(intentID) == "" {
		return nil, fmt.Errorf("payments: intent id required")
	}
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	ctx, span := coordinatorTracer.Start(ctx, "payments.confirm_and_finalize")
	defer span.End()
	span.SetAttributes(attribute.String("portfolio.intent_id", intentID))

	intent, err := c.gateway.GetPaymentIntent(ctx, intentID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if intent.Status != IntentStatusSucceeded {
		c.logger.Warn("confirm requested for non-succeeded intent",
			"intent_id", intentID,
			"gateway_status", intent.Status,
		)
		return &ConfirmResult{Success: false, Status: intent.Status, Intent: intent}, nil
	}

	// The webhook path may already have applied the terminal state; a no-op
	// here still means the visitor sees "confirmed".
	outcome, err := c.appts.ConfirmByIntent(ctx, intentID)
	if err != nil {
		return nil, &PersistenceError{
			IntentID:    intentID,
			AmountCents: intent.AmountCents,
			Email:       data.Email,
			Err:         err,
		}
	}

	switch {
	case outcome.Applied:
		c.logger.Info("appointment confirmed via synchronous path",
			"intent_id", intentID, "appointment_id", outcome.ID)
	case outcome.Found && outcome.Status == appointments.StatusConfirmed:
		c.logger.Info("appointment already confirmed by webhook path",
			"intent_id", intentID, "appointment_id", outcome.ID)
	case outcome.Found:
		// A different terminal state is already durable. First writer wins;
		// report the stored state rather than overwriting it.
		c.logger.Warn("conflicting terminal state on confirm",
			"intent_id", intentID, "stored_status", outcome.Status)
		return &ConfirmResult{Success: false, Status: outcome.Status, Intent: intent}, nil
	default:
		// No appointment carries this intent yet: create it directly in
		// confirmed state carrying the verified payment result.
		data.PaymentIntentID = intentID
		data.PaymentStatus = appointments.PaymentStatusPaid
		data.Status = appointments.StatusConfirmed
		data.DepositCents = intent.AmountCents
		appt, err := c.appts.Create(ctx, &data)
		if err != nil {
			// Money captured, record not created: the most severe class.
			perr := &PersistenceError{
				IntentID:    intentID,
				AmountCents: intent.AmountCents,
				Email:       data.Email,
				Err:         err,
			}
			c.logger.Error("CRITICAL: charge captured but appointment not persisted",
				"intent_id", intentID,
				"amount_cents", intent.AmountCents,
				"visitor_email", data.Email,
				"error", err,
			)
			return nil, perr
		}
		return &ConfirmResult{Success: true, Status: intent.Status, Intent: intent, Appt: appt}, nil
	}

	return &ConfirmResult{Success: true, Status: intent.Status, Intent: intent}, nil
}
