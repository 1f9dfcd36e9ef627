package appointments

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Appointment lifecycle statuses. Once a record reaches a terminal status
// (confirmed or payment_failed) it may not be regressed by later events.
const (
	StatusPending       = "pending"
	StatusConfirmed     = "confirmed"
	StatusPaymentFailed = "payment_failed"
	StatusCancelled     = "cancelled"
)

// Payment statuses tracked alongside the appointment status.
const (
	PaymentStatusUnpaid = "unpaid"
	PaymentStatusPaid   = "paid"
	PaymentStatusFailed = "failed"
)

var (
	// ErrNotFound is returned when no appointment matches the lookup key.
	ErrNotFound = errors.New("appointments: not found")
	// ErrInvalidRequest is returned for missing visitor fields.
	ErrInvalidRequest = errors.New("appointments: invalid request")
)

// Appointment is a visitor's booking request.
type Appointment struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Date            string     `json:"date"` // YYYY-MM-DD
	TimeSlot        string     `json:"time_slot"`
	Message         string     `json:"message,omitempty"`
	TopicID         string     `json:"topic_id"`
	DurationMins    int        `json:"duration_mins"`
	Status          string     `json:"status"`
	PaymentStatus   string     `json:"payment_status"`
	PaymentIntentID *string    `json:"stripe_payment_intent_id,omitempty"`
	DepositCents    int64      `json:"deposit_cents,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ConfirmedAt     *time.Time `json:"confirmed_at,omitempty"`
}

// CreateRequest carries the accumulated booking selections at submission time.
type CreateRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Date            string `json:"date"`
	TimeSlot        string `json:"time_slot"`
	Message         string `json:"message"`
	TopicID         string `json:"topic_id"`
	DurationMins    int    `json:"duration_mins"`
	DepositCents    int64  `json:"deposit_cents"`
	PaymentIntentID string `json:"payment_intent_id"`
	PaymentStatus   string `json:"payment_status"`
	Status          string `json:"status"`
}

// Validate checks the visitor-supplied fields.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("appointments: name is required")
	}
	if strings.TrimSpace(r.Email) == "" {
		return errors.New("appointments: email is required")
	}
	if strings.TrimSpace(r.TopicID) == "" {
		return errors.New("appointments: topic_id is required")
	}
	if strings.TrimSpace(r.Date) == "" || strings.TrimSpace(r.TimeSlot) == "" {
		return errors.New("appointments: date and time_slot are required")
	}
	return nil
}

// ReconcileOutcome reports what a conditional terminal-state write did.
type ReconcileOutcome struct {
	// Found is false when no appointment carries the intent reference.
	Found bool
	// Applied is true when this writer performed the transition.
	Applied bool
	// Status is the appointment's status after the attempt.
	Status string
	// ID is the matched appointment, zero when Found is false.
	ID uuid.UUID
	// Email is the visitor email of the matched appointment, for notifications.
	Email string
	// Name is the visitor name of the matched appointment.
	Name string
}

// Conflicting reports whether a terminal event tried to overwrite a different
// terminal state. First terminal status durably applied wins.
func (o ReconcileOutcome) Conflicting(target string) bool {
	return o.Found && !o.Applied && o.Status != target
}
