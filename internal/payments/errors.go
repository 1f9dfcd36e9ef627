package payments

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured signals missing gateway credentials. The payment step
	// degrades to a visible message instead of crashing.
	ErrNotConfigured = errors.New("payments: gateway is not configured")
	// ErrInvalidAmount is returned for a missing or non-positive amount.
	ErrInvalidAmount = errors.New("payments: amount must be positive")
)

// GatewayError carries a failure reported by the payment processor. The
// visitor sees the processor's message where available and stays on the
// payment step for retry.
type GatewayError struct {
	Status  int
	Message string
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("payments: gateway error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("payments: gateway error (status %d)", e.Status)
}

// PersistenceError marks the highest-severity failure class: the charge
// succeeded but the appointment record could not be written. It carries the
// context needed for manual reconciliation.
type PersistenceError struct {
	IntentID    string
	AmountCents int64
	Email       string
	Err         error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("payments: appointment persistence failed after successful charge (intent %s): %v", e.IntentID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
