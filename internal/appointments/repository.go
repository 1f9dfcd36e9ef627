package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the subset of pgxpool.Pool the repository needs. pgxmock
// satisfies it in tests.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists appointment requests. All terminal-state writers go
// through the conditional updates below; the appointment row is the single
// shared mutable resource between the synchronous confirmation path and the
// webhook reconciler.
type Repository struct {
	pool querier
}

// NewRepository creates a repository backed by pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &Repository{pool: pool}
}

// NewRepositoryWithQuerier allows injecting a mock for tests.
func NewRepositoryWithQuerier(q querier) *Repository {
	if q == nil {
		panic("appointments: querier required")
	}
	return &Repository{pool: q}
}

const appointmentColumns = `id, name, email, date, time_slot, message, topic_id,
	duration_mins, status, payment_status, stripe_payment_intent_id,
	deposit_cents, created_at, updated_at, confirmed_at`

// Create inserts a new appointment. Status defaults to pending and payment
// status to unpaid unless the request carries explicit values (the
// post-payment finalize path inserts confirmed/paid directly).
func (r *Repository) Create(ctx context.Context, req *CreateRequest) (*Appointment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = StatusPending
	}
	paymentStatus := req.PaymentStatus
	if paymentStatus == "" {
		paymentStatus = PaymentStatusUnpaid
	}

	var intentRef *string
	if ref := strings.TrimSpace(req.PaymentIntentID); ref != "" {
		intentRef = &ref
	}

	id := uuid.New()
	query := `
		INSERT INTO appointments (id, name, email, date, time_slot, message,
			topic_id, duration_mins, status, payment_status,
			stripe_payment_intent_id, deposit_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`
	var createdAt, updatedAt time.Time
	if err := r.pool.QueryRow(ctx, query,
		id,
		strings.TrimSpace(req.Name),
		strings.TrimSpace(req.Email),
		req.Date,
		req.TimeSlot,
		req.Message,
		req.TopicID,
		req.DurationMins,
		status,
		paymentStatus,
		intentRef,
		req.DepositCents,
	).Scan(&createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("appointments: insert failed: %w", err)
	}

	return &Appointment{
		ID:              id,
		Name:            strings.TrimSpace(req.Name),
		Email:           strings.TrimSpace(req.Email),
		Date:            req.Date,
		TimeSlot:        req.TimeSlot,
		Message:         req.Message,
		TopicID:         req.TopicID,
		DurationMins:    req.DurationMins,
		Status:          status,
		PaymentStatus:   paymentStatus,
		PaymentIntentID: intentRef,
		DepositCents:    req.DepositCents,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}, nil
}

// AttachIntent records the payment intent reference on a pending appointment.
// The reference is immutable once set; a second attach is rejected by the
// conditional predicate.
func (r *Repository) AttachIntent(ctx context.Context, id uuid.UUID, intentRef string) error {
	query := `
		UPDATE appointments
		SET stripe_payment_intent_id = $2, updated_at = now()
		WHERE id = $1 AND stripe_payment_intent_id IS NULL
	`
	ct, err := r.pool.Exec(ctx, query, id, intentRef)
	if err != nil {
		return fmt.Errorf("appointments: attach intent: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("appointments: intent already attached or appointment %s missing", id)
	}
	return nil
}

// ConfirmByIntent performs the compare-and-set transition to confirmed for
// the appointment carrying the intent reference. The predicate excludes rows
// already in a terminal status, so whichever writer observes the
// pre-confirmed state first wins and the loser's write is a no-op.
func (r *Repository) ConfirmByIntent(ctx context.Context, intentRef string) (ReconcileOutcome, error) {
	return r.applyTerminal(ctx, intentRef, StatusConfirmed, PaymentStatusPaid)
}

// FailByIntent performs the compare-and-set transition to payment_failed.
func (r *Repository) FailByIntent(ctx context.Context, intentRef string) (ReconcileOutcome, error) {
	return r.applyTerminal(ctx, intentRef, StatusPaymentFailed, PaymentStatusFailed)
}

func (r *Repository) applyTerminal(ctx context.Context, intentRef, status, paymentStatus string) (ReconcileOutcome, error) {
	query := `
		UPDATE appointments
		SET status = $2, payment_status = $3, updated_at = now(),
			confirmed_at = CASE WHEN $2 = 'confirmed' THEN now() ELSE confirmed_at END
		WHERE stripe_payment_intent_id = $1
			AND status NOT IN ('confirmed', 'payment_failed')
		RETURNING id, email, name
	`
	var out ReconcileOutcome
	err := r.pool.QueryRow(ctx, query, intentRef, status, paymentStatus).Scan(&out.ID, &out.Email, &out.Name)
	if err == nil {
		out.Found = true
		out.Applied = true
		out.Status = status
		return out, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return out, fmt.Errorf("appointments: terminal update: %w", err)
	}

	// No row moved: either the intent is unknown or the record already
	// reached a terminal status. Distinguish the two for the caller's logging.
	lookup := `
		SELECT id, status, email, name FROM appointments
		WHERE stripe_payment_intent_id = $1
	`
	err = r.pool.QueryRow(ctx, lookup, intentRef).Scan(&out.ID, &out.Status, &out.Email, &out.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("appointments: terminal lookup: %w", err)
	}
	out.Found = true
	return out, nil
}

// GetByIntent fetches an appointment by its payment intent reference.
func (r *Repository) GetByIntent(ctx context.Context, intentRef string) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE stripe_payment_intent_id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, intentRef))
}

// GetByID fetches an appointment by identifier.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

// BookedSlots returns the time slots on a date held by appointments that are
// still live. Failed and cancelled records release their slot.
func (r *Repository) BookedSlots(ctx context.Context, date string) (map[string]bool, error) {
	query := `
		SELECT time_slot FROM appointments
		WHERE date = $1 AND status IN ('pending', 'confirmed')
	`
	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("appointments: booked slots: %w", err)
	}
	defer rows.Close()

	booked := make(map[string]bool)
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, fmt.Errorf("appointments: booked slots scan: %w", err)
		}
		booked[slot] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: booked slots rows: %w", err)
	}
	return booked, nil
}

// List returns recent appointments, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]*Appointment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT ` + appointmentColumns + ` FROM appointments ORDER BY created_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: list rows: %w", err)
	}
	return out, nil
}

func (r *Repository) scanOne(row pgx.Row) (*Appointment, error) {
	appt, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return appt, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var appt Appointment
	if err := row.Scan(
		&appt.ID,
		&appt.Name,
		&appt.Email,
		&appt.Date,
		&appt.TimeSlot,
		&appt.Message,
		&appt.TopicID,
		&appt.DurationMins,
		&appt.Status,
		&appt.PaymentStatus,
		&appt.PaymentIntentID,
		&appt.DepositCents,
		&appt.CreatedAt,
		&appt.UpdatedAt,
		&appt.ConfirmedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("appointments: scan failed: %w", err)
	}
	return &appt, nil
}
