// Package events tracks payment-gateway webhook event ids so that redelivered
// events are recognized and skipped.
package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProcessedStore persists gateway event ids that have already been applied.
// Gateways redeliver events until acknowledged, and may redeliver even after,
// so the store is consulted before any state-changing dispatch.
type ProcessedStore struct {
	pool rowQuerier
}

func NewProcessedStore(pool *pgxpool.Pool) *ProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &ProcessedStore{pool: pool}
}

func newProcessedStoreWithExec(exec rowQuerier) *ProcessedStore {
	if exec == nil {
		panic("events: exec required")
	}
	return &ProcessedStore{pool: exec}
}

// AlreadyProcessed reports whether this provider event id was applied before.
func (s *ProcessedStore) AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	query := `SELECT 1 FROM processed_webhook_events WHERE provider = $1 AND event_id = $2`
	var one int
	if err := s.pool.QueryRow(ctx, query, provider, eventID).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return true, nil
}

// MarkProcessed records an event id for the provider. It returns false when
// the id was already present, which lets two concurrent deliveries of the
// same event agree on a single winner.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	query := `
		INSERT INTO processed_webhook_events (provider, event_id, processed_at)
		VALUES ($1, $2, now())
		ON CONFLICT DO NOTHING
	`
	ct, err := s.pool.Exec(ctx, query, provider, eventID)
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// PurgeOlderThan deletes event ids processed before the cutoff. Gateways stop
// redelivering after a bounded window, so old ids serve no purpose.
func (s *ProcessedStore) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	query := `DELETE FROM processed_webhook_events WHERE processed_at < now() - $1::interval`
	ct, err := s.pool.Exec(ctx, query, fmt.Sprintf("%d seconds", int64(age.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("events: purge processed: %w", err)
	}
	return ct.RowsAffected(), nil
}
