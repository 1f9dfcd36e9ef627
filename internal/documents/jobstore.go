package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Job statuses. A job moves queued → processing → complete|failed.
const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusComplete   = "complete"
	JobStatusFailed     = "failed"
)

// ErrJobNotFound is returned when no job matches the id.
var ErrJobNotFound = errors.New("documents: job not found")

// Job is a resume analysis job record.
type Job struct {
	ID          uuid.UUID  `json:"id"`
	Filename    string     `json:"filename"`
	StorageKey  string     `json:"-"`
	Status      string     `json:"status"`
	Feedback    string     `json:"feedback,omitempty"`
	ErrorReason string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type jobQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// JobStore persists analysis jobs in postgres.
type JobStore struct {
	pool jobQuerier
}

func NewJobStore(pool *pgxpool.Pool) *JobStore {
	if pool == nil {
		panic("documents: pgx pool required")
	}
	return &JobStore{pool: pool}
}

func newJobStoreWithQuerier(q jobQuerier) *JobStore {
	if q == nil {
		panic("documents: querier required")
	}
	return &JobStore{pool: q}
}

// Create inserts a queued job.
func (s *JobStore) Create(ctx context.Context, id uuid.UUID, filename, storageKey string) (*Job, error) {
	query := `
		INSERT INTO document_jobs (id, filename, storage_key, status)
		VALUES ($1, $2, $3, 'queued')
		RETURNING created_at, updated_at
	`
	job := &Job{ID: id, Filename: filename, StorageKey: storageKey, Status: JobStatusQueued}
	if err := s.pool.QueryRow(ctx, query, id, filename, storageKey).Scan(&job.CreatedAt, &job.UpdatedAt); err != nil {
		return nil, fmt.Errorf("documents: insert job: %w", err)
	}
	return job, nil
}

// MarkProcessing transitions a queued job to processing. Returns false when
// the job was already claimed, so two workers never analyze the same upload.
func (s *JobStore) MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE document_jobs
		SET status = 'processing', updated_at = now()
		WHERE id = $1 AND status = 'queued'
	`
	ct, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("documents: mark processing: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// Complete stores the analysis feedback.
func (s *JobStore) Complete(ctx context.Context, id uuid.UUID, feedback string) error {
	query := `
		UPDATE document_jobs
		SET status = 'complete', feedback = $2, updated_at = now(), completed_at = now()
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, query, id, feedback); err != nil {
		return fmt.Errorf("documents: complete job: %w", err)
	}
	return nil
}

// Fail records an analysis failure.
func (s *JobStore) Fail(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE document_jobs
		SET status = 'failed', error_reason = $2, updated_at = now()
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, query, id, reason); err != nil {
		return fmt.Errorf("documents: fail job: %w", err)
	}
	return nil
}

// Get returns a job by id.
func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	query := `
		SELECT id, filename, storage_key, status,
			COALESCE(feedback, ''), COALESCE(error_reason, ''),
			created_at, updated_at, completed_at
		FROM document_jobs WHERE id = $1
	`
	var job Job
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&job.ID,
		&job.Filename,
		&job.StorageKey,
		&job.Status,
		&job.Feedback,
		&job.ErrorReason,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("documents: get job: %w", err)
	}
	return &job, nil
}
