package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jparrish/portfolio-platform/internal/chat"
	"github.com/jparrish/portfolio-platform/pkg/logging"
)

const analysisSystemPrompt = `You are a senior engineering hiring manager reviewing a resume.
Give specific, actionable feedback: strengths, weaknesses, unclear wording, and missing impact metrics.
Structure the review as short sections. Do not invent facts about the candidate.`

// maxResumeChars bounds what is sent to the model.
const maxResumeChars = 24000

// jobUpdater is the job store surface the worker writes through.
type jobUpdater interface {
	MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	Complete(ctx context.Context, id uuid.UUID, feedback string) error
	Fail(ctx context.Context, id uuid.UUID, reason string) error
}

// Worker drains the analysis queue: fetches the uploaded document, runs the
// review prompt, and stores the feedback on the job.
type Worker struct {
	queue   Queue
	storage ObjectStorage
	jobs    jobUpdater
	llm     chat.LLMClient
	model   string
	logger  *logging.Logger
}

func NewWorker(queue Queue, storage ObjectStorage, jobs jobUpdater, llm chat.LLMClient, model string, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{
		queue:   queue,
		storage: storage,
		jobs:    jobs,
		llm:     llm,
		model:   model,
		logger:  logger,
	}
}

// Run polls the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("document worker started")
	for {
		if ctx.Err() != nil {
			w.logger.Info("document worker stopping")
			return
		}

		messages, err := w.queue.Receive(ctx, 5, 10)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			w.logger.Error("document queue receive failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg Message) {
	job, err := decodeJob(msg.Body)
	if err != nil {
		// Undecodable messages never succeed; drop them.
		w.logger.Error("dropping malformed job message", "error", err, "message_id", msg.ID)
		_ = w.queue.Delete(ctx, msg.ReceiptHandle)
		return
	}

	if err := w.process(ctx, job); err != nil {
		w.logger.Error("document analysis failed", "error", err, "job_id", job.ID)
		// The message is still deleted: the failure is recorded on the job row
		// and retrying the same document would fail the same way.
	}
	_ = w.queue.Delete(ctx, msg.ReceiptHandle)
}

func (w *Worker) process(ctx context.Context, job analysisJob) error {
	id, err := uuid.Parse(job.ID)
	if err != nil {
		return fmt.Errorf("documents: invalid job id %q: %w", job.ID, err)
	}

	claimed, err := w.jobs.MarkProcessing(ctx, id)
	if err != nil {
		return err
	}
	if !claimed {
		w.logger.Info("job already claimed, skipping", "job_id", job.ID)
		return nil
	}

	data, err := w.storage.Get(ctx, job.StorageKey)
	if err != nil {
		_ = w.jobs.Fail(ctx, id, "could not load the uploaded document")
		return err
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		_ = w.jobs.Fail(ctx, id, "document is empty")
		return fmt.Errorf("documents: job %s document is empty", job.ID)
	}
	if len(text) > maxResumeChars {
		text = text[:maxResumeChars]
	}

	resp, err := w.llm.Complete(ctx, chat.CompletionRequest{
		Model:       w.model,
		System:      []string{analysisSystemPrompt},
		Messages:    []chat.Message{{Role: chat.RoleUser, Content: text}},
		MaxTokens:   2048,
		Temperature: 0.2,
	})
	if err != nil {
		_ = w.jobs.Fail(ctx, id, "analysis model is unavailable")
		return err
	}

	if err := w.jobs.Complete(ctx, id, resp.Text); err != nil {
		return err
	}
	w.logger.Info("document analysis complete", "job_id", job.ID, "filename", job.Filename)
	return nil
}
