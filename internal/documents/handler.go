package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jparrish/portfolio-platform/pkg/logging"
)

const maxUploadBytes = 2 << 20 // 2 MiB covers any plausible resume

var allowedExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// jobReader is the job store surface the handler reads status through.
type jobReader interface {
	Create(ctx context.Context, id uuid.UUID, filename, storageKey string) (*Job, error)
	Get(ctx context.Context, id uuid.UUID) (*Job, error)
}

// Handler accepts resume uploads and reports job status.
type Handler struct {
	storage ObjectStorage
	queue   Queue
	jobs    jobReader
	logger  *logging.Logger
}

func NewHandler(storage ObjectStorage, queue Queue, jobs jobReader, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{storage: storage, queue: queue, jobs: jobs, logger: logger}
}

// Upload handles POST /documents: a multipart form with a "file" field. The
// file lands in the blob store, the job row is created, and the analysis job
// is enqueued; the response carries the job id for polling.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "upload must be a multipart form under 2 MiB")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		writeError(w, http.StatusUnsupportedMediaType, "only plain-text resumes (.txt, .md) are supported")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "uploaded file is empty")
		return
	}

	jobID := uuid.New()
	key := fmt.Sprintf("resumes/%s%s", jobID, ext)
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	if err := h.storage.Put(r.Context(), key, contentType, data); err != nil {
		h.logger.Error("document upload storage failed", "error", err, "job_id", jobID)
		writeError(w, http.StatusInternalServerError, "could not store the upload")
		return
	}

	job, err := h.jobs.Create(r.Context(), jobID, header.Filename, key)
	if err != nil {
		h.logger.Error("document job create failed", "error", err, "job_id", jobID)
		writeError(w, http.StatusInternalServerError, "could not create the analysis job")
		return
	}

	body, err := encodeJob(analysisJob{
		ID:          jobID.String(),
		StorageKey:  key,
		Filename:    header.Filename,
		ContentType: contentType,
	})
	if err == nil {
		err = h.queue.Send(r.Context(), body)
	}
	if err != nil {
		h.logger.Error("document job enqueue failed", "error", err, "job_id", jobID)
		writeError(w, http.StatusInternalServerError, "could not queue the analysis job")
		return
	}

	h.logger.Info("document analysis queued", "job_id", jobID, "filename", header.Filename)
	writeJSON(w, http.StatusAccepted, job)
}

// Status handles GET /documents/{jobID}.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := h.jobs.Get(r.Context(), id)
	if errors.Is(err, ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		h.logger.Error("document job lookup failed", "error", err, "job_id", id)
		writeError(w, http.StatusInternalServerError, "could not load job status")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
