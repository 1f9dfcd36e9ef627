package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type fakeJobStore struct {
	jobs map[uuid.UUID]*Job
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[uuid.UUID]*Job)}
}

func (f *fakeJobStore) Create(_ context.Context, id uuid.UUID, filename, storageKey string) (*Job, error) {
	job := &Job{
		ID:         id,
		Filename:   filename,
		StorageKey: storageKey,
		Status:     JobStatusQueued,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	f.jobs[id] = job
	return job, nil
}

func (f *fakeJobStore) Get(_ context.Context, id uuid.UUID) (*Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newDocRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/documents", h.Upload)
	r.Get("/documents/{jobID}", h.Status)
	return r
}

func TestUploadStoresAndEnqueues(t *testing.T) {
	storage := NewMemoryStorage()
	queue := NewMemoryQueue(4)
	jobs := newFakeJobStore()
	router := newDocRouter(NewHandler(storage, queue, jobs, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "resume.txt", "Go developer"))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d %s", rec.Code, rec.Body.String())
	}
	var job Job
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.Status != JobStatusQueued {
		t.Fatalf("expected queued job, got %s", job.Status)
	}

	msgs, err := queue.Receive(context.Background(), 1, 1)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("expected enqueued job, got %d err=%v", len(msgs), err)
	}
	decoded, err := decodeJob(msgs[0].Body)
	if err != nil {
		t.Fatalf("decode job: %v", err)
	}
	data, err := storage.Get(context.Background(), decoded.StorageKey)
	if err != nil || string(data) != "Go developer" {
		t.Fatalf("expected stored document, got %q err=%v", data, err)
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	router := newDocRouter(NewHandler(NewMemoryStorage(), NewMemoryQueue(4), newFakeJobStore(), nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "resume.pdf", "%PDF-1.7"))
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rec.Code)
	}
}

func TestUploadRejectsEmptyFile(t *testing.T) {
	router := newDocRouter(NewHandler(NewMemoryStorage(), NewMemoryQueue(4), newFakeJobStore(), nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "resume.txt", ""))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	jobs := newFakeJobStore()
	id := uuid.New()
	_, _ = jobs.Create(context.Background(), id, "resume.txt", "resumes/k.txt")
	jobs.jobs[id].Status = JobStatusComplete
	jobs.jobs[id].Feedback = "Looks great"

	router := newDocRouter(NewHandler(NewMemoryStorage(), NewMemoryQueue(4), jobs, nil))

	req := httptest.NewRequest(http.MethodGet, "/documents/"+id.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var job Job
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.Status != JobStatusComplete || job.Feedback != "Looks great" {
		t.Fatalf("unexpected job %+v", job)
	}

	req = httptest.NewRequest(http.MethodGet, "/documents/"+uuid.NewString(), nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
