package appointments

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/jparrish/portfolio-platform/pkg/logging"
)

func TestCreateHandlerReturnsPendingRecord(t *testing.T) {
	mock, repo := newMockRepo(t)
	handler := NewHandler(repo, logging.Default())

	now := time.Now().UTC()
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), "Jane Doe", "jane@example.com", "2026-09-01", "10:00",
			"", "consultation", 30, StatusPending, PaymentStatusUnpaid, (*string)(nil), int64(0)).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	body, _ := json.Marshal(map[string]any{
		"name":          "Jane Doe",
		"email":         "jane@example.com",
		"date":          "2026-09-01",
		"time_slot":     "10:00",
		"topic_id":      "consultation",
		"duration_mins": 30,
	})
	req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	handler.Create(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var appt Appointment
	if err := json.Unmarshal(rr.Body.Bytes(), &appt); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if appt.Status != StatusPending {
		t.Errorf("expected pending status in response, got %s", appt.Status)
	}
	if appt.ID.String() == "" {
		t.Error("expected generated identifier")
	}
}

func TestCreateHandlerIgnoresClientLifecycleFields(t *testing.T) {
	mock, repo := newMockRepo(t)
	handler := NewHandler(repo, logging.Default())

	now := time.Now().UTC()
	// The insert must still carry pending/unpaid even though the client sent
	// confirmed/paid.
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), "Jane Doe", "jane@example.com", "2026-09-01", "10:00",
			"", "consultation", 0, StatusPending, PaymentStatusUnpaid, (*string)(nil), int64(0)).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	body, _ := json.Marshal(map[string]any{
		"name":           "Jane Doe",
		"email":          "jane@example.com",
		"date":           "2026-09-01",
		"time_slot":      "10:00",
		"topic_id":       "consultation",
		"status":         StatusConfirmed,
		"payment_status": PaymentStatusPaid,
	})
	req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	handler.Create(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateHandlerRejectsMissingFields(t *testing.T) {
	_, repo := newMockRepo(t)
	handler := NewHandler(repo, logging.Default())

	body := []byte(`{"name":"", "email":"jane@example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	handler.Create(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestGetHandlerUnknownID(t *testing.T) {
	mock, repo := newMockRepo(t)
	handler := NewHandler(repo, logging.Default())

	mock.ExpectQuery("SELECT").WithArgs(pgxmock.AnyArg()).WillReturnError(pgx.ErrNoRows)

	r := chi.NewRouter()
	r.Get("/appointments/{appointmentID}", handler.Get)

	req := httptest.NewRequest(http.MethodGet, "/appointments/6fa459ea-ee8a-3ca4-894e-db77e160355e", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
