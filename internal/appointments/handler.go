package appointments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jparrish/portfolio-platform/pkg/logging"
)

// Handler exposes the appointment record endpoints.
type Handler struct {
	repo   *Repository
	logger *logging.Logger
}

// NewHandler creates an appointments handler.
func NewHandler(repo *Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// Create handles POST /appointments. The record is created in pending status;
// payment reconciliation moves it to a terminal state later.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	// Clients may not set lifecycle fields directly.
	req.Status = ""
	if req.PaymentStatus != PaymentStatusUnpaid {
		req.PaymentStatus = ""
	}

	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	appt, err := h.repo.Create(r.Context(), &req)
	if err != nil {
		h.logger.Error("appointment insert failed", "error", err, "topic_id", req.TopicID)
		http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		return
	}

	h.logger.Info("appointment created",
		"appointment_id", appt.ID,
		"topic_id", appt.TopicID,
		"status", appt.Status,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(appt)
}

// Get handles GET /appointments/{appointmentID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return
	}

	appt, err := h.repo.GetByID(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "appointment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("appointment lookup failed", "error", err, "appointment_id", id)
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(appt)
}
