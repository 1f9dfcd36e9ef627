package payments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jparrish/portfolio-platform/internal/appointments"
	"github.com/jparrish/portfolio-platform/internal/observability/metrics"
	"github.com/jparrish/portfolio-platform/pkg/logging"
)

// Handler serves the standalone payment endpoints used by the booking UI.
type Handler struct {
	coordinator *Coordinator
	metrics     *metrics.PaymentMetrics
	logger      *logging.Logger
}

// NewHandler creates the payments HTTP handler.
func NewHandler(coordinator *Coordinator, m *metrics.PaymentMetrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{coordinator: coordinator, metrics: m, logger: logger}
}

type createIntentRequest struct {
	Amount   float64           `json:"amount"`
	Currency string            `json:"currency,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type createIntentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// CreateIntent handles POST /payment-intents. The amount is in base currency
// units; conversion to the processor's minor units happens inside the
// coordinator.
func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	intent, err := h.coordinator.CreateIntent(r.Context(), req.Amount, req.Metadata)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			h.metrics.ObserveIntentCreated("invalid_amount")
			writeJSONError(w, http.StatusBadRequest, "amount must be a positive number")
		case errors.Is(err, ErrNotConfigured):
			h.metrics.ObserveIntentCreated("not_configured")
			h.logger.Error("payment intent requested but gateway not configured")
			writeJSONError(w, http.StatusInternalServerError, "payments are not available right now")
		default:
			h.metrics.ObserveIntentCreated("gateway_error")
			h.logger.Error("payment intent creation failed", "error", err)
			var gwErr *GatewayError
			if errors.As(err, &gwErr) {
				writeJSONError(w, http.StatusBadGateway, gwErr.Message)
				return
			}
			writeJSONError(w, http.StatusInternalServerError, "failed to create payment intent")
		}
		return
	}

	h.metrics.ObserveIntentCreated("ok")
	writeJSON(w, http.StatusOK, createIntentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	})
}

type confirmRequest struct {
	PaymentIntentID string                     `json:"paymentIntentId"`
	Appointment     appointments.CreateRequest `json:"appointment"`
}

type confirmResponse struct {
	Success     bool                      `json:"success"`
	Status      string                    `json:"status"`
	Appointment *appointments.Appointment `json:"appointment,omitempty"`
}

// Confirm handles POST /confirm-payment. The gateway is re-queried for the
// intent's authoritative status; the client's claim of success is never
// trusted. A persistence failure after a captured charge is the one case that
// returns 500 with the charge already made, so it is logged at the highest
// severity before responding.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PaymentIntentID == "" {
		writeJSONError(w, http.StatusBadRequest, "paymentIntentId is required")
		return
	}

	result, err := h.coordinator.ConfirmAndFinalize(r.Context(), req.PaymentIntentID, req.Appointment)
	if err != nil {
		var perr *PersistenceError
		switch {
		case errors.As(err, &perr):
			h.metrics.ObserveConfirm("persistence_error")
			writeJSONError(w, http.StatusInternalServerError,
				"your payment was received but we could not record the appointment; we will follow up by email")
		case errors.Is(err, ErrNotConfigured):
			h.metrics.ObserveConfirm("not_configured")
			writeJSONError(w, http.StatusInternalServerError, "payments are not available right now")
		default:
			h.metrics.ObserveConfirm("gateway_error")
			h.logger.Error("payment confirmation failed", "error", err, "intent_id", req.PaymentIntentID)
			writeJSONError(w, http.StatusBadGateway, "could not verify payment status")
		}
		return
	}

	if !result.Success {
		h.metrics.ObserveConfirm("not_succeeded")
		writeJSON(w, http.StatusConflict, confirmResponse{
			Success: false,
			Status:  result.Status,
		})
		return
	}

	h.metrics.ObserveConfirm("ok")
	writeJSON(w, http.StatusOK, confirmResponse{
		Success:     true,
		Status:      result.Status,
		Appointment: result.Appt,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
