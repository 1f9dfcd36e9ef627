package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jparrish/portfolio-platform/internal/appointments"
	"github.com/jparrish/portfolio-platform/internal/observability/metrics"
	"github.com/jparrish/portfolio-platform/internal/payments"
	"github.com/jparrish/portfolio-platform/pkg/logging"
)

// apptCreator is the appointments surface the booking flow submits through.
type apptCreator interface {
	Create(ctx context.Context, req *appointments.CreateRequest) (*appointments.Appointment, error)
}

// intentCoordinator is the payments surface used when a deposit topic reaches
// the payment step.
type intentCoordinator interface {
	Configured() bool
	CreateIntent(ctx context.Context, amount float64, metadata map[string]string) (*payments.Intent, error)
	ConfirmAndFinalize(ctx context.Context, intentID string, data appointments.CreateRequest) (*payments.ConfirmResult, error)
}

// bookingNotifier alerts the site owner about bookings submitted without a
// settled deposit. Confirmed deposits are announced by the webhook path.
type bookingNotifier interface {
	BookingReceived(ctx context.Context, name, email, topicID, date, slot string)
}

// Handler drives the booking wizard over HTTP. Sessions hold the accumulated
// selections; the handler layer owns every side effect (intent creation,
// appointment persistence) so the state machine stays pure.
type Handler struct {
	store        *SessionStore
	catalog      *Catalog
	availability *Availability
	appts        apptCreator
	coordinator  intentCoordinator
	notifier     bookingNotifier
	metrics      *metrics.BookingMetrics
	logger       *logging.Logger
}

// NewHandler creates the booking flow handler.
func NewHandler(
	store *SessionStore,
	catalog *Catalog,
	availability *Availability,
	appts apptCreator,
	coordinator intentCoordinator,
	m *metrics.BookingMetrics,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		store:        store,
		catalog:      catalog,
		availability: availability,
		appts:        appts,
		coordinator:  coordinator,
		metrics:      m,
		logger:       logger,
	}
}

// WithNotifier enables owner alerts for bookings that land in pending state.
func (h *Handler) WithNotifier(n bookingNotifier) *Handler {
	h.notifier = n
	return h
}

// sessionView is the wire shape of a session. The payment client secret rides
// along only on the transition into the payment step.
type sessionView struct {
	*Session
	RequiresDeposit bool    `json:"requires_deposit"`
	DepositAmount   float64 `json:"deposit_amount,omitempty"`
	ClientSecret    string  `json:"client_secret,omitempty"`
}

func (h *Handler) view(s *Session, clientSecret string) sessionView {
	v := sessionView{Session: s, ClientSecret: clientSecret}
	if t, ok := s.Topic(); ok {
		v.RequiresDeposit = t.RequiresDeposit
		v.DepositAmount = t.DepositAmount
	}
	return v
}

// Topics handles GET /topics.
func (h *Handler) Topics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"topics": h.catalog.All()})
}

// Slots handles GET /availability?date=YYYY-MM-DD.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date query parameter is required")
		return
	}
	slots, err := h.availability.SlotsFor(r.Context(), date)
	if err != nil {
		h.logger.Error("slot lookup failed", "error", err, "date", date)
		writeError(w, http.StatusBadRequest, "could not load availability for that date")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "slots": slots})
}

// Start handles POST /bookings.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	session := h.store.Create()
	h.metrics.ObserveSessionStarted()
	writeJSON(w, http.StatusCreated, h.view(session, ""))
}

// Get handles GET /bookings/{sessionID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := h.store.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "booking session not found or expired")
		return
	}
	writeJSON(w, http.StatusOK, h.view(session, ""))
}

// SelectDate handles POST /bookings/{sessionID}/date.
func (h *Handler) SelectDate(w http.ResponseWriter, r *http.Request) {
	session, ok := h.store.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "booking session not found or expired")
		return
	}

	var req struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		h.metrics.ObserveStep(string(StepSelectDate), "invalid")
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	if err := session.SelectDate(date); err != nil {
		h.stepError(w, StepSelectDate, err)
		return
	}
	h.metrics.ObserveStep(string(StepSelectDate), "ok")
	writeJSON(w, http.StatusOK, h.view(session, ""))
}

// SelectTime handles POST /bookings/{sessionID}/time.
func (h *Handler) SelectTime(w http.ResponseWriter, r *http.Request) {
	session, ok := h.store.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "booking session not found or expired")
		return
	}

	var req struct {
		TimeSlot string `json:"time_slot"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	available := false
	if session.Date != "" {
		var err error
		available, err = h.availability.IsAvailable(r.Context(), session.Date, req.TimeSlot)
		if err != nil {
			h.logger.Error("availability check failed", "error", err, "date", session.Date)
			writeError(w, http.StatusInternalServerError, "could not verify availability")
			return
		}
	}

	if err := session.SelectTime(req.TimeSlot, available); err != nil {
		h.stepError(w, StepSelectTime, err)
		return
	}
	h.metrics.ObserveStep(string(StepSelectTime), "ok")
	writeJSON(w, http.StatusOK, h.view(session, ""))
}

// SelectTopic handles POST /bookings/{sessionID}/topic.
func (h *Handler) SelectTopic(w http.ResponseWriter, r *http.Request) {
	session, ok := h.store.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "booking session not found or expired")
		return
	}

	var req struct {
		TopicID string `json:"topic_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := session.SelectTopic(req.TopicID); err != nil {
		h.stepError(w, StepSelectTopic, err)
		return
	}
	h.metrics.ObserveStep(string(StepSelectTopic), "ok")
	writeJSON(w, http.StatusOK, h.view(session, ""))
}

// EnterDetails handles POST /bookings/{sessionID}/details. When the selected
// topic needs a deposit, a payment intent is created here and its client
// secret returned for the payment UI; the intent reference is attached to the
// session before the secret leaves the server.
func (h *Handler) EnterDetails(w http.ResponseWriter, r *http.Request) {
	session, ok := h.store.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "booking session not found or expired")
		return
	}

	var req struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	step, err := session.EnterDetails(req.Name, req.Email, req.Message)
	if err != nil {
		h.stepError(w, StepEnterDetails, err)
		return
	}
	h.metrics.ObserveStep(string(StepEnterDetails), "ok")

	if step != StepCollectPayment {
		writeJSON(w, http.StatusOK, h.view(session, ""))
		return
	}

	topic, _ := session.Topic()
	if h.coordinator == nil || !h.coordinator.Configured() {
		// Deposit cannot be collected. The visitor may still use the
		// schedule-without-payment path on submit.
		h.logger.Warn("payment step reached without configured gateway", "session_id", session.ID)
		writeJSON(w, http.StatusOK, h.view(session, ""))
		return
	}

	intent, err := h.coordinator.CreateIntent(r.Context(), topic.DepositAmount, map[string]string{
		"booking_session": session.ID,
		"topic":           topic.ID,
	})
	if err != nil {
		h.logger.Error("deposit intent creation failed", "error", err, "session_id", session.ID)
		// The session already advanced; surface the failure and let the
		// visitor retry payment or schedule without it.
		writeJSON(w, http.StatusOK, h.view(session, ""))
		return
	}
	if err := session.AttachIntent(intent.ID); err != nil {
		h.logger.Error("could not attach intent to session", "error", err, "session_id", session.ID)
	}
	writeJSON(w, http.StatusOK, h.view(session, intent.ClientSecret))
}

// Back handles POST /bookings/{sessionID}/back.
func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	session, ok := h.store.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "booking session not found or expired")
		return
	}
	if err := session.Back(); err != nil {
		h.stepError(w, session.Step, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(session, ""))
}

// Submit handles POST /bookings/{sessionID}/submit and performs the single
// appointment submission for the session. From the details step (no-deposit
// topics) it creates a pending appointment. From the payment step it verifies
// the deposit through the gateway, or, with skip_payment set, records a
// pending unpaid appointment that still carries the intent reference so a
// later webhook can reconcile it. The session only reaches Confirmation after
// the appointment write succeeds; a failed write leaves the visitor's
// selections intact for retry.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	session, ok := h.store.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "booking session not found or expired")
		return
	}

	var req struct {
		PaymentIntentID string `json:"payment_intent_id"`
		SkipPayment     bool   `json:"skip_payment"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if session.Submitted {
		// Re-entering the confirmation view must not resubmit.
		writeJSON(w, http.StatusOK, h.view(session, ""))
		return
	}

	switch session.Step {
	case StepEnterDetails:
		h.submitFree(w, r, session)
	case StepCollectPayment:
		if req.SkipPayment {
			h.submitWithoutPayment(w, r, session)
			return
		}
		intentID := req.PaymentIntentID
		if intentID == "" {
			intentID = session.IntentID
		}
		h.submitPaid(w, r, session, intentID)
	default:
		h.stepError(w, session.Step, ErrWrongStep)
	}
}

func (h *Handler) submitFree(w http.ResponseWriter, r *http.Request, session *Session) {
	appt, err := h.appts.Create(r.Context(), h.createRequest(session, "", "", ""))
	if err != nil {
		h.logger.Error("appointment submission failed", "error", err, "session_id", session.ID)
		writeError(w, http.StatusInternalServerError, "could not save your booking, please try again")
		return
	}
	if err := session.Finalize(""); err != nil {
		h.stepError(w, session.Step, err)
		return
	}
	h.metrics.ObserveSubmission("free", session.TopicID)
	if h.notifier != nil {
		h.notifier.BookingReceived(r.Context(), session.Name, session.Email, session.TopicID, session.Date, session.TimeSlot)
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"session":     h.view(session, ""),
		"appointment": appt,
	})
}

func (h *Handler) submitWithoutPayment(w http.ResponseWriter, r *http.Request, session *Session) {
	appt, err := h.appts.Create(r.Context(), h.createRequest(session, session.IntentID, "", ""))
	if err != nil {
		h.logger.Error("appointment submission failed", "error", err, "session_id", session.ID)
		writeError(w, http.StatusInternalServerError, "could not save your booking, please try again")
		return
	}
	if err := session.Finalize(session.IntentID); err != nil {
		h.stepError(w, session.Step, err)
		return
	}
	h.metrics.ObserveSubmission("deferred", session.TopicID)
	h.logger.Info("booking submitted without deposit", "session_id", session.ID, "appointment_id", appt.ID)
	if h.notifier != nil {
		h.notifier.BookingReceived(r.Context(), session.Name, session.Email, session.TopicID, session.Date, session.TimeSlot)
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"session":     h.view(session, ""),
		"appointment": appt,
	})
}

func (h *Handler) submitPaid(w http.ResponseWriter, r *http.Request, session *Session, intentID string) {
	if intentID == "" {
		writeError(w, http.StatusBadRequest, "payment_intent_id is required")
		return
	}
	if h.coordinator == nil || !h.coordinator.Configured() {
		writeError(w, http.StatusInternalServerError, "payments are not available right now")
		return
	}

	result, err := h.coordinator.ConfirmAndFinalize(r.Context(), intentID, *h.createRequest(session, intentID, "", ""))
	if err != nil {
		var perr *payments.PersistenceError
		if errors.As(err, &perr) {
			writeError(w, http.StatusInternalServerError,
				"your payment was received but we could not record the appointment; we will follow up by email")
			return
		}
		h.logger.Error("deposit verification failed", "error", err, "session_id", session.ID)
		writeError(w, http.StatusBadGateway, "could not verify your payment")
		return
	}
	if !result.Success {
		// Payment has not settled. The visitor stays on the payment step and
		// can retry with a fresh intent.
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":  "payment has not succeeded",
			"status": result.Status,
		})
		return
	}

	if err := session.Finalize(intentID); err != nil {
		h.stepError(w, session.Step, err)
		return
	}
	h.metrics.ObserveSubmission("deposit", session.TopicID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"session":     h.view(session, ""),
		"appointment": result.Appt,
	})
}

// createRequest assembles the appointment submission from session state. The
// status and payment status overrides stay empty on the visitor paths; the
// repository applies pending/unpaid defaults.
func (h *Handler) createRequest(session *Session, intentID, status, paymentStatus string) *appointments.CreateRequest {
	duration := 0
	var depositCents int64
	if t, ok := session.Topic(); ok {
		duration = t.DurationMins
		if t.RequiresDeposit {
			depositCents = payments.ToMinorUnits(t.DepositAmount)
		}
	}
	return &appointments.CreateRequest{
		Name:            session.Name,
		Email:           session.Email,
		Date:            session.Date,
		TimeSlot:        session.TimeSlot,
		Message:         session.Message,
		TopicID:         session.TopicID,
		DurationMins:    duration,
		DepositCents:    depositCents,
		PaymentIntentID: intentID,
		Status:          status,
		PaymentStatus:   paymentStatus,
	}
}

// stepError maps state machine errors onto HTTP statuses. Validation failures
// are 400 and leave the session on its current step; sequencing violations
// are 409.
func (h *Handler) stepError(w http.ResponseWriter, step Step, err error) {
	h.metrics.ObserveStep(string(step), "rejected")
	switch {
	case errors.Is(err, ErrPastDate),
		errors.Is(err, ErrSlotUnavailable),
		errors.Is(err, ErrUnknownTopic),
		errors.Is(err, ErrMissingDetails):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrWrongStep),
		errors.Is(err, ErrAlreadySubmitted),
		errors.Is(err, ErrSessionComplete):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "unexpected booking error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
