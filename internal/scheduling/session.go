package scheduling

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// Step identifies a stage of the booking flow. Steps are linear with one
// conditional branch: payment is only collected for deposit topics.
type Step string

const (
	StepSelectDate     Step = "select_date"
	StepSelectTime     Step = "select_time"
	StepSelectTopic    Step = "select_topic"
	StepEnterDetails   Step = "enter_details"
	StepCollectPayment Step = "collect_payment"
	StepConfirmation   Step = "confirmation"
)

var (
	// ErrWrongStep is returned when an action does not match the current step.
	ErrWrongStep = errors.New("scheduling: action not valid for current step")
	// ErrPastDate is returned for dates before today; the session stays on
	// the date step.
	ErrPastDate = errors.New("scheduling: date must not be in the past")
	// ErrSlotUnavailable is returned for unavailable time slots.
	ErrSlotUnavailable = errors.New("scheduling: time slot is not available")
	// ErrUnknownTopic is returned for topic ids missing from the catalog.
	ErrUnknownTopic = errors.New("scheduling: unknown topic")
	// ErrMissingDetails is returned when name or email are blank after trimming.
	ErrMissingDetails = errors.New("scheduling: name and email are required")
	// ErrAlreadySubmitted guards against duplicate appointment submission.
	ErrAlreadySubmitted = errors.New("scheduling: booking already submitted")
	// ErrSessionComplete is returned for actions after Confirmation.
	ErrSessionComplete = errors.New("scheduling: session is complete")
)

// Session accumulates a visitor's booking selections across the step flow.
// It is a pure state machine; persistence and network side effects live in
// the handler layer. State transitions serialize on a per-session mutex, so
// concurrent requests replaying the same session id cannot interleave a
// transition; the loser sees ErrWrongStep or ErrAlreadySubmitted.
type Session struct {
	ID        string    `json:"id"`
	Step      Step      `json:"step"`
	Date      string    `json:"date,omitempty"` // YYYY-MM-DD
	TimeSlot  string    `json:"time_slot,omitempty"`
	TopicID   string    `json:"topic_id,omitempty"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Message   string    `json:"message,omitempty"`
	Submitted bool      `json:"submitted"`
	IntentID  string    `json:"payment_intent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	mu      sync.Mutex
	catalog *Catalog
	now     func() time.Time
}

// NewSession starts a booking session at the date step.
func NewSession(id string, catalog *Catalog) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		Step:      StepSelectDate,
		CreatedAt: now,
		UpdatedAt: now,
		catalog:   catalog,
		now:       time.Now,
	}
}

// withClock overrides the session clock for tests.
func (s *Session) withClock(now func() time.Time) *Session {
	s.now = now
	return s
}

// Topic returns the selected topic, if any.
func (s *Session) Topic() (Topic, bool) {
	if s.TopicID == "" {
		return Topic{}, false
	}
	return s.catalog.Get(s.TopicID)
}

// RequiresDeposit reports whether the selected topic routes through payment.
func (s *Session) RequiresDeposit() bool {
	t, ok := s.Topic()
	return ok && t.RequiresDeposit
}

// SelectDate advances to the time step when the date is today or later.
// Time-of-day is ignored for the comparison. A past date leaves the session
// on the date step.
func (s *Session) SelectDate(date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireStep(StepSelectDate); err != nil {
		return err
	}
	today := s.now().UTC().Truncate(24 * time.Hour)
	chosen := date.UTC().Truncate(24 * time.Hour)
	if chosen.Before(today) {
		return ErrPastDate
	}
	s.Date = chosen.Format("2006-01-02")
	s.advance(StepSelectTime)
	return nil
}

// SelectTime advances to the topic step for an available slot. Unavailable
// slots are not selectable.
func (s *Session) SelectTime(slot string, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireStep(StepSelectTime); err != nil {
		return err
	}
	if !available || strings.TrimSpace(slot) == "" {
		return ErrSlotUnavailable
	}
	s.TimeSlot = slot
	s.advance(StepSelectTopic)
	return nil
}

// SelectTopic advances to the details step. Unconditional once the topic
// exists in the catalog.
func (s *Session) SelectTopic(topicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireStep(StepSelectTopic); err != nil {
		return err
	}
	if _, ok := s.catalog.Get(topicID); !ok {
		return ErrUnknownTopic
	}
	s.TopicID = topicID
	s.advance(StepEnterDetails)
	return nil
}

// EnterDetails validates the visitor's identity fields and routes to payment
// collection for deposit topics. For no-deposit topics the session stays on
// the details step until the caller's single submission succeeds, so a failed
// submission can be retried without re-entering fields. The returned step
// tells the caller which side effect to run next.
func (s *Session) EnterDetails(name, email, message string) (Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireStep(StepEnterDetails); err != nil {
		return s.Step, err
	}
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return s.Step, ErrMissingDetails
	}
	s.Name = name
	s.Email = email
	s.Message = strings.TrimSpace(message)

	if s.RequiresDeposit() {
		s.advance(StepCollectPayment)
	}
	return s.Step, nil
}

// Finalize records that the single appointment-creation request was durably
// issued and moves the session to Confirmation. Valid from the details step
// (no-deposit path) and from payment collection (post-payment path or the
// explicit schedule-without-payment override). Re-entering the confirmation
// view must not resubmit.
func (s *Session) Finalize(intentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Submitted {
		return ErrAlreadySubmitted
	}
	if s.Step != StepEnterDetails && s.Step != StepCollectPayment {
		return ErrWrongStep
	}
	if intentID != "" {
		s.IntentID = intentID
	}
	s.Submitted = true
	s.advance(StepConfirmation)
	return nil
}

// AttachIntent remembers the payment intent created for this session before
// the payment UI is shown.
func (s *Session) AttachIntent(intentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireStep(StepCollectPayment); err != nil {
		return err
	}
	s.IntentID = intentID
	s.UpdatedAt = s.now().UTC()
	return nil
}

// Back returns to the immediate predecessor step. The first step has no
// predecessor and Confirmation is terminal for the session.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.Step {
	case StepSelectDate:
		return ErrWrongStep
	case StepSelectTime:
		s.advance(StepSelectDate)
	case StepSelectTopic:
		s.advance(StepSelectTime)
	case StepEnterDetails:
		s.advance(StepSelectTopic)
	case StepCollectPayment:
		s.advance(StepEnterDetails)
	case StepConfirmation:
		return ErrSessionComplete
	}
	return nil
}

// Reset clears all selections so a fresh booking can start.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Step = StepSelectDate
	s.Date = ""
	s.TimeSlot = ""
	s.TopicID = ""
	s.Name = ""
	s.Email = ""
	s.Message = ""
	s.Submitted = false
	s.IntentID = ""
	s.UpdatedAt = s.now().UTC()
}

func (s *Session) requireStep(step Step) error {
	if s.Step == StepConfirmation && step != StepConfirmation {
		return ErrSessionComplete
	}
	if s.Step != step {
		return ErrWrongStep
	}
	return nil
}

func (s *Session) advance(step Step) {
	s.Step = step
	s.UpdatedAt = s.now().UTC()
}
