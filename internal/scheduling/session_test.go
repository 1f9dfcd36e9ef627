package scheduling

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var testClock = func() time.Time {
	return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
}

func testSession(t *testing.T) *Session {
	t.Helper()
	return NewSession("sess-1", DefaultTopics()).withClock(testClock)
}

// advanceTo walks a session forward through valid transitions.
func advanceTo(t *testing.T, s *Session, step Step) {
	t.Helper()
	steps := []func() error{
		func() error { return s.SelectDate(testClock().AddDate(0, 0, 1)) },
		func() error { return s.SelectTime("10:00", true) },
		func() error { return s.SelectTopic("development") },
		func() error {
			_, err := s.EnterDetails("Jane Doe", "jane@example.com", "")
			return err
		},
	}
	for _, fn := range steps {
		if s.Step == step {
			return
		}
		if err := fn(); err != nil {
			t.Fatalf("advance to %s: %v", step, err)
		}
	}
	if s.Step != step {
		t.Fatalf("could not advance to %s, stuck at %s", step, s.Step)
	}
}

func TestSessionHappyPathWithDeposit(t *testing.T) {
	s := testSession(t)

	if s.Step != StepSelectDate {
		t.Fatalf("new session must start at date selection, got %s", s.Step)
	}
	if err := s.SelectDate(testClock().AddDate(0, 0, 1)); err != nil {
		t.Fatalf("select date: %v", err)
	}
	if err := s.SelectTime("10:00", true); err != nil {
		t.Fatalf("select time: %v", err)
	}
	if err := s.SelectTopic("development"); err != nil {
		t.Fatalf("select topic: %v", err)
	}
	step, err := s.EnterDetails("Jane Doe", "jane@example.com", "looking forward")
	if err != nil {
		t.Fatalf("enter details: %v", err)
	}
	if step != StepCollectPayment {
		t.Fatalf("deposit topic must route to payment, got %s", step)
	}
	if err := s.AttachIntent("pi_123"); err != nil {
		t.Fatalf("attach intent: %v", err)
	}
	if err := s.Finalize("pi_123"); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if s.Step != StepConfirmation || !s.Submitted || s.IntentID != "pi_123" {
		t.Fatalf("unexpected final state %+v", s)
	}
}

func TestSessionNoDepositSkipsPayment(t *testing.T) {
	s := testSession(t)
	advanceTo(t, s, StepSelectTopic)
	if err := s.SelectTopic("consultation"); err != nil {
		t.Fatalf("select topic: %v", err)
	}
	step, err := s.EnterDetails("Jane Doe", "jane@example.com", "")
	if err != nil {
		t.Fatalf("enter details: %v", err)
	}
	if step != StepEnterDetails {
		t.Fatalf("no-deposit topic must stay on details until submission, got %s", step)
	}
	if err := s.Finalize(""); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if s.Step != StepConfirmation {
		t.Fatalf("expected confirmation, got %s", s.Step)
	}
}

func TestSelectDateRejectsPast(t *testing.T) {
	s := testSession(t)
	err := s.SelectDate(testClock().AddDate(0, 0, -1))
	if !errors.Is(err, ErrPastDate) {
		t.Fatalf("expected ErrPastDate, got %v", err)
	}
	if s.Step != StepSelectDate {
		t.Fatalf("failed validation must not advance, got %s", s.Step)
	}
}

func TestSelectDateAllowsToday(t *testing.T) {
	s := testSession(t)
	// Later in the day than the clock; only the calendar date matters.
	today := time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)
	if err := s.SelectDate(today); err != nil {
		t.Fatalf("today must be selectable regardless of time of day: %v", err)
	}
	if s.Date != "2026-03-10" {
		t.Fatalf("unexpected date %s", s.Date)
	}
}

func TestSelectTimeRejectsUnavailableSlot(t *testing.T) {
	s := testSession(t)
	advanceTo(t, s, StepSelectTime)
	if err := s.SelectTime("10:00", false); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
	if s.Step != StepSelectTime {
		t.Fatalf("failed validation must not advance, got %s", s.Step)
	}
}

func TestSelectTopicRejectsUnknown(t *testing.T) {
	s := testSession(t)
	advanceTo(t, s, StepSelectTopic)
	if err := s.SelectTopic("tarot-reading"); !errors.Is(err, ErrUnknownTopic) {
		t.Fatalf("expected ErrUnknownTopic, got %v", err)
	}
}

func TestEnterDetailsRequiresNameAndEmail(t *testing.T) {
	s := testSession(t)
	advanceTo(t, s, StepEnterDetails)
	for _, tc := range [][2]string{{"", "jane@example.com"}, {"Jane Doe", ""}, {"   ", "  "}} {
		if _, err := s.EnterDetails(tc[0], tc[1], ""); !errors.Is(err, ErrMissingDetails) {
			t.Fatalf("name=%q email=%q: expected ErrMissingDetails, got %v", tc[0], tc[1], err)
		}
	}
	if s.Step != StepEnterDetails {
		t.Fatalf("failed validation must not advance, got %s", s.Step)
	}
}

func TestActionsOutOfOrderAreRejected(t *testing.T) {
	s := testSession(t)
	if err := s.SelectTime("10:00", true); !errors.Is(err, ErrWrongStep) {
		t.Fatalf("time before date: expected ErrWrongStep, got %v", err)
	}
	if err := s.SelectTopic("consultation"); !errors.Is(err, ErrWrongStep) {
		t.Fatalf("topic before time: expected ErrWrongStep, got %v", err)
	}
	if _, err := s.EnterDetails("Jane Doe", "jane@example.com", ""); !errors.Is(err, ErrWrongStep) {
		t.Fatalf("details before topic: expected ErrWrongStep, got %v", err)
	}
	if err := s.AttachIntent("pi_123"); !errors.Is(err, ErrWrongStep) {
		t.Fatalf("attach before payment step: expected ErrWrongStep, got %v", err)
	}
}

func TestBackWalksPredecessors(t *testing.T) {
	s := testSession(t)
	advanceTo(t, s, StepCollectPayment)

	want := []Step{StepEnterDetails, StepSelectTopic, StepSelectTime, StepSelectDate}
	for _, step := range want {
		if err := s.Back(); err != nil {
			t.Fatalf("back to %s: %v", step, err)
		}
		if s.Step != step {
			t.Fatalf("expected %s, got %s", step, s.Step)
		}
	}
	if err := s.Back(); !errors.Is(err, ErrWrongStep) {
		t.Fatalf("first step has no predecessor, got %v", err)
	}
	// Selections survive backward navigation.
	if s.Name != "Jane Doe" || s.TopicID != "development" {
		t.Fatalf("backward navigation must keep selections, got %+v", s)
	}
}

func TestBackFromConfirmationRejected(t *testing.T) {
	s := testSession(t)
	advanceTo(t, s, StepCollectPayment)
	if err := s.Finalize("pi_123"); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := s.Back(); !errors.Is(err, ErrSessionComplete) {
		t.Fatalf("expected ErrSessionComplete, got %v", err)
	}
}

func TestFinalizeOnlyOnce(t *testing.T) {
	s := testSession(t)
	advanceTo(t, s, StepCollectPayment)
	if err := s.Finalize("pi_123"); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := s.Finalize("pi_123"); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
}

func TestConcurrentFinalizeHasSingleWinner(t *testing.T) {
	s := testSession(t)
	advanceTo(t, s, StepCollectPayment)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Finalize("pi_123")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else if !errors.Is(err, ErrAlreadySubmitted) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one successful finalize, got %d", wins)
	}
}

func TestResetClearsEverything(t *testing.T) {
	s := testSession(t)
	advanceTo(t, s, StepCollectPayment)
	s.Reset()
	if s.Step != StepSelectDate || s.Date != "" || s.Name != "" || s.TopicID != "" || s.Submitted {
		t.Fatalf("reset left state behind: %+v", s)
	}
}
