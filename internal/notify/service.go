package notify

import (
	"context"
	"fmt"

	"github.com/jparrish/portfolio-platform/pkg/logging"
)

// Service builds and sends the booking notifications. Sends are best effort;
// a mail failure never fails the flow that triggered it.
type Service struct {
	sender     EmailSender
	ownerEmail string
	logger     *logging.Logger
}

// NewService creates the notification service. A nil sender disables email.
func NewService(sender EmailSender, ownerEmail string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{sender: sender, ownerEmail: ownerEmail, logger: logger}
}

// AppointmentConfirmed emails the visitor that their deposit settled and the
// appointment is confirmed, and alerts the owner. Called exactly once per
// appointment by whichever confirmation path wins.
func (s *Service) AppointmentConfirmed(ctx context.Context, name, email, intentID string) {
	if s == nil || s.sender == nil {
		return
	}

	if email != "" {
		msg := EmailMessage{
			To:      email,
			ToName:  name,
			Subject: "Your appointment is confirmed",
			Body: fmt.Sprintf(
				"Hi %s,\n\nYour deposit was received and your appointment is confirmed. "+
					"You'll get a calendar invite shortly.\n\nTalk soon,\nJordan",
				firstNameOrFallback(name),
			),
		}
		if err := s.sender.Send(ctx, msg); err != nil {
			s.logger.Error("confirmation email failed", "error", err, "to", email, "intent_id", intentID)
		}
	}

	if s.ownerEmail != "" {
		msg := EmailMessage{
			To:      s.ownerEmail,
			Subject: "Booking confirmed",
			Body:    fmt.Sprintf("Deposit settled for %s <%s> (payment ref %s).", name, email, intentID),
		}
		if err := s.sender.Send(ctx, msg); err != nil {
			s.logger.Error("owner alert failed", "error", err, "intent_id", intentID)
		}
	}
}

// BookingReceived alerts the owner about a new pending booking (free topics
// and the schedule-without-payment path).
func (s *Service) BookingReceived(ctx context.Context, name, email, topic, date, slot string) {
	if s == nil || s.sender == nil || s.ownerEmail == "" {
		return
	}
	msg := EmailMessage{
		To:      s.ownerEmail,
		Subject: "New booking request",
		Body: fmt.Sprintf("%s <%s> requested %s on %s at %s. Review it in the admin panel.",
			name, email, topic, date, slot),
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		s.logger.Error("booking alert failed", "error", err, "email", email)
	}
}

func firstNameOrFallback(name string) string {
	for i, r := range name {
		if r == ' ' {
			return name[:i]
		}
	}
	if name == "" {
		return "there"
	}
	return name
}
