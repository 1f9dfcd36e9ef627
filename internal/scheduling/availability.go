package scheduling

import (
	"context"
	"fmt"
	"time"
)

// Slot is a bookable time on a given date.
type Slot struct {
	Time      string `json:"time"` // HH:MM, 24h
	Available bool   `json:"available"`
}

// bookedLookup reports which slots on a date are already held.
type bookedLookup interface {
	BookedSlots(ctx context.Context, date string) (map[string]bool, error)
}

// Availability generates the day's slot grid from fixed business hours and
// marks slots held by live appointments as unavailable.
type Availability struct {
	lookup    bookedLookup
	openHour  int
	closeHour int
	now       func() time.Time
}

// NewAvailability creates a provider offering hourly slots in [openHour,
// closeHour). Hours outside 0..23 or an inverted range fall back to 9-17.
func NewAvailability(lookup bookedLookup, openHour, closeHour int) *Availability {
	if openHour < 0 || closeHour > 24 || openHour >= closeHour {
		openHour, closeHour = 9, 17
	}
	return &Availability{
		lookup:    lookup,
		openHour:  openHour,
		closeHour: closeHour,
		now:       time.Now,
	}
}

// SlotsFor returns the slot grid for date (YYYY-MM-DD). Slots already in the
// past on today's date are unavailable.
func (a *Availability) SlotsFor(ctx context.Context, date string) ([]Slot, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("scheduling: invalid date %q: %w", date, err)
	}

	booked := map[string]bool{}
	if a.lookup != nil {
		booked, err = a.lookup.BookedSlots(ctx, date)
		if err != nil {
			return nil, err
		}
	}

	now := a.now().UTC()
	isToday := day.Format("2006-01-02") == now.Format("2006-01-02")

	slots := make([]Slot, 0, a.closeHour-a.openHour)
	for hour := a.openHour; hour < a.closeHour; hour++ {
		label := fmt.Sprintf("%02d:00", hour)
		available := !booked[label]
		if isToday && hour <= now.Hour() {
			available = false
		}
		slots = append(slots, Slot{Time: label, Available: available})
	}
	return slots, nil
}

// IsAvailable reports whether the slot can be booked on date.
func (a *Availability) IsAvailable(ctx context.Context, date, slot string) (bool, error) {
	slots, err := a.SlotsFor(ctx, date)
	if err != nil {
		return false, err
	}
	for _, s := range slots {
		if s.Time == slot {
			return s.Available, nil
		}
	}
	return false, nil
}
