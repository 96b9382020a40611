// Package bookings is the append-only store of confirmed verification
// interviews.
package bookings

import (
	"context"
	"errors"
	"time"
)

const (
	// StatusConfirmed is the only status a booking is created with.
	StatusConfirmed = "confirmed"
	// DefaultDurationMinutes is the length of a verification interview.
	DefaultDurationMinutes = 15
	// DateLayout is the format of Booking.Date.
	DateLayout = "2006-01-02"
)

// ErrDuplicateBooking is returned when a booking already exists for the same
// candidate and dialogue version.
var ErrDuplicateBooking = errors.New("booking already exists for this confirmation")

// Booking is one confirmed interview slot. Rows are never updated or deleted.
type Booking struct {
	ID              string    `json:"id"`
	CandidateID     string    `json:"candidate_id"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	DialogueVersion int64     `json:"dialogue_version"`
	CreatedAt       time.Time `json:"created_at"`
}

// Repository persists bookings.
type Repository interface {
	Insert(ctx context.Context, b *Booking) error
	ListByCandidate(ctx context.Context, candidateID string) ([]Booking, error)
}
