package scheduling

import (
	"context"
	"time"
)

// EventType names a notable dialogue event.
type EventType string

const (
	EventBookingConfirmed EventType = "booking_confirmed"
	EventBookingFailed    EventType = "booking_failed"
	EventStateReset       EventType = "state_reset"
	EventStateCorrupt     EventType = "state_corrupt"
	EventTurnFailed       EventType = "turn_failed"
)

// Event is reported to an Observer. Observers must not block.
type Event struct {
	Type        EventType      `json:"type"`
	CandidateID string         `json:"candidate_id"`
	Stage       Stage          `json:"stage,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// Observer receives dialogue events, for example to write an audit trail.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(ctx context.Context, ev Event) { f(ctx, ev) }
