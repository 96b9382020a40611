// Package candidates is the read side of the candidate roster plus the single
// status transition the scheduling dialogue performs.
package candidates

import (
	"context"
	"errors"
	"time"
)

// Lifecycle statuses.
const (
	StatusPending            = "pending"
	StatusActive             = "active"
	StatusInterviewScheduled = "interview_scheduled"
	StatusInactive           = "inactive"
)

var (
	// ErrCandidateNotFound is returned when no candidate has the given id.
	ErrCandidateNotFound = errors.New("candidate not found")
	// ErrInvalidStatus is returned for an unknown lifecycle status.
	ErrInvalidStatus = errors.New("invalid candidate status")
)

// Candidate is the subset of the roster record the assistant needs.
type Candidate struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	CompletedJobCount int       `json:"completed_job_count"`
}

// Directory looks up candidates by id.
type Directory interface {
	Get(ctx context.Context, id string) (*Candidate, error)
}

// StatusUpdater changes a candidate's lifecycle status.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id, status string) error
}

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusActive, StatusInterviewScheduled, StatusInactive:
		return true
	}
	return false
}
