// Package audit keeps an append-only record of notable dialogue events.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/wolfman30/staffline/internal/scheduling"
	"github.com/wolfman30/staffline/pkg/logging"
)

// Event is one immutable audit record.
type Event struct {
	ID          string               `json:"id"`
	EventType   scheduling.EventType `json:"event_type"`
	CandidateID string               `json:"candidate_id"`
	Stage       string               `json:"stage,omitempty"`
	Intent      string               `json:"intent,omitempty"`
	Confidence  *float64             `json:"confidence,omitempty"`
	Factors     []string             `json:"factors,omitempty"`
	Details     json.RawMessage      `json:"details,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

// Service writes and reads dialogue_audit_events.
type Service struct {
	db *sql.DB
}

// NewService creates a new audit service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// LogEvent records an audit event.
func (s *Service) LogEvent(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	details := event.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}

	query := `
		INSERT INTO dialogue_audit_events (
			id, event_type, candidate_id, stage, intent,
			confidence, factors, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		string(event.EventType),
		event.CandidateID,
		nullString(event.Stage),
		nullString(event.Intent),
		nullFloat(event.Confidence),
		pq.Array(event.Factors),
		[]byte(details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to log event: %w", err)
	}
	return nil
}

// Filter narrows QueryEvents. CandidateID is required.
type Filter struct {
	CandidateID string
	EventType   scheduling.EventType
	Since       time.Time
	Limit       int
}

// QueryEvents returns events for a candidate, newest first.
func (s *Service) QueryEvents(ctx context.Context, filter Filter) ([]Event, error) {
	query := `
		SELECT id, event_type, candidate_id, stage, intent,
			   confidence, factors, details, created_at
		FROM dialogue_audit_events
		WHERE candidate_id = $1
	`
	args := []any{filter.CandidateID}
	argIdx := 2
	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, string(filter.EventType))
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.Since)
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e          Event
			eventType  string
			stage      sql.NullString
			intentName sql.NullString
			confidence sql.NullFloat64
			details    []byte
		)
		if err := rows.Scan(
			&e.ID, &eventType, &e.CandidateID, &stage, &intentName,
			&confidence, pq.Array(&e.Factors), &details, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("audit: failed to scan event: %w", err)
		}
		e.EventType = scheduling.EventType(eventType)
		e.Stage = stage.String
		e.Intent = intentName.String
		if confidence.Valid {
			c := confidence.Float64
			e.Confidence = &c
		}
		e.Details = details
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: failed to read events: %w", err)
	}
	return events, nil
}

// Observer returns a scheduling.Observer that writes every dialogue event.
// Write failures are logged and never reach the turn.
func (s *Service) Observer(logger *logging.Logger) scheduling.Observer {
	if logger == nil {
		logger = logging.Default()
	}
	return scheduling.ObserverFunc(func(ctx context.Context, ev scheduling.Event) {
		event := Event{
			EventType:   ev.Type,
			CandidateID: ev.CandidateID,
			Stage:       string(ev.Stage),
			CreatedAt:   ev.OccurredAt,
		}
		if tc, ok := turnFromContext(ctx); ok {
			event.Intent = tc.Intent
			event.Factors = tc.Factors
			if tc.HasConfidence {
				c := tc.Confidence
				event.Confidence = &c
			}
		}
		if len(ev.Details) > 0 {
			raw, err := json.Marshal(ev.Details)
			if err != nil {
				logger.Warn("audit details not encodable", "candidate_id", ev.CandidateID, "error", err)
			} else {
				event.Details = raw
			}
		}
		if err := s.LogEvent(ctx, event); err != nil {
			logger.Error("failed to write audit event", "candidate_id", ev.CandidateID, "event_type", ev.Type, "error", err)
		}
	})
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
