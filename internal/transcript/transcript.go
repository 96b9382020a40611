// Package transcript keeps a short rolling log of each candidate's turns. The
// assistant reads it back to fill the conversation part of the context.
package transcript

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/staffline/internal/intent"
)

const (
	// MaxEntries caps the list per candidate.
	MaxEntries = 200
	// TTL is refreshed on every append.
	TTL = 7 * 24 * time.Hour
	// IssueWindow bounds which technical-issue turns count as recent.
	IssueWindow = 24 * time.Hour
)

// Roles.
const (
	RoleInbound  = "inbound"
	RoleOutbound = "outbound"
)

// Entry is one message in either direction.
type Entry struct {
	ID           string    `json:"id"`
	Role         string    `json:"role"`
	Text         string    `json:"text"`
	Intent       string    `json:"intent,omitempty"`
	ResponseType string    `json:"response_type,omitempty"`
	Stage        string    `json:"stage,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Store appends and lists transcript entries, oldest first.
type Store interface {
	Append(ctx context.Context, candidateID string, entries ...Entry) error
	List(ctx context.Context, candidateID string, limit int64) ([]Entry, error)
}

// Stats is what the context analyzer needs from the history.
type Stats struct {
	// InboundCount counts messages the candidate has sent before this one.
	InboundCount     int
	RecentIssueCount int
}

// IsFirstMessage reports whether nothing was received before.
func (s Stats) IsFirstMessage() bool { return s.InboundCount == 0 }

// Summarize counts inbound messages, and the technical-issue turns received
// within IssueWindow before now.
func Summarize(entries []Entry, now time.Time) Stats {
	var st Stats
	cutoff := now.Add(-IssueWindow)
	for _, e := range entries {
		if e.Role != RoleInbound {
			continue
		}
		st.InboundCount++
		if e.Intent == string(intent.TechnicalIssue) && e.Timestamp.After(cutoff) && !e.Timestamp.After(now) {
			st.RecentIssueCount++
		}
	}
	return st
}

func prepare(e Entry, now time.Time) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now.UTC()
	}
	return e
}

// MemoryStore is an in-process Store used without Redis. Entries do not
// expire.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string][]Entry
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]Entry)}
}

// Append implements Store.
func (m *MemoryStore) Append(ctx context.Context, candidateID string, entries ...Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	list := m.entries[candidateID]
	for _, e := range entries {
		list = append(list, prepare(e, now))
	}
	if len(list) > MaxEntries {
		list = append([]Entry(nil), list[len(list)-MaxEntries:]...)
	}
	m.entries[candidateID] = list
	return nil
}

// List implements Store.
func (m *MemoryStore) List(ctx context.Context, candidateID string, limit int64) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.entries[candidateID]
	if limit > 0 && int64(len(list)) > limit {
		list = list[int64(len(list))-limit:]
	}
	return append([]Entry{}, list...), nil
}
