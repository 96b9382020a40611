package scheduling

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrVersionConflict is returned when the stored version no longer matches
	// the version the caller read.
	ErrVersionConflict = errors.New("scheduling: dialogue state version conflict")
	// ErrCorruptState is returned when stored slot data cannot be decoded.
	// Stores return the readable part of the row alongside it.
	ErrCorruptState = errors.New("scheduling: dialogue state is corrupt")
)

// Store persists one DialogueState per candidate.
//
// Get returns (nil, nil) when no row exists. Save writes the full row only if
// the stored version equals expectedVersion (0 means no row), then sets
// state.Version to expectedVersion+1. Patch applies a partial update under
// the same check and returns the updated row.
type Store interface {
	Get(ctx context.Context, candidateID string) (*DialogueState, error)
	Save(ctx context.Context, state *DialogueState, expectedVersion int64) error
	Patch(ctx context.Context, candidateID string, expectedVersion int64, p Patch) (*DialogueState, error)
}

// MemoryStore keeps states in a map. It is safe for concurrent use.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]*DialogueState
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*DialogueState)}
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, candidateID string) (*DialogueState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[candidateID].Clone(), nil
}

// Save implements Store.
func (m *MemoryStore) Save(ctx context.Context, state *DialogueState, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.version(state.CandidateID) != expectedVersion {
		return ErrVersionConflict
	}
	state.Version = expectedVersion + 1
	m.states[state.CandidateID] = state.Clone()
	return nil
}

// Patch implements Store.
func (m *MemoryStore) Patch(ctx context.Context, candidateID string, expectedVersion int64, p Patch) (*DialogueState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.states[candidateID]
	if !ok || cur.Version != expectedVersion {
		return nil, ErrVersionConflict
	}
	next := p.Apply(cur)
	next.Version = expectedVersion + 1
	m.states[candidateID] = next
	return next.Clone(), nil
}

func (m *MemoryStore) version(candidateID string) int64 {
	if cur, ok := m.states[candidateID]; ok {
		return cur.Version
	}
	return 0
}
