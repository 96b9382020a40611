package bookings

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type bookingKey struct {
	candidateID string
	version     int64
}

// MemoryRepository keeps bookings in memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	bookings []Booking
	seen     map[bookingKey]struct{}
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{seen: make(map[bookingKey]struct{})}
}

// Insert implements Repository. It fills in ID and CreatedAt when empty.
func (r *MemoryRepository) Insert(ctx context.Context, b *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := bookingKey{candidateID: b.CandidateID, version: b.DialogueVersion}
	if _, dup := r.seen[key]; dup {
		return ErrDuplicateBooking
	}
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	r.seen[key] = struct{}{}
	r.bookings = append(r.bookings, *b)
	return nil
}

// Remove deletes a booking by id. Only used to undo a failed multi-step
// commit against in-memory stores.
func (r *MemoryRepository) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, b := range r.bookings {
		if b.ID == id {
			delete(r.seen, bookingKey{candidateID: b.CandidateID, version: b.DialogueVersion})
			r.bookings = append(r.bookings[:i], r.bookings[i+1:]...)
			return
		}
	}
}

// ListByCandidate implements Repository, oldest first.
func (r *MemoryRepository) ListByCandidate(ctx context.Context, candidateID string) ([]Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Booking, 0)
	for _, b := range r.bookings {
		if b.CandidateID == candidateID {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
