package candidates

import (
	"context"
	"strings"
	"sync"
)

// MemoryDirectory keeps candidates in memory.
type MemoryDirectory struct {
	mu         sync.RWMutex
	candidates map[string]Candidate
}

// NewMemoryDirectory returns a directory seeded with cs.
func NewMemoryDirectory(cs ...Candidate) *MemoryDirectory {
	d := &MemoryDirectory{candidates: make(map[string]Candidate, len(cs))}
	for _, c := range cs {
		d.candidates[c.ID] = c
	}
	return d
}

// Put inserts or replaces a candidate.
func (d *MemoryDirectory) Put(c Candidate) {
	d.mu.Lock()
	d.candidates[c.ID] = c
	d.mu.Unlock()
}

// Get implements Directory.
func (d *MemoryDirectory) Get(ctx context.Context, id string) (*Candidate, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.candidates[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrCandidateNotFound
	}
	return &c, nil
}

// UpdateStatus implements StatusUpdater.
func (d *MemoryDirectory) UpdateStatus(ctx context.Context, id, status string) error {
	if !ValidStatus(status) {
		return ErrInvalidStatus
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.candidates[id]
	if !ok {
		return ErrCandidateNotFound
	}
	c.Status = status
	d.candidates[id] = c
	return nil
}
