package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// RunStore implements ports.RunStore in memory.
// Safe for concurrent use.
type RunStore struct {
	data map[string]*domain.Run
	mu   sync.RWMutex
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[string]*domain.Run),
	}
}

// Save stores a snapshot of the run, replacing any previous record.
func (s *RunStore) Save(ctx context.Context, run *domain.Run) error {
	// Copy outside the lock; the swap itself is a single map write.
	snapshot := run.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[run.ID] = snapshot
	return nil
}

// Load retrieves a copy of the run so callers can't mutate the stored record.
func (s *RunStore) Load(ctx context.Context, runID string) (*domain.Run, error) {
	s.mu.RLock()
	run, ok := s.data[runID]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return run.Snapshot(), nil
}

// List returns the stored run IDs in ascending order.
func (s *RunStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}
