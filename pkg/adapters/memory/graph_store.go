package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// GraphStore implements ports.GraphStore in memory.
// Definitions are copied on the way in and out so the stored graph cannot change
// after creation.
type GraphStore struct {
	data map[string]*domain.GraphDefinition
	mu   sync.RWMutex
}

// NewGraphStore creates a new in-memory graph store.
func NewGraphStore() *GraphStore {
	return &GraphStore{
		data: make(map[string]*domain.GraphDefinition),
	}
}

// Save stores the definition under its ID.
func (s *GraphStore) Save(ctx context.Context, def *domain.GraphDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[def.ID] = def.Clone()
	return nil
}

// Load retrieves a definition by ID.
func (s *GraphStore) Load(ctx context.Context, graphID string) (*domain.GraphDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.data[graphID]
	if !ok {
		return nil, domain.ErrGraphNotFound
	}
	return def.Clone(), nil
}

// List returns every definition ordered by creation time, then ID.
func (s *GraphStore) List(ctx context.Context) ([]*domain.GraphDefinition, error) {
	s.mu.RLock()
	defs := make([]*domain.GraphDefinition, 0, len(s.data))
	for _, def := range s.data {
		defs = append(defs, def.Clone())
	}
	s.mu.RUnlock()

	slices.SortFunc(defs, func(a, b *domain.GraphDefinition) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return defs, nil
}
