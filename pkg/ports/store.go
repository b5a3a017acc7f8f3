package ports

import (
	"context"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// RunStore persists the latest execution record of each run.
// Save replaces the whole record atomically; readers never observe a partial trace.
type RunStore interface {
	// Save stores an isolated copy of run under run.ID.
	Save(ctx context.Context, run *domain.Run) error

	// Load retrieves a copy of the run.
	// Returns domain.ErrRunNotFound if the run does not exist.
	Load(ctx context.Context, runID string) (*domain.Run, error)

	// List returns the stored run IDs in ascending order.
	List(ctx context.Context) ([]string, error)
}

// GraphStore holds validated graph definitions for the process lifetime.
type GraphStore interface {
	// Save stores def under def.ID.
	Save(ctx context.Context, def *domain.GraphDefinition) error

	// Load retrieves a graph definition.
	// Returns domain.ErrGraphNotFound if the graph does not exist.
	Load(ctx context.Context, graphID string) (*domain.GraphDefinition, error)

	// List returns every stored definition ordered by creation time.
	List(ctx context.Context) ([]*domain.GraphDefinition, error)
}
