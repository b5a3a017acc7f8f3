package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRunStoreContract runs a suite of tests to verify that a RunStore implementation
// adheres to the defined interface contract.
func RunRunStoreContract(t *testing.T, store RunStore) {
	ctx := context.Background()
	runID := "contract-run-" + time.Now().Format("20060102150405")

	newRun := func(id string) *domain.Run {
		now := time.Now().UTC()
		return &domain.Run{
			ID:            id,
			GraphID:       "graph-1",
			Status:        domain.RunRunning,
			CurrentNode:   "a",
			State:         domain.State{"foo": "bar", "count": 42},
			MaxIterations: 10,
			StartedAt:     now,
			UpdatedAt:     now,
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		run := newRun(runID)
		run.Trace = append(run.Trace, domain.ExecutionStep{
			Index: 1, Node: "a", Timestamp: time.Now().UTC(),
			State: domain.State{"foo": "bar"}, Edge: domain.DefaultEdgeName, Next: domain.EndNode,
		})

		require.NoError(t, store.Save(ctx, run), "Save should not return error")

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, run.GraphID, loaded.GraphID)
		assert.Equal(t, domain.RunRunning, loaded.Status)
		assert.Equal(t, "bar", loaded.State["foo"])
		// JSON backed stores read numbers back as float64; only check presence.
		assert.NotNil(t, loaded.State["count"])
		require.Len(t, loaded.Trace, 1)
		assert.Equal(t, domain.EndNode, loaded.Trace[0].Next)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		run := newRun(runID)
		run.Status = domain.RunCompleted
		run.CurrentNode = domain.EndNode
		require.NoError(t, store.Save(ctx, run))

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, domain.RunCompleted, loaded.Status)
		assert.Empty(t, loaded.Trace)
	})

	t.Run("Load Returns Isolated Copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err)
		loaded.State["foo"] = "mutated"

		again, err := store.Load(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, "bar", again.State["foo"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("List", func(t *testing.T) {
		id1 := runID + "-1"
		id2 := runID + "-2"
		require.NoError(t, store.Save(ctx, newRun(id2)))
		require.NoError(t, store.Save(ctx, newRun(id1)))

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
		assert.IsIncreasing(t, ids)
	})
}

// RunGraphStoreContract verifies a GraphStore implementation.
func RunGraphStoreContract(t *testing.T, store GraphStore) {
	ctx := context.Background()
	base := time.Now().UTC()

	first := domain.NewGraphDefinition("graph-a", domain.GraphSpec{
		Nodes: map[string]domain.NodeSpec{"a": {Function: "noop"}},
		Edges: map[string]string{domain.StartNode: "a", "a": domain.EndNode},
	}, base)
	second := domain.NewGraphDefinition("graph-b", domain.GraphSpec{Name: "second"}, base.Add(time.Second))

	t.Run("Save and Load", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, first))

		loaded, err := store.Load(ctx, "graph-a")
		require.NoError(t, err)
		assert.Equal(t, "Graph-graph-a", loaded.Name)
		assert.Equal(t, "a", loaded.Edges[domain.StartNode])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrGraphNotFound)
	})

	t.Run("List Ordered By Creation", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, second))

		defs, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, defs, 2)
		assert.Equal(t, "graph-a", defs[0].ID)
		assert.Equal(t, "graph-b", defs[1].ID)
	})
}
