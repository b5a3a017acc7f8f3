package runtime_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/flowgraph/internal/runtime"
	"github.com/aretw0/flowgraph/pkg/adapters/memory"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/registry"
	"github.com/stretchr/testify/require"
)

// increment returns a tool adding step to state[key].
func increment(key string, step float64) registry.ToolFunction {
	return func(ctx context.Context, state domain.State) (domain.State, error) {
		cur, _ := state[key].(float64)
		return domain.State{key: cur + step}, nil
	}
}

func noop(ctx context.Context, state domain.State) (domain.State, error) {
	return nil, nil
}

func failing(ctx context.Context, state domain.State) (domain.State, error) {
	return nil, errors.New("boom")
}

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.Register("inc10", increment("score", 10)))
	require.NoError(t, reg.Register("inc1", increment("score", 1)))
	require.NoError(t, reg.Register("noop", noop))
	require.NoError(t, reg.Register("fail", failing))
	return reg
}

func newTestEngine(t *testing.T, opts ...runtime.EngineOption) (*runtime.Engine, *memory.RunStore) {
	t.Helper()
	store := memory.NewRunStore()
	return runtime.NewEngine(newTestRegistry(t), store, opts...), store
}

// mustGraph validates spec against the test registry and freezes it.
func mustGraph(t *testing.T, spec domain.GraphSpec) *domain.GraphDefinition {
	t.Helper()
	require.NoError(t, runtime.ValidateGraph(spec, newTestRegistry(t)))
	return domain.NewGraphDefinition("graph-test", spec, time.Now().UTC())
}

// loopSpec is START -> A, A: score >= 80 -> END, else -> A.
func loopSpec(tool string) domain.GraphSpec {
	return domain.GraphSpec{
		Name:  "loop",
		Nodes: map[string]domain.NodeSpec{"A": {Function: tool}},
		Edges: map[string]string{domain.StartNode: "A", "A": "A"},
		ConditionalEdges: map[string][]domain.Condition{
			"A": {{Name: "done", Field: "score", Operator: domain.OpGE, Value: 80, Target: domain.EndNode}},
		},
	}
}

func newStoreForTest() *memory.RunStore {
	return memory.NewRunStore()
}
