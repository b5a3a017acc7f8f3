package flowgraph_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/flowgraph"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/dsl"
	"github.com/aretw0/flowgraph/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bump(ctx context.Context, s domain.State) (domain.State, error) {
	score, _ := s["score"].(float64)
	return domain.State{"score": score + 10}, nil
}

func newEngine(t *testing.T, opts ...flowgraph.Option) *flowgraph.Engine {
	t.Helper()
	eng, err := flowgraph.New(opts...)
	require.NoError(t, err)
	require.NoError(t, eng.RegisterTool("bump", bump))
	return eng
}

func loopSpec() domain.GraphSpec {
	b := dsl.New("bump-loop")
	b.Add("bump").
		Do("bump").
		NamedBranch("done", "score", domain.OpGE, 80, domain.EndNode).
		Go("bump")
	return b.Build()
}

func TestNew_Defaults(t *testing.T) {
	eng, err := flowgraph.New()
	require.NoError(t, err)
	assert.Empty(t, eng.Tools())
	assert.NotNil(t, eng.Registry())
}

func TestNew_RejectsBadBounds(t *testing.T) {
	_, err := flowgraph.New(flowgraph.WithMaxIterations(0))
	assert.Error(t, err)

	_, err = flowgraph.New(flowgraph.WithMaxConcurrentRuns(-1))
	assert.Error(t, err)
}

func TestEngine_CreateGraph(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	graph, err := eng.CreateGraph(ctx, loopSpec())
	require.NoError(t, err)
	assert.Len(t, graph.ID, 36, "uuid")
	assert.Equal(t, "bump-loop", graph.Name)

	stored, err := eng.GetGraph(ctx, graph.ID)
	require.NoError(t, err)
	assert.Equal(t, graph, stored)

	other, err := eng.CreateGraph(ctx, loopSpec())
	require.NoError(t, err)
	assert.NotEqual(t, graph.ID, other.ID)

	all, err := eng.ListGraphs(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestEngine_CreateGraph_DefaultName(t *testing.T) {
	eng := newEngine(t)
	spec := loopSpec()
	spec.Name = ""

	graph, err := eng.CreateGraph(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, "Graph-"+graph.ID[:8], graph.Name)
}

func TestEngine_CreateGraph_Invalid(t *testing.T) {
	eng := newEngine(t)
	spec := domain.GraphSpec{
		Nodes: map[string]domain.NodeSpec{"a": {Function: "nope"}},
		Edges: map[string]string{domain.StartNode: "a", "a": "ghost"},
	}

	_, err := eng.CreateGraph(context.Background(), spec)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Issues, 2)

	graphs, err := eng.ListGraphs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, graphs, "invalid graphs are not stored")
}

func TestEngine_CreateGraph_IsImmutable(t *testing.T) {
	eng := newEngine(t)
	spec := loopSpec()

	graph, err := eng.CreateGraph(context.Background(), spec)
	require.NoError(t, err)

	spec.Edges["bump"] = domain.EndNode
	spec.ConditionalEdges["bump"][0].Target = "elsewhere"

	assert.Equal(t, "bump", graph.Edges["bump"])
	assert.Equal(t, domain.EndNode, graph.ConditionalEdges["bump"][0].Target)
}

func TestEngine_ReturnedGraphsDoNotAliasStore(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	graph, err := eng.CreateGraph(ctx, loopSpec())
	require.NoError(t, err)
	graph.Edges["bump"] = "nowhere"

	fetched, err := eng.GetGraph(ctx, graph.ID)
	require.NoError(t, err)
	assert.Equal(t, "bump", fetched.Edges["bump"])
	delete(fetched.Nodes, "bump")

	listed, err := eng.ListGraphs(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	listed[0].ConditionalEdges["bump"][0].Target = "nowhere"

	run, err := eng.ExecuteGraph(ctx, graph.ID, domain.State{"score": 50.0}, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Equal(t, 80.0, run.State["score"])
}

func TestEngine_ExecuteGraph(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	graph, err := eng.CreateGraph(ctx, loopSpec())
	require.NoError(t, err)

	run, err := eng.ExecuteGraph(ctx, graph.ID, domain.State{"score": 50.0}, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Len(t, run.Trace, 3)
	assert.Equal(t, 80.0, run.State["score"])

	stored, err := eng.GetRunState(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Status, stored.Status)
	assert.Len(t, stored.Trace, 3)
}

func TestEngine_RunGraph_Async(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	graph, err := eng.CreateGraph(ctx, loopSpec())
	require.NoError(t, err)

	run, err := eng.RunGraph(ctx, graph.ID, domain.State{"score": 0.0}, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.RunRunning, run.Status)
	assert.Equal(t, graph.ID, run.GraphID)

	eng.Wait()

	final, err := eng.GetRunState(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunMaxIterationsExceeded, final.Status)
	assert.Len(t, final.Trace, 2)
	assert.Equal(t, 2, final.MaxIterations)
}

func TestEngine_MaxIterationsPrecedence(t *testing.T) {
	eng := newEngine(t, flowgraph.WithMaxIterations(4))
	ctx := context.Background()

	plain, err := eng.CreateGraph(ctx, loopSpec())
	require.NoError(t, err)

	bounded := loopSpec()
	bounded.MaxIterations = 3
	withBound, err := eng.CreateGraph(ctx, bounded)
	require.NoError(t, err)

	cases := []struct {
		name    string
		graphID string
		request int
		want    int
	}{
		{"engine default", plain.ID, 0, 4},
		{"graph overrides engine", withBound.ID, 0, 3},
		{"request overrides graph", withBound.ID, 1, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			run, err := eng.ExecuteGraph(ctx, tc.graphID, domain.State{"score": 0.0}, tc.request)
			require.NoError(t, err)
			assert.Equal(t, tc.want, run.MaxIterations)
			assert.Len(t, run.Trace, tc.want)
			assert.Equal(t, domain.RunMaxIterationsExceeded, run.Status)
		})
	}
}

func TestEngine_RunErrors(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	_, err := eng.RunGraph(ctx, "missing", nil, 0)
	assert.ErrorIs(t, err, domain.ErrGraphNotFound)

	_, err = eng.GetRunState(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)

	graph, err := eng.CreateGraph(ctx, loopSpec())
	require.NoError(t, err)
	_, err = eng.ExecuteGraph(ctx, graph.ID, nil, -1)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestEngine_ListRuns(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	graph, err := eng.CreateGraph(ctx, loopSpec())
	require.NoError(t, err)

	for range 3 {
		_, err := eng.RunGraph(ctx, graph.ID, domain.State{"score": 70.0}, 0)
		require.NoError(t, err)
	}
	eng.Wait()

	runs, err := eng.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	for _, run := range runs {
		assert.Equal(t, domain.RunCompleted, run.Status)
	}
}

func TestEngine_LiveProgressIsObservable(t *testing.T) {
	gate := make(chan struct{})
	entered := make(chan struct{}, 10)

	eng := newEngine(t)
	require.NoError(t, eng.RegisterTool("gated", func(ctx context.Context, s domain.State) (domain.State, error) {
		entered <- struct{}{}
		<-gate
		n, _ := s["n"].(float64)
		return domain.State{"n": n + 1}, nil
	}))

	b := dsl.New("gated")
	b.Add("step").Do("gated").Branch("n", domain.OpGE, 3, domain.EndNode).Go("step")
	ctx := context.Background()
	graph, err := eng.CreateGraph(ctx, b.Build())
	require.NoError(t, err)

	run, err := eng.RunGraph(ctx, graph.ID, domain.State{"n": 0.0}, 0)
	require.NoError(t, err)

	// Let exactly one step complete, then look at the stored snapshot.
	<-entered
	gate <- struct{}{}
	<-entered

	snapshot, err := eng.GetRunState(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunRunning, snapshot.Status)
	assert.Len(t, snapshot.Trace, 1)
	assert.Equal(t, 1.0, snapshot.State["n"])

	close(gate)
	eng.Wait()

	final, err := eng.GetRunState(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, final.Status)
	assert.Len(t, final.Trace, 3)
}

func TestEngine_Hooks(t *testing.T) {
	var mu sync.Mutex
	var finished []domain.RunStatus
	hooks := domain.LifecycleHooks{
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			mu.Lock()
			defer mu.Unlock()
			finished = append(finished, e.Status)
		},
	}

	eng := newEngine(t, flowgraph.WithLifecycleHooks(hooks))
	ctx := context.Background()
	graph, err := eng.CreateGraph(ctx, loopSpec())
	require.NoError(t, err)

	_, err = eng.RunGraph(ctx, graph.ID, domain.State{"score": 0.0}, 1)
	require.NoError(t, err)
	eng.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.RunStatus{domain.RunMaxIterationsExceeded}, finished)
}

func TestEngine_SharedRegistry(t *testing.T) {
	reg := registry.New(registry.WithStrict(true))
	require.NoError(t, reg.Register("bump", bump))

	eng, err := flowgraph.New(flowgraph.WithRegistry(reg))
	require.NoError(t, err)
	assert.Equal(t, []string{"bump"}, eng.Tools())

	err = eng.RegisterTool("bump", bump)
	var dup *registry.DuplicateToolError
	assert.True(t, errors.As(err, &dup))
}

func TestEngine_ToolFailureIsRecorded(t *testing.T) {
	eng := newEngine(t)
	require.NoError(t, eng.RegisterTool("explode", func(ctx context.Context, s domain.State) (domain.State, error) {
		return nil, errors.New("disk on fire")
	}))

	b := dsl.New("failing")
	b.Add("explode").Do("explode").Terminal()
	ctx := context.Background()
	graph, err := eng.CreateGraph(ctx, b.Build())
	require.NoError(t, err)

	run, err := eng.RunGraph(ctx, graph.ID, nil, 0)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		r, err := eng.GetRunState(ctx, run.ID)
		return err == nil && r.Status.IsTerminal()
	}, time.Second, 5*time.Millisecond)

	final, err := eng.GetRunState(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, final.Status)
	assert.Contains(t, final.Error, "disk on fire")
	assert.Contains(t, final.Trace[0].Error, "disk on fire")
}
