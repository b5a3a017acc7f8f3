package runtime_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/flowgraph/internal/runtime"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_LoopUntilThreshold(t *testing.T) {
	engine, _ := newTestEngine(t)
	graph := mustGraph(t, loopSpec("inc10"))

	run, err := engine.Execute(context.Background(), graph, domain.State{"score": 50.0}, 0)
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Equal(t, domain.EndNode, run.CurrentNode)
	require.Len(t, run.Trace, 3, "A runs at 50->60, 60->70, 70->80")

	for i, want := range []float64{60, 70, 80} {
		assert.Equal(t, want, run.Trace[i].State["score"])
		assert.Equal(t, "A", run.Trace[i].Node)
		assert.Equal(t, i+1, run.Trace[i].Index)
	}
	assert.Equal(t, domain.DefaultEdgeName, run.Trace[0].Edge)
	assert.Equal(t, "A", run.Trace[0].Next)
	assert.Equal(t, "done", run.Trace[2].Edge)
	assert.Equal(t, domain.EndNode, run.Trace[2].Next)
	assert.Equal(t, 80.0, run.State["score"])
	assert.Empty(t, run.Error)
	assert.NotNil(t, run.FinishedAt)
}

func TestEngine_MaxIterationsExceeded(t *testing.T) {
	engine, _ := newTestEngine(t)
	graph := mustGraph(t, loopSpec("inc1"))

	run, err := engine.Execute(context.Background(), graph, domain.State{"score": 0.0}, 2)
	require.NoError(t, err)

	assert.Equal(t, domain.RunMaxIterationsExceeded, run.Status)
	assert.Len(t, run.Trace, 2)
	assert.Equal(t, 2.0, run.State["score"])
	assert.Empty(t, run.Error, "the iteration bound is a status, not an error")
}

func TestEngine_UnsatisfiableCycleStopsAtBound(t *testing.T) {
	engine, _ := newTestEngine(t)
	spec := domain.GraphSpec{
		Nodes: map[string]domain.NodeSpec{"A": {Function: "noop"}, "B": {Function: "noop"}},
		Edges: map[string]string{domain.StartNode: "A", "A": "B", "B": "A"},
		ConditionalEdges: map[string][]domain.Condition{
			"B": {{Field: "never", Operator: domain.OpEQ, Value: true, Target: domain.EndNode}},
		},
	}
	graph := mustGraph(t, spec)

	for _, bound := range []int{1, 7, 50} {
		run, err := engine.Execute(context.Background(), graph, nil, bound)
		require.NoError(t, err)
		assert.Equal(t, domain.RunMaxIterationsExceeded, run.Status)
		assert.Len(t, run.Trace, bound)
	}
}

func TestEngine_AcyclicPathCompletesWithinNodeCount(t *testing.T) {
	engine, _ := newTestEngine(t)

	nodes := map[string]domain.NodeSpec{}
	edges := map[string]string{domain.StartNode: "n0"}
	const n = 5
	for i := range n {
		name := fmt.Sprintf("n%d", i)
		nodes[name] = domain.NodeSpec{Function: "noop"}
		if i == n-1 {
			edges[name] = domain.EndNode
		} else {
			edges[name] = fmt.Sprintf("n%d", i+1)
		}
	}
	graph := mustGraph(t, domain.GraphSpec{Nodes: nodes, Edges: edges})

	run, err := engine.Execute(context.Background(), graph, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.LessOrEqual(t, len(run.Trace), n)
}

func TestEngine_StartToEndDirectly(t *testing.T) {
	engine, _ := newTestEngine(t)
	graph := mustGraph(t, domain.GraphSpec{Edges: map[string]string{domain.StartNode: domain.EndNode}})

	run, err := engine.Execute(context.Background(), graph, domain.State{"x": 1}, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Empty(t, run.Trace)
	assert.Equal(t, domain.State{"x": 1}, run.State)
}

func TestEngine_FirstMatchingConditionWins(t *testing.T) {
	engine, _ := newTestEngine(t)
	spec := domain.GraphSpec{
		Nodes: map[string]domain.NodeSpec{
			"check":  {Function: "noop"},
			"first":  {Function: "noop"},
			"second": {Function: "noop"},
		},
		Edges: map[string]string{domain.StartNode: "check", "first": domain.EndNode, "second": domain.EndNode},
		ConditionalEdges: map[string][]domain.Condition{
			"check": {
				{Name: "high", Field: "score", Operator: domain.OpGT, Value: 10, Target: "first"},
				{Name: "positive", Field: "score", Operator: domain.OpGT, Value: 0, Target: "second"},
			},
		},
	}
	graph := mustGraph(t, spec)

	for range 20 {
		run, err := engine.Execute(context.Background(), graph, domain.State{"score": 50}, 0)
		require.NoError(t, err)
		require.Len(t, run.Trace, 2)
		assert.Equal(t, "high", run.Trace[0].Edge)
		assert.Equal(t, "first", run.Trace[1].Node)
	}
}

func TestEngine_MissingFieldFallsThroughToDefault(t *testing.T) {
	engine, _ := newTestEngine(t)
	spec := domain.GraphSpec{
		Nodes: map[string]domain.NodeSpec{"check": {Function: "noop"}, "fallback": {Function: "noop"}},
		Edges: map[string]string{domain.StartNode: "check", "check": "fallback", "fallback": domain.EndNode},
		ConditionalEdges: map[string][]domain.Condition{
			"check": {{Field: "absent", Operator: domain.OpGE, Value: 1, Target: domain.EndNode}},
		},
	}
	graph := mustGraph(t, spec)

	run, err := engine.Execute(context.Background(), graph, domain.State{}, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Equal(t, domain.DefaultEdgeName, run.Trace[0].Edge)
	assert.Equal(t, "fallback", run.Trace[1].Node)
}

func TestEngine_DeadEnd(t *testing.T) {
	engine, _ := newTestEngine(t)
	spec := domain.GraphSpec{
		Nodes: map[string]domain.NodeSpec{"A": {Function: "inc1"}},
		Edges: map[string]string{domain.StartNode: "A"},
		ConditionalEdges: map[string][]domain.Condition{
			"A": {{Field: "score", Operator: domain.OpGT, Value: 100, Target: domain.EndNode}},
		},
	}
	graph := mustGraph(t, spec)

	run, err := engine.Execute(context.Background(), graph, domain.State{"score": 0.0}, 0)
	require.NoError(t, err, "a dead end is recorded on the run, not returned")

	assert.Equal(t, domain.RunFailed, run.Status)
	assert.Equal(t, "A", run.CurrentNode)
	require.Len(t, run.Trace, 1)
	assert.Contains(t, run.Trace[0].Error, "no matching condition")
	assert.Equal(t, 1.0, run.State["score"], "the node ran before routing failed")
	assert.Contains(t, run.Error, `"A"`)
}

func TestEngine_ToolErrorFailsRun(t *testing.T) {
	engine, _ := newTestEngine(t)
	spec := domain.GraphSpec{
		Nodes: map[string]domain.NodeSpec{"ok": {Function: "inc1"}, "bad": {Function: "fail"}},
		Edges: map[string]string{domain.StartNode: "ok", "ok": "bad", "bad": domain.EndNode},
	}
	graph := mustGraph(t, spec)

	run, err := engine.Execute(context.Background(), graph, domain.State{"score": 0.0}, 0)
	require.NoError(t, err)

	assert.Equal(t, domain.RunFailed, run.Status)
	require.Len(t, run.Trace, 2)
	assert.Equal(t, "bad", run.Trace[1].Node)
	assert.Contains(t, run.Trace[1].Error, "boom")
	assert.Nil(t, run.Trace[1].Update)
	assert.Equal(t, 1.0, run.State["score"], "state is left as it was before the failing node")
	assert.Contains(t, run.Error, "boom")
}

func TestEngine_PanicIsRecorded(t *testing.T) {
	engine, _ := newTestEngine(t)
	spec := domain.GraphSpec{
		Nodes: map[string]domain.NodeSpec{"A": {Func: func(ctx context.Context, s domain.State) (domain.State, error) {
			panic("kaboom")
		}}},
		Edges: map[string]string{domain.StartNode: "A", "A": domain.EndNode},
	}
	graph := mustGraph(t, spec)

	run, err := engine.Execute(context.Background(), graph, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, run.Status)
	assert.Contains(t, run.Error, "kaboom")
}

func TestEngine_UnknownToolAtRuntime(t *testing.T) {
	engine, _ := newTestEngine(t)
	// Built without validation on purpose.
	graph := domain.NewGraphDefinition("g", domain.GraphSpec{
		Nodes: map[string]domain.NodeSpec{"A": {Function: "ghost"}},
		Edges: map[string]string{domain.StartNode: "A", "A": domain.EndNode},
	}, time.Now())

	run, err := engine.Execute(context.Background(), graph, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, run.Status)
	assert.Contains(t, run.Error, `unknown tool "ghost"`)
}

func TestEngine_UntouchedKeysPersist(t *testing.T) {
	engine, _ := newTestEngine(t)
	graph := mustGraph(t, domain.GraphSpec{
		Nodes: map[string]domain.NodeSpec{"A": {Function: "inc1"}, "B": {Function: "noop"}},
		Edges: map[string]string{domain.StartNode: "A", "A": "B", "B": domain.EndNode},
	})

	initial := domain.State{"score": 0.0, "name": "keep", "tags": []any{"x"}}
	run, err := engine.Execute(context.Background(), graph, initial, 0)
	require.NoError(t, err)

	for _, step := range run.Trace {
		assert.Equal(t, "keep", step.State["name"])
		assert.Equal(t, []any{"x"}, step.State["tags"])
	}
	assert.Equal(t, domain.State{"score": 1.0}, run.Trace[0].Update)
	assert.Equal(t, 0.0, initial["score"], "the caller's initial state is copied")
}

func TestEngine_ToolCannotMutateRecordedState(t *testing.T) {
	engine, _ := newTestEngine(t)
	graph := mustGraph(t, domain.GraphSpec{
		Nodes: map[string]domain.NodeSpec{"A": {Func: func(ctx context.Context, s domain.State) (domain.State, error) {
			s["leak"] = true
			return domain.State{"ok": true}, nil
		}}},
		Edges: map[string]string{domain.StartNode: "A", "A": domain.EndNode},
	})

	run, err := engine.Execute(context.Background(), graph, domain.State{}, 0)
	require.NoError(t, err)
	_, leaked := run.State["leak"]
	assert.False(t, leaked, "only returned keys reach the state")
	assert.Equal(t, true, run.State["ok"])
}

func TestEngine_EffectiveMaxIterations(t *testing.T) {
	engine, _ := newTestEngine(t, runtime.WithMaxIterations(30))
	graph := &domain.GraphDefinition{MaxIterations: 12}

	assert.Equal(t, 5, engine.EffectiveMaxIterations(graph, 5))
	assert.Equal(t, 12, engine.EffectiveMaxIterations(graph, 0))
	assert.Equal(t, 30, engine.EffectiveMaxIterations(&domain.GraphDefinition{}, 0))

	def, _ := newTestEngine(t)
	assert.Equal(t, runtime.DefaultMaxIterations, def.EffectiveMaxIterations(nil, 0))
}

func TestEngine_StartIsNonBlocking(t *testing.T) {
	release := make(chan struct{})
	reg := newTestRegistry(t)
	require.NoError(t, reg.Register("gate", func(ctx context.Context, s domain.State) (domain.State, error) {
		<-release
		return domain.State{"passed": true}, nil
	}))
	store := newStoreForTest()
	engine := runtime.NewEngine(reg, store)
	graph := domain.NewGraphDefinition("g", domain.GraphSpec{
		Nodes: map[string]domain.NodeSpec{"A": {Function: "gate"}},
		Edges: map[string]string{domain.StartNode: "A", "A": domain.EndNode},
	}, time.Now())

	snapshot, err := engine.Start(context.Background(), graph, domain.State{"n": 1}, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.RunRunning, snapshot.Status)
	assert.Equal(t, "A", snapshot.CurrentNode)
	assert.Empty(t, snapshot.Trace)

	live, err := store.Load(context.Background(), snapshot.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunRunning, live.Status)

	close(release)
	engine.Wait()

	done, err := store.Load(context.Background(), snapshot.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, done.Status)
	assert.Equal(t, true, done.State["passed"])
}

func TestEngine_StartDetachesFromCallerContext(t *testing.T) {
	engine, store := newTestEngine(t)
	graph := mustGraph(t, loopSpec("inc10"))

	ctx, cancel := context.WithCancel(context.Background())
	snapshot, err := engine.Start(ctx, graph, domain.State{"score": 0.0}, 0)
	require.NoError(t, err)
	cancel()

	engine.Wait()
	run, err := store.Load(context.Background(), snapshot.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Len(t, run.Trace, 8)
}

func TestEngine_MaxConcurrentRuns(t *testing.T) {
	release := make(chan struct{})
	var active, peak atomic.Int32

	reg := newTestRegistry(t)
	require.NoError(t, reg.Register("slow", func(ctx context.Context, s domain.State) (domain.State, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		active.Add(-1)
		return nil, nil
	}))
	store := newStoreForTest()
	engine := runtime.NewEngine(reg, store, runtime.WithMaxConcurrentRuns(1))
	graph := domain.NewGraphDefinition("g", domain.GraphSpec{
		Nodes: map[string]domain.NodeSpec{"A": {Function: "slow"}},
		Edges: map[string]string{domain.StartNode: "A", "A": domain.EndNode},
	}, time.Now())

	ids := make([]string, 3)
	for i := range ids {
		run, err := engine.Start(context.Background(), graph, nil, 0)
		require.NoError(t, err)
		ids[i] = run.ID
	}

	require.Eventually(t, func() bool { return active.Load() == 1 }, time.Second, 5*time.Millisecond)
	close(release)
	engine.Wait()

	assert.Equal(t, int32(1), peak.Load())
	for _, id := range ids {
		run, err := store.Load(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.RunCompleted, run.Status)
	}
}

func TestEngine_ConcurrentRunsShareGraph(t *testing.T) {
	engine, store := newTestEngine(t)
	graph := mustGraph(t, loopSpec("inc10"))

	ids := make([]string, 20)
	for i := range ids {
		run, err := engine.Start(context.Background(), graph, domain.State{"score": float64(i)}, 0)
		require.NoError(t, err)
		ids[i] = run.ID
	}
	engine.Wait()

	for i, id := range ids {
		run, err := store.Load(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.RunCompleted, run.Status)
		assert.GreaterOrEqual(t, run.State["score"], 80.0)
		assert.Equal(t, float64(i), run.State["score"].(float64)-10*float64(len(run.Trace)))
	}
}

func TestEngine_LifecycleHooks(t *testing.T) {
	var enters, leaves, starts, finishes int
	var lastStatus domain.RunStatus
	hooks := domain.LifecycleHooks{
		OnRunStart:  func(ctx context.Context, e *domain.RunEvent) { starts++ },
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) { enters++ },
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) { leaves++ },
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			finishes++
			lastStatus = e.Status
		},
	}
	engine, _ := newTestEngine(t, runtime.WithLifecycleHooks(hooks))
	graph := mustGraph(t, loopSpec("inc10"))

	_, err := engine.Execute(context.Background(), graph, domain.State{"score": 50.0}, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, finishes)
	assert.Equal(t, 3, enters)
	assert.Equal(t, 3, leaves)
	assert.Equal(t, domain.RunCompleted, lastStatus)
}

func TestEngine_UsesGeneratedIDs(t *testing.T) {
	var n int
	engine, _ := newTestEngine(t, runtime.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("run-%d", n)
	}))
	graph := mustGraph(t, loopSpec("inc10"))

	run, err := engine.Execute(context.Background(), graph, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, "graph-test", run.GraphID)
}

func TestEngine_TimestampsFollowClock(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var ticks int
	engine, _ := newTestEngine(t, runtime.WithClock(func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * time.Second)
	}))
	graph := mustGraph(t, loopSpec("inc10"))

	run, err := engine.Execute(context.Background(), graph, domain.State{"score": 60.0}, 0)
	require.NoError(t, err)
	require.Len(t, run.Trace, 2)

	assert.Equal(t, base.Add(1*time.Second), run.StartedAt)
	assert.Equal(t, base.Add(2*time.Second), run.Trace[0].Timestamp)
	assert.Equal(t, time.Second, run.Trace[0].Duration)
	assert.Equal(t, base.Add(4*time.Second), run.Trace[1].Timestamp)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, base.Add(6*time.Second), *run.FinishedAt)
	assert.Equal(t, *run.FinishedAt, run.UpdatedAt)
}
