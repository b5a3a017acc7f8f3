package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/flowgraph/internal/logging"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxIterations bounds the number of node invocations of a run when neither
// the run request nor the graph sets a limit.
const DefaultMaxIterations = 50

// ToolResolver resolves a node's function name into a callable.
type ToolResolver interface {
	Resolve(name string) (domain.NodeFunc, error)
}

// Engine executes validated graphs. Each started run gets its own goroutine;
// steps within a run are strictly sequential.
type Engine struct {
	tools  ToolResolver
	store  ports.RunStore
	logger *slog.Logger
	hooks  domain.LifecycleHooks

	maxIterations int
	sem           *semaphore.Weighted
	wg            sync.WaitGroup

	now   func() time.Time
	newID func() string
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithMaxIterations sets the engine-wide iteration bound (ignored when <= 0).
func WithMaxIterations(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// WithMaxConcurrentRuns caps how many runs step at the same time.
// Runs over the cap stay "running" with an empty trace until a slot frees up.
func WithMaxConcurrentRuns(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.sem = semaphore.NewWeighted(int64(n))
		} else {
			e.sem = nil
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator overrides run ID generation (tests).
func WithIDGenerator(gen func() string) EngineOption {
	return func(e *Engine) {
		e.newID = gen
	}
}

// NewEngine creates a new engine with dependencies.
func NewEngine(tools ToolResolver, store ports.RunStore, opts ...EngineOption) *Engine {
	e := &Engine{
		tools:         tools,
		store:         store,
		logger:        logging.NewNop(),
		maxIterations: DefaultMaxIterations,
		now:           func() time.Time { return time.Now().UTC() },
		newID:         func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EffectiveMaxIterations picks the bound for a run: the request wins, then the graph,
// then the engine default.
func (e *Engine) EffectiveMaxIterations(graph *domain.GraphDefinition, requested int) int {
	if requested > 0 {
		return requested
	}
	if graph != nil && graph.MaxIterations > 0 {
		return graph.MaxIterations
	}
	return e.maxIterations
}

// Start creates a run, stores its initial snapshot and executes it in the background.
// The returned snapshot is the state before the first step.
func (e *Engine) Start(ctx context.Context, graph *domain.GraphDefinition, initial domain.State, maxIterations int) (*domain.Run, error) {
	run, err := e.newRun(ctx, graph, initial, maxIterations)
	if err != nil {
		return nil, err
	}
	snapshot := run.Snapshot()

	// Runs are not cancellable: detach from the caller's deadline.
	bg := context.WithoutCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if e.sem != nil {
			// A context without cancellation cannot make Acquire fail.
			_ = e.sem.Acquire(bg, 1)
			defer e.sem.Release(1)
		}
		if err := e.execute(bg, graph, run); err != nil {
			e.logger.Error("run finished with store error", "run_id", run.ID, "error", err)
		}
	}()

	return snapshot, nil
}

// Execute creates a run and executes it on the calling goroutine.
func (e *Engine) Execute(ctx context.Context, graph *domain.GraphDefinition, initial domain.State, maxIterations int) (*domain.Run, error) {
	run, err := e.newRun(ctx, graph, initial, maxIterations)
	if err != nil {
		return nil, err
	}
	if err := e.execute(ctx, graph, run); err != nil {
		return run.Snapshot(), err
	}
	return run.Snapshot(), nil
}

// Wait blocks until every run started with Start has reached a terminal status.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) newRun(ctx context.Context, graph *domain.GraphDefinition, initial domain.State, maxIterations int) (*domain.Run, error) {
	if graph == nil {
		return nil, domain.ErrGraphNotFound
	}
	entry, ok := graph.Entry()
	if !ok {
		return nil, &domain.MissingEntryError{}
	}

	now := e.now()
	run := &domain.Run{
		ID:            e.newID(),
		GraphID:       graph.ID,
		Status:        domain.RunRunning,
		CurrentNode:   entry,
		State:         initial.Clone(),
		Trace:         []domain.ExecutionStep{},
		MaxIterations: e.EffectiveMaxIterations(graph, maxIterations),
		StartedAt:     now,
		UpdatedAt:     now,
	}

	if err := e.store.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}
	return run, nil
}

// execute is the step loop. It owns run exclusively and publishes a snapshot to the
// store after every step. The returned error only reports store failures; node
// failures end up in the run itself.
func (e *Engine) execute(ctx context.Context, graph *domain.GraphDefinition, run *domain.Run) error {
	logger := e.logger.With("run_id", run.ID, "graph_id", graph.ID)
	logger.Info("run started", "entry", run.CurrentNode, "max_iterations", run.MaxIterations)
	e.emitRun(ctx, domain.EventRunStart, run)

	var storeErr error
	publish := func() {
		if err := e.store.Save(ctx, run); err != nil {
			logger.Error("failed to save run snapshot", "error", err)
			storeErr = err
		}
	}
	// Leave events fire once the step is visible in the store.
	leave := func(step domain.ExecutionStep) {
		fn := graph.Nodes[step.Node].Function
		e.emitNode(ctx, domain.EventNodeLeave, run, step.Node, fn, step.Edge, step.Duration, step.Error != "")
	}

	var failed *domain.ExecutionStep
	for {
		if run.CurrentNode == domain.EndNode {
			e.finish(run, domain.RunCompleted, "")
			break
		}
		if run.Steps() >= run.MaxIterations {
			logger.Warn("iteration bound reached", "node", run.CurrentNode, "steps", run.Steps())
			e.finish(run, domain.RunMaxIterationsExceeded, "")
			break
		}

		step, err := e.step(ctx, graph, run, logger)
		run.Trace = append(run.Trace, step)
		run.State = step.State.Clone()
		run.UpdatedAt = step.Timestamp

		if err != nil {
			logger.Error("run failed", "node", step.Node, "error", err)
			e.finish(run, domain.RunFailed, err.Error())
			failed = &step
			break
		}

		run.CurrentNode = step.Next
		publish()
		leave(step)
	}

	publish()
	if failed != nil {
		leave(*failed)
	}
	logger.Info("run finished", "status", run.Status, "steps", run.Steps())
	e.emitRun(ctx, domain.EventRunFinish, run)
	return storeErr
}

// step invokes the current node and decides where to go next.
func (e *Engine) step(ctx context.Context, graph *domain.GraphDefinition, run *domain.Run, logger *slog.Logger) (domain.ExecutionStep, error) {
	nodeID := run.CurrentNode
	start := e.now()
	step := domain.ExecutionStep{
		Index:     run.Steps() + 1,
		Node:      nodeID,
		Timestamp: start,
		State:     run.State,
	}

	node := graph.Nodes[nodeID]
	e.emitNode(ctx, domain.EventNodeEnter, run, nodeID, node.Function, "", 0, false)

	update, err := e.invoke(ctx, graph, nodeID, run.State)
	step.Duration = e.now().Sub(start)
	if err != nil {
		step.Error = err.Error()
		return step, err
	}

	if update != nil {
		step.Update = update.Clone()
	}
	step.State = run.State.Merge(update)
	logger.Debug("node executed", "node", nodeID, "step", step.Index, "changed", domain.Diff(run.State, step.State).Keys())

	next, edge, err := Route(graph, nodeID, step.State)
	if err != nil {
		step.Error = err.Error()
		return step, err
	}

	step.Next = next
	step.Edge = edge
	return step, nil
}

// invoke resolves and calls the node function. Panics are turned into errors so a
// single faulty tool can't take the process down.
func (e *Engine) invoke(ctx context.Context, graph *domain.GraphDefinition, nodeID string, state domain.State) (update domain.State, err error) {
	node, ok := graph.Nodes[nodeID]
	if !ok {
		return nil, &domain.NodeExecutionError{Node: nodeID, Err: &domain.InvalidGraphError{Reason: "node is not defined"}}
	}

	fn := node.Func
	if fn == nil {
		resolved, err := e.tools.Resolve(node.Function)
		if err != nil {
			return nil, &domain.NodeExecutionError{Node: nodeID, Err: err}
		}
		fn = resolved
	}

	defer func() {
		if r := recover(); r != nil {
			update = nil
			err = &domain.NodeExecutionError{Node: nodeID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	update, err = fn(ctx, state.Clone())
	if err != nil {
		return nil, &domain.NodeExecutionError{Node: nodeID, Err: err}
	}
	return update, nil
}

func (e *Engine) finish(run *domain.Run, status domain.RunStatus, reason string) {
	now := e.now()
	run.Status = status
	run.Error = reason
	run.UpdatedAt = now
	run.FinishedAt = &now
}
