package flowgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/flowgraph/internal/logging"
	"github.com/aretw0/flowgraph/internal/runtime"
	"github.com/aretw0/flowgraph/pkg/adapters/memory"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
	"github.com/aretw0/flowgraph/pkg/registry"
	"github.com/google/uuid"
)

// DefaultMaxIterations is the iteration bound used when neither the run request nor the
// graph sets one.
const DefaultMaxIterations = runtime.DefaultMaxIterations

// Engine is the high-level entry point for the library.
// It owns the tool registry, the graph store and the run store, and wraps the internal
// runtime with a create/run/inspect API.
type Engine struct {
	runtime  *runtime.Engine
	registry *registry.Registry
	graphs   ports.GraphStore
	runs     ports.RunStore
	hooks    domain.LifecycleHooks
	logger   *slog.Logger

	maxIterations     int
	maxConcurrentRuns int

	now        func() time.Time
	newGraphID func() string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithRegistry uses reg for tool lookups instead of a fresh empty registry.
func WithRegistry(reg *registry.Registry) Option {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithRunStore sets where run snapshots are kept (default: in memory).
func WithRunStore(store ports.RunStore) Option {
	return func(e *Engine) {
		e.runs = store
	}
}

// WithGraphStore sets where graph definitions are kept (default: in memory).
func WithGraphStore(store ports.GraphStore) Option {
	return func(e *Engine) {
		e.graphs = store
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithMaxIterations sets the engine-wide iteration bound.
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		e.maxIterations = n
	}
}

// WithMaxConcurrentRuns caps the number of runs executing at once (0 = unbounded).
func WithMaxConcurrentRuns(n int) Option {
	return func(e *Engine) {
		e.maxConcurrentRuns = n
	}
}

// New initializes a new Engine. Without options it uses an empty registry and in-memory stores.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{
		maxIterations: DefaultMaxIterations,
		now:           func() time.Time { return time.Now().UTC() },
		newGraphID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.maxIterations <= 0 {
		return nil, fmt.Errorf("max iterations must be positive, got %d", eng.maxIterations)
	}
	if eng.maxConcurrentRuns < 0 {
		return nil, fmt.Errorf("max concurrent runs must not be negative, got %d", eng.maxConcurrentRuns)
	}

	if eng.registry == nil {
		eng.registry = registry.New()
	}
	if eng.graphs == nil {
		eng.graphs = memory.NewGraphStore()
	}
	if eng.runs == nil {
		eng.runs = memory.NewRunStore()
	}
	// Ensure logger is initialized (so we don't pass nil to runtime)
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}

	eng.runtime = runtime.NewEngine(eng.registry, eng.runs,
		runtime.WithLogger(eng.logger),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithMaxIterations(eng.maxIterations),
		runtime.WithMaxConcurrentRuns(eng.maxConcurrentRuns),
	)

	return eng, nil
}

// Registry returns the tool registry used by the engine.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// RegisterTool is a shortcut for Registry().Register.
func (e *Engine) RegisterTool(name string, fn registry.ToolFunction) error {
	return e.registry.Register(name, fn)
}

// Tools lists the registered tool names, sorted.
func (e *Engine) Tools() []string {
	return e.registry.Names()
}

// ValidateGraph checks spec against the registry without storing it.
func (e *Engine) ValidateGraph(spec domain.GraphSpec) error {
	return runtime.ValidateGraph(spec, e.registry)
}

// CreateGraph validates spec, freezes it under a new ID and stores it.
// Validation failures are returned as *domain.ValidationError.
func (e *Engine) CreateGraph(ctx context.Context, spec domain.GraphSpec) (*domain.GraphDefinition, error) {
	if err := e.ValidateGraph(spec); err != nil {
		return nil, err
	}

	graph := domain.NewGraphDefinition(e.newGraphID(), spec, e.now())
	if err := e.graphs.Save(ctx, graph); err != nil {
		return nil, fmt.Errorf("failed to save graph: %w", err)
	}

	e.logger.Info("graph created", "graph_id", graph.ID, "name", graph.Name, "nodes", len(graph.Nodes))
	return graph, nil
}

// GetGraph returns a stored graph or domain.ErrGraphNotFound.
func (e *Engine) GetGraph(ctx context.Context, graphID string) (*domain.GraphDefinition, error) {
	return e.graphs.Load(ctx, graphID)
}

// ListGraphs returns every stored graph, oldest first.
func (e *Engine) ListGraphs(ctx context.Context) ([]*domain.GraphDefinition, error) {
	return e.graphs.List(ctx)
}

// RunGraph starts a run in the background and returns its initial snapshot.
// maxIterations <= 0 defers to the graph, then to the engine default.
func (e *Engine) RunGraph(ctx context.Context, graphID string, initial domain.State, maxIterations int) (*domain.Run, error) {
	graph, err := e.prepareRun(ctx, graphID, maxIterations)
	if err != nil {
		return nil, err
	}
	return e.runtime.Start(ctx, graph, initial, maxIterations)
}

// ExecuteGraph runs a graph to a terminal status on the calling goroutine.
func (e *Engine) ExecuteGraph(ctx context.Context, graphID string, initial domain.State, maxIterations int) (*domain.Run, error) {
	graph, err := e.prepareRun(ctx, graphID, maxIterations)
	if err != nil {
		return nil, err
	}
	return e.runtime.Execute(ctx, graph, initial, maxIterations)
}

// GetRunState returns the latest snapshot of a run or domain.ErrRunNotFound.
func (e *Engine) GetRunState(ctx context.Context, runID string) (*domain.Run, error) {
	return e.runs.Load(ctx, runID)
}

// ListRuns returns snapshots of every stored run in ID order.
// Runs evicted between listing and loading are skipped.
func (e *Engine) ListRuns(ctx context.Context) ([]*domain.Run, error) {
	ids, err := e.runs.List(ctx)
	if err != nil {
		return nil, err
	}
	runs := make([]*domain.Run, 0, len(ids))
	for _, id := range ids {
		run, err := e.runs.Load(ctx, id)
		if errors.Is(err, domain.ErrRunNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Wait blocks until every background run has finished.
func (e *Engine) Wait() {
	e.runtime.Wait()
}

func (e *Engine) prepareRun(ctx context.Context, graphID string, maxIterations int) (*domain.GraphDefinition, error) {
	if maxIterations < 0 {
		return nil, &domain.ValidationError{Issues: []error{
			&domain.InvalidGraphError{Reason: "max_iterations must not be negative"},
		}}
	}
	graph, err := e.graphs.Load(ctx, graphID)
	if err != nil {
		return nil, err
	}
	return graph, nil
}
