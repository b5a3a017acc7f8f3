package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// ToolFunction defines the signature for a tool implementation.
// It receives the current state and returns a partial update (nil means no change).
type ToolFunction = domain.NodeFunc

// DuplicateToolError is returned by a strict registry when a name is registered twice.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.Name)
}

// Registry manages the available tools.
// Populate it before the first graph is created; registering while runs are active
// is allowed but not coordinated with them.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]ToolFunction
	strict bool
}

// Option configures the Registry.
type Option func(*Registry)

// WithStrict makes Register fail on duplicate names instead of overwriting.
func WithStrict(strict bool) Option {
	return func(r *Registry) {
		r.strict = strict
	}
}

// New creates a new empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		tools: make(map[string]ToolFunction),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool to the registry.
// If a tool with the same name exists it is overwritten, unless the registry is strict.
func (r *Registry) Register(name string, fn ToolFunction) error {
	if name == "" {
		return errors.New("tool name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("tool %q: function must not be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists && r.strict {
		return &DuplicateToolError{Name: name}
	}
	r.tools[name] = fn
	return nil
}

// MustRegister is Register for startup wiring; it panics on error.
func (r *Registry) MustRegister(name string, fn ToolFunction) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Resolve looks up a tool by name.
func (r *Registry) Resolve(name string) (ToolFunction, error) {
	r.mu.RLock()
	fn, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &domain.UnknownToolError{Name: name}
	}
	return fn, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
