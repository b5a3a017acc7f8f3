package process

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/registry"
	json "github.com/goccy/go-json"
)

// Runner turns allow-listed local commands into tool functions.
//
// Protocol: the command receives the current state as a JSON object on stdin and must
// print a JSON object on stdout; that object is the node's update. Empty output means
// no update. A non-zero exit fails the node with stderr attached.
type Runner struct {
	registry map[string]ToolConfig
	baseDir  string
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(tools map[string]ToolConfig) RunnerOption {
	return func(r *Runner) {
		for name, tool := range tools {
			tool.Name = name
			r.registry[name] = tool
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// NewRunner creates a new Process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]ToolConfig),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted script/command to the allow-list.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = ToolConfig{
		Name:    name,
		Command: command,
		Args:    args,
	}
}

// Names returns the allow-listed tool names, sorted.
func (r *Runner) Names() []string {
	return slices.Sorted(maps.Keys(r.registry))
}

// Tool returns the tool function for an allow-listed command.
func (r *Runner) Tool(name string) (registry.ToolFunction, error) {
	proc, ok := r.registry[name]
	if !ok {
		return nil, fmt.Errorf("process tool not registered: %s", name)
	}
	return func(ctx context.Context, state domain.State) (domain.State, error) {
		return r.run(ctx, proc, state)
	}, nil
}

// RegisterInto adds every allow-listed command to reg.
func (r *Runner) RegisterInto(reg *registry.Registry) error {
	for _, name := range r.Names() {
		fn, err := r.Tool(name)
		if err != nil {
			return err
		}
		if err := reg.Register(name, fn); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) run(ctx context.Context, proc ToolConfig, state domain.State) (domain.State, error) {
	input, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state for %s: %w", proc.Name, err)
	}

	cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
	cmd.Dir = r.baseDir
	if proc.Dir != "" {
		cmd.Dir = proc.Dir
		if !filepath.IsAbs(proc.Dir) {
			cmd.Dir = filepath.Join(r.baseDir, proc.Dir)
		}
	}
	cmd.Stdin = bytes.NewReader(input)

	// Configured variables are passed as-is; the tool name is exposed for shared scripts.
	env := []string{"FLOWGRAPH_TOOL=" + proc.Name}
	for _, k := range slices.Sorted(maps.Keys(proc.Environment)) {
		env = append(env, fmt.Sprintf("%s=%s", k, proc.Environment[k]))
	}
	cmd.Env = append(cmd.Environ(), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("execution failed: %w. Stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	trimmed := bytes.TrimSpace(stdout.Bytes())
	if len(trimmed) == 0 {
		return nil, nil
	}

	var update domain.State
	if err := json.Unmarshal(trimmed, &update); err != nil {
		return nil, fmt.Errorf("tool %s must print a JSON object: %w", proc.Name, err)
	}
	return update, nil
}
