package domain

import (
	"slices"
	"time"
)

// RunStatus is the lifecycle status of a Run.
type RunStatus string

const (
	RunRunning               RunStatus = "running"
	RunCompleted             RunStatus = "completed"
	RunFailed                RunStatus = "failed"
	RunMaxIterationsExceeded RunStatus = "max-iterations-exceeded"
)

// IsTerminal reports whether no further steps will be taken.
func (s RunStatus) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunMaxIterationsExceeded
}

// ExecutionStep is one entry of a run's append-only trace.
type ExecutionStep struct {
	Index     int           `json:"index"`
	Node      string        `json:"node"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration_ns"`

	// Update is the partial state returned by the node.
	Update State `json:"update,omitempty"`
	// State is the full snapshot after the update was merged.
	State State `json:"state"`

	// Edge names the condition (or "default") used to leave the node.
	Edge string `json:"edge,omitempty"`
	Next string `json:"next,omitempty"`

	Error string `json:"error,omitempty"`
}

// Run is one execution of a graph against an initial state.
type Run struct {
	ID            string          `json:"run_id"`
	GraphID       string          `json:"graph_id"`
	Status        RunStatus       `json:"status"`
	CurrentNode   string          `json:"current_node"`
	State         State           `json:"state"`
	Trace         []ExecutionStep `json:"trace"`
	Error         string          `json:"error,omitempty"`
	MaxIterations int             `json:"max_iterations"`
	StartedAt     time.Time       `json:"started_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
}

// Steps returns the number of node invocations recorded so far.
func (r *Run) Steps() int {
	return len(r.Trace)
}

// Snapshot returns a deep copy of the run safe to hand to another goroutine.
func (r *Run) Snapshot() *Run {
	if r == nil {
		return nil
	}
	cp := *r
	cp.State = r.State.Clone()
	cp.Trace = slices.Clone(r.Trace)
	for i := range cp.Trace {
		cp.Trace[i].State = r.Trace[i].State.Clone()
		if r.Trace[i].Update != nil {
			cp.Trace[i].Update = r.Trace[i].Update.Clone()
		}
	}
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}
