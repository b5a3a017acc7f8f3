package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrGraphNotFound is returned when a graph ID cannot be found.
var ErrGraphNotFound = errors.New("graph not found")

// ErrRunNotFound is returned when a run ID cannot be found in the store.
var ErrRunNotFound = errors.New("run not found")

// ErrDeadEnd is matched by DeadEndError.
var ErrDeadEnd = errors.New("dead end")

// ValidationError aggregates every problem found in a graph spec.
type ValidationError struct {
	Issues []error
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return "invalid graph: " + e.Issues[0].Error()
	}
	msgs := make([]string, len(e.Issues))
	for i, err := range e.Issues {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid graph: %d errors: %s", len(e.Issues), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual issues to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error {
	return e.Issues
}

// Details returns the issue messages.
func (e *ValidationError) Details() []string {
	out := make([]string, len(e.Issues))
	for i, err := range e.Issues {
		out[i] = err.Error()
	}
	return out
}

// UnknownToolError is returned when a function name is not registered.
type UnknownToolError struct {
	Name string
	Node string
}

func (e *UnknownToolError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("node %q: unknown tool %q", e.Node, e.Name)
	}
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// UnknownNodeError is returned when an edge references a node that does not exist.
type UnknownNodeError struct {
	Source string
	Target string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("edge %s -> %s references an unknown node", e.Source, e.Target)
}

// UnsupportedOperatorError is returned for operators outside the supported set.
type UnsupportedOperatorError struct {
	Operator string
}

func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("unsupported operator %q (expected one of >=, >, <=, <, ==, !=)", e.Operator)
}

// ReservedNodeError is returned when a node uses a sentinel name.
type ReservedNodeError struct {
	Name string
}

func (e *ReservedNodeError) Error() string {
	return fmt.Sprintf("node name %q is reserved", e.Name)
}

// MissingEntryError is returned when START has no outgoing edge.
type MissingEntryError struct{}

func (e *MissingEntryError) Error() string {
	return "START has no outgoing edge"
}

// InvalidGraphError covers structural problems without a dedicated type.
type InvalidGraphError struct {
	Reason string
}

func (e *InvalidGraphError) Error() string {
	return e.Reason
}

// DeadEndError is recorded when a node has no matching condition and no default edge.
type DeadEndError struct {
	Node string
}

func (e *DeadEndError) Error() string {
	return fmt.Sprintf("node %q has no matching condition and no default edge", e.Node)
}

func (e *DeadEndError) Is(target error) bool {
	return target == ErrDeadEnd
}

// NodeExecutionError wraps a failure raised while invoking a node's function.
type NodeExecutionError struct {
	Node string
	Err  error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %q failed: %v", e.Node, e.Err)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Err
}
