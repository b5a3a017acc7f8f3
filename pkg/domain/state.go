package domain

import (
	"maps"
	"slices"

	"github.com/mohae/deepcopy"
)

// State is the shared key/value record threaded through every node of a run.
type State map[string]any

// Clone returns a deep copy of the state. Nested maps and slices are not shared.
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	cp, ok := deepcopy.Copy(map[string]any(s)).(map[string]any)
	if !ok || cp == nil {
		return State{}
	}
	return State(cp)
}

// Merge returns a new State with update applied on top of s.
// Keys present in update overwrite, every other key keeps its prior value.
func (s State) Merge(update State) State {
	next := make(State, len(s)+len(update))
	maps.Copy(next, s)
	maps.Copy(next, update.Clone())
	return next
}

// Get returns the value stored under key and whether it was present.
func (s State) Get(key string) (any, bool) {
	v, ok := s[key]
	return v, ok
}

// Keys returns the state keys in sorted order.
func (s State) Keys() []string {
	return slices.Sorted(maps.Keys(s))
}
