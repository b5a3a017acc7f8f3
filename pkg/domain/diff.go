package domain

import (
	"reflect"
)

// StateDiff lists the keys whose values changed between two states.
// Added and modified keys carry their new value. Removed keys carry nil.
type StateDiff map[string]any

// Diff calculates the difference between before and after.
// A nil before yields the whole of after (initial load).
func Diff(before, after State) StateDiff {
	delta := make(StateDiff)

	for k, newVal := range after {
		oldVal, exists := before[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}

	for k := range before {
		if _, exists := after[k]; !exists {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// IsEmpty reports whether the diff carries any change.
func (d StateDiff) IsEmpty() bool {
	return len(d) == 0
}

// Keys returns the changed keys in sorted order.
func (d StateDiff) Keys() []string {
	return State(d).Keys()
}
