package runtime

import (
	"cmp"
	"encoding/json"
	"math"
	"math/big"
	"reflect"
	"strings"

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/spf13/cast"
)

// Route picks the next node after source has run.
// Conditions are tried in definition order and the first match wins. Without a match
// the unconditional edge is taken; without one either, the run is at a dead end.
func Route(graph *domain.GraphDefinition, source string, state domain.State) (next, edge string, err error) {
	for i, cond := range graph.ConditionalEdges[source] {
		if Evaluate(cond, state) {
			return cond.Target, cond.Label(source, i), nil
		}
	}

	if target, ok := graph.Edges[source]; ok && target != "" {
		return target, domain.DefaultEdgeName, nil
	}

	return "", "", &domain.DeadEndError{Node: source}
}

// Evaluate applies cond to state. A missing field is a non-match, never an error.
func Evaluate(cond domain.Condition, state domain.State) bool {
	actual, ok := state[cond.Field]
	if !ok {
		return false
	}
	return Compare(cond.Operator, actual, cond.Value)
}

// Compare applies op to (left, right).
// When both sides coerce to numbers the comparison is numeric: exact when both are
// integers, in float64 otherwise. Non-numeric operands only support == and != (deep
// equality); ordering operators do not match.
func Compare(op domain.Operator, left, right any) bool {
	if li, ok := toInteger(left); ok {
		if ri, ok := toInteger(right); ok {
			return holds(op, li.Cmp(ri))
		}
	}

	lf, lok := toNumber(left)
	rf, rok := toNumber(right)
	if lok && rok {
		return holds(op, cmp.Compare(lf, rf))
	}

	if op.Ordering() {
		return false
	}
	equal := reflect.DeepEqual(left, right)
	if op == domain.OpNE {
		return !equal
	}
	return op == domain.OpEQ && equal
}

// holds reports whether op accepts a three-way comparison result.
func holds(op domain.Operator, c int) bool {
	switch op {
	case domain.OpGE:
		return c >= 0
	case domain.OpGT:
		return c > 0
	case domain.OpLE:
		return c <= 0
	case domain.OpLT:
		return c < 0
	case domain.OpEQ:
		return c == 0
	case domain.OpNE:
		return c != 0
	}
	return false
}

// toInteger coerces integer kinds, json.Number and strings written as base-10 integers.
func toInteger(v any) (*big.Int, bool) {
	switch n := v.(type) {
	case nil, bool:
		return nil, false
	case json.Number:
		return new(big.Int).SetString(string(n), 10)
	case string:
		return new(big.Int).SetString(strings.TrimSpace(n), 10)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return new(big.Int).SetUint64(rv.Uint()), true
	}
	return nil, false
}

// toNumber coerces Go numeric kinds, json.Number and numeric strings.
// Booleans are deliberately not numbers.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case nil, bool:
		return 0, false
	case json.Number:
		f, err := n.Float64()
		return f, err == nil && !math.IsNaN(f)
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := cast.ToFloat64E(s)
		return f, err == nil && !math.IsNaN(f)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f, !math.IsNaN(f)
	}
	return 0, false
}
