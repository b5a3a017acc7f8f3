package runtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/flowgraph/internal/runtime"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestValidateGraph_Valid(t *testing.T) {
	reg := newTestRegistry(t)

	t.Run("cycle is allowed", func(t *testing.T) {
		assert.NoError(t, runtime.ValidateGraph(loopSpec("inc10"), reg))
	})

	t.Run("start straight to end", func(t *testing.T) {
		spec := domain.GraphSpec{Edges: map[string]string{domain.StartNode: domain.EndNode}}
		assert.NoError(t, runtime.ValidateGraph(spec, reg))
	})

	t.Run("inline function needs no registry entry", func(t *testing.T) {
		spec := domain.GraphSpec{
			Nodes: map[string]domain.NodeSpec{"A": {Func: func(ctx context.Context, s domain.State) (domain.State, error) { return nil, nil }}},
			Edges: map[string]string{domain.StartNode: "A", "A": domain.EndNode},
		}
		assert.NoError(t, runtime.ValidateGraph(spec, reg))
	})

	t.Run("unreachable nodes are fine", func(t *testing.T) {
		spec := domain.GraphSpec{
			Nodes: map[string]domain.NodeSpec{"A": {Function: "noop"}, "island": {Function: "noop"}},
			Edges: map[string]string{domain.StartNode: "A", "A": domain.EndNode},
		}
		assert.NoError(t, runtime.ValidateGraph(spec, reg))
	})
}

func TestValidateGraph_Errors(t *testing.T) {
	reg := newTestRegistry(t)

	cases := []struct {
		name   string
		spec   domain.GraphSpec
		target any
		detail string
	}{
		{
			name: "unknown tool",
			spec: domain.GraphSpec{
				Nodes: map[string]domain.NodeSpec{"A": {Function: "ghost"}},
				Edges: map[string]string{domain.StartNode: "A", "A": domain.EndNode},
			},
			target: new(*domain.UnknownToolError),
			detail: `node "A": unknown tool "ghost"`,
		},
		{
			name: "unknown edge target",
			spec: domain.GraphSpec{
				Nodes: map[string]domain.NodeSpec{"A": {Function: "noop"}},
				Edges: map[string]string{domain.StartNode: "A", "A": "Z"},
			},
			target: new(*domain.UnknownNodeError),
			detail: "edge A -> Z references an unknown node",
		},
		{
			name: "unknown edge source",
			spec: domain.GraphSpec{
				Nodes: map[string]domain.NodeSpec{"A": {Function: "noop"}},
				Edges: map[string]string{domain.StartNode: "A", "Q": "A", "A": domain.EndNode},
			},
			target: new(*domain.UnknownNodeError),
		},
		{
			name: "unknown conditional target",
			spec: domain.GraphSpec{
				Nodes: map[string]domain.NodeSpec{"A": {Function: "noop"}},
				Edges: map[string]string{domain.StartNode: "A"},
				ConditionalEdges: map[string][]domain.Condition{
					"A": {{Field: "x", Operator: domain.OpEQ, Value: 1, Target: "nowhere"}},
				},
			},
			target: new(*domain.UnknownNodeError),
		},
		{
			name: "unsupported operator",
			spec: domain.GraphSpec{
				Nodes: map[string]domain.NodeSpec{"A": {Function: "noop"}},
				Edges: map[string]string{domain.StartNode: "A"},
				ConditionalEdges: map[string][]domain.Condition{
					"A": {{Field: "x", Operator: "~=", Value: 1, Target: domain.EndNode}},
				},
			},
			target: new(*domain.UnsupportedOperatorError),
		},
		{
			name: "missing entry",
			spec: domain.GraphSpec{
				Nodes: map[string]domain.NodeSpec{"A": {Function: "noop"}},
				Edges: map[string]string{"A": domain.EndNode},
			},
			target: new(*domain.MissingEntryError),
			detail: "START has no outgoing edge",
		},
		{
			name: "reserved node name",
			spec: domain.GraphSpec{
				Nodes: map[string]domain.NodeSpec{domain.EndNode: {Function: "noop"}},
				Edges: map[string]string{domain.StartNode: domain.EndNode},
			},
			target: new(*domain.ReservedNodeError),
		},
		{
			name: "END with outgoing edge",
			spec: domain.GraphSpec{
				Nodes: map[string]domain.NodeSpec{"A": {Function: "noop"}},
				Edges: map[string]string{domain.StartNode: "A", "A": domain.EndNode, domain.EndNode: "A"},
			},
			target: new(*domain.InvalidGraphError),
			detail: "END cannot have outgoing edges",
		},
		{
			name: "edge into START",
			spec: domain.GraphSpec{
				Nodes: map[string]domain.NodeSpec{"A": {Function: "noop"}},
				Edges: map[string]string{domain.StartNode: "A", "A": domain.StartNode},
			},
			target: new(*domain.InvalidGraphError),
		},
		{
			name: "conditions on START",
			spec: domain.GraphSpec{
				Nodes: map[string]domain.NodeSpec{"A": {Function: "noop"}},
				Edges: map[string]string{domain.StartNode: "A", "A": domain.EndNode},
				ConditionalEdges: map[string][]domain.Condition{
					domain.StartNode: {{Field: "x", Operator: domain.OpEQ, Value: 1, Target: "A"}},
				},
			},
			target: new(*domain.InvalidGraphError),
		},
		{
			name: "node without function",
			spec: domain.GraphSpec{
				Nodes: map[string]domain.NodeSpec{"A": {}},
				Edges: map[string]string{domain.StartNode: "A", "A": domain.EndNode},
			},
			target: new(*domain.InvalidGraphError),
		},
		{
			name: "negative max iterations",
			spec: domain.GraphSpec{
				Edges:         map[string]string{domain.StartNode: domain.EndNode},
				MaxIterations: -1,
			},
			target: new(*domain.InvalidGraphError),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := runtime.ValidateGraph(tc.spec, reg)
			require.Error(t, err)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.ErrorAs(t, err, tc.target)
			if tc.detail != "" {
				assert.Contains(t, verr.Details(), tc.detail)
			}
		})
	}
}

func TestValidateGraph_ReportsEveryIssue(t *testing.T) {
	spec := domain.GraphSpec{
		Nodes: map[string]domain.NodeSpec{"A": {Function: "ghost"}, "B": {Function: "noop"}},
		Edges: map[string]string{"A": "missing", "B": domain.EndNode},
		ConditionalEdges: map[string][]domain.Condition{
			"B": {{Field: "x", Operator: "=~", Value: 1, Target: domain.EndNode}},
		},
	}

	err := runtime.ValidateGraph(spec, newTestRegistry(t))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)

	assert.Len(t, verr.Issues, 4)
	assert.Equal(t, []string{
		`node "A": unknown tool "ghost"`,
		"edge A -> missing references an unknown node",
		`unsupported operator "=~" (expected one of >=, >, <=, <, ==, !=)`,
		"START has no outgoing edge",
	}, verr.Details())
	assert.Contains(t, err.Error(), "4 errors")
}
