package domain

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/mohae/deepcopy"
)

// Sentinel node names. They are virtual: no function is bound to them.
const (
	StartNode = "START"
	EndNode   = "END"
)

// DefaultEdgeName is reported in the trace when the unconditional edge is taken.
const DefaultEdgeName = "default"

// NodeFunc is the in-process form of a tool: it receives the current state and
// returns a partial update.
type NodeFunc func(ctx context.Context, state State) (State, error)

// NodeSpec binds a node name to the function it runs.
type NodeSpec struct {
	// Function names a tool in the registry.
	Function string `json:"function,omitempty" yaml:"function,omitempty" mapstructure:"function"`

	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`

	// Func is an inline function. It takes precedence over Function and is never serialised.
	Func NodeFunc `json:"-" yaml:"-" mapstructure:"-"`
}

// Condition is one rule of a node's conditional edges.
type Condition struct {
	Name     string   `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Field    string   `json:"field" yaml:"field" mapstructure:"field"`
	Operator Operator `json:"operator" yaml:"operator" mapstructure:"operator"`
	Value    any      `json:"value" yaml:"value" mapstructure:"value"`
	Target   string   `json:"target" yaml:"target" mapstructure:"target"`
}

// Label returns the name reported in the trace for the condition at index i of source.
func (c Condition) Label(source string, i int) string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("%s#%d", source, i)
}

// GraphSpec is the unvalidated description submitted by a caller.
type GraphSpec struct {
	Name             string                 `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Nodes            map[string]NodeSpec    `json:"nodes" yaml:"nodes" mapstructure:"nodes"`
	Edges            map[string]string      `json:"edges" yaml:"edges" mapstructure:"edges"`
	ConditionalEdges map[string][]Condition `json:"conditional_edges,omitempty" yaml:"conditional_edges,omitempty" mapstructure:"conditional_edges"`

	// MaxIterations overrides the engine default for runs of this graph (0 = inherit).
	MaxIterations int `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty" mapstructure:"max_iterations"`
}

// GraphDefinition is a validated, immutable graph. Runs reference it by ID.
type GraphDefinition struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	Nodes            map[string]NodeSpec    `json:"nodes"`
	Edges            map[string]string      `json:"edges"`
	ConditionalEdges map[string][]Condition `json:"conditional_edges"`
	MaxIterations    int                    `json:"max_iterations,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

// NewGraphDefinition freezes spec under id. The spec maps are copied so later
// mutation of spec does not reach the definition.
func NewGraphDefinition(id string, spec GraphSpec, now time.Time) *GraphDefinition {
	name := spec.Name
	if name == "" {
		short := id
		if len(short) > 8 {
			short = short[:8]
		}
		name = "Graph-" + short
	}

	nodes, edges, conds := copyTopology(spec.Nodes, spec.Edges, spec.ConditionalEdges)

	return &GraphDefinition{
		ID:               id,
		Name:             name,
		Nodes:            nodes,
		Edges:            edges,
		ConditionalEdges: conds,
		MaxIterations:    spec.MaxIterations,
		CreatedAt:        now,
	}
}

// Clone returns a deep copy of the definition. Stores hand out clones so callers
// cannot reach the stored maps.
func (g *GraphDefinition) Clone() *GraphDefinition {
	if g == nil {
		return nil
	}
	cp := *g
	cp.Nodes, cp.Edges, cp.ConditionalEdges = copyTopology(g.Nodes, g.Edges, g.ConditionalEdges)
	return &cp
}

func copyTopology(nodes map[string]NodeSpec, edges map[string]string, conds map[string][]Condition) (map[string]NodeSpec, map[string]string, map[string][]Condition) {
	n := make(map[string]NodeSpec, len(nodes))
	maps.Copy(n, nodes)
	e := make(map[string]string, len(edges))
	maps.Copy(e, edges)
	c := make(map[string][]Condition, len(conds))
	for k, v := range conds {
		rules := make([]Condition, len(v))
		for i, cond := range v {
			cond.Value = deepcopy.Copy(cond.Value)
			rules[i] = cond
		}
		c[k] = rules
	}
	return n, e, c
}

// Entry returns the node targeted by the START edge.
func (g *GraphDefinition) Entry() (string, bool) {
	target, ok := g.Edges[StartNode]
	return target, ok && target != ""
}

// IsSentinel reports whether name is START or END.
func IsSentinel(name string) bool {
	return name == StartNode || name == EndNode
}
