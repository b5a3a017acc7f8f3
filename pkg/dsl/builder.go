package dsl

import (
	"github.com/aretw0/flowgraph/pkg/domain"
)

// Builder manages the graph construction.
type Builder struct {
	name          string
	entry         string
	maxIterations int
	order         []string
	nodes         map[string]*NodeBuilder
}

// New creates a new graph builder.
func New(name string) *Builder {
	return &Builder{
		name:  name,
		nodes: make(map[string]*NodeBuilder),
	}
}

// Add creates a new node in the graph.
// If the node already exists, it returns the existing builder.
// The first node added becomes the entry unless Entry is called.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{id: id, builder: b}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Entry sets the node targeted by START.
func (b *Builder) Entry(id string) *Builder {
	b.entry = id
	return b
}

// MaxIterations sets the per-graph iteration bound.
func (b *Builder) MaxIterations(n int) *Builder {
	b.maxIterations = n
	return b
}

// Build compiles the graph into a GraphSpec. The result is not validated.
func (b *Builder) Build() domain.GraphSpec {
	spec := domain.GraphSpec{
		Name:             b.name,
		Nodes:            make(map[string]domain.NodeSpec, len(b.nodes)),
		Edges:            make(map[string]string, len(b.nodes)+1),
		ConditionalEdges: make(map[string][]domain.Condition),
		MaxIterations:    b.maxIterations,
	}

	entry := b.entry
	if entry == "" && len(b.order) > 0 {
		entry = b.order[0]
	}
	if entry != "" {
		spec.Edges[domain.StartNode] = entry
	}

	for _, id := range b.order {
		nb := b.nodes[id]
		spec.Nodes[id] = nb.node
		if nb.next != "" {
			spec.Edges[id] = nb.next
		}
		if len(nb.conditions) > 0 {
			spec.ConditionalEdges[id] = append([]domain.Condition(nil), nb.conditions...)
		}
	}
	return spec
}
