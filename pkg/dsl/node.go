package dsl

import "github.com/aretw0/flowgraph/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	id         string
	node       domain.NodeSpec
	next       string
	conditions []domain.Condition
	builder    *Builder
}

// Do binds the node to a registered tool.
func (n *NodeBuilder) Do(function string) *NodeBuilder {
	n.node.Function = function
	return n
}

// Func binds the node to an inline function.
func (n *NodeBuilder) Func(fn domain.NodeFunc) *NodeBuilder {
	n.node.Func = fn
	return n
}

// Describe sets a human readable description.
func (n *NodeBuilder) Describe(text string) *NodeBuilder {
	n.node.Description = text
	return n
}

// Go sets the unconditional edge.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.next = target
	return n
}

// Branch appends a conditional edge. Branches are tried in the order they are added.
func (n *NodeBuilder) Branch(field string, op domain.Operator, value any, target string) *NodeBuilder {
	return n.NamedBranch("", field, op, value, target)
}

// NamedBranch is Branch with a label reported in the run trace.
func (n *NodeBuilder) NamedBranch(name, field string, op domain.Operator, value any, target string) *NodeBuilder {
	n.conditions = append(n.conditions, domain.Condition{
		Name:     name,
		Field:    field,
		Operator: op,
		Value:    value,
		Target:   target,
	})
	return n
}

// Terminal routes the node's default edge to END.
func (n *NodeBuilder) Terminal() *NodeBuilder {
	n.next = domain.EndNode
	return n
}

// Add continues building on the parent graph.
func (n *NodeBuilder) Add(id string) *NodeBuilder {
	return n.builder.Add(id)
}

// Build returns the underlying domain.NodeSpec.
func (n *NodeBuilder) Build() domain.NodeSpec {
	return n.node
}
