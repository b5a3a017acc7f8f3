package runtime

import (
	"fmt"
	"maps"
	"slices"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// ValidateGraph checks a graph spec and reports every problem found.
// Cycles are allowed: loops are bounded at run time, not rejected here.
func ValidateGraph(spec domain.GraphSpec, tools ToolResolver) error {
	var issues []error

	isNode := func(name string) bool {
		_, ok := spec.Nodes[name]
		return ok && !domain.IsSentinel(name)
	}
	checkTarget := func(source, target string) {
		switch {
		case target == "":
			issues = append(issues, &domain.InvalidGraphError{Reason: fmt.Sprintf("edge from %s has an empty target", source)})
		case target == domain.StartNode:
			issues = append(issues, &domain.InvalidGraphError{Reason: fmt.Sprintf("edge from %s targets START", source)})
		case target != domain.EndNode && !isNode(target):
			issues = append(issues, &domain.UnknownNodeError{Source: source, Target: target})
		}
	}

	// 1. Nodes
	for _, name := range slices.Sorted(maps.Keys(spec.Nodes)) {
		node := spec.Nodes[name]
		switch {
		case name == "":
			issues = append(issues, &domain.InvalidGraphError{Reason: "node name must not be empty"})
			continue
		case domain.IsSentinel(name):
			issues = append(issues, &domain.ReservedNodeError{Name: name})
			continue
		}

		if node.Func != nil {
			continue
		}
		if node.Function == "" {
			issues = append(issues, &domain.InvalidGraphError{Reason: fmt.Sprintf("node %q has no function", name)})
			continue
		}
		if _, err := tools.Resolve(node.Function); err != nil {
			issues = append(issues, &domain.UnknownToolError{Name: node.Function, Node: name})
		}
	}

	// 2. Unconditional edges
	for _, source := range slices.Sorted(maps.Keys(spec.Edges)) {
		target := spec.Edges[source]
		switch {
		case source == domain.EndNode:
			issues = append(issues, &domain.InvalidGraphError{Reason: "END cannot have outgoing edges"})
			continue
		case source != domain.StartNode && !isNode(source):
			issues = append(issues, &domain.UnknownNodeError{Source: source, Target: target})
			continue
		}
		checkTarget(source, target)
	}

	// 3. Conditional edges
	for _, source := range slices.Sorted(maps.Keys(spec.ConditionalEdges)) {
		if domain.IsSentinel(source) {
			issues = append(issues, &domain.InvalidGraphError{Reason: fmt.Sprintf("%s cannot have conditional edges", source)})
			continue
		}
		if !isNode(source) {
			issues = append(issues, &domain.UnknownNodeError{Source: source, Target: "<conditional>"})
			continue
		}
		for i, cond := range spec.ConditionalEdges[source] {
			if cond.Field == "" {
				issues = append(issues, &domain.InvalidGraphError{Reason: fmt.Sprintf("condition %s has an empty field", cond.Label(source, i))})
			}
			if !cond.Operator.Valid() {
				issues = append(issues, &domain.UnsupportedOperatorError{Operator: string(cond.Operator)})
			}
			checkTarget(source, cond.Target)
		}
	}

	// 4. Entry
	if target, ok := spec.Edges[domain.StartNode]; !ok || target == "" {
		issues = append(issues, &domain.MissingEntryError{})
	}

	if spec.MaxIterations < 0 {
		issues = append(issues, &domain.InvalidGraphError{Reason: "max_iterations must not be negative"})
	}

	if len(issues) > 0 {
		return &domain.ValidationError{Issues: issues}
	}
	return nil
}
