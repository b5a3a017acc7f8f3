package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// GraphOverlay contains run data to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFromRun marks every node the run's trace visited.
func OverlayFromRun(run *domain.Run) *GraphOverlay {
	if run == nil {
		return nil
	}
	overlay := &GraphOverlay{CurrentNode: run.CurrentNode}
	for _, step := range run.Trace {
		overlay.VisitedNodes = append(overlay.VisitedNodes, step.Node)
	}
	return overlay
}

// GenerateMermaid produces a Mermaid flowchart for spec.
// Shapes:
// - START/END: ((Circle))
// - Registry tool: [[Subroutine]]
// - Inline function: [Rectangle]
// Conditional edges are labelled with their trace label and predicate; the
// unconditional edge of a node that also has conditions is drawn dotted.
func GenerateMermaid(spec domain.GraphSpec, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	sb.WriteString(fmt.Sprintf("    %s((\"%s\"))\n", domain.StartNode, domain.StartNode))

	names := make([]string, 0, len(spec.Nodes))
	for name := range spec.Nodes {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		node := spec.Nodes[name]
		safeID := sanitizeMermaidID(name)

		opener, closer := "[", "]"
		label := name
		if node.Func == nil && node.Function != "" {
			opener, closer = "[[", "]]"
			if node.Function != name {
				label = fmt.Sprintf("%s <br/> %s", name, node.Function)
			}
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))
	}
	sb.WriteString(fmt.Sprintf("    %s((\"%s\"))\n", domain.EndNode, domain.EndNode))

	sources := append([]string{domain.StartNode}, names...)
	for _, source := range sources {
		safeID := sanitizeMermaidID(source)
		conditions := spec.ConditionalEdges[source]

		for i, c := range conditions {
			predicate := fmt.Sprintf("%s %s %v", c.Field, c.Operator, c.Value)
			text := strings.ReplaceAll(fmt.Sprintf("%s: %s", c.Label(source, i), predicate), "\"", "'")
			sb.WriteString(fmt.Sprintf("    %s -- \"%s\" --> %s\n", safeID, text, sanitizeMermaidID(c.Target)))
		}

		if target, ok := spec.Edges[source]; ok {
			arrow := "-->"
			if len(conditions) > 0 {
				arrow = "-. default .->"
			}
			sb.WriteString(fmt.Sprintf("    %s %s %s\n", safeID, arrow, sanitizeMermaidID(target)))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) so labels stay readable on both themes
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}

		if overlay.CurrentNode != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode)))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
