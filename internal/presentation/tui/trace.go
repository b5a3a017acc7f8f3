package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/flowgraph/pkg/domain"
	json "github.com/goccy/go-json"
)

// RunMarkdown renders a run as a markdown report: summary, one row per step
// with the keys that step changed, and the final state.
func RunMarkdown(run *domain.Run) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Run %s\n\n", run.ID)
	fmt.Fprintf(&sb, "- **Graph:** `%s`\n", run.GraphID)
	fmt.Fprintf(&sb, "- **Status:** %s\n", statusLabel(run.Status))
	fmt.Fprintf(&sb, "- **Steps:** %d / %d\n", run.Steps(), run.MaxIterations)
	if run.Error != "" {
		fmt.Fprintf(&sb, "- **Error:** %s\n", run.Error)
	}

	if len(run.Trace) > 0 {
		sb.WriteString("\n## Trace\n\n")
		sb.WriteString("| # | Node | Edge | Next | Changed |\n")
		sb.WriteString("|---|------|------|------|---------|\n")

		var prev domain.State
		for i, step := range run.Trace {
			// The initial state is not recorded, so the first row shows the raw update.
			diff := domain.StateDiff(step.Update)
			if i > 0 {
				diff = domain.Diff(prev, step.State)
			}
			changed := "-"
			if !diff.IsEmpty() {
				changed = formatDiff(diff)
			}
			edge, next := step.Edge, step.Next
			if step.Error != "" {
				edge, next = "error", step.Error
			}
			fmt.Fprintf(&sb, "| %d | %s | %s | %s | %s |\n",
				step.Index, step.Node, orDash(edge), escapeCell(orDash(next)), escapeCell(changed))
			prev = step.State
		}
	}

	sb.WriteString("\n## Final state\n\n```json\n")
	sb.WriteString(prettyJSON(run.State))
	sb.WriteString("\n```\n")
	return sb.String()
}

func statusLabel(status domain.RunStatus) string {
	switch status {
	case domain.RunCompleted:
		return "✅ completed"
	case domain.RunFailed:
		return "❌ failed"
	case domain.RunMaxIterationsExceeded:
		return "⚠️ max iterations exceeded"
	default:
		return "⏳ " + string(status)
	}
}

func formatDiff(diff domain.StateDiff) string {
	parts := make([]string, 0, len(diff))
	for _, k := range diff.Keys() {
		parts = append(parts, fmt.Sprintf("%s=%s", k, compactJSON(diff[k])))
	}
	return strings.Join(parts, ", ")
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	const limit = 40
	if len(b) > limit {
		return string(b[:limit]) + "…"
	}
	return string(b)
}

func prettyJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
