package graph_test

import (
	"context"
	"strings"
	"testing"

	"github.com/aretw0/flowgraph/internal/presentation/graph"
	"github.com/aretw0/flowgraph/pkg/domain"
)

func TestGenerateMermaid(t *testing.T) {
	inline := func(ctx context.Context, s domain.State) (domain.State, error) { return nil, nil }

	tests := []struct {
		name     string
		spec     domain.GraphSpec
		overlay  *graph.GraphOverlay
		contains []string
		excludes []string
	}{
		{
			name: "Sentinel And Tool Shapes",
			spec: domain.GraphSpec{
				Nodes: map[string]domain.NodeSpec{
					"extract": {Function: "extract_functions"},
					"noop":    {Function: "noop"},
					"local":   {Func: inline},
				},
				Edges: map[string]string{"START": "extract"},
			},
			contains: []string{
				`START(("START"))`,
				`END(("END"))`,
				`extract[["extract <br/> extract_functions"]]`,
				`noop[["noop"]]`,
				`local["local"]`,
				"START --> extract",
			},
		},
		{
			name: "ID Sanitization",
			spec: domain.GraphSpec{
				Nodes: map[string]domain.NodeSpec{
					"path/to/file.md": {Function: "noop"},
					"hyphen-ated":     {Function: "noop"},
				},
			},
			contains: []string{
				`path_to_file_md[["path/to/file.md <br/> noop"]]`,
				`hyphen_ated[["hyphen-ated <br/> noop"]]`,
			},
		},
		{
			name: "Conditional Edges",
			spec: domain.GraphSpec{
				Nodes: map[string]domain.NodeSpec{"check": {Function: "check"}},
				Edges: map[string]string{"START": "check", "check": "check"},
				ConditionalEdges: map[string][]domain.Condition{
					"check": {
						{Name: "done", Field: "score", Operator: domain.OpGE, Value: 80, Target: "END"},
						{Field: "label", Operator: domain.OpEQ, Value: `"x"`, Target: "END"},
					},
				},
			},
			contains: []string{
				`check -- "done: score >= 80" --> END`,
				`check -- "check#1: label == 'x'" --> END`,
				"check -. default .-> check",
			},
		},
		{
			name: "Overlay",
			spec: domain.GraphSpec{
				Nodes: map[string]domain.NodeSpec{"a": {Function: "noop"}},
				Edges: map[string]string{"START": "a", "a": "END"},
			},
			overlay: graph.OverlayFromRun(&domain.Run{
				CurrentNode: "END",
				Trace:       []domain.ExecutionStep{{Node: "a"}, {Node: "a"}},
			}),
			contains: []string{
				"class a visited;",
				"class END current;",
			},
		},
		{
			name: "No Overlay",
			spec: domain.GraphSpec{
				Nodes: map[string]domain.NodeSpec{"a": {Function: "noop"}},
			},
			excludes: []string{"classDef"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.spec, tt.overlay)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() = \n%v\nWant substring: %v", got, want)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(got, unwanted) {
					t.Errorf("GenerateMermaid() = \n%v\nUnexpected substring: %v", got, unwanted)
				}
			}
			if strings.Count(got, "class a visited;") > 1 {
				t.Errorf("visited nodes should be deduplicated:\n%v", got)
			}
		})
	}
}

func TestOverlayFromRun_Nil(t *testing.T) {
	if graph.OverlayFromRun(nil) != nil {
		t.Error("expected nil overlay for nil run")
	}
}
