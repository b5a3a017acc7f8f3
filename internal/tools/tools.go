// Package tools holds the built-in code-review tool catalog.
//
// The analysis is intentionally shallow (regular expressions and keyword counts over the
// "code" field); the tools exist to drive realistic graphs, not to lint Python.
package tools

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/registry"
	"github.com/spf13/cast"
)

// QualityThreshold is the score at which the code-review loop stops refining.
const QualityThreshold = 80

// Tool couples a registry name with its implementation.
type Tool struct {
	Name        string
	Description string
	Func        registry.ToolFunction
}

// Builtins lists the catalog in registration order.
func Builtins() []Tool {
	return []Tool{
		{"extract_functions", "Extract function definitions from code", ExtractFunctions},
		{"check_complexity", "Analyze code complexity", CheckComplexity},
		{"detect_issues", "Detect code issues", DetectIssues},
		{"suggest_improvements", "Generate improvement suggestions and a quality score", SuggestImprovements},
		{"check_quality", "Compare the quality score against the threshold", CheckQuality},
		{"refine_code", "Apply refinements to improve quality", RefineCode},
	}
}

// RegisterBuiltins registers every built-in tool into reg.
func RegisterBuiltins(reg *registry.Registry) error {
	for _, tool := range Builtins() {
		if err := reg.Register(tool.Name, tool.Func); err != nil {
			return fmt.Errorf("failed to register built-in tool: %w", err)
		}
	}
	return nil
}

var funcPattern = regexp.MustCompile(`def\s+(\w+)\s*\([^)]*\)\s*:`)

// ExtractFunctions lists the names of the functions defined in state["code"].
func ExtractFunctions(_ context.Context, state domain.State) (domain.State, error) {
	code := cast.ToString(state["code"])

	functions := []string{}
	for _, m := range funcPattern.FindAllStringSubmatch(code, -1) {
		functions = append(functions, m[1])
	}

	return domain.State{
		"functions":      functions,
		"function_count": len(functions),
	}, nil
}

var complexityKeywords = []string{"if", "for", "while", "elif", "else"}

// CheckComplexity counts non-comment lines and control-flow keywords.
// Keywords are counted as substrings, so "elif" also counts as an "if".
func CheckComplexity(_ context.Context, state domain.State) (domain.State, error) {
	code := cast.ToString(state["code"])

	lineCount := 0
	for line := range strings.SplitSeq(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			lineCount++
		}
	}

	score := 0
	for _, kw := range complexityKeywords {
		score += strings.Count(code, kw)
	}

	return domain.State{
		"line_count":       lineCount,
		"complexity_score": score,
	}, nil
}

const maxLineLength = 100

// DetectIssues flags a few well known smells.
func DetectIssues(_ context.Context, state domain.State) (domain.State, error) {
	code := cast.ToString(state["code"])
	issues := []string{}

	if strings.Contains(code, "except:") {
		issues = append(issues, "Bare except clause found")
	}
	if strings.Contains(code, "eval(") {
		issues = append(issues, "Use of eval() detected")
	}
	if strings.Contains(code, "global ") {
		issues = append(issues, "Global variable usage detected")
	}

	var long []int
	for i, line := range strings.Split(code, "\n") {
		if len(line) > maxLineLength {
			long = append(long, i+1)
		}
	}
	if len(long) > 0 {
		issues = append(issues, fmt.Sprintf("Lines exceed %d characters: %v", maxLineLength, long[:min(3, len(long))]))
	}

	return domain.State{
		"issues":      issues,
		"issue_count": len(issues),
	}, nil
}

// SuggestImprovements derives suggestions and a 0..100 quality score from the earlier analysis.
func SuggestImprovements(_ context.Context, state domain.State) (domain.State, error) {
	issues := cast.ToStringSlice(state["issues"])
	complexity := cast.ToInt(state["complexity_score"])

	suggestions := []string{}
	if complexity > 10 {
		suggestions = append(suggestions, "Consider breaking down complex functions")
	}
	if len(issues) > 0 {
		suggestions = append(suggestions, "Address detected code issues")
	}
	if cast.ToInt(state["line_count"]) > 100 {
		suggestions = append(suggestions, "Consider modularizing code into smaller functions")
	}

	score := max(0, 100-len(issues)*10-min(complexity, 5)*5)

	return domain.State{
		"suggestions":   suggestions,
		"quality_score": score,
	}, nil
}

// CheckQuality records whether the current score passes QualityThreshold.
// Routing on the score is left to the graph's conditional edges.
func CheckQuality(_ context.Context, state domain.State) (domain.State, error) {
	score, err := cast.ToFloat64E(state["quality_score"])
	if err != nil {
		return nil, fmt.Errorf("quality_score is not a number: %w", err)
	}
	return domain.State{
		"quality_threshold": QualityThreshold,
		"quality_passed":    score >= QualityThreshold,
	}, nil
}

// RefineCode simulates a refinement pass: +15 quality, capped at 100.
func RefineCode(_ context.Context, state domain.State) (domain.State, error) {
	score := cast.ToInt(state["quality_score"])
	iteration := cast.ToInt(state["iteration"])

	return domain.State{
		"quality_score":      min(100, score+15),
		"iteration":          iteration + 1,
		"refinement_applied": true,
	}, nil
}
