// Package workflows ships prebuilt graph definitions.
package workflows

import (
	_ "embed"
	"fmt"

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/loader"
)

//go:embed code_review.yaml
var codeReviewYAML []byte

// CodeReview returns the code-review graph: analysis nodes followed by a
// check_quality <-> refine_code loop that ends once quality_score reaches 80.
// It needs the built-in tools to be registered.
func CodeReview() (domain.GraphSpec, error) {
	spec, err := loader.Parse(codeReviewYAML, loader.FormatYAML)
	if err != nil {
		return domain.GraphSpec{}, fmt.Errorf("failed to load code-review workflow: %w", err)
	}
	return spec, nil
}
