/*
Package dsl provides a fluent builder for constructing graph specs in Go code.

It is an alternative to YAML or JSON graph files, useful for tests and for graphs
whose nodes are inline functions.

Example usage:

	b := dsl.New("review")

	b.Add("extract").Do("extract_functions").Go("quality")

	b.Add("quality").
		Do("check_quality").
		NamedBranch("good_enough", "quality_score", domain.OpGE, 80, domain.EndNode).
		Go("refine")

	b.Add("refine").Do("refine_code").Go("quality")

	spec := b.MaxIterations(10).Build()
	graph, err := app.CreateGraph(ctx, spec)
*/
package dsl
