/*
Package flowgraph is a small workflow engine that executes directed graphs of named steps over a
shared state record.

A graph is made of nodes bound to tool functions, unconditional edges and ordered conditional
edges that compare a state field against a value. Loops are allowed; every run is bounded by a
maximum number of node invocations, so a cycle whose exit condition never holds ends with status
"max-iterations-exceeded" instead of spinning forever.

# Concept

Tools are plain Go functions registered by name. Each one receives a copy of the current state
and returns a partial update that is merged into it. After every step the engine appends an
entry to the run trace and publishes a snapshot to the run store, so readers can observe a run
while it is still in progress.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/flowgraph"
		"github.com/aretw0/flowgraph/pkg/domain"
		"github.com/aretw0/flowgraph/pkg/dsl"
	)

	func main() {
		eng, err := flowgraph.New()
		if err != nil {
			log.Fatal(err)
		}

		_ = eng.RegisterTool("bump", func(ctx context.Context, s domain.State) (domain.State, error) {
			score, _ := s["score"].(float64)
			return domain.State{"score": score + 10}, nil
		})

		b := dsl.New("bump-until-80")
		b.Add("bump").Do("bump").Branch("score", domain.OpGE, 80, domain.EndNode).Go("bump")

		ctx := context.Background()
		graph, err := eng.CreateGraph(ctx, b.Build())
		if err != nil {
			log.Fatal(err)
		}

		run, err := eng.ExecuteGraph(ctx, graph.ID, domain.State{"score": 50.0}, 0)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(run.Status, run.State["score"]) // completed 80
	}

Use RunGraph instead of ExecuteGraph to start the run in the background and poll it with
GetRunState. The HTTP and MCP adapters under pkg/adapters expose the same operations.
*/
package flowgraph
