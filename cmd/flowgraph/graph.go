package main

import (
	"fmt"

	"github.com/aretw0/flowgraph/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [graph-file]",
	Short: "Export the graph as a Mermaid diagram",
	Long:  `Loads a graph file (or built-in workflow) and prints a Mermaid flowchart (graph TD) of its nodes and edges.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workflow, _ := cmd.Flags().GetString("workflow")
		spec, err := resolveGraph(workflow, args)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(spec, nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("workflow", "", "Export a built-in workflow instead of a file (code-review)")
}
