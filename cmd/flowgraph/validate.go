package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [graph-file]",
	Short: "Check a graph for structural errors",
	Long: `Validates node references, edges, conditional edges and operators against the
registered tools (built-ins and the configured tools file) without running it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workflow, _ := cmd.Flags().GetString("workflow")
		spec, err := resolveGraph(workflow, args)
		if err != nil {
			return err
		}

		a, err := buildApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.engine.ValidateGraph(spec); err != nil {
			return describeError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Graph is valid! ✅ (%d nodes, %d tools available)\n", len(spec.Nodes), len(a.engine.Tools()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().String("workflow", "", "Validate a built-in workflow instead of a file (code-review)")
}
