package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/aretw0/flowgraph/internal/tools"
	"github.com/aretw0/flowgraph/pkg/adapters/process"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools graphs can reference",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := buildRegistry(cfg.Engine)
		if err != nil {
			return err
		}

		descriptions := make(map[string]string)
		for _, t := range tools.Builtins() {
			descriptions[t.Name] = t.Description
		}
		if cfg.Engine.ToolsFile != "" {
			procs, err := process.LoadTools(cfg.Engine.ToolsFile)
			if err != nil {
				return err
			}
			for name, p := range procs {
				descriptions[name] = strings.TrimSpace(p.Description + " [" + p.Command + "]")
			}
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tDESCRIPTION")
		for _, name := range reg.Names() {
			fmt.Fprintf(tw, "%s\t%s\n", name, descriptions[name])
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
