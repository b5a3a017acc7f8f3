package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/flowgraph/internal/presentation/graph"
	"github.com/aretw0/flowgraph/internal/presentation/tui"
	"github.com/aretw0/flowgraph/internal/workflows"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/loader"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

// runOptions are the flags of the run command.
type runOptions struct {
	workflow      string
	state         string
	stateFile     string
	maxIterations int
	jsonOutput    bool
	mermaid       bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run [graph-file]",
	Short: "Execute a graph once and print its trace",
	Long: `Loads a graph from a YAML or JSON file (or a built-in workflow), runs it to a
terminal status and prints the execution trace. Exits non-zero when the run fails.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := resolveGraph(runOpts.workflow, args)
		if err != nil {
			return err
		}
		initial, err := resolveState(runOpts)
		if err != nil {
			return err
		}

		a, err := buildApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		def, err := a.engine.CreateGraph(ctx, spec)
		if err != nil {
			return describeError(err)
		}
		run, err := a.engine.ExecuteGraph(ctx, def.ID, initial, runOpts.maxIterations)
		if err != nil {
			return err
		}

		if err := printRun(cmd.OutOrStdout(), spec, run, runOpts); err != nil {
			return err
		}
		if run.Status == domain.RunFailed {
			return fmt.Errorf("run %s failed: %s", run.ID, run.Error)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runOpts.workflow, "workflow", "", "Run a built-in workflow instead of a file (code-review)")
	runCmd.Flags().StringVar(&runOpts.state, "state", "", "Initial state as a JSON object")
	runCmd.Flags().StringVar(&runOpts.stateFile, "state-file", "", "Read the initial state from a JSON file")
	runCmd.Flags().IntVar(&runOpts.maxIterations, "max-iterations", 0, "Bound on node invocations (0 = graph or engine default)")
	runCmd.Flags().BoolVar(&runOpts.jsonOutput, "json", false, "Print the run as JSON")
	runCmd.Flags().BoolVar(&runOpts.mermaid, "mermaid", false, "Append a Mermaid diagram highlighting visited nodes")
	runCmd.MarkFlagsMutuallyExclusive("state", "state-file")
}

// resolveGraph loads the graph named by --workflow or the file argument.
func resolveGraph(workflow string, args []string) (domain.GraphSpec, error) {
	switch {
	case workflow != "" && len(args) > 0:
		return domain.GraphSpec{}, errors.New("use either a graph file or --workflow, not both")
	case workflow == "code-review":
		return workflows.CodeReview()
	case workflow != "":
		return domain.GraphSpec{}, fmt.Errorf("unknown workflow %q (available: code-review)", workflow)
	case len(args) == 0:
		return domain.GraphSpec{}, errors.New("a graph file or --workflow is required")
	}
	return loader.LoadFile(args[0])
}

func resolveState(opts runOptions) (domain.State, error) {
	data := []byte(opts.state)
	if opts.stateFile != "" {
		var err error
		if data, err = os.ReadFile(opts.stateFile); err != nil {
			return nil, fmt.Errorf("failed to read state file: %w", err)
		}
	}
	return loader.ParseState(data)
}

func printRun(w io.Writer, spec domain.GraphSpec, run *domain.Run, opts runOptions) error {
	if opts.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	md := tui.RunMarkdown(run)
	if opts.mermaid {
		md += "\n## Graph\n\n```mermaid\n" + graph.GenerateMermaid(spec, graph.OverlayFromRun(run)) + "```\n"
	}
	out, err := tui.RendererFor(w)(md)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// describeError flattens validation issues into one message per line.
func describeError(err error) error {
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	msg := "invalid graph:"
	for _, d := range verr.Details() {
		msg += "\n  - " + d
	}
	return errors.New(msg)
}
