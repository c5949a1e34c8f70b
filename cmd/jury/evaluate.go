package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/steveyegge/jury/internal/config"
	"github.com/steveyegge/jury/internal/cost"
	"github.com/steveyegge/jury/internal/narrator"
	"github.com/steveyegge/jury/internal/negotiation"
	"github.com/steveyegge/jury/internal/report"
	"github.com/steveyegge/jury/internal/snapshot"
	"github.com/steveyegge/jury/internal/timeline"
	"github.com/steveyegge/jury/internal/types"
)

var (
	evaluateWeights     string
	evaluateWeightsFile string
	evaluateOut         string
	evaluateAINotes     bool
	evaluateJSON        bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [path]",
	Short: "Evaluate a repository with the agent jury",
	Long: `Run the security, quality, and documentation agents against a
repository, negotiate cross-agent adjustments, and print the composite
report. The repository defaults to the current directory.

The finalized run is written to the runs directory and saved to the
run store unless the backend is none. With --ai-notes the report
summary is narrated through the Anthropic API, falling back to the
deterministic template text when the key, budget, or network is
missing.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}
		ctx := context.Background()

		applyEvaluateFlags(cmd)

		run := evaluateRepository(ctx, path)
		rep := buildReport(ctx, run, evaluateAINotes)

		if evaluateJSON {
			data, err := rep.JSON()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(data))
		} else {
			rep.RenderTerminal(os.Stdout)
		}

		dir, err := rep.WriteDir(cfg.RunsDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to write report: %v\n", err)
			os.Exit(1)
		}
		saved := saveRun(ctx, run)

		if !evaluateJSON {
			fmt.Printf("\nReport written to %s\n", dir)
			if saved {
				fmt.Printf("Run %s saved\n", run.ID)
			}
		}
	},
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateWeights, "weights", "", "custom agent weights, e.g. security=50,quality=30,documentation=20")
	evaluateCmd.Flags().StringVar(&evaluateWeightsFile, "weights-file", "", "YAML file naming the scoring method and weights")
	evaluateCmd.Flags().StringVar(&evaluateOut, "out", "", "directory to write run reports under")
	evaluateCmd.Flags().BoolVar(&evaluateAINotes, "ai-notes", false, "narrate the report summary with the Anthropic API")
	evaluateCmd.Flags().BoolVar(&evaluateJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(evaluateCmd)
}

// applyEvaluateFlags layers evaluate's own flags over the environment
// configuration. A weights string beats a weights file, matching the
// env var precedence.
func applyEvaluateFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("weights") {
		weights, err := config.ParseWeights(evaluateWeights)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg.Weights = weights
	} else if cmd.Flags().Changed("weights-file") {
		weights, err := config.LoadWeightsFile(evaluateWeightsFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg.Weights = weights
	}
	if cmd.Flags().Changed("out") {
		cfg.RunsDir = evaluateOut
	}
}

// evaluateRepository snapshots path and drives a full negotiation run.
func evaluateRepository(ctx context.Context, path string) *types.EvaluationRun {
	snap, err := snapshot.Load(ctx, path, snapshot.DefaultConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	registry, err := newRegistry()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	scorer, err := newScorer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	manager, err := negotiation.NewManager(&negotiation.Config{
		Registry: registry,
		Scorer:   scorer,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	run, err := manager.Run(ctx, snap)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: evaluation failed: %v\n", err)
		os.Exit(1)
	}
	return run
}

// buildReport assembles the timeline, notes, and report for a finalized
// run.
func buildReport(ctx context.Context, run *types.EvaluationRun, aiNotes bool) *report.Report {
	builder := timeline.NewBuilder()
	builder.PriorityThreshold = cfg.PriorityThreshold
	tl, err := builder.Build(run)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	notes, err := newNarrator(aiNotes).Notes(ctx, run)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	rep, err := report.Build(run, tl, notes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return rep
}

// newNarrator picks the AI narrator when requested and constructible,
// falling back to deterministic template notes with a warning
// otherwise. The AI narrator handles its own runtime fallbacks.
func newNarrator(aiNotes bool) narrator.Narrator {
	if !aiNotes {
		return narrator.TemplateNarrator{}
	}

	tracker, err := cost.NewTracker(narratorBudget())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cost tracking unavailable: %v (using template notes)\n", err)
		return narrator.TemplateNarrator{}
	}
	ai, err := narrator.NewAINarrator(&narrator.Config{
		Model:         cfg.AINotesModel,
		MaxNoteTokens: cfg.MaxNoteTokens,
		Tracker:       tracker,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: AI notes unavailable: %v (using template notes)\n", err)
		return narrator.TemplateNarrator{}
	}
	return ai
}

// narratorBudget derives the narrator budget from the configuration.
// State persists next to the run reports so daily limits survive
// process restarts.
func narratorBudget() *cost.Config {
	budget := cost.DefaultConfig()
	budget.MaxCostPerDay = cfg.MaxDailyCost
	budget.StatePath = filepath.Join(cfg.RunsDir, "cost-state.json")
	return budget
}

// saveRun persists the run when a store backend is configured. Storage
// problems degrade to warnings: the report already rendered.
func saveRun(ctx context.Context, run *types.EvaluationRun) bool {
	st, err := openStore(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to open run store: %v (run not saved)\n", err)
		return false
	}
	if st == nil {
		return false
	}
	defer st.Close()

	if err := st.SaveRun(ctx, run); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save run: %v\n", err)
		return false
	}
	return true
}
