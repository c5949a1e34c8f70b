package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/steveyegge/jury/internal/gates"
	"github.com/steveyegge/jury/internal/types"
)

var (
	gateMinGrade    string
	gateMinScore    float64
	gateMaxFindings []string
)

var gateCmd = &cobra.Command{
	Use:   "gate [path|run-id]",
	Short: "Check a run against minimum requirements",
	Long: `Evaluate a repository (or load a stored run) and fail unless it meets
the configured requirements. Intended for CI: exits 1 with a reason
list when any requirement is not met.

An argument naming a directory is evaluated fresh; anything else is
treated as a stored run ID. The argument defaults to the current
directory.

Examples:
  jury gate --min-grade good
  jury gate --min-score 75 --max-findings potential_secrets=0
  jury gate 1b6d4a3c-... --min-grade fair`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		target := "."
		if len(args) > 0 {
			target = args[0]
		}
		ctx := context.Background()

		reqs := gateRequirements(cmd)
		run := gateTarget(ctx, target)

		results, passed, err := gates.Evaluate(run, reqs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		if len(results) == 0 {
			fmt.Println("No gate requirements configured; nothing to check.")
			return
		}

		for _, res := range results {
			if res.Passed {
				fmt.Printf("  %s %s check passed\n", green("✓"), res.Check)
			} else {
				fmt.Printf("  %s %s\n", red("✗"), res.Reason)
			}
		}
		fmt.Println()

		if !passed {
			fmt.Fprintf(os.Stderr, "Gate failed: %s\n", strings.Join(gates.Reasons(results), "; "))
			os.Exit(1)
		}
		fmt.Printf("%s Gate passed: %.2f (%s)\n",
			green("✓"), run.Composite.OverallScore, run.Composite.Grade)
	},
}

func init() {
	gateCmd.Flags().StringVar(&gateMinGrade, "min-grade", "", "worst acceptable grade (poor, needs_attention, fair, good, excellent)")
	gateCmd.Flags().Float64Var(&gateMinScore, "min-score", -1, "lowest acceptable overall score")
	gateCmd.Flags().StringArrayVar(&gateMaxFindings, "max-findings", nil, "per-agent finding cap as kind=count, repeatable")
	rootCmd.AddCommand(gateCmd)
}

// gateRequirements translates the gate flags into requirements.
func gateRequirements(cmd *cobra.Command) gates.Requirements {
	reqs := gates.DefaultRequirements()
	if cmd.Flags().Changed("min-grade") {
		reqs.MinGrade = types.Grade(gateMinGrade)
	}
	if cmd.Flags().Changed("min-score") {
		reqs.MinScore = gateMinScore
	}
	for _, spec := range gateMaxFindings {
		kind, limit, err := parseMaxFinding(spec)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if reqs.MaxFindings == nil {
			reqs.MaxFindings = make(map[string]int)
		}
		reqs.MaxFindings[kind] = limit
	}
	return reqs
}

func parseMaxFinding(spec string) (string, int, error) {
	kind, value, ok := strings.Cut(spec, "=")
	if !ok {
		return "", 0, fmt.Errorf("max-findings %q is not of the form kind=count", spec)
	}
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return "", 0, fmt.Errorf("max-findings %q has an empty finding kind", spec)
	}
	count, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return "", 0, fmt.Errorf("max-findings count for %s is not an integer: %w", kind, err)
	}
	if count < 0 {
		return "", 0, fmt.Errorf("max-findings count for %s cannot be negative (got %d)", kind, count)
	}
	return kind, count, nil
}

// gateTarget evaluates target when it names a directory, otherwise
// loads it from the run store as a run ID. Gate runs are never
// persisted.
func gateTarget(ctx context.Context, target string) *types.EvaluationRun {
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		return evaluateRepository(ctx, target)
	}

	st := mustOpenStore(ctx)
	defer st.Close()

	run, err := st.GetRun(ctx, target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return run
}
