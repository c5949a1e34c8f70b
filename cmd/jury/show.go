package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/steveyegge/jury/internal/narrator"
	"github.com/steveyegge/jury/internal/report"
	"github.com/steveyegge/jury/internal/store"
	"github.com/steveyegge/jury/internal/timeline"
)

var (
	showJSON     bool
	showLog      bool
	showTimeline bool
)

var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a stored run's report",
	Long: `Print the full report for a stored run. --log prints the agent
conversation instead, --timeline the negotiation timeline, and --json
the raw report document.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		st := mustOpenStore(ctx)
		defer st.Close()

		rep := loadStoredReport(ctx, st, args[0])

		switch {
		case showJSON:
			data, err := rep.JSON()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(data))
		case showLog:
			rep.RenderConversation(os.Stdout)
		case showTimeline:
			rep.RenderTimeline(os.Stdout)
		default:
			rep.RenderTerminal(os.Stdout)
		}
	},
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "print the report as JSON")
	showCmd.Flags().BoolVar(&showLog, "log", false, "print the agent conversation")
	showCmd.Flags().BoolVar(&showTimeline, "timeline", false, "print the negotiation timeline")
	rootCmd.AddCommand(showCmd)
}

// loadStoredReport rebuilds the report for a stored run. Notes are
// always the deterministic template text; AI narration happens at
// evaluation time, not on replay.
func loadStoredReport(ctx context.Context, st store.Store, runID string) *report.Report {
	run, err := st.GetRun(ctx, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	builder := timeline.NewBuilder()
	builder.PriorityThreshold = cfg.PriorityThreshold
	tl, err := builder.Build(run)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	notes, err := narrator.TemplateNarrator{}.Notes(ctx, run)
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
