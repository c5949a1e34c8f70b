package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var timelineCmd = &cobra.Command{
	Use:   "timeline <run-id>",
	Short: "Print a stored run's negotiation timeline",
	Long: `Print the four-stage negotiation timeline for a stored run: initial
positions, common ground, conflict resolution, and consensus, plus the
per-agent priority snapshot.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		st := mustOpenStore(ctx)
		defer st.Close()

		rep := loadStoredReport(ctx, st, args[0])
		rep.RenderTimeline(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(timelineCmd)
}
