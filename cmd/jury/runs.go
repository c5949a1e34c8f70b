package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored evaluation runs",
	Long:  `List stored evaluation runs, newest first.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		st := mustOpenStore(ctx)
		defer st.Close()

		summaries, err := st.ListRuns(ctx, runsLimit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(summaries) == 0 {
			fmt.Println("No runs stored yet.")
			return
		}

		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("%s\n", yellow("Stored runs:"))
		for _, s := range summaries {
			fmt.Printf("  %-38s %8.2f  %-16s %s  %s\n",
				s.ID, s.OverallScore, s.Grade,
				s.CreatedAt.Format("2006-01-02 15:04"), s.Repository)
		}
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 0, "maximum runs to list (0 uses the store default of 50)")
	rootCmd.AddCommand(runsCmd)
}
