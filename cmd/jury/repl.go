package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/steveyegge/jury/internal/repl"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start the interactive run inspector",
	Long: `Start an interactive shell for browsing stored evaluation runs.

The inspector is read-only and provides:
- Listing stored runs with 'runs'
- Full reports with 'show <run-id>'
- Agent conversations with 'log <run-id>'
- Negotiation timelines with 'timeline <run-id>'

Type 'help' in the shell for available commands.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		st := mustOpenStore(ctx)
		defer st.Close()

		r, err := repl.New(&repl.Config{
			Store:             st,
			PriorityThreshold: cfg.PriorityThreshold,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create inspector: %v\n", err)
			os.Exit(1)
		}

		if err := r.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}
