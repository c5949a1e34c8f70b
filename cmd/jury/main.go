package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/steveyegge/jury/internal/agent"
	"github.com/steveyegge/jury/internal/analysis"
	"github.com/steveyegge/jury/internal/config"
	"github.com/steveyegge/jury/internal/scoring"
	"github.com/steveyegge/jury/internal/store"
	"github.com/steveyegge/jury/internal/types"
)

// cfg is the resolved configuration every subcommand runs against. The
// root PersistentPreRun populates it before any Run function fires.
var cfg *config.Config

var (
	flagStoreBackend string
	flagDBPath       string
)

var rootCmd = &cobra.Command{
	Use:   "jury",
	Short: "Multi-agent repository evaluation",
	Long: `jury scores a repository on three axes: secret exposure, structural
quality, and documentation depth. Each axis is assessed by its own
agent; a manager fans findings between them, applies cross-agent
adjustments, and composes the final grade.

Runs are stored in SQLite by default. Configuration comes from JURY_*
environment variables (a .env file is honored); flags override both.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loaded, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if cmd.Flags().Changed("store") {
			loaded.StoreBackend = flagStoreBackend
		}
		if cmd.Flags().Changed("db") {
			loaded.DBPath = flagDBPath
		}
		if err := loaded.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagStoreBackend, "store", "", "run store backend: sqlite, postgres, or none")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "SQLite database path")
}

func main() {
	// Missing .env files are fine; real environment variables still apply.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openStore opens the configured run store. Backend none yields a nil
// store: runs are evaluated but not persisted.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreSQLite:
		return store.NewSQLite(cfg.DBPath)
	case config.StorePostgres:
		return store.NewPostgres(ctx, cfg.Postgres.DSN())
	default:
		return nil, nil
	}
}

// mustOpenStore opens the run store or exits. Commands that read stored
// runs have nothing to do without one.
func mustOpenStore(ctx context.Context) store.Store {
	st, err := openStore(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open run store: %v\n", err)
		os.Exit(1)
	}
	if st == nil {
		fmt.Fprintf(os.Stderr, "Error: no run store configured; use --store sqlite or --store postgres\n")
		os.Exit(1)
	}
	return st
}

// newRegistry wires the three built-in analyzers behind the configured
// adjustment policy.
func newRegistry() (*agent.Registry, error) {
	policy, err := agent.DefaultPolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}

	analyzers := map[types.AgentID]agent.Analyzer{
		types.AgentSecurity:      analysis.NewSecretsAnalyzer(),
		types.AgentQuality:       analysis.NewStructureAnalyzer(),
		types.AgentDocumentation: analysis.NewDocsAnalyzer(),
	}

	registry := agent.NewRegistry()
	for id, analyzer := range analyzers {
		id, analyzer := id, analyzer
		err := registry.Register(id, func() (agent.Agent, error) {
			return agent.New(id, analyzer, policy.RulesFor(id))
		})
		if err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// newScorer builds the composite scorer from the configured weights.
func newScorer() (*scoring.Scorer, error) {
	return scoring.NewScorer(&scoring.Config{
		Method:  cfg.ScoringMethod(),
		Weights: cfg.Weights,
	})
}
