// scripts/prune-runs.go - Manual stored-run pruning tool
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/steveyegge/jury/internal/config"
	"github.com/steveyegge/jury/internal/store"
)

// pruneListLimit bounds one pruning pass. Stores hold far fewer runs
// in practice; rerun the tool if a pass comes back full.
const pruneListLimit = 10000

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	var st store.Store
	switch cfg.StoreBackend {
	case config.StoreSQLite:
		fmt.Printf("Connecting to database: %s\n", cfg.DBPath)
		st, err = store.NewSQLite(cfg.DBPath)
	case config.StorePostgres:
		fmt.Printf("Connecting to postgres: %s:%d/%s\n", cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.DBName)
		st, err = store.NewPostgres(ctx, cfg.Postgres.DSN())
	default:
		fmt.Fprintln(os.Stderr, "Error: no run store configured")
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	// Keep 90 days of runs unless overridden
	maxAgeDays := 90
	if v := os.Getenv("JURY_PRUNE_MAX_AGE_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fmt.Fprintf(os.Stderr, "Error: invalid JURY_PRUNE_MAX_AGE_DAYS %q\n", v)
			os.Exit(1)
		}
		maxAgeDays = n
	}
	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)

	fmt.Printf("Pruning runs created before %s...\n", cutoff.Format("2006-01-02"))

	summaries, err := st.ListRuns(ctx, pruneListLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing runs: %v\n", err)
		os.Exit(1)
	}

	pruned := 0
	for _, s := range summaries {
		if s.CreatedAt.After(cutoff) {
			continue
		}
		if err := st.DeleteRun(ctx, s.ID); err != nil {
			fmt.Fprintf(os.Stderr, "Error deleting run %s: %v\n", s.ID, err)
			os.Exit(1)
		}
		pruned++
	}

	if pruned > 0 {
		fmt.Printf("✓ Pruned %d run(s) older than %d days\n", pruned, maxAgeDays)
	} else {
		fmt.Println("✓ No runs old enough to prune")
	}
}
