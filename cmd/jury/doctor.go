package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/steveyegge/jury/internal/config"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose jury setup issues",
	Long: `Run health checks on the jury environment.

This command checks for common deployment issues:
- Run store reachability
- Runs directory permissions
- Git binary availability
- Anthropic API key for AI notes

Exit codes:
  0 - All checks passed
  1 - One or more checks failed (but not critical)
  2 - Critical failures that prevent evaluations from completing`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		ctx := context.Background()

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		fmt.Printf("Running jury health checks...\n\n")

		var failures []string
		var warnings []string
		var criticalFailures []string

		// Check 1: run store
		fmt.Printf("%s Run store\n", cyan("→"))
		if cfg.StoreBackend == config.StoreNone {
			fmt.Printf("  %s Store backend is none: runs will not be persisted\n", yellow("⚠"))
			warnings = append(warnings, "no run store configured")
		} else if st, err := openStore(ctx); err != nil {
			fmt.Printf("  %s Cannot open %s store\n", red("✗"), cfg.StoreBackend)
			if verbose {
				fmt.Printf("    Error: %v\n", err)
			}
			failures = append(failures, fmt.Sprintf("%s store unreachable: %v", cfg.StoreBackend, err))
		} else {
			if _, err := st.ListRuns(ctx, 1); err != nil {
				fmt.Printf("  %s Store opened but querying runs failed\n", red("✗"))
				if verbose {
					fmt.Printf("    Error: %v\n", err)
				}
				failures = append(failures, fmt.Sprintf("run store query failed: %v", err))
			} else {
				fmt.Printf("  %s %s store reachable\n", green("✓"), cfg.StoreBackend)
				if verbose && cfg.StoreBackend == config.StoreSQLite {
					fmt.Printf("    Path: %s\n", cfg.DBPath)
				}
			}
			st.Close()
		}

		// Check 2: runs directory
		fmt.Printf("%s Runs directory\n", cyan("→"))
		if err := probeRunsDir(cfg.RunsDir); err != nil {
			fmt.Printf("  %s %s is not writable\n", red("✗"), cfg.RunsDir)
			if verbose {
				fmt.Printf("    Error: %v\n", err)
			}
			criticalFailures = append(criticalFailures, fmt.Sprintf("runs directory not writable: %v", err))
		} else {
			fmt.Printf("  %s %s is writable\n", green("✓"), cfg.RunsDir)
		}

		// Check 3: git binary
		fmt.Printf("%s Git binary\n", cyan("→"))
		if gitPath, err := exec.LookPath("git"); err != nil {
			fmt.Printf("  %s git not found: snapshots will omit commit metadata\n", yellow("⚠"))
			warnings = append(warnings, "git not installed")
		} else {
			fmt.Printf("  %s git found\n", green("✓"))
			if verbose {
				fmt.Printf("    Path: %s\n", gitPath)
			}
		}

		// Check 4: Anthropic API key
		fmt.Printf("%s Anthropic API key\n", cyan("→"))
		if os.Getenv("ANTHROPIC_API_KEY") == "" {
			fmt.Printf("  %s ANTHROPIC_API_KEY not set: evaluate --ai-notes will use template notes\n", yellow("⚠"))
			warnings = append(warnings, "ANTHROPIC_API_KEY not set")
		} else {
			fmt.Printf("  %s ANTHROPIC_API_KEY set\n", green("✓"))
			if verbose {
				fmt.Printf("    Notes model: %s\n", cfg.AINotesModel)
			}
		}

		// Summary
		fmt.Printf("\n%s\n", strings.Repeat("─", 60))

		totalIssues := len(criticalFailures) + len(failures) + len(warnings)
		if totalIssues == 0 {
			fmt.Printf("%s All checks passed! jury is ready to run.\n", green("✓"))
			os.Exit(0)
		}

		if len(criticalFailures) > 0 {
			fmt.Printf("\n%s Critical failures (%d):\n", red("✗"), len(criticalFailures))
			for _, failure := range criticalFailures {
				fmt.Printf("  • %s\n", failure)
			}
		}

		if len(failures) > 0 {
			fmt.Printf("\n%s Failures (%d):\n", red("✗"), len(failures))
			for _, failure := range failures {
				fmt.Printf("  • %s\n", failure)
			}
		}

		if len(warnings) > 0 {
			fmt.Printf("\n%s Warnings (%d):\n", yellow("⚠"), len(warnings))
			for _, warning := range warnings {
				fmt.Printf("  • %s\n", warning)
			}
		}

		if len(criticalFailures) > 0 {
			fmt.Printf("\n%s Evaluations cannot complete until critical issues are resolved.\n", red("✗"))
			os.Exit(2)
		}

		if len(failures) > 0 {
			fmt.Printf("\n%s jury may not work correctly. Please address the failures above.\n", yellow("⚠"))
			os.Exit(1)
		}

		fmt.Printf("\n%s jury should work, but some warnings were detected.\n", green("✓"))
		os.Exit(0)
	},
}

func init() {
	doctorCmd.Flags().BoolP("verbose", "v", false, "Show detailed diagnostic information")
	rootCmd.AddCommand(doctorCmd)
}

// probeRunsDir verifies the runs directory exists and accepts writes.
func probeRunsDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok\n"), 0o644); err != nil {
		return err
	}
	return os.Remove(probe)
}
