// Package repl is an interactive inspector over the run store. It is
// strictly read-only: every command loads stored runs and renders them
// with the report package's terminal renderers.
package repl

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/steveyegge/jury/internal/narrator"
	"github.com/steveyegge/jury/internal/report"
	"github.com/steveyegge/jury/internal/store"
	"github.com/steveyegge/jury/internal/timeline"
)

// REPL is the interactive shell.
type REPL struct {
	store     store.Store
	threshold float64
	rl        *readline.Instance
	ctx       context.Context
	out       io.Writer
	commands  map[string]CommandHandler
}

// CommandHandler handles a specific command.
type CommandHandler func(args []string) error

// Config holds REPL configuration.
type Config struct {
	// Store supplies the runs to inspect. Required.
	Store store.Store

	// PriorityThreshold feeds the timeline priority snapshot.
	// Zero uses the default.
	PriorityThreshold float64

	// Out receives command output. Defaults to os.Stdout.
	Out io.Writer
}

// New creates a REPL instance.
func New(cfg *Config) (*REPL, error) {
	if cfg == nil || cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}

	threshold := cfg.PriorityThreshold
	if threshold == 0 {
		threshold = timeline.DefaultPriorityThreshold
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	r := &REPL{
		store:     cfg.Store,
		threshold: threshold,
		ctx:       context.Background(),
		out:       out,
		commands:  make(map[string]CommandHandler),
	}
	r.registerCommands()
	return r, nil
}

// Run starts the REPL loop and blocks until quit or EOF.
func (r *REPL) Run(ctx context.Context) error {
	r.ctx = ctx

	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("jury> "),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	r.printWelcome()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(r.out, "\nGoodbye!")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := r.processInput(line); err != nil {
			if err == io.EOF {
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			fmt.Fprintf(r.out, "%s %v\n", red("Error:"), err)
		}
	}
}

// processInput dispatches a single line of input.
func (r *REPL) processInput(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	command := parts[0]
	args := parts[1:]

	handler, ok := r.commands[command]
	if !ok {
		return fmt.Errorf("unknown command %q (try 'help')", command)
	}
	return handler(args)
}

func (r *REPL) registerCommands() {
	r.commands["runs"] = r.cmdRuns
	r.commands["show"] = r.cmdShow
	r.commands["log"] = r.cmdLog
	r.commands["timeline"] = r.cmdTimeline
	r.commands["help"] = r.cmdHelp
	r.commands["?"] = r.cmdHelp
	r.commands["quit"] = r.cmdQuit
	r.commands["exit"] = r.cmdQuit
}

func (r *REPL) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n", cyan("Jury run inspector"))
	fmt.Fprintln(r.out, "Type 'help' for available commands, 'quit' to exit")
	fmt.Fprintln(r.out)
}

// cmdRuns lists stored runs, newest first. An optional argument caps
// the list length.
func (r *REPL) cmdRuns(args []string) error {
	limit := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("usage: runs [limit]")
		}
		limit = n
	}

	summaries, err := r.store.ListRuns(r.ctx, limit)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Fprintln(r.out, "No runs stored yet.")
		return nil
	}

	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Fprintf(r.out, "%s\n", yellow("Stored runs:"))
	for _, s := range summaries {
		fmt.Fprintf(r.out, "  %-38s %8.2f  %-16s %s  %s\n",
			s.ID, s.OverallScore, s.Grade, s.CreatedAt.Format("2006-01-02 15:04"), s.Repository)
	}
	return nil
}

// cmdShow renders the full report for one stored run.
func (r *REPL) cmdShow(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: show <run-id>")
	}

	rep, err := r.loadReport(args[0], true)
	if err != nil {
		return err
	}
	rep.RenderTerminal(r.out)
	return nil
}

// cmdLog prints the conversation log for one stored run.
func (r *REPL) cmdLog(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: log <run-id>")
	}

	rep, err := r.loadReport(args[0], false)
	if err != nil {
		return err
	}
	rep.RenderConversation(r.out)
	return nil
}

// cmdTimeline prints the negotiation timeline for one stored run.
func (r *REPL) cmdTimeline(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: timeline <run-id>")
	}

	rep, err := r.loadReport(args[0], true)
	if err != nil {
		return err
	}
	rep.RenderTimeline(r.out)
	return nil
}

// loadReport fetches a run and rebuilds its report. Notes are
// regenerated with the template narrator, which is deterministic for
// a stored run.
func (r *REPL) loadReport(runID string, withTimeline bool) (*report.Report, error) {
	run, err := r.store.GetRun(r.ctx, runID)
	if err != nil {
		return nil, err
	}

	var tl *timeline.Timeline
	if withTimeline {
		builder := timeline.NewBuilder()
		builder.PriorityThreshold = r.threshold
		tl, err = builder.Build(run)
		if err != nil {
			return nil, err
		}
	}

	notes, err := narrator.TemplateNarrator{}.Notes(r.ctx, run)
	if err != nil {
		return nil, err
	}
	return report.Build(run, tl, notes)
}

func (r *REPL) cmdHelp(args []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	fmt.Fprintf(r.out, "\n%s\n\n", cyan("Available Commands:"))
	commands := []struct {
		name string
		desc string
	}{
		{"runs [limit]", "List stored runs, newest first"},
		{"show <run-id>", "Render the full report for a run"},
		{"log <run-id>", "Print a run's conversation log"},
		{"timeline <run-id>", "Print a run's negotiation timeline"},
		{"help, ?", "Show this help message"},
		{"quit, exit", "Exit the inspector"},
	}
	for _, cmd := range commands {
		fmt.Fprintf(r.out, "  %s  %s\n", green(fmt.Sprintf("%-18s", cmd.name)), cmd.desc)
	}
	fmt.Fprintln(r.out)
	return nil
}

func (r *REPL) cmdQuit(args []string) error {
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "\n%s Goodbye!\n", green("✓"))
	if r.rl != nil {
		r.rl.Close()
	}
	return io.EOF // Signal to exit the loop
}
