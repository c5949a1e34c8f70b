package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/steveyegge/jury/internal/timeline"
	"github.com/steveyegge/jury/internal/types"
)

// RenderTerminal writes the colorized verdict line and score table.
// Shared by `jury evaluate`, `jury show`, and the inspector REPL.
func (r *Report) RenderTerminal(w io.Writer) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(w, "\n%s\n\n", cyan("=== Repository Evaluation ==="))
	fmt.Fprintf(w, "  Repository:  %s\n", r.Repository)
	fmt.Fprintf(w, "  Run:         %s\n", r.RunID)
	if r.Git != nil {
		fmt.Fprintf(w, "  Commit:      %s on %s%s\n",
			shortCommit(r.Git.Commit), r.Git.Branch, dirtySuffix(r.Git.Dirty))
	}
	fmt.Fprintln(w)

	verdict := gradeColor(r.Summary.Grade).Sprint(strings.ToUpper(string(r.Summary.Grade)))
	fmt.Fprintf(w, "  Verdict:     %s (%.2f overall, %s)\n", verdict,
		r.Summary.OverallScore, r.Summary.CalculationMethod)
	if r.Summary.Notes != "" {
		fmt.Fprintf(w, "  Notes:       %s\n", r.Summary.Notes)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s\n", yellow("Scores:"))
	fmt.Fprintf(w, "  %-15s %8s %10s %12s %8s\n", "Agent", "Raw", "Adjusted", "Confidence", "Weight")
	for _, a := range r.Agents {
		fmt.Fprintf(w, "  %-15s %8.1f %10.1f %12.2f %8.2f\n",
			a.AgentName, a.RawScore, a.Score, a.Confidence, r.Summary.WeightsUsed[a.AgentName])
	}
	fmt.Fprintln(w)
}

// RenderTimeline writes the staged narrative to the terminal.
func (r *Report) RenderTimeline(w io.Writer) {
	if r.Timeline == nil {
		fmt.Fprintln(w, "No timeline recorded for this run.")
		return
	}
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(w, "\n%s\n", cyan("=== Negotiation Timeline ==="))
	for _, stage := range r.Timeline.Stages {
		fmt.Fprintf(w, "\n%s\n", yellow(fmt.Sprintf("%s (%d%%)", stage.Name, stage.Progress)))
		for _, event := range stage.Events {
			fmt.Fprintf(w, "  - %s\n", event)
		}
	}

	fmt.Fprintf(w, "\n%s\n", yellow("Priorities:"))
	for _, p := range r.Timeline.Priorities {
		label := p.Priority
		if p.Priority == timeline.PriorityHigh {
			label = color.New(color.FgRed).Sprint(p.Priority)
		}
		fmt.Fprintf(w, "  %-15s %6.1f  %s\n", p.Agent, p.Score, label)
	}
	fmt.Fprintln(w)
}

// RenderConversation writes the conversation log to the terminal.
func (r *Report) RenderConversation(w io.Writer) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(w, "\n%s\n\n", cyan("=== Conversation Log ==="))
	for i, entry := range r.Conversation {
		fmt.Fprintf(w, "%3d. %s to %s: %s\n", i+1, entry.From, entry.To, entry.Text)
	}
	fmt.Fprintln(w)
}

func gradeColor(g types.Grade) *color.Color {
	switch g {
	case types.GradeExcellent:
		return color.New(color.FgGreen, color.Bold)
	case types.GradeGood:
		return color.New(color.FgGreen)
	case types.GradeFair:
		return color.New(color.FgYellow)
	case types.GradeNeedsAttention:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}
