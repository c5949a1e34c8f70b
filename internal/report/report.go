// Package report renders finalized evaluation runs. A Report is a pure
// projection of one run: the composite summary, per-agent blocks, the
// negotiation timeline, and the conversation log. It serializes to a
// stable JSON document and a Markdown rendering of the same data, and
// writes the one-directory-per-run layout atomically.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/steveyegge/jury/internal/timeline"
	"github.com/steveyegge/jury/internal/types"
)

// Summary is the composite summary consumers read first: the overall
// verdict plus the per-agent scores and weights that produced it.
type Summary struct {
	OverallScore      float64                   `json:"overall_score"`
	Grade             types.Grade               `json:"grade"`
	Notes             string                    `json:"notes"`
	CalculationMethod types.CalculationMethod   `json:"calculation_method"`
	IndividualScores  map[types.AgentID]float64 `json:"individual_scores"`
	WeightsUsed       map[types.AgentID]float64 `json:"weights_used"`
}

// AgentBlock is one agent's final standing: score, confidence, summary,
// and the findings it reported.
type AgentBlock struct {
	AgentName  types.AgentID   `json:"agent_name"`
	Score      float64         `json:"score"`
	RawScore   float64         `json:"raw_score"`
	Confidence float64         `json:"confidence"`
	Summary    string          `json:"summary"`
	Findings   []types.Finding `json:"findings,omitempty"`
}

// Report is the full serializable record of one run.
type Report struct {
	RunID        string                    `json:"run_id"`
	Repository   string                    `json:"repository"`
	Git          *types.GitInfo            `json:"git,omitempty"`
	StartedAt    time.Time                 `json:"started_at"`
	FinishedAt   time.Time                 `json:"finished_at"`
	Summary      Summary                   `json:"summary"`
	Agents       []AgentBlock              `json:"agents"`
	Timeline     *timeline.Timeline        `json:"timeline,omitempty"`
	Conversation []types.ConversationEntry `json:"conversation"`
}

// Build projects a finalized run into a Report. The timeline is
// optional; notes become the summary's notes field verbatim.
func Build(run *types.EvaluationRun, tl *timeline.Timeline, notes string) (*Report, error) {
	if run == nil {
		return nil, fmt.Errorf("run is required")
	}
	if !run.Finalized() {
		return nil, fmt.Errorf("run %s is not finalized", run.ID)
	}

	agents := make([]AgentBlock, 0, len(run.Results))
	scores := make(map[types.AgentID]float64, len(run.Results))
	for _, res := range run.Results {
		agents = append(agents, AgentBlock{
			AgentName:  res.AgentName,
			Score:      res.AdjustedScore,
			RawScore:   res.RawScore,
			Confidence: res.Confidence,
			Summary:    res.Summary,
			Findings:   res.Findings,
		})
		scores[res.AgentName] = res.AdjustedScore
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].AgentName < agents[j].AgentName })

	return &Report{
		RunID:      run.ID,
		Repository: run.Repository,
		Git:        run.Git,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Summary: Summary{
			OverallScore:      run.Composite.OverallScore,
			Grade:             run.Composite.Grade,
			Notes:             notes,
			CalculationMethod: run.Composite.CalculationMethod,
			IndividualScores:  scores,
			WeightsUsed:       run.Composite.WeightsUsed,
		},
		Agents:       agents,
		Timeline:     tl,
		Conversation: run.Conversation(),
	}, nil
}

// JSON renders the report as indented JSON. Key order is stable: struct
// fields in declaration order, map keys sorted.
func (r *Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling report: %w", err)
	}
	return append(data, '\n'), nil
}

// Markdown renders the report as a human-readable document: verdict,
// score table, per-agent findings, timeline, and conversation log.
func (r *Report) Markdown() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Repository Evaluation: %s\n\n", r.Repository))
	sb.WriteString(fmt.Sprintf("- Run: `%s`\n", r.RunID))
	sb.WriteString(fmt.Sprintf("- Evaluated: %s\n", r.FinishedAt.UTC().Format(time.RFC3339)))
	if r.Git != nil {
		sb.WriteString(fmt.Sprintf("- Commit: `%s` on %s%s\n",
			shortCommit(r.Git.Commit), r.Git.Branch, dirtySuffix(r.Git.Dirty)))
	}
	sb.WriteString("\n## Verdict\n\n")
	sb.WriteString(fmt.Sprintf("**%s** with an overall score of **%.2f** (%s)\n",
		r.Summary.Grade, r.Summary.OverallScore, r.Summary.CalculationMethod))
	if r.Summary.Notes != "" {
		sb.WriteString(fmt.Sprintf("\n%s\n", r.Summary.Notes))
	}

	sb.WriteString("\n## Scores\n\n")
	sb.WriteString("| Agent | Raw | Adjusted | Confidence | Weight |\n")
	sb.WriteString("|-------|----:|---------:|-----------:|-------:|\n")
	for _, a := range r.Agents {
		sb.WriteString(fmt.Sprintf("| %s | %.1f | %.1f | %.2f | %.2f |\n",
			a.AgentName, a.RawScore, a.Score, a.Confidence, r.Summary.WeightsUsed[a.AgentName]))
	}

	sb.WriteString("\n## Findings\n")
	for _, a := range r.Agents {
		sb.WriteString(fmt.Sprintf("\n### %s\n\n", a.AgentName))
		sb.WriteString(a.Summary + "\n")
		for _, f := range a.Findings {
			if f.Detail != "" {
				sb.WriteString(fmt.Sprintf("- %s (%d): %s\n", f.Kind, f.Count, f.Detail))
			} else {
				sb.WriteString(fmt.Sprintf("- %s (%d)\n", f.Kind, f.Count))
			}
		}
	}

	if r.Timeline != nil {
		sb.WriteString("\n## Negotiation Timeline\n")
		for _, stage := range r.Timeline.Stages {
			sb.WriteString(fmt.Sprintf("\n### %s (%d%%)\n\n", stage.Name, stage.Progress))
			for _, event := range stage.Events {
				sb.WriteString(fmt.Sprintf("- %s\n", event))
			}
		}
		sb.WriteString("\n### Priorities\n\n")
		for _, p := range r.Timeline.Priorities {
			sb.WriteString(fmt.Sprintf("- %s: %.1f (%s)\n", p.Agent, p.Score, p.Priority))
		}
	}

	sb.WriteString("\n## Conversation Log\n\n")
	for i, entry := range r.Conversation {
		sb.WriteString(fmt.Sprintf("%d. **%s** to **%s**: %s\n", i+1, entry.From, entry.To, entry.Text))
	}

	return sb.String()
}

// WriteDir writes the one-directory-per-run layout under baseDir:
// <baseDir>/<run-id>/report.json and report.md. Each file lands via a
// temp file plus rename so readers never observe a partial report.
// Returns the run directory path.
func (r *Report) WriteDir(baseDir string) (string, error) {
	if r.RunID == "" {
		return "", fmt.Errorf("report has no run id")
	}
	dir := filepath.Join(baseDir, r.RunID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating run directory: %w", err)
	}

	jsonData, err := r.JSON()
	if err != nil {
		return "", err
	}
	if err := writeFileAtomic(filepath.Join(dir, "report.json"), jsonData); err != nil {
		return "", err
	}
	if err := writeFileAtomic(filepath.Join(dir, "report.md"), []byte(r.Markdown())); err != nil {
		return "", err
	}
	return dir, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming %s into place: %w", path, err)
	}
	return nil
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}

func dirtySuffix(dirty bool) string {
	if dirty {
		return " (dirty)"
	}
	return ""
}
