// Package timeline projects a finalized evaluation run into a staged
// negotiation narrative: four fixed stages with progress percentages,
// plus a priority snapshot labeling each agent's final score against a
// midpoint threshold. The projection is read-only; building a timeline
// never mutates the run.
package timeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/steveyegge/jury/internal/types"
)

// DefaultPriorityThreshold is the adjusted-score midpoint separating
// high priority agents from low priority ones in the snapshot.
const DefaultPriorityThreshold = 50.0

// Priority labels for the conflict resolution snapshot.
const (
	PriorityHigh = "High Priority"
	PriorityLow  = "Low Priority"
)

// Stage is one step of the negotiation narrative.
type Stage struct {
	Name     string   `json:"name"`
	Progress int      `json:"progress"`
	Events   []string `json:"events"`
}

// AgentPriority labels one agent's final adjusted score relative to
// the builder's threshold.
type AgentPriority struct {
	Agent    types.AgentID `json:"agent"`
	Score    float64       `json:"score"`
	Priority string        `json:"priority"`
}

// Timeline is the staged projection of one run: always exactly four
// stages, in order, and one priority entry per agent.
type Timeline struct {
	RunID      string          `json:"run_id"`
	Stages     []Stage         `json:"stages"`
	Priorities []AgentPriority `json:"priorities"`
}

// Builder derives timelines from finalized runs.
type Builder struct {
	// PriorityThreshold splits the snapshot: scores at or above it are
	// labeled high priority, scores below it low priority.
	PriorityThreshold float64
}

// NewBuilder returns a Builder with the default threshold.
func NewBuilder() *Builder {
	return &Builder{PriorityThreshold: DefaultPriorityThreshold}
}

// Build projects the run into its four-stage narrative and priority
// snapshot. The run must be finalized.
func (b *Builder) Build(run *types.EvaluationRun) (*Timeline, error) {
	if run == nil {
		return nil, fmt.Errorf("run is required")
	}
	if !run.Finalized() {
		return nil, fmt.Errorf("run %s is not finalized", run.ID)
	}
	return &Timeline{
		RunID: run.ID,
		Stages: []Stage{
			{Name: "Initial positions", Progress: 25, Events: initialPositions(run)},
			{Name: "Common ground", Progress: 50, Events: commonGround(run)},
			{Name: "Conflict resolution", Progress: 75, Events: conflictResolution(run)},
			{Name: "Consensus", Progress: 100, Events: consensus(run)},
		},
		Priorities: b.snapshot(run),
	}, nil
}

// initialPositions reports each agent's opening stance in agent-name
// order, followed by any analysis failure notices from the log.
func initialPositions(run *types.EvaluationRun) []string {
	events := make([]string, 0, len(run.Results))
	for _, res := range sortedResults(run) {
		events = append(events, fmt.Sprintf("%s opened at %.1f (confidence %.2f)",
			res.AgentName, res.RawScore, res.Confidence))
	}
	for _, m := range run.Messages {
		if m.Kind == types.MessageFailure {
			events = append(events, m.Text)
		}
	}
	return events
}

// commonGround reports the findings notifications in log order.
func commonGround(run *types.EvaluationRun) []string {
	var events []string
	for _, m := range run.Messages {
		if m.Kind != types.MessageFindings {
			continue
		}
		events = append(events, fmt.Sprintf("%s shared findings with %s (%s)",
			m.From, m.To, findingsDigest(m.Findings)))
	}
	if len(events) == 0 {
		events = append(events, "no peer notifications exchanged")
	}
	return events
}

// conflictResolution reports the adjustment and acknowledgment
// responses in log order.
func conflictResolution(run *types.EvaluationRun) []string {
	var events []string
	for _, m := range run.Messages {
		switch m.Kind {
		case types.MessageAdjustment:
			events = append(events, fmt.Sprintf("%s revised its score by %+.1f in response to %s",
				m.From, m.Delta, m.To))
		case types.MessageAck:
			events = append(events, fmt.Sprintf("%s acknowledged %s with no change", m.From, m.To))
		}
	}
	if len(events) == 0 {
		events = append(events, "no conflicts to resolve")
	}
	return events
}

// consensus reports where each agent landed and the composite outcome.
func consensus(run *types.EvaluationRun) []string {
	events := make([]string, 0, len(run.Results)+1)
	for _, res := range sortedResults(run) {
		if res.AdjustedScore == res.RawScore {
			events = append(events, fmt.Sprintf("%s held at %.1f", res.AgentName, res.AdjustedScore))
		} else {
			events = append(events, fmt.Sprintf("%s settled at %.1f (from %.1f)",
				res.AgentName, res.AdjustedScore, res.RawScore))
		}
	}
	events = append(events, fmt.Sprintf("overall score %.2f, grade %s",
		run.Composite.OverallScore, run.Composite.Grade))
	return events
}

func (b *Builder) snapshot(run *types.EvaluationRun) []AgentPriority {
	out := make([]AgentPriority, 0, len(run.Results))
	for _, res := range sortedResults(run) {
		out = append(out, AgentPriority{
			Agent:    res.AgentName,
			Score:    res.AdjustedScore,
			Priority: b.label(res.AdjustedScore),
		})
	}
	return out
}

func (b *Builder) label(score float64) string {
	if score >= b.PriorityThreshold {
		return PriorityHigh
	}
	return PriorityLow
}

func sortedResults(run *types.EvaluationRun) []*types.AgentResult {
	out := make([]*types.AgentResult, len(run.Results))
	copy(out, run.Results)
	sort.Slice(out, func(i, j int) bool { return out[i].AgentName < out[j].AgentName })
	return out
}

func findingsDigest(findings []types.Finding) string {
	if len(findings) == 0 {
		return "nothing notable"
	}
	parts := make([]string, 0, len(findings))
	for _, f := range findings {
		parts = append(parts, fmt.Sprintf("%s=%d", f.Kind, f.Count))
	}
	return strings.Join(parts, ", ")
}
