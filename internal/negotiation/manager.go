// Package negotiation orchestrates one evaluation run: the manager
// assigns tasks, runs every agent's analysis in parallel, fans findings
// out along the notification graph, collects the adjusted results, and
// finalizes the run with its composite score. The protocol is a bounded
// DAG walk in a fixed order, so a run over the same snapshot and
// configuration always produces the same scores and message sequence
// (timestamps and IDs aside).
package negotiation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/jury/internal/agent"
	"github.com/steveyegge/jury/internal/bus"
	"github.com/steveyegge/jury/internal/scoring"
	"github.com/steveyegge/jury/internal/snapshot"
	"github.com/steveyegge/jury/internal/types"
)

// Config holds manager dependencies and options.
type Config struct {
	// Registry supplies the participating agents. Required.
	Registry *agent.Registry

	// Scorer computes the composite result. Required.
	Scorer *scoring.Scorer

	// Graph declares the notification fan-out. Defaults to
	// agent.DefaultGraph().
	Graph *agent.Graph

	// AnalysisTimeout bounds each agent's analysis. Zero means no
	// per-agent timeout beyond the run context.
	AnalysisTimeout time.Duration

	// Out receives operational warnings (skipped adjustments, failed
	// analyses). Defaults to os.Stdout.
	Out io.Writer
}

// Manager drives the negotiation protocol for evaluation runs.
type Manager struct {
	registry        *agent.Registry
	scorer          *scoring.Scorer
	graph           *agent.Graph
	analysisTimeout time.Duration
	out             io.Writer
	now             func() time.Time
}

// NewManager creates a manager from the given configuration.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("agent registry is required")
	}
	if cfg.Scorer == nil {
		return nil, fmt.Errorf("scorer is required")
	}

	graph := cfg.Graph
	if graph == nil {
		graph = agent.DefaultGraph()
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	return &Manager{
		registry:        cfg.Registry,
		scorer:          cfg.Scorer,
		graph:           graph,
		analysisTimeout: cfg.AnalysisTimeout,
		out:             out,
		now:             time.Now,
	}, nil
}

// Run executes the full protocol against one snapshot and returns the
// finalized run. Individual analysis failures are substituted with
// zero-score results and noted on the message log; configuration
// problems and context cancellation abort the run instead.
func (m *Manager) Run(ctx context.Context, snap *snapshot.Snapshot) (*types.EvaluationRun, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot is required")
	}

	ids := m.registry.IDs()
	if len(ids) == 0 {
		return nil, types.NewConfigurationError("no agents registered")
	}
	if err := m.scorer.ValidateAgents(ids); err != nil {
		return nil, err
	}

	agents, err := m.registry.Build()
	if err != nil {
		return nil, err
	}

	run := &types.EvaluationRun{
		ID:         uuid.New().String(),
		Repository: snap.Root,
		Git:        snap.Git,
		StartedAt:  m.now(),
	}

	log := bus.New()
	for _, ag := range agents {
		log.PostTask(ag.ID(), taskText(ag.ID(), snap.Name))
	}

	failures := m.analyzeAll(ctx, agents, snap)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	results, failed := m.collectResults(log, agents, failures)
	m.fanOut(log, agents, results, failed)

	composite, err := m.scorer.Compose(orderedResults(agents, results))
	if err != nil {
		return nil, fmt.Errorf("composing final score: %w", err)
	}
	log.PostBroadcast(broadcastText(composite, agents, results))

	run.Results = orderedResults(agents, results)
	if err := run.Finalize(log.Log(), composite, m.now()); err != nil {
		return nil, err
	}
	if err := run.Validate(); err != nil {
		return nil, fmt.Errorf("finalized run failed validation: %w", err)
	}
	return run, nil
}

// analyzeAll runs every agent's analysis concurrently. A failed
// analysis is recorded per agent, never propagated: the run continues
// with the remaining agents.
func (m *Manager) analyzeAll(ctx context.Context, agents []agent.Agent, snap *snapshot.Snapshot) []error {
	g, gctx := errgroup.WithContext(ctx)
	failures := make([]error, len(agents))

	for i, ag := range agents {
		i, ag := i, ag
		g.Go(func() error {
			actx := gctx
			if m.analysisTimeout > 0 {
				var cancel context.CancelFunc
				actx, cancel = context.WithTimeout(gctx, m.analysisTimeout)
				defer cancel()
			}
			if _, err := ag.Analyze(actx, snap); err != nil {
				failures[i] = err
			}
			return nil
		})
	}

	// Goroutines never return errors, so Wait only synchronizes.
	_ = g.Wait()
	return failures
}

// collectResults gathers each agent's result, substituting a zero-score
// zero-confidence result for agents whose analysis failed and posting a
// failure note for each.
func (m *Manager) collectResults(log *bus.Bus, agents []agent.Agent, failures []error) (map[types.AgentID]*types.AgentResult, map[types.AgentID]bool) {
	results := make(map[types.AgentID]*types.AgentResult, len(agents))
	failed := make(map[types.AgentID]bool)

	for i, ag := range agents {
		id := ag.ID()
		if failures[i] != nil {
			failed[id] = true
			results[id] = &types.AgentResult{
				AgentName: id,
				Summary:   fmt.Sprintf("analysis failed: %v", failures[i]),
			}
			log.PostFailure(id, fmt.Sprintf("%s analysis failed and scores 0 with no confidence: %v", id, failures[i]))
			fmt.Fprintf(m.out, "Warning: %v\n", failures[i])
			continue
		}
		results[id] = ag.Result()
	}
	return results, failed
}

// fanOut walks the notification graph in declaration order. Edges
// touching an agent that is not part of the run, or whose receiver has
// no rule for the sender, are skipped and logged as conflicts. Edges
// touching a failed agent are skipped silently: a substituted result
// has no findings to share and nothing worth adjusting.
func (m *Manager) fanOut(log *bus.Bus, agents []agent.Agent, results map[types.AgentID]*types.AgentResult, failed map[types.AgentID]bool) {
	byID := make(map[types.AgentID]agent.Agent, len(agents))
	for _, ag := range agents {
		byID[ag.ID()] = ag
	}

	for _, edge := range m.graph.Edges() {
		src, srcOK := byID[edge.From]
		dst, dstOK := byID[edge.To]
		if !srcOK || !dstOK {
			conflict := &types.AdjustmentConflictError{
				Source: edge.From,
				Target: edge.To,
				Reason: "agent not present in this run",
			}
			fmt.Fprintf(m.out, "Warning: skipping adjustment: %v\n", conflict)
			continue
		}
		if failed[edge.From] || failed[edge.To] {
			continue
		}

		srcRes := results[src.ID()]
		msg := log.PostFindings(edge.From, edge.To, notificationText(edge.From, srcRes.Findings), srcRes.Findings)

		if _, err := dst.Receive(log, msg); err != nil {
			var conflict *types.AdjustmentConflictError
			if errors.As(err, &conflict) {
				fmt.Fprintf(m.out, "Warning: skipping adjustment: %v\n", conflict)
				continue
			}
			// Receive only fails hard on protocol bugs; surface loudly
			// but keep the run alive.
			fmt.Fprintf(m.out, "Warning: %s rejected notification from %s: %v\n", edge.To, edge.From, err)
		}
	}
}

// orderedResults returns results in the agents' (alphabetical) order.
func orderedResults(agents []agent.Agent, results map[types.AgentID]*types.AgentResult) []*types.AgentResult {
	out := make([]*types.AgentResult, 0, len(agents))
	for _, ag := range agents {
		out = append(out, results[ag.ID()])
	}
	return out
}

// focusAreas describes what each built-in agent is asked to assess.
var focusAreas = map[types.AgentID]string{
	types.AgentSecurity:      "secret and credential exposure",
	types.AgentQuality:       "structural code quality",
	types.AgentDocumentation: "documentation depth",
}

func taskText(id types.AgentID, repo string) string {
	focus := focusAreas[id]
	if focus == "" {
		focus = "its assessment area"
	}
	return fmt.Sprintf("assess %s for %s", repo, focus)
}

func notificationText(from types.AgentID, findings []types.Finding) string {
	total := 0
	for _, f := range findings {
		total += f.Count
	}
	if total == 0 {
		return fmt.Sprintf("%s analysis complete: nothing notable to report", from)
	}

	parts := make([]string, 0, len(findings))
	for _, f := range findings {
		if f.Count > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", f.Kind, f.Count))
		}
	}
	return fmt.Sprintf("%s analysis complete: %s; weigh this in your assessment",
		from, strings.Join(parts, ", "))
}

func broadcastText(composite *types.CompositeResult, agents []agent.Agent, results map[types.AgentID]*types.AgentResult) string {
	parts := make([]string, 0, len(agents))
	for _, ag := range agents {
		res := results[ag.ID()]
		parts = append(parts, fmt.Sprintf("%s %.2f", res.AgentName, res.AdjustedScore))
	}
	return fmt.Sprintf("consensus reached: overall score %.2f, grade %s (%s)",
		composite.OverallScore, composite.Grade, strings.Join(parts, ", "))
}
