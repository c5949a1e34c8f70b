// Package agent implements the evaluators that negotiate a repository's
// scores. An agent wraps one opaque analysis capability (an Analyzer),
// owns exactly one AgentResult per run, and adjusts that result when
// peers notify it of cross-domain findings. Which peers may adjust whom,
// and by how much, is declared in the policy table and notification
// graph rather than hardwired into agent identities.
package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/steveyegge/jury/internal/bus"
	"github.com/steveyegge/jury/internal/snapshot"
	"github.com/steveyegge/jury/internal/types"
)

// Analysis is the output of one analyzer pass over a snapshot.
type Analysis struct {
	RawScore   float64
	Confidence float64
	Summary    string
	Findings   []types.Finding
}

// Analyzer is one opaque analysis capability: a pure function of the
// snapshot. Deterministic given identical input; returns an error when
// the snapshot cannot be analyzed (unreadable or empty).
type Analyzer interface {
	Analyze(ctx context.Context, snap *snapshot.Snapshot) (*Analysis, error)
}

// AnalyzerFunc adapts a plain function to the Analyzer interface.
type AnalyzerFunc func(ctx context.Context, snap *snapshot.Snapshot) (*Analysis, error)

// Analyze calls f.
func (f AnalyzerFunc) Analyze(ctx context.Context, snap *snapshot.Snapshot) (*Analysis, error) {
	return f(ctx, snap)
}

// Outcome describes what a Receive call did.
type Outcome struct {
	// Applied is true when a non-zero delta was applied to the score.
	Applied bool
	// Delta is the applied adjustment (zero when nothing was applied).
	Delta float64
	// Note is the human-readable explanation of the decision.
	Note string
	// SkipReason is set when the message was deliberately not processed
	// (duplicate delivery, sender already applied).
	SkipReason string
}

// Skipped reports whether the message was dropped by the exactly-once guard.
func (o *Outcome) Skipped() bool {
	return o.SkipReason != ""
}

// Agent is one independent evaluator participating in a run.
type Agent interface {
	// ID returns the agent's identity, unique within a run.
	ID() types.AgentID

	// Analyze runs the agent's capability against the snapshot and
	// records the initial result. Fails with *types.AnalysisError when
	// the snapshot cannot be analyzed.
	Analyze(ctx context.Context, snap *snapshot.Snapshot) (*types.AgentResult, error)

	// Receive examines a findings notification and applies the policy
	// delta for its sender, exactly once per distinct sender. The agent
	// posts its response (adjustment summary or acknowledgment) to log.
	Receive(log *bus.Bus, msg types.Message) (*Outcome, error)

	// Result returns the agent's current result, nil before Analyze.
	Result() *types.AgentResult
}

// Evaluator is the standard Agent implementation. One instance serves
// one run: it owns its AgentResult and the bookkeeping that guards
// against double-applied adjustments.
type Evaluator struct {
	id       types.AgentID
	analyzer Analyzer
	rules    map[types.AgentID]Rule

	mu           sync.Mutex
	result       *types.AgentResult
	processedSeq map[int]bool
	appliedFrom  map[types.AgentID]bool
}

var _ Agent = (*Evaluator)(nil)

// New creates an evaluator for the given identity. rules holds the
// inbound adjustment rules keyed by sender; agents without inbound
// edges pass nil.
func New(id types.AgentID, analyzer Analyzer, rules map[types.AgentID]Rule) (*Evaluator, error) {
	if id == "" {
		return nil, fmt.Errorf("agent id is required")
	}
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer is required for agent %s", id)
	}
	return &Evaluator{
		id:           id,
		analyzer:     analyzer,
		rules:        rules,
		processedSeq: make(map[int]bool),
		appliedFrom:  make(map[types.AgentID]bool),
	}, nil
}

// ID returns the agent's identity.
func (e *Evaluator) ID() types.AgentID {
	return e.id
}

// Analyze runs the analyzer and records the initial result. The adjusted
// score starts equal to the raw score; confidence is fixed here and
// never changes during negotiation.
func (e *Evaluator) Analyze(ctx context.Context, snap *snapshot.Snapshot) (*types.AgentResult, error) {
	analysis, err := e.analyzer.Analyze(ctx, snap)
	if err != nil {
		return nil, types.NewAnalysisError(e.id, err)
	}
	if analysis == nil {
		return nil, types.NewAnalysisError(e.id, fmt.Errorf("analyzer returned no analysis"))
	}

	result := &types.AgentResult{
		AgentName:     e.id,
		RawScore:      analysis.RawScore,
		AdjustedScore: analysis.RawScore,
		Confidence:    analysis.Confidence,
		Summary:       analysis.Summary,
		Findings:      analysis.Findings,
	}
	if err := result.Validate(); err != nil {
		return nil, types.NewAnalysisError(e.id, fmt.Errorf("analyzer produced an invalid result: %w", err))
	}

	e.mu.Lock()
	e.result = result
	e.mu.Unlock()
	return result, nil
}

// Receive applies the adjustment rule for the message's sender to this
// agent's own score. Sequence-number bookkeeping plus a per-sender
// ledger make application exactly-once: redelivery of a processed
// message or a second message from the same sender yields a skipped
// outcome, never a second delta. A sender with no configured rule is an
// *types.AdjustmentConflictError.
func (e *Evaluator) Receive(log *bus.Bus, msg types.Message) (*Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.result == nil {
		return nil, fmt.Errorf("agent %s received a message before analysis", e.id)
	}
	if msg.To != e.id.Participant() {
		return nil, &types.AdjustmentConflictError{
			Source: types.AgentID(msg.From),
			Target: e.id,
			Reason: fmt.Sprintf("message addressed to %s", msg.To),
		}
	}
	if e.processedSeq[msg.Sequence] {
		return &Outcome{SkipReason: fmt.Sprintf("message %d already processed", msg.Sequence)}, nil
	}
	e.processedSeq[msg.Sequence] = true

	from := types.AgentID(msg.From)
	if e.appliedFrom[from] {
		return &Outcome{SkipReason: fmt.Sprintf("adjustment from %s already applied", from)}, nil
	}

	rule, ok := e.rules[from]
	if !ok {
		return nil, &types.AdjustmentConflictError{
			Source: from,
			Target: e.id,
			Reason: "no adjustment rule for sender",
		}
	}
	e.appliedFrom[from] = true

	delta, note := rule(msg.Findings, e.result)
	if delta == 0 {
		if log != nil {
			log.PostAck(e.id, from, note)
		}
		return &Outcome{Note: note}, nil
	}

	e.result.ApplyDelta(delta)
	e.result.Annotate(fmt.Sprintf("adjusted %+.1f after %s input", delta, from))
	if log != nil {
		log.PostAdjustment(e.id, from, note, delta)
	}
	return &Outcome{Applied: true, Delta: delta, Note: note}, nil
}

// Result returns the agent's current result, nil before Analyze.
func (e *Evaluator) Result() *types.AgentResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}
