package types

import (
	"fmt"
	"time"
)

// AgentID identifies one evaluator within a run.
type AgentID string

const (
	// AgentSecurity evaluates secret and credential exposure.
	AgentSecurity AgentID = "security"
	// AgentQuality evaluates structural code quality.
	AgentQuality AgentID = "quality"
	// AgentDocumentation evaluates documentation depth.
	AgentDocumentation AgentID = "documentation"
)

// Participant is a message endpoint: an agent, the manager, or everyone.
type Participant string

const (
	// ParticipantManager is the orchestrating manager process.
	ParticipantManager Participant = "manager"
	// ParticipantAll addresses a broadcast to every participant.
	ParticipantAll Participant = "all"
)

// Participant converts an agent identity into a message endpoint.
func (a AgentID) Participant() Participant {
	return Participant(a)
}

// Finding is an atomic unit of evidence produced by one evaluator,
// e.g. "6 potential secret hits". Immutable once produced.
type Finding struct {
	Kind   string `json:"kind"`
	Count  int    `json:"count"`
	Detail string `json:"detail"`
}

// Validate checks if the finding has valid field values
func (f *Finding) Validate() error {
	if f.Kind == "" {
		return fmt.Errorf("kind is required")
	}
	if f.Count < 0 {
		return fmt.Errorf("count cannot be negative (got %d)", f.Count)
	}
	return nil
}

// AgentResult holds one agent's scores for the duration of a run.
// RawScore is fixed at analysis time; AdjustedScore starts equal to it
// and accumulates negotiation deltas, clamped to [0, 100] after each one.
type AgentResult struct {
	AgentName     AgentID   `json:"agent_name"`
	RawScore      float64   `json:"raw_score"`
	AdjustedScore float64   `json:"adjusted_score"`
	Confidence    float64   `json:"confidence"`
	Summary       string    `json:"summary"`
	Findings      []Finding `json:"findings"`
}

// Validate checks if the agent result has valid field values
func (r *AgentResult) Validate() error {
	if r.AgentName == "" {
		return fmt.Errorf("agent_name is required")
	}
	if r.RawScore < 0 || r.RawScore > 100 {
		return fmt.Errorf("raw_score must be between 0 and 100 (got %.2f)", r.RawScore)
	}
	if r.AdjustedScore < 0 || r.AdjustedScore > 100 {
		return fmt.Errorf("adjusted_score must be between 0 and 100 (got %.2f)", r.AdjustedScore)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence must be between 0 and 1 (got %.2f)", r.Confidence)
	}
	for i := range r.Findings {
		if err := r.Findings[i].Validate(); err != nil {
			return fmt.Errorf("finding %d: %w", i, err)
		}
	}
	return nil
}

// ApplyDelta adds delta to the adjusted score and clamps the result to
// [0, 100]. Returns the score after clamping.
func (r *AgentResult) ApplyDelta(delta float64) float64 {
	r.AdjustedScore = clampScore(r.AdjustedScore + delta)
	return r.AdjustedScore
}

// Annotate appends an adjustment annotation to the summary.
func (r *AgentResult) Annotate(note string) {
	if note == "" {
		return
	}
	r.Summary = r.Summary + " [" + note + "]"
}

// FindingCount returns the total count across findings of the given kind.
func (r *AgentResult) FindingCount(kind string) int {
	total := 0
	for _, f := range r.Findings {
		if f.Kind == kind {
			total += f.Count
		}
	}
	return total
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// MessageKind categorizes conversation log entries
type MessageKind string

const (
	MessageTaskAssignment MessageKind = "task_assignment"
	MessageFindings       MessageKind = "findings_notification"
	MessageAdjustment     MessageKind = "adjustment_response"
	MessageAck            MessageKind = "acknowledgment"
	MessageFailure        MessageKind = "analysis_failure"
	MessageBroadcast      MessageKind = "final_broadcast"
)

// IsValid checks if the message kind value is valid
func (k MessageKind) IsValid() bool {
	switch k {
	case MessageTaskAssignment, MessageFindings, MessageAdjustment,
		MessageAck, MessageFailure, MessageBroadcast:
		return true
	}
	return false
}

// Message is one entry in the append-only conversation log. Sequence
// numbers are assigned by the bus and are strictly increasing within a
// run, starting at 1. A findings notification carries the sender's
// findings so the receiver can apply its adjustment policy without
// parsing prose.
type Message struct {
	ID        string      `json:"id"`
	Kind      MessageKind `json:"kind"`
	From      Participant `json:"from"`
	To        Participant `json:"to"`
	Text      string      `json:"text"`
	Sequence  int         `json:"sequence"`
	Timestamp time.Time   `json:"timestamp"`
	Findings  []Finding   `json:"findings,omitempty"`
	Delta     float64     `json:"delta,omitempty"`
}

// Validate checks if the message has valid field values
func (m *Message) Validate() error {
	if m.From == "" {
		return fmt.Errorf("from is required")
	}
	if m.To == "" {
		return fmt.Errorf("to is required")
	}
	if !m.Kind.IsValid() {
		return fmt.Errorf("invalid message kind: %s", m.Kind)
	}
	if m.Sequence < 1 {
		return fmt.Errorf("sequence must be positive (got %d)", m.Sequence)
	}
	return nil
}

// ConversationEntry is the external view of a message: who said what to
// whom, in log order.
type ConversationEntry struct {
	From Participant `json:"from"`
	To   Participant `json:"to"`
	Text string      `json:"text"`
}

// CalculationMethod tags how the composite score was weighted
type CalculationMethod string

const (
	// MethodEqualWeight splits 100 evenly across agents.
	MethodEqualWeight CalculationMethod = "equal_weight"
	// MethodWeighted uses externally supplied integer weights.
	MethodWeighted CalculationMethod = "weighted"
)

// IsValid checks if the calculation method value is valid
func (m CalculationMethod) IsValid() bool {
	return m == MethodEqualWeight || m == MethodWeighted
}

// Grade is the categorical tier derived from the overall score
type Grade string

const (
	GradeExcellent      Grade = "excellent"
	GradeGood           Grade = "good"
	GradeFair           Grade = "fair"
	GradeNeedsAttention Grade = "needs_attention"
	GradePoor           Grade = "poor"
)

// IsValid checks if the grade value is valid
func (g Grade) IsValid() bool {
	switch g {
	case GradeExcellent, GradeGood, GradeFair, GradeNeedsAttention, GradePoor:
		return true
	}
	return false
}

// CompositeResult is the derived aggregate of all agents' final scores.
// It is computed once per run and never independently mutated.
type CompositeResult struct {
	OverallScore      float64             `json:"overall_score"`
	Grade             Grade               `json:"grade"`
	WeightsUsed       map[AgentID]float64 `json:"weights_used"`
	CalculationMethod CalculationMethod   `json:"calculation_method"`
}

// Validate checks if the composite result has valid field values
func (c *CompositeResult) Validate() error {
	if !c.Grade.IsValid() {
		return fmt.Errorf("invalid grade: %s", c.Grade)
	}
	if !c.CalculationMethod.IsValid() {
		return fmt.Errorf("invalid calculation_method: %s", c.CalculationMethod)
	}
	var sum float64
	for _, w := range c.WeightsUsed {
		sum += w
	}
	if sum < 99.99 || sum > 100.01 {
		return fmt.Errorf("weights_used must sum to 100 within 0.01 (got %.4f)", sum)
	}
	return nil
}

// GitInfo records where the evaluated repository stood when the snapshot
// was taken. All fields are best-effort; a non-git directory leaves this nil.
type GitInfo struct {
	Commit string `json:"commit"`
	Branch string `json:"branch"`
	Dirty  bool   `json:"dirty"`
}

// EvaluationRun is the aggregate root for one evaluation: one AgentResult
// per agent, the full message sequence, and exactly one CompositeResult,
// scoped to a single (repository, timestamp) pair. A run is created at
// dispatch time and finalized once the composite is computed; after
// Finalize it must be treated as read-only.
type EvaluationRun struct {
	ID         string         `json:"id"`
	Repository string         `json:"repository"`
	Git        *GitInfo       `json:"git,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Results    []*AgentResult   `json:"results"`
	Messages   []Message        `json:"messages"`
	Composite  *CompositeResult `json:"composite"`
}

// Finalized reports whether the run has its composite result.
func (r *EvaluationRun) Finalized() bool {
	return r.Composite != nil
}

// Finalize attaches the message log and composite result and stamps the
// finish time. Calling Finalize twice is an error.
func (r *EvaluationRun) Finalize(messages []Message, composite *CompositeResult, finishedAt time.Time) error {
	if r.Finalized() {
		return fmt.Errorf("run %s is already finalized", r.ID)
	}
	if composite == nil {
		return fmt.Errorf("composite result is required")
	}
	r.Messages = messages
	r.Composite = composite
	r.FinishedAt = finishedAt
	return nil
}

// Result returns the AgentResult for the named agent, or nil.
func (r *EvaluationRun) Result(agent AgentID) *AgentResult {
	for _, res := range r.Results {
		if res.AgentName == agent {
			return res
		}
	}
	return nil
}

// Conversation returns the message log as external (from, to, text) triples.
func (r *EvaluationRun) Conversation() []ConversationEntry {
	entries := make([]ConversationEntry, 0, len(r.Messages))
	for _, m := range r.Messages {
		entries = append(entries, ConversationEntry{From: m.From, To: m.To, Text: m.Text})
	}
	return entries
}

// Validate checks if the run has valid field values
func (r *EvaluationRun) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if r.Repository == "" {
		return fmt.Errorf("repository is required")
	}
	seen := make(map[AgentID]bool, len(r.Results))
	for _, res := range r.Results {
		if err := res.Validate(); err != nil {
			return fmt.Errorf("result %s: %w", res.AgentName, err)
		}
		if seen[res.AgentName] {
			return fmt.Errorf("duplicate agent result: %s", res.AgentName)
		}
		seen[res.AgentName] = true
	}
	lastSeq := 0
	for i := range r.Messages {
		if err := r.Messages[i].Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
		if r.Messages[i].Sequence <= lastSeq {
			return fmt.Errorf("message sequence must be strictly increasing (got %d after %d)",
				r.Messages[i].Sequence, lastSeq)
		}
		lastSeq = r.Messages[i].Sequence
	}
	if r.Composite != nil {
		if err := r.Composite.Validate(); err != nil {
			return fmt.Errorf("composite: %w", err)
		}
	}
	return nil
}
