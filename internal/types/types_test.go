package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindingValidate(t *testing.T) {
	tests := []struct {
		name    string
		finding Finding
		wantErr bool
	}{
		{"valid", Finding{Kind: "potential_secrets", Count: 6, Detail: "6 potential secret hits"}, false},
		{"zero count", Finding{Kind: "readme", Count: 0, Detail: "no readme found"}, false},
		{"missing kind", Finding{Count: 1}, true},
		{"negative count", Finding{Kind: "x", Count: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.finding.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAgentResultApplyDeltaClamps(t *testing.T) {
	r := &AgentResult{AgentName: AgentQuality, RawScore: 70, AdjustedScore: 70, Confidence: 0.9}

	// A large negative delta clamps at 0, not below.
	got := r.ApplyDelta(-200)
	assert.Equal(t, 0.0, got)
	assert.Equal(t, 0.0, r.AdjustedScore)

	// A large positive delta clamps at 100.
	got = r.ApplyDelta(500)
	assert.Equal(t, 100.0, got)

	// Raw score is untouched by adjustments.
	assert.Equal(t, 70.0, r.RawScore)
}

func TestAgentResultAnnotate(t *testing.T) {
	r := &AgentResult{AgentName: AgentQuality, Summary: "Code structure looks healthy."}
	r.Annotate("adjusted -25.0 after security review")
	assert.Equal(t, "Code structure looks healthy. [adjusted -25.0 after security review]", r.Summary)

	// Empty annotations are dropped.
	before := r.Summary
	r.Annotate("")
	assert.Equal(t, before, r.Summary)
}

func TestAgentResultFindingCount(t *testing.T) {
	r := &AgentResult{
		AgentName: AgentSecurity,
		Findings: []Finding{
			{Kind: "potential_secrets", Count: 4},
			{Kind: "private_keys", Count: 1},
			{Kind: "potential_secrets", Count: 2},
		},
	}
	assert.Equal(t, 6, r.FindingCount("potential_secrets"))
	assert.Equal(t, 1, r.FindingCount("private_keys"))
	assert.Equal(t, 0, r.FindingCount("unknown"))
}

func TestAgentResultValidate(t *testing.T) {
	tests := []struct {
		name    string
		result  AgentResult
		wantErr bool
	}{
		{"valid", AgentResult{AgentName: AgentSecurity, RawScore: 100, AdjustedScore: 100, Confidence: 0.95}, false},
		{"missing name", AgentResult{RawScore: 50, AdjustedScore: 50}, true},
		{"raw score too high", AgentResult{AgentName: AgentSecurity, RawScore: 101, AdjustedScore: 50}, true},
		{"adjusted score negative", AgentResult{AgentName: AgentSecurity, RawScore: 50, AdjustedScore: -1}, true},
		{"confidence too high", AgentResult{AgentName: AgentSecurity, RawScore: 50, AdjustedScore: 50, Confidence: 1.5}, true},
		{"bad finding", AgentResult{AgentName: AgentSecurity, RawScore: 50, AdjustedScore: 50, Findings: []Finding{{Count: 1}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMessageValidate(t *testing.T) {
	valid := Message{
		ID:       "m-1",
		Kind:     MessageFindings,
		From:     AgentSecurity.Participant(),
		To:       AgentQuality.Participant(),
		Text:     "6 security findings detected",
		Sequence: 4,
	}
	assert.NoError(t, valid.Validate())

	missing := valid
	missing.From = ""
	assert.Error(t, missing.Validate())

	badKind := valid
	badKind.Kind = "gossip"
	assert.Error(t, badKind.Validate())

	badSeq := valid
	badSeq.Sequence = 0
	assert.Error(t, badSeq.Validate())
}

func TestCompositeResultValidateWeightSum(t *testing.T) {
	c := &CompositeResult{
		OverallScore:      72.51,
		Grade:             GradeGood,
		CalculationMethod: MethodWeighted,
		WeightsUsed: map[AgentID]float64{
			AgentSecurity:      33,
			AgentQuality:       33,
			AgentDocumentation: 34,
		},
	}
	require.NoError(t, c.Validate())

	// Within rounding tolerance of 0.01.
	c.WeightsUsed[AgentSecurity] = 33.34
	c.WeightsUsed[AgentQuality] = 33.33
	c.WeightsUsed[AgentDocumentation] = 33.33
	require.NoError(t, c.Validate())

	// Outside tolerance.
	c.WeightsUsed[AgentSecurity] = 35
	assert.Error(t, c.Validate())
}

func TestEvaluationRunFinalize(t *testing.T) {
	run := &EvaluationRun{
		ID:         "run-1",
		Repository: "example/repo",
		StartedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Results: []*AgentResult{
			{AgentName: AgentSecurity, RawScore: 100, AdjustedScore: 100, Confidence: 0.9},
		},
	}
	require.False(t, run.Finalized())

	composite := &CompositeResult{
		OverallScore:      100,
		Grade:             GradeExcellent,
		CalculationMethod: MethodEqualWeight,
		WeightsUsed:       map[AgentID]float64{AgentSecurity: 100},
	}
	messages := []Message{
		{ID: "m-1", Kind: MessageTaskAssignment, From: ParticipantManager, To: AgentSecurity.Participant(), Text: "analyze", Sequence: 1},
	}
	finished := run.StartedAt.Add(2 * time.Second)

	require.NoError(t, run.Finalize(messages, composite, finished))
	assert.True(t, run.Finalized())
	assert.Equal(t, finished, run.FinishedAt)

	// Finalizing twice must fail.
	assert.Error(t, run.Finalize(messages, composite, finished))
}

func TestEvaluationRunValidateSequenceOrder(t *testing.T) {
	run := &EvaluationRun{
		ID:         "run-1",
		Repository: "example/repo",
		Messages: []Message{
			{ID: "m-1", Kind: MessageTaskAssignment, From: ParticipantManager, To: AgentSecurity.Participant(), Text: "a", Sequence: 1},
			{ID: "m-2", Kind: MessageTaskAssignment, From: ParticipantManager, To: AgentQuality.Participant(), Text: "b", Sequence: 2},
		},
	}
	require.NoError(t, run.Validate())

	// Repeating a sequence number breaks the total order.
	run.Messages[1].Sequence = 1
	assert.Error(t, run.Validate())
}

func TestEvaluationRunConversation(t *testing.T) {
	run := &EvaluationRun{
		ID:         "run-1",
		Repository: "example/repo",
		Messages: []Message{
			{ID: "m-1", Kind: MessageTaskAssignment, From: ParticipantManager, To: AgentSecurity.Participant(), Text: "analyze the repository", Sequence: 1},
			{ID: "m-2", Kind: MessageBroadcast, From: ParticipantManager, To: ParticipantAll, Text: "evaluation complete", Sequence: 2},
		},
	}

	entries := run.Conversation()
	require.Len(t, entries, 2)
	assert.Equal(t, ParticipantManager, entries[0].From)
	assert.Equal(t, AgentSecurity.Participant(), entries[0].To)
	assert.Equal(t, "analyze the repository", entries[0].Text)
	assert.Equal(t, ParticipantAll, entries[1].To)
}

func TestEvaluationRunResultLookup(t *testing.T) {
	run := &EvaluationRun{
		ID:         "run-1",
		Repository: "example/repo",
		Results: []*AgentResult{
			{AgentName: AgentSecurity, RawScore: 80, AdjustedScore: 80, Confidence: 0.8},
			{AgentName: AgentQuality, RawScore: 60, AdjustedScore: 35, Confidence: 0.7},
		},
	}
	require.NotNil(t, run.Result(AgentQuality))
	assert.Equal(t, 35.0, run.Result(AgentQuality).AdjustedScore)
	assert.Nil(t, run.Result(AgentDocumentation))
}

func TestErrorTaxonomy(t *testing.T) {
	analysisErr := NewAnalysisError(AgentSecurity, assert.AnError)
	assert.Contains(t, analysisErr.Error(), "security")
	assert.ErrorIs(t, analysisErr, assert.AnError)

	cfgErr := NewConfigurationError("weights sum to %d, expected 100", 97)
	assert.Contains(t, cfgErr.Error(), "97")

	conflict := &AdjustmentConflictError{Source: AgentSecurity, Target: "astrology", Reason: "unknown agent"}
	assert.Contains(t, conflict.Error(), "astrology")
}
