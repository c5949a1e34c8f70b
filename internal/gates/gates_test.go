package gates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/jury/internal/types"
)

func gatedRun(t *testing.T, score float64, grade types.Grade) *types.EvaluationRun {
	t.Helper()
	run := &types.EvaluationRun{
		ID:         "run-1",
		Repository: "/tmp/repo",
		StartedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Results: []*types.AgentResult{
			{AgentName: types.AgentQuality, RawScore: 70, AdjustedScore: 70, Confidence: 0.8,
				Summary: "structure is sound",
				Findings: []types.Finding{{Kind: types.FindingTodoMarkers, Count: 4, Detail: "TODO"}}},
			{AgentName: types.AgentSecurity, RawScore: 40, AdjustedScore: 40, Confidence: 0.95,
				Summary: "found exposed credentials",
				Findings: []types.Finding{{Kind: types.FindingSecretHits, Count: 3, Detail: "aws_access_key"}}},
		},
	}
	composite := &types.CompositeResult{
		OverallScore:      score,
		Grade:             grade,
		CalculationMethod: types.MethodEqualWeight,
		WeightsUsed: map[types.AgentID]float64{
			types.AgentSecurity: 50,
			types.AgentQuality:  50,
		},
	}
	messages := []types.Message{{
		ID: "m-1", Kind: types.MessageBroadcast,
		From: types.ParticipantManager, To: types.ParticipantAll,
		Text: "done", Sequence: 1,
	}}
	require.NoError(t, run.Finalize(messages, composite, run.StartedAt.Add(time.Second)))
	return run
}

func TestEvaluateAllChecksPass(t *testing.T) {
	run := gatedRun(t, 55, types.GradeFair)

	reqs := Requirements{
		MinGrade: types.GradeFair,
		MinScore: 50,
		MaxFindings: map[string]int{
			types.FindingSecretHits: 5,
		},
	}

	results, passed, err := Evaluate(run, reqs)
	require.NoError(t, err)
	assert.True(t, passed)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.Passed)
		assert.Empty(t, r.Reason)
	}
}

func TestEvaluateGradeBelowMinimum(t *testing.T) {
	run := gatedRun(t, 55, types.GradeFair)

	results, passed, err := Evaluate(run, Requirements{MinGrade: types.GradeGood, MinScore: -1})
	require.NoError(t, err)
	assert.False(t, passed)
	require.Len(t, results, 1)
	assert.Equal(t, CheckGrade, results[0].Check)
	assert.Equal(t, "grade fair is below required good", results[0].Reason)
}

func TestEvaluateGradeExactMinimumPasses(t *testing.T) {
	run := gatedRun(t, 55, types.GradeFair)

	_, passed, err := Evaluate(run, Requirements{MinGrade: types.GradeFair, MinScore: -1})
	require.NoError(t, err)
	assert.True(t, passed)
}

func TestEvaluateScoreBelowMinimum(t *testing.T) {
	run := gatedRun(t, 55, types.GradeFair)

	results, passed, err := Evaluate(run, Requirements{MinScore: 70})
	require.NoError(t, err)
	assert.False(t, passed)
	require.Len(t, results, 1)
	assert.Equal(t, CheckScore, results[0].Check)
	assert.Equal(t, "overall score 55.00 is below required 70.00", results[0].Reason)
}

func TestEvaluateFindingsOverCap(t *testing.T) {
	run := gatedRun(t, 55, types.GradeFair)

	reqs := Requirements{
		MinScore: -1,
		MaxFindings: map[string]int{
			types.FindingSecretHits:  0,
			types.FindingTodoMarkers: 10,
		},
	}

	results, passed, err := Evaluate(run, reqs)
	require.NoError(t, err)
	assert.False(t, passed)
	require.Len(t, results, 2)

	// Kinds are checked in sorted order: potential_secrets, todo_markers.
	assert.False(t, results[0].Passed)
	assert.Equal(t, "security reported 3 potential_secrets findings (max 0)", results[0].Reason)
	assert.True(t, results[1].Passed)
}

func TestEvaluateCollectsEveryFailure(t *testing.T) {
	run := gatedRun(t, 55, types.GradeFair)

	reqs := Requirements{
		MinGrade: types.GradeExcellent,
		MinScore: 90,
		MaxFindings: map[string]int{
			types.FindingSecretHits: 0,
		},
	}

	results, passed, err := Evaluate(run, reqs)
	require.NoError(t, err)
	assert.False(t, passed)
	require.Len(t, results, 3)

	reasons := Reasons(results)
	require.Len(t, reasons, 3)
	assert.Contains(t, reasons[0], "grade fair is below required excellent")
	assert.Contains(t, reasons[1], "overall score 55.00")
	assert.Contains(t, reasons[2], "potential_secrets")
}

func TestEvaluateNoRequirementsPasses(t *testing.T) {
	run := gatedRun(t, 5, types.GradePoor)

	results, passed, err := Evaluate(run, DefaultRequirements())
	require.NoError(t, err)
	assert.True(t, passed)
	assert.Empty(t, results)
}

func TestEvaluateValidation(t *testing.T) {
	_, _, err := Evaluate(nil, DefaultRequirements())
	assert.ErrorContains(t, err, "run is required")

	_, _, err = Evaluate(&types.EvaluationRun{ID: "run-x"}, DefaultRequirements())
	assert.ErrorContains(t, err, "not finalized")

	run := gatedRun(t, 55, types.GradeFair)
	_, _, err = Evaluate(run, Requirements{MinGrade: "stellar", MinScore: -1})
	assert.ErrorContains(t, err, `unknown minimum grade "stellar"`)
}
