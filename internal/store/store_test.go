package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/steveyegge/jury/internal/types"
)

// testRun builds a finalized run with the given identity and score.
func testRun(t *testing.T, id string, startedAt time.Time, score float64) *types.EvaluationRun {
	t.Helper()

	run := &types.EvaluationRun{
		ID:         id,
		Repository: "/repos/demo",
		StartedAt:  startedAt,
		Results: []*types.AgentResult{
			{AgentName: types.AgentSecurity, RawScore: score, AdjustedScore: score, Confidence: 0.9,
				Summary:  "scan finished",
				Findings: []types.Finding{{Kind: types.FindingSecretHits, Count: 0, Detail: "no hits"}}},
		},
	}
	messages := []types.Message{
		{ID: id + "-m1", Kind: types.MessageTaskAssignment, From: types.ParticipantManager, To: "security",
			Text: "assess /repos/demo for secret and credential exposure", Sequence: 1, Timestamp: startedAt},
		{ID: id + "-m2", Kind: types.MessageBroadcast, From: types.ParticipantManager, To: types.ParticipantAll,
			Text: "consensus reached", Sequence: 2, Timestamp: startedAt},
	}
	composite := &types.CompositeResult{
		OverallScore:      score,
		Grade:             types.GradeGood,
		CalculationMethod: types.MethodEqualWeight,
		WeightsUsed:       map[types.AgentID]float64{types.AgentSecurity: 100},
	}
	require.NoError(t, run.Finalize(messages, composite, startedAt.Add(time.Second)))
	return run
}
