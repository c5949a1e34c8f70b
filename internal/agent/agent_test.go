package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/jury/internal/bus"
	"github.com/steveyegge/jury/internal/snapshot"
	"github.com/steveyegge/jury/internal/types"
)

func stubAnalyzer(raw, confidence float64, findings ...types.Finding) Analyzer {
	return AnalyzerFunc(func(ctx context.Context, snap *snapshot.Snapshot) (*Analysis, error) {
		return &Analysis{
			RawScore:   raw,
			Confidence: confidence,
			Summary:    fmt.Sprintf("stub analysis scored %.1f", raw),
			Findings:   findings,
		}, nil
	})
}

func failingAnalyzer(err error) Analyzer {
	return AnalyzerFunc(func(ctx context.Context, snap *snapshot.Snapshot) (*Analysis, error) {
		return nil, err
	})
}

func TestNewValidation(t *testing.T) {
	_, err := New("", stubAnalyzer(50, 0.5), nil)
	assert.Error(t, err)

	_, err = New(types.AgentSecurity, nil, nil)
	assert.Error(t, err)

	ag, err := New(types.AgentSecurity, stubAnalyzer(50, 0.5), nil)
	require.NoError(t, err)
	assert.Equal(t, types.AgentSecurity, ag.ID())
	assert.Nil(t, ag.Result())
}

func TestAnalyzeRecordsResult(t *testing.T) {
	findings := []types.Finding{
		{Kind: types.FindingSecretHits, Count: 3, Detail: "3 potential secret hits"},
	}
	ag, err := New(types.AgentSecurity, stubAnalyzer(85, 0.9, findings...), nil)
	require.NoError(t, err)

	result, err := ag.Analyze(context.Background(), &snapshot.Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, types.AgentSecurity, result.AgentName)
	assert.Equal(t, 85.0, result.RawScore)
	assert.Equal(t, 85.0, result.AdjustedScore)
	assert.Equal(t, 0.9, result.Confidence)
	assert.Len(t, result.Findings, 1)
	assert.Same(t, result, ag.Result())
}

func TestAnalyzeWrapsFailures(t *testing.T) {
	boom := errors.New("walk failed")
	ag, err := New(types.AgentQuality, failingAnalyzer(boom), nil)
	require.NoError(t, err)

	_, err = ag.Analyze(context.Background(), &snapshot.Snapshot{})
	require.Error(t, err)

	var analysisErr *types.AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, types.AgentQuality, analysisErr.Agent)
	assert.ErrorIs(t, err, boom)
}

func TestAnalyzeRejectsInvalidAnalysis(t *testing.T) {
	bad := AnalyzerFunc(func(ctx context.Context, snap *snapshot.Snapshot) (*Analysis, error) {
		return &Analysis{RawScore: 150, Confidence: 0.5}, nil
	})
	ag, err := New(types.AgentQuality, bad, nil)
	require.NoError(t, err)

	_, err = ag.Analyze(context.Background(), &snapshot.Snapshot{})
	var analysisErr *types.AnalysisError
	require.ErrorAs(t, err, &analysisErr)

	empty := AnalyzerFunc(func(ctx context.Context, snap *snapshot.Snapshot) (*Analysis, error) {
		return nil, nil
	})
	ag2, err := New(types.AgentQuality, empty, nil)
	require.NoError(t, err)
	_, err = ag2.Analyze(context.Background(), &snapshot.Snapshot{})
	require.ErrorAs(t, err, &analysisErr)
}

func secretNotification(t *testing.T, log *bus.Bus, hits int, to types.AgentID) types.Message {
	t.Helper()
	findings := []types.Finding{
		{Kind: types.FindingSecretHits, Count: hits, Detail: fmt.Sprintf("%d potential secret hits", hits)},
	}
	return log.PostFindings(types.AgentSecurity, to, "security findings attached", findings)
}

func TestReceiveAppliesRuleOnce(t *testing.T) {
	policy, err := DefaultPolicy(nil)
	require.NoError(t, err)

	ag, err := New(types.AgentQuality, stubAnalyzer(90, 0.8), policy.RulesFor(types.AgentQuality))
	require.NoError(t, err)
	_, err = ag.Analyze(context.Background(), &snapshot.Snapshot{})
	require.NoError(t, err)

	log := bus.New()
	msg := secretNotification(t, log, 3, types.AgentQuality)

	outcome, err := ag.Receive(log, msg)
	require.NoError(t, err)
	assert.True(t, outcome.Applied)
	assert.Equal(t, -15.0, outcome.Delta)
	assert.Equal(t, 75.0, ag.Result().AdjustedScore)
	assert.Equal(t, 90.0, ag.Result().RawScore)
	assert.Contains(t, ag.Result().Summary, "adjusted -15.0 after security input")

	// Redelivering the same message must not apply a second delta.
	outcome, err = ag.Receive(log, msg)
	require.NoError(t, err)
	assert.True(t, outcome.Skipped())
	assert.Equal(t, 75.0, ag.Result().AdjustedScore)

	// A fresh message from the same sender is also guarded.
	msg2 := secretNotification(t, log, 5, types.AgentQuality)
	outcome, err = ag.Receive(log, msg2)
	require.NoError(t, err)
	assert.True(t, outcome.Skipped())
	assert.Equal(t, 75.0, ag.Result().AdjustedScore)

	// One adjustment response made it onto the bus.
	var adjustments int
	for _, m := range log.Log() {
		if m.Kind == types.MessageAdjustment {
			adjustments++
			assert.Equal(t, types.AgentQuality.Participant(), m.From)
			assert.Equal(t, types.AgentSecurity.Participant(), m.To)
			assert.Equal(t, -15.0, m.Delta)
		}
	}
	assert.Equal(t, 1, adjustments)
}

func TestReceiveZeroDeltaAcks(t *testing.T) {
	policy, err := DefaultPolicy(nil)
	require.NoError(t, err)

	ag, err := New(types.AgentQuality, stubAnalyzer(90, 0.8), policy.RulesFor(types.AgentQuality))
	require.NoError(t, err)
	_, err = ag.Analyze(context.Background(), &snapshot.Snapshot{})
	require.NoError(t, err)

	log := bus.New()
	msg := secretNotification(t, log, 0, types.AgentQuality)

	outcome, err := ag.Receive(log, msg)
	require.NoError(t, err)
	assert.False(t, outcome.Applied)
	assert.False(t, outcome.Skipped())
	assert.Equal(t, 90.0, ag.Result().AdjustedScore)

	msgs := log.Log()
	last := msgs[len(msgs)-1]
	assert.Equal(t, types.MessageAck, last.Kind)
	assert.Equal(t, types.AgentQuality.Participant(), last.From)
	assert.Equal(t, types.AgentSecurity.Participant(), last.To)
}

func TestReceiveClampsAtZero(t *testing.T) {
	policy, err := DefaultPolicy(nil)
	require.NoError(t, err)

	ag, err := New(types.AgentQuality, stubAnalyzer(10, 0.8), policy.RulesFor(types.AgentQuality))
	require.NoError(t, err)
	_, err = ag.Analyze(context.Background(), &snapshot.Snapshot{})
	require.NoError(t, err)

	log := bus.New()
	outcome, err := ag.Receive(log, secretNotification(t, log, 12, types.AgentQuality))
	require.NoError(t, err)
	assert.Equal(t, -25.0, outcome.Delta)
	assert.Equal(t, 0.0, ag.Result().AdjustedScore)
}

func TestReceiveErrors(t *testing.T) {
	policy, err := DefaultPolicy(nil)
	require.NoError(t, err)
	rules := policy.RulesFor(types.AgentQuality)

	t.Run("before analysis", func(t *testing.T) {
		ag, err := New(types.AgentQuality, stubAnalyzer(90, 0.8), rules)
		require.NoError(t, err)

		log := bus.New()
		_, err = ag.Receive(log, secretNotification(t, log, 3, types.AgentQuality))
		assert.Error(t, err)
	})

	t.Run("unknown sender", func(t *testing.T) {
		ag, err := New(types.AgentQuality, stubAnalyzer(90, 0.8), rules)
		require.NoError(t, err)
		_, err = ag.Analyze(context.Background(), &snapshot.Snapshot{})
		require.NoError(t, err)

		log := bus.New()
		msg := log.PostFindings(types.AgentDocumentation, types.AgentQuality, "unexpected", nil)
		_, err = ag.Receive(log, msg)
		require.Error(t, err)

		var conflict *types.AdjustmentConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, types.AgentDocumentation, conflict.Source)
		assert.Equal(t, types.AgentQuality, conflict.Target)
	})

	t.Run("misaddressed message", func(t *testing.T) {
		ag, err := New(types.AgentQuality, stubAnalyzer(90, 0.8), rules)
		require.NoError(t, err)
		_, err = ag.Analyze(context.Background(), &snapshot.Snapshot{})
		require.NoError(t, err)

		log := bus.New()
		msg := secretNotification(t, log, 3, types.AgentDocumentation)
		_, err = ag.Receive(log, msg)

		var conflict *types.AdjustmentConflictError
		require.ErrorAs(t, err, &conflict)
	})
}

func TestReceiveConflictDoesNotConsumeSender(t *testing.T) {
	// A conflicting message must not burn the sender's one allowed
	// adjustment: a later well-formed message from the same sender
	// still applies.
	policy, err := DefaultPolicy(nil)
	require.NoError(t, err)

	ag, err := New(types.AgentQuality, stubAnalyzer(70, 0.6), policy.RulesFor(types.AgentQuality))
	require.NoError(t, err)
	_, err = ag.Analyze(context.Background(), &snapshot.Snapshot{})
	require.NoError(t, err)

	log := bus.New()
	misaddressed := secretNotification(t, log, 2, types.AgentDocumentation)
	_, err = ag.Receive(log, misaddressed)
	var conflict *types.AdjustmentConflictError
	require.ErrorAs(t, err, &conflict)

	good := secretNotification(t, log, 2, types.AgentQuality)
	outcome, err := ag.Receive(log, good)
	require.NoError(t, err)
	assert.True(t, outcome.Applied)
	assert.Equal(t, 60.0, ag.Result().AdjustedScore)
}
