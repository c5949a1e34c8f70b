package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/jury/internal/timeline"
	"github.com/steveyegge/jury/internal/types"
)

func finalizedRun(t *testing.T) *types.EvaluationRun {
	t.Helper()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	run := &types.EvaluationRun{
		ID:         "run-1",
		Repository: "/repos/demo",
		Git:        &types.GitInfo{Commit: "0123456789abcdef0123456789abcdef01234567", Branch: "main", Dirty: true},
		StartedAt:  now,
		Results: []*types.AgentResult{
			{AgentName: types.AgentSecurity, RawScore: 40, AdjustedScore: 40, Confidence: 0.95,
				Summary:  "3 potential secrets",
				Findings: []types.Finding{{Kind: types.FindingSecretHits, Count: 3, Detail: "aws_access_key"}}},
			{AgentName: types.AgentQuality, RawScore: 80, AdjustedScore: 65, Confidence: 0.8,
				Summary: "solid layout"},
			{AgentName: types.AgentDocumentation, RawScore: 70, AdjustedScore: 65, Confidence: 0.7,
				Summary: "docs thin on security guidance"},
		},
	}
	messages := []types.Message{
		{ID: "m1", Kind: types.MessageTaskAssignment, From: types.ParticipantManager, To: "documentation",
			Text: "assess /repos/demo for documentation depth", Sequence: 1, Timestamp: now},
		{ID: "m2", Kind: types.MessageBroadcast, From: types.ParticipantManager, To: types.ParticipantAll,
			Text: "consensus reached: overall score 56.67, grade fair (equal_weight)", Sequence: 2, Timestamp: now},
	}
	composite := &types.CompositeResult{
		OverallScore:      56.67,
		Grade:             types.GradeFair,
		CalculationMethod: types.MethodEqualWeight,
		WeightsUsed: map[types.AgentID]float64{
			types.AgentDocumentation: 33.33,
			types.AgentQuality:       33.33,
			types.AgentSecurity:      33.34,
		},
	}
	require.NoError(t, run.Finalize(messages, composite, now.Add(2*time.Second)))
	return run
}

func builtReport(t *testing.T) *Report {
	t.Helper()
	run := finalizedRun(t)
	tl, err := timeline.NewBuilder().Build(run)
	require.NoError(t, err)
	rep, err := Build(run, tl, "scores converged after one security adjustment")
	require.NoError(t, err)
	return rep
}

func TestBuildComposesSummary(t *testing.T) {
	rep := builtReport(t)

	assert.Equal(t, "run-1", rep.RunID)
	assert.Equal(t, "/repos/demo", rep.Repository)
	assert.Equal(t, 56.67, rep.Summary.OverallScore)
	assert.Equal(t, types.GradeFair, rep.Summary.Grade)
	assert.Equal(t, types.MethodEqualWeight, rep.Summary.CalculationMethod)
	assert.Equal(t, "scores converged after one security adjustment", rep.Summary.Notes)
	assert.Equal(t, map[types.AgentID]float64{
		types.AgentDocumentation: 65,
		types.AgentQuality:       65,
		types.AgentSecurity:      40,
	}, rep.Summary.IndividualScores)

	require.Len(t, rep.Agents, 3)
	assert.Equal(t, types.AgentDocumentation, rep.Agents[0].AgentName)
	assert.Equal(t, types.AgentQuality, rep.Agents[1].AgentName)
	assert.Equal(t, types.AgentSecurity, rep.Agents[2].AgentName)
	assert.Equal(t, 40.0, rep.Agents[2].Score)
	assert.Equal(t, 0.95, rep.Agents[2].Confidence)

	require.Len(t, rep.Conversation, 2)
	assert.Equal(t, types.ParticipantManager, rep.Conversation[0].From)
}

func TestBuildValidation(t *testing.T) {
	_, err := Build(nil, nil, "")
	assert.Error(t, err)

	unfinished := &types.EvaluationRun{ID: "run-x", Repository: "/repos/demo"}
	_, err = Build(unfinished, nil, "")
	assert.ErrorContains(t, err, "not finalized")
}

func TestJSONStableAcrossCalls(t *testing.T) {
	rep := builtReport(t)

	first, err := rep.JSON()
	require.NoError(t, err)
	second, err := rep.JSON()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(string(first), "{\n  \"run_id\": \"run-1\""))

	var parsed Report
	require.NoError(t, json.Unmarshal(first, &parsed))
	assert.Equal(t, rep.Summary, parsed.Summary)
	assert.Equal(t, rep.Agents, parsed.Agents)
}

func TestMarkdownSections(t *testing.T) {
	rep := builtReport(t)
	md := rep.Markdown()

	assert.Contains(t, md, "# Repository Evaluation: /repos/demo")
	assert.Contains(t, md, "- Commit: `0123456` on main (dirty)")
	assert.Contains(t, md, "## Verdict")
	assert.Contains(t, md, "**fair** with an overall score of **56.67** (equal_weight)")
	assert.Contains(t, md, "scores converged after one security adjustment")
	assert.Contains(t, md, "| security | 40.0 | 40.0 | 0.95 | 33.34 |")
	assert.Contains(t, md, "### security")
	assert.Contains(t, md, "- potential_secrets (3): aws_access_key")
	assert.Contains(t, md, "## Negotiation Timeline")
	assert.Contains(t, md, "### Initial positions (25%)")
	assert.Contains(t, md, "### Consensus (100%)")
	assert.Contains(t, md, "## Conversation Log")
	assert.Contains(t, md, "1. **manager** to **documentation**: assess /repos/demo for documentation depth")
}

func TestMarkdownWithoutTimeline(t *testing.T) {
	run := finalizedRun(t)
	rep, err := Build(run, nil, "")
	require.NoError(t, err)

	md := rep.Markdown()
	assert.NotContains(t, md, "## Negotiation Timeline")
	assert.Contains(t, md, "## Conversation Log")
}

func TestWriteDir(t *testing.T) {
	rep := builtReport(t)
	base := t.TempDir()

	dir, err := rep.WriteDir(base)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "run-1"), dir)

	jsonData, err := os.ReadFile(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	var parsed Report
	require.NoError(t, json.Unmarshal(jsonData, &parsed))
	assert.Equal(t, rep.RunID, parsed.RunID)
	assert.Equal(t, rep.Summary.OverallScore, parsed.Summary.OverallScore)

	mdData, err := os.ReadFile(filepath.Join(dir, "report.md"))
	require.NoError(t, err)
	assert.Equal(t, rep.Markdown(), string(mdData))

	// Only the two report files should remain; no temp leftovers.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"report.json", "report.md"}, names)
}

func TestWriteDirOverwrites(t *testing.T) {
	rep := builtReport(t)
	base := t.TempDir()

	_, err := rep.WriteDir(base)
	require.NoError(t, err)

	rep.Summary.Notes = "second pass"
	dir, err := rep.WriteDir(base)
	require.NoError(t, err)

	jsonData, err := os.ReadFile(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), "second pass")
}

func TestRenderTerminal(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	rep := builtReport(t)
	var buf bytes.Buffer
	rep.RenderTerminal(&buf)

	out := buf.String()
	assert.Contains(t, out, "=== Repository Evaluation ===")
	assert.Contains(t, out, "FAIR (56.67 overall, equal_weight)")
	assert.Contains(t, out, "security")
	assert.Contains(t, out, "0123456 on main (dirty)")
}

func TestRenderTimeline(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	rep := builtReport(t)
	var buf bytes.Buffer
	rep.RenderTimeline(&buf)

	out := buf.String()
	assert.Contains(t, out, "=== Negotiation Timeline ===")
	assert.Contains(t, out, "Initial positions (25%)")
	assert.Contains(t, out, "High Priority")

	var empty bytes.Buffer
	bare, err := Build(finalizedRun(t), nil, "")
	require.NoError(t, err)
	bare.RenderTimeline(&empty)
	assert.Contains(t, empty.String(), "No timeline recorded")
}

func TestRenderConversation(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	rep := builtReport(t)
	var buf bytes.Buffer
	rep.RenderConversation(&buf)

	out := buf.String()
	assert.Contains(t, out, "=== Conversation Log ===")
	assert.Contains(t, out, "1. manager to documentation: assess /repos/demo for documentation depth")
}
