// Package narrator produces the notes line of the composite summary.
// The template narrator is deterministic and always available; the AI
// narrator rewrites the notes from the run facts and falls back to the
// template on any failure. Narration happens strictly after scoring,
// so it can never move a score.
package narrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/steveyegge/jury/internal/types"
)

// Narrator produces the notes for a finalized run.
type Narrator interface {
	Notes(ctx context.Context, run *types.EvaluationRun) (string, error)
}

// TemplateNarrator builds a deterministic sentence from the grade, the
// adjustments applied during negotiation, and the confidence spread.
type TemplateNarrator struct{}

// Notes implements Narrator.
func (TemplateNarrator) Notes(_ context.Context, run *types.EvaluationRun) (string, error) {
	if run == nil {
		return "", fmt.Errorf("run is required")
	}
	if !run.Finalized() {
		return "", fmt.Errorf("run %s is not finalized", run.ID)
	}

	adjustments := 0
	failures := 0
	for _, m := range run.Messages {
		switch m.Kind {
		case types.MessageAdjustment:
			adjustments++
		case types.MessageFailure:
			failures++
		}
	}

	parts := []string{fmt.Sprintf("%d agents settled on %.2f (%s)",
		len(run.Results), run.Composite.OverallScore, run.Composite.Grade)}

	switch adjustments {
	case 0:
		parts = append(parts, "no adjustments were needed")
	case 1:
		parts = append(parts, "one adjustment was applied during negotiation")
	default:
		parts = append(parts, fmt.Sprintf("%d adjustments were applied during negotiation", adjustments))
	}

	if failures == 1 {
		parts = append(parts, "one analysis failed and scored zero")
	} else if failures > 1 {
		parts = append(parts, fmt.Sprintf("%d analyses failed and scored zero", failures))
	}

	if lo, hi, ok := confidenceBounds(run.Results); ok {
		parts = append(parts, fmt.Sprintf("confidence spanned %.2f to %.2f", lo, hi))
	}

	return strings.Join(parts, "; ") + ".", nil
}

// confidenceBounds returns the lowest and highest reported confidence.
// ok is false when there are no results to inspect.
func confidenceBounds(results []*types.AgentResult) (lo, hi float64, ok bool) {
	for _, r := range results {
		if !ok {
			lo, hi, ok = r.Confidence, r.Confidence, true
			continue
		}
		if r.Confidence < lo {
			lo = r.Confidence
		}
		if r.Confidence > hi {
			hi = r.Confidence
		}
	}
	return lo, hi, ok
}
