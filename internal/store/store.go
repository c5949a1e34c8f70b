// Package store persists finalized evaluation runs behind a
// backend-neutral interface. Two backends exist: sqlite (default, a
// single local file) and postgres (a shared index). Both keep the full
// run record as JSON alongside indexed columns for listing; neither is
// required to evaluate, the store is an optional collaborator.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/steveyegge/jury/internal/types"
)

// ErrRunNotFound is returned when a requested run does not exist.
var ErrRunNotFound = errors.New("store: run not found")

// RunSummary is the listing view of a stored run.
type RunSummary struct {
	ID           string      `json:"id"`
	Repository   string      `json:"repository"`
	OverallScore float64     `json:"overall_score"`
	Grade        types.Grade `json:"grade"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Store is the run index. SaveRun is an upsert; GetRun and DeleteRun
// return ErrRunNotFound for unknown IDs.
type Store interface {
	SaveRun(ctx context.Context, run *types.EvaluationRun) error
	GetRun(ctx context.Context, id string) (*types.EvaluationRun, error)
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
	DeleteRun(ctx context.Context, id string) error
	Close() error
}

const defaultListLimit = 50

func encodeRun(run *types.EvaluationRun) ([]byte, error) {
	if run == nil {
		return nil, fmt.Errorf("store: run is required")
	}
	if !run.Finalized() {
		return nil, fmt.Errorf("store: run %s is not finalized", run.ID)
	}
	data, err := json.Marshal(run)
	if err != nil {
		return nil, fmt.Errorf("store: marshal run: %w", err)
	}
	return data, nil
}

func decodeRun(data []byte) (*types.EvaluationRun, error) {
	var run types.EvaluationRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("store: unmarshal run: %w", err)
	}
	return &run, nil
}
