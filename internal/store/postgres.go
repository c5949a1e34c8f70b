package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/steveyegge/jury/internal/types"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    repository TEXT NOT NULL,
    overall_score DOUBLE PRECISION NOT NULL,
    grade TEXT NOT NULL,
    record JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_repository ON runs(repository);
`

// PostgresStore is the shared run index, for teams indexing runs from
// many machines into one database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgres connects to the database named by dsn and ensures the
// runs table exists.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: initialize schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// SaveRun upserts the finalized run record.
func (s *PostgresStore) SaveRun(ctx context.Context, run *types.EvaluationRun) error {
	record, err := encodeRun(run)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO runs (id, repository, overall_score, grade, record, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			repository = EXCLUDED.repository,
			overall_score = EXCLUDED.overall_score,
			grade = EXCLUDED.grade,
			record = EXCLUDED.record,
			created_at = EXCLUDED.created_at`,
		run.ID, run.Repository, run.Composite.OverallScore, string(run.Composite.Grade),
		string(record), run.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("store: save run: %w", err)
	}
	return nil
}

// GetRun retrieves the full run record by ID.
func (s *PostgresStore) GetRun(ctx context.Context, id string) (*types.EvaluationRun, error) {
	var record []byte
	err := s.pool.QueryRow(ctx, `SELECT record FROM runs WHERE id = $1`, id).Scan(&record)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("store: get run: %w", err)
	}
	return decodeRun(record)
}

// ListRuns returns run summaries, newest first. A non-positive limit
// uses the default.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, repository, overall_score, grade, created_at
		FROM runs
		ORDER BY created_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.ID, &s.Repository, &s.OverallScore, &s.Grade, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// DeleteRun removes a run from the index.
func (s *PostgresStore) DeleteRun(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

// Close shuts down the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
