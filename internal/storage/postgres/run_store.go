package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/volcanotrek/slotwatch/internal/crawl"
	"github.com/volcanotrek/slotwatch/internal/storage"
)

// RunStore persists the crawl-run audit trail.
//
// Schema:
//
//	CREATE TABLE crawl_runs (
//		id         TEXT PRIMARY KEY,
//		category   TEXT NOT NULL,
//		status     TEXT NOT NULL,
//		message    TEXT NOT NULL DEFAULT '',
//		started_at TIMESTAMPTZ NOT NULL
//	);
//
// Rows are never deleted.
type RunStore struct {
	pool pgPool
}

// NewRunStore wraps an existing pool.
func NewRunStore(pool pgPool) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RunStore{pool: pool}, nil
}

// Create inserts a freshly queued run.
func (s *RunStore) Create(ctx context.Context, run crawl.Run) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	query := `
INSERT INTO crawl_runs (id, category, status, message, started_at)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, query, run.ID, run.Category, run.Status, run.Message, run.StartedAt); err != nil {
		return fmt.Errorf("insert crawl run: %w", err)
	}
	return nil
}

// SetStatus mutates a run's status and summary message.
func (s *RunStore) SetStatus(ctx context.Context, id string, status crawl.RunStatus, message string) error {
	query := `UPDATE crawl_runs SET status = $2, message = $3 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, status, message)
	if err != nil {
		return fmt.Errorf("update crawl run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Latest returns the most recently started run for a category.
func (s *RunStore) Latest(ctx context.Context, category string) (crawl.Run, error) {
	query := `
SELECT id, category, status, message, started_at
FROM crawl_runs
WHERE category = $1
ORDER BY started_at DESC
LIMIT 1`
	var run crawl.Run
	err := s.pool.QueryRow(ctx, query, category).Scan(
		&run.ID,
		&run.Category,
		&run.Status,
		&run.Message,
		&run.StartedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return crawl.Run{}, storage.ErrNotFound
		}
		return crawl.Run{}, fmt.Errorf("get latest crawl run: %w", err)
	}
	return run, nil
}
