package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
)

const summarySchema = `
	CREATE TABLE IF NOT EXISTS sync_runs (
		run_id          TEXT PRIMARY KEY,
		job             TEXT NOT NULL,
		root_process_id TEXT NOT NULL,
		status          TEXT NOT NULL,
		tree_source     TEXT,
		tree_size       INTEGER NOT NULL DEFAULT 0,
		created         INTEGER NOT NULL DEFAULT 0,
		reused          INTEGER NOT NULL DEFAULT 0,
		skipped         INTEGER NOT NULL DEFAULT 0,
		failed          INTEGER NOT NULL DEFAULT 0,
		archived        INTEGER NOT NULL DEFAULT 0,
		error           TEXT,
		started_at      TIMESTAMPTZ NOT NULL,
		finished_at     TIMESTAMPTZ
	)
`

// SummaryRepository handles PostgreSQL operations for run summaries
type SummaryRepository struct {
	db *sql.DB
}

// NewSummaryRepository creates a new SummaryRepository
func NewSummaryRepository(db *sql.DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// EnsureSchema creates the sync_runs table when it does not exist
func (r *SummaryRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, summarySchema); err != nil {
		return fmt.Errorf("failed to create sync_runs table: %w", err)
	}
	return nil
}

// Save creates or updates a run summary
// Uses ON CONFLICT to upsert based on run_id
func (r *SummaryRepository) Save(ctx context.Context, s *domain.RunSummary) error {
	query := `
		INSERT INTO sync_runs (
			run_id, job, root_process_id, status, tree_source, tree_size,
			created, reused, skipped, failed, archived, error, started_at, finished_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status,
			tree_source = EXCLUDED.tree_source,
			tree_size = EXCLUDED.tree_size,
			created = EXCLUDED.created,
			reused = EXCLUDED.reused,
			skipped = EXCLUDED.skipped,
			failed = EXCLUDED.failed,
			archived = EXCLUDED.archived,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at
	`

	// Handle nullable fields
	treeSource := sql.NullString{String: s.TreeSource, Valid: s.TreeSource != ""}
	errText := sql.NullString{String: s.Error, Valid: s.Error != ""}
	var finishedAt sql.NullTime
	if s.FinishedAt != nil {
		finishedAt = sql.NullTime{Time: *s.FinishedAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		s.RunID,
		s.Job,
		s.RootProcessID,
		s.Status,
		treeSource,
		s.TreeSize,
		s.Created,
		s.Reused,
		s.Skipped,
		s.Failed,
		s.Archived,
		errText,
		s.StartedAt,
		finishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run summary: %w", err)
	}
	return nil
}

const summaryColumns = `run_id, job, root_process_id, status, tree_source, tree_size,
		       created, reused, skipped, failed, archived, error, started_at, finished_at`

// Get retrieves a summary by run ID
func (r *SummaryRepository) Get(ctx context.Context, runID string) (*domain.RunSummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM sync_runs WHERE run_id = $1`

	s, err := scanSummary(r.db.QueryRowContext(ctx, query, runID))
	if err == sql.ErrNoRows {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run summary: %w", err)
	}
	return s, nil
}

// ListByJob returns the most recent summaries of a job, newest first
func (r *SummaryRepository) ListByJob(ctx context.Context, job string, limit int) ([]*domain.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + summaryColumns + ` FROM sync_runs WHERE job = $1 ORDER BY started_at DESC LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, job, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list run summaries: %w", err)
	}
	defer rows.Close()

	var out []*domain.RunSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list run summaries: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (*domain.RunSummary, error) {
	var s domain.RunSummary
	var treeSource, errText sql.NullString
	var finishedAt sql.NullTime

	err := row.Scan(
		&s.RunID,
		&s.Job,
		&s.RootProcessID,
		&s.Status,
		&treeSource,
		&s.TreeSize,
		&s.Created,
		&s.Reused,
		&s.Skipped,
		&s.Failed,
		&s.Archived,
		&errText,
		&s.StartedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	s.TreeSource = treeSource.String
	s.Error = errText.String
	if finishedAt.Valid {
		t := finishedAt.Time
		s.FinishedAt = &t
	}
	return &s, nil
}
