package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"chess-coach-backend/internal/models"
)

// JobRepository persists analysis jobs. Status transitions are guarded in
// SQL so a terminal job can never move again, whatever the caller does.
type JobRepository struct {
	db *sqlx.DB
}

func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a pending job.
func (r *JobRepository) Create(ctx context.Context, job *models.AnalysisJob) error {
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	job.Status = models.JobPending
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO analysis_jobs (id, user_id, status, total_games, games_completed, depth, created_at, updated_at)
		VALUES (:id, :user_id, :status, :total_games, :games_completed, :depth, :created_at, :updated_at)`, job)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// Get fetches one job.
func (r *JobRepository) Get(ctx context.Context, id string) (*models.AnalysisJob, error) {
	var job models.AnalysisJob
	err := r.db.GetContext(ctx, &job, `SELECT * FROM analysis_jobs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return &job, nil
}

// MarkProcessing moves a pending job to processing.
func (r *JobRepository) MarkProcessing(ctx context.Context, id string) error {
	return r.transition(ctx, id,
		`UPDATE analysis_jobs SET status = 'processing', updated_at = ?
		 WHERE id = ? AND status = 'pending'`)
}

// IncrementCompleted bumps games_completed by one, capped at total_games.
func (r *JobRepository) IncrementCompleted(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE analysis_jobs
		SET games_completed = MIN(games_completed + 1, total_games), updated_at = ?
		WHERE id = ? AND status = 'processing'`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("increment job %s: %w", id, err)
	}
	return nil
}

// MarkCompleted finishes a processing job.
func (r *JobRepository) MarkCompleted(ctx context.Context, id string) error {
	return r.transition(ctx, id,
		`UPDATE analysis_jobs SET status = 'completed', updated_at = ?
		 WHERE id = ? AND status = 'processing'`)
}

// MarkFailed records a fatal error. The message is truncated to 500 bytes
// before it reaches the row.
func (r *JobRepository) MarkFailed(ctx context.Context, id string, message string) error {
	if len(message) > 500 {
		message = message[:500]
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE analysis_jobs SET status = 'failed', error = ?, updated_at = ?
		WHERE id = ? AND status IN ('pending', 'processing')`,
		message, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("fail job %s: %w", id, err)
	}
	return nil
}

// SweepStale fails processing jobs whose last update is older than the
// deadline. The janitor runs this for jobs abandoned by cancelled callers.
func (r *JobRepository) SweepStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := r.db.ExecContext(ctx, `
		UPDATE analysis_jobs SET status = 'failed', error = 'abandoned: no progress', updated_at = ?
		WHERE status = 'processing' AND updated_at < ?`, time.Now().UTC(), cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// NextPending claims the oldest pending job, or ErrNotFound.
func (r *JobRepository) NextPending(ctx context.Context) (*models.AnalysisJob, error) {
	var job models.AnalysisJob
	err := r.db.GetContext(ctx, &job,
		`SELECT * FROM analysis_jobs WHERE status = 'pending' ORDER BY created_at ASC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("next pending job: %w", err)
	}
	return &job, nil
}

func (r *JobRepository) transition(ctx context.Context, id, query string) error {
	_, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("job %s transition: %w", id, err)
	}
	return nil
}
