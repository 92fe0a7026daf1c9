package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/relaycrm/sync-api/internal/models"
)

const (
	DefaultMaxAttempts = 5
	MaxBatchSize       = 50
)

type JobRepository interface {
	Enqueue(ctx context.Context, job models.SyncJob) (models.SyncJob, error)
	// DequeueEligible returns up to limit pending jobs whose run_after has
	// passed and whose attempts are not exhausted, higher priority and older
	// jobs first. It marks nothing; callers reschedule or complete each job.
	DequeueEligible(ctx context.Context, limit int, orgID string) ([]models.SyncJob, error)
	// Reschedule pushes a failed job forward in place. When the incremented
	// attempt count reaches max_attempts the row goes terminal instead.
	Reschedule(ctx context.Context, jobID string, runAfter time.Time, cause string) error
	MarkSucceeded(ctx context.Context, jobID string) error
	QueueStats(ctx context.Context) ([]models.QueueStat, error)
}

type jobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Enqueue(ctx context.Context, job models.SyncJob) (models.SyncJob, error) {
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = DefaultMaxAttempts
	}
	if job.RunAfter.IsZero() {
		job.RunAfter = time.Now()
	}
	job.Status = models.JobStatusPending

	const query = `
		INSERT INTO sync_jobs (org_id, job_type, priority, max_attempts, run_after, payload, dedupe_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (org_id, dedupe_key) WHERE status = 'pending' DO NOTHING
		RETURNING id, attempts, status, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		job.OrgID,
		job.JobType,
		job.Priority,
		job.MaxAttempts,
		job.RunAfter,
		job.Payload,
		job.DedupeKey,
	).Scan(&job.ID, &job.Attempts, &job.Status, &job.CreatedAt, &job.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.SyncJob{}, ErrDuplicateJob
	}
	if err != nil {
		return models.SyncJob{}, fmt.Errorf("failed to enqueue %s job for org %s: %w", job.JobType, job.OrgID, err)
	}
	return job, nil
}

func (r *jobRepository) DequeueEligible(ctx context.Context, limit int, orgID string) ([]models.SyncJob, error) {
	if limit <= 0 {
		limit = 1
	}
	if limit > MaxBatchSize {
		limit = MaxBatchSize
	}

	query := `
		SELECT id, org_id, job_type, priority, attempts, max_attempts, run_after, payload, dedupe_key, status, last_error, created_at, updated_at
		FROM sync_jobs
		WHERE status = 'pending'
		  AND attempts < max_attempts
		  AND run_after <= NOW()
	`
	args := []interface{}{limit}
	if orgID != "" {
		query += " AND org_id = $2"
		args = append(args, orgID)
	}
	query += `
		ORDER BY priority DESC, created_at ASC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]models.SyncJob, 0, limit)
	for rows.Next() {
		var job models.SyncJob
		var dedupeKey, lastError sql.NullString
		if err := rows.Scan(
			&job.ID,
			&job.OrgID,
			&job.JobType,
			&job.Priority,
			&job.Attempts,
			&job.MaxAttempts,
			&job.RunAfter,
			&job.Payload,
			&dedupeKey,
			&job.Status,
			&lastError,
			&job.CreatedAt,
			&job.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if dedupeKey.Valid {
			job.DedupeKey = &dedupeKey.String
		}
		if lastError.Valid {
			job.LastError = &lastError.String
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRepository) Reschedule(ctx context.Context, jobID string, runAfter time.Time, cause string) error {
	const query = `
		UPDATE sync_jobs
		SET attempts   = attempts + 1,
		    run_after  = $2,
		    last_error = NULLIF($3, ''),
		    status     = CASE WHEN attempts + 1 >= max_attempts THEN 'failed' ELSE 'pending' END,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	res, err := r.db.ExecContext(ctx, query, jobID, runAfter, cause)
	if err != nil {
		return fmt.Errorf("failed to reschedule job %s: %w", jobID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *jobRepository) MarkSucceeded(ctx context.Context, jobID string) error {
	const query = `
		UPDATE sync_jobs
		SET status = 'succeeded', last_error = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	res, err := r.db.ExecContext(ctx, query, jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job %s succeeded: %w", jobID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *jobRepository) QueueStats(ctx context.Context) ([]models.QueueStat, error) {
	const query = `
		SELECT status, job_type, COUNT(*)
		FROM sync_jobs
		GROUP BY status, job_type
		ORDER BY status, job_type
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.QueueStat
	for rows.Next() {
		var s models.QueueStat
		if err := rows.Scan(&s.Status, &s.JobType, &s.Count); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stats, nil
}
