package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CursorRepository tracks per-form ingestion progress and the set of
// partner submission ids already turned into local records.
type CursorRepository interface {
	// GetCursor returns the zero time when no cursor exists yet.
	GetCursor(ctx context.Context, orgID, formID string) (time.Time, error)
	SetCursor(ctx context.Context, orgID, formID string, at time.Time) error
	SubmissionSeen(ctx context.Context, orgID, submissionID string) (bool, error)
	RecordSubmission(ctx context.Context, orgID, formID, submissionID, localID string) error
}

type cursorRepository struct {
	db *sql.DB
}

func NewCursorRepository(db *sql.DB) CursorRepository {
	return &cursorRepository{db: db}
}

func (r *cursorRepository) GetCursor(ctx context.Context, orgID, formID string) (time.Time, error) {
	const query = `
		SELECT submitted_after
		FROM form_cursors
		WHERE org_id = $1 AND form_id = $2
	`
	var at time.Time
	err := r.db.QueryRowContext(ctx, query, orgID, formID).Scan(&at)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return at, nil
}

func (r *cursorRepository) SetCursor(ctx context.Context, orgID, formID string, at time.Time) error {
	const query = `
		INSERT INTO form_cursors (org_id, form_id, submitted_after, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (org_id, form_id) DO UPDATE
		SET submitted_after = GREATEST(form_cursors.submitted_after, EXCLUDED.submitted_after),
		    updated_at      = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, orgID, formID, at); err != nil {
		return fmt.Errorf("failed to advance cursor for form %s: %w", formID, err)
	}
	return nil
}

func (r *cursorRepository) SubmissionSeen(ctx context.Context, orgID, submissionID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM form_submissions_seen
			WHERE org_id = $1 AND submission_id = $2
		)
	`
	var seen bool
	if err := r.db.QueryRowContext(ctx, query, orgID, submissionID).Scan(&seen); err != nil {
		return false, err
	}
	return seen, nil
}

func (r *cursorRepository) RecordSubmission(ctx context.Context, orgID, formID, submissionID, localID string) error {
	const query = `
		INSERT INTO form_submissions_seen (org_id, form_id, submission_id, local_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (org_id, submission_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, orgID, formID, submissionID, localID); err != nil {
		return fmt.Errorf("failed to record submission %s: %w", submissionID, err)
	}
	return nil
}
