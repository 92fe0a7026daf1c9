package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// LockRepository is the advisory mutual-exclusion primitive serializing
// worker passes. The lock is a row with a compare-and-swap on held_by and
// expires_at; an expired holder can be displaced, so a crashed pass never
// wedges the queue.
type LockRepository interface {
	TryAcquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, holder string) error
}

type lockRepository struct {
	db *sql.DB
}

func NewLockRepository(db *sql.DB) LockRepository {
	return &lockRepository{db: db}
}

func (r *lockRepository) TryAcquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	const query = `
		INSERT INTO worker_locks (name, held_by, expires_at)
		VALUES ($1, $2, NOW() + $3 * INTERVAL '1 second')
		ON CONFLICT (name) DO UPDATE
		SET held_by = EXCLUDED.held_by, expires_at = EXCLUDED.expires_at
		WHERE worker_locks.expires_at < NOW()
		RETURNING name
	`
	var got string
	err := r.db.QueryRowContext(ctx, query, name, holder, ttl.Seconds()).Scan(&got)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	return true, nil
}

func (r *lockRepository) Release(ctx context.Context, name, holder string) error {
	const query = `
		DELETE FROM worker_locks
		WHERE name = $1 AND held_by = $2
	`
	if _, err := r.db.ExecContext(ctx, query, name, holder); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", name, err)
	}
	return nil
}
