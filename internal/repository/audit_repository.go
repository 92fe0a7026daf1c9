package repository

import (
	"context"
	"database/sql"

	"github.com/relaycrm/sync-api/internal/models"
)

type AuditRepository interface {
	Append(ctx context.Context, entry models.AuditEntry) error
	ListRecent(ctx context.Context, orgID string, limit int) ([]models.AuditEntry, error)
}

type auditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(ctx context.Context, entry models.AuditEntry) error {
	const query = `
		INSERT INTO sync_audit_log (org_id, direction, object_type, entity_id, status, error)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.OrgID,
		entry.Direction,
		entry.ObjectType,
		entry.EntityID,
		entry.Status,
		entry.Error,
	)
	return err
}

func (r *auditRepository) ListRecent(ctx context.Context, orgID string, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	const query = `
		SELECT id, org_id, direction, object_type, entity_id, status, error, created_at
		FROM sync_audit_log
		WHERE org_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var errMsg sql.NullString
		if err := rows.Scan(&e.ID, &e.OrgID, &e.Direction, &e.ObjectType, &e.EntityID, &e.Status, &errMsg, &e.CreatedAt); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			e.Error = &errMsg.String
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
