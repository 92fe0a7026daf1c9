package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/relaycrm/sync-api/internal/models"
)

type MappingRepository interface {
	// Upsert inserts or refreshes the mapping for (org_id, object_type,
	// remote_id). Non-null incoming local_id/local_key win; otherwise the
	// stored values are kept.
	Upsert(ctx context.Context, m models.ObjectMapping) (models.ObjectMapping, error)
	GetByRemoteID(ctx context.Context, orgID string, objectType models.ObjectType, remoteID string) (models.ObjectMapping, error)
	GetByLocalID(ctx context.Context, orgID string, objectType models.ObjectType, localID string) (models.ObjectMapping, error)
}

type mappingRepository struct {
	db *sql.DB
}

func NewMappingRepository(db *sql.DB) MappingRepository {
	return &mappingRepository{db: db}
}

func (r *mappingRepository) Upsert(ctx context.Context, m models.ObjectMapping) (models.ObjectMapping, error) {
	const query = `
		INSERT INTO object_mappings (org_id, object_type, local_id, remote_id, local_key, last_synced_at, last_seen_remote_modified_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), $6)
		ON CONFLICT (org_id, object_type, remote_id) DO UPDATE
		SET local_id                     = COALESCE(EXCLUDED.local_id, object_mappings.local_id),
		    local_key                    = COALESCE(EXCLUDED.local_key, object_mappings.local_key),
		    last_synced_at               = NOW(),
		    last_seen_remote_modified_at = COALESCE(EXCLUDED.last_seen_remote_modified_at, object_mappings.last_seen_remote_modified_at)
		RETURNING id, local_id, local_key, last_synced_at, last_seen_remote_modified_at
	`
	err := r.db.QueryRowContext(ctx, query,
		m.OrgID,
		m.ObjectType,
		m.LocalID,
		m.RemoteID,
		m.LocalKey,
		m.LastSeenRemoteModifiedAt,
	).Scan(&m.ID, &m.LocalID, &m.LocalKey, &m.LastSyncedAt, &m.LastSeenRemoteModifiedAt)
	if err != nil {
		return models.ObjectMapping{}, fmt.Errorf("failed to upsert %s mapping for remote %s: %w", m.ObjectType, m.RemoteID, err)
	}
	return m, nil
}

func (r *mappingRepository) GetByRemoteID(ctx context.Context, orgID string, objectType models.ObjectType, remoteID string) (models.ObjectMapping, error) {
	const query = `
		SELECT id, org_id, object_type, local_id, remote_id, local_key, last_synced_at, last_seen_remote_modified_at
		FROM object_mappings
		WHERE org_id = $1 AND object_type = $2 AND remote_id = $3
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, orgID, objectType, remoteID))
}

func (r *mappingRepository) GetByLocalID(ctx context.Context, orgID string, objectType models.ObjectType, localID string) (models.ObjectMapping, error) {
	const query = `
		SELECT id, org_id, object_type, local_id, remote_id, local_key, last_synced_at, last_seen_remote_modified_at
		FROM object_mappings
		WHERE org_id = $1 AND object_type = $2 AND local_id = $3
		ORDER BY last_synced_at DESC
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, orgID, objectType, localID))
}

func (r *mappingRepository) scanOne(row *sql.Row) (models.ObjectMapping, error) {
	var (
		m        models.ObjectMapping
		localID  sql.NullString
		localKey sql.NullString
		lastSeen sql.NullTime
	)
	err := row.Scan(
		&m.ID,
		&m.OrgID,
		&m.ObjectType,
		&localID,
		&m.RemoteID,
		&localKey,
		&m.LastSyncedAt,
		&lastSeen,
	)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	if localID.Valid {
		m.LocalID = &localID.String
	}
	if localKey.Valid {
		m.LocalKey = &localKey.String
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		m.LastSeenRemoteModifiedAt = &t
	}
	return m, nil
}
