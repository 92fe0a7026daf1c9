package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/relaycrm/sync-api/internal/models"
)

type CredentialRepository interface {
	GetCredential(ctx context.Context, orgID string) (models.OrgCredential, error)
	// UpdateTokens persists a refreshed grant. An empty refreshToken keeps
	// the stored one; the partner does not always rotate it.
	UpdateTokens(ctx context.Context, orgID, accessToken, refreshToken string, expiresAt time.Time) error
	GetIntegration(ctx context.Context, orgID string) (models.Integration, error)
	MarkDisconnected(ctx context.Context, orgID, reason string) error
	ListMembers(ctx context.Context, orgID string) ([]models.OrgMember, error)
}

type credentialRepository struct {
	db *sql.DB
}

func NewCredentialRepository(db *sql.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) GetCredential(ctx context.Context, orgID string) (models.OrgCredential, error) {
	const query = `
		SELECT org_id, access_token, refresh_token, token_expires_at, updated_at
		FROM org_credentials
		WHERE org_id = $1
	`
	var cred models.OrgCredential
	err := r.db.QueryRowContext(ctx, query, orgID).Scan(
		&cred.OrgID,
		&cred.AccessToken,
		&cred.RefreshToken,
		&cred.TokenExpiresAt,
		&cred.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return cred, ErrNotFound
	}
	if err != nil {
		return cred, err
	}
	return cred, nil
}

func (r *credentialRepository) UpdateTokens(ctx context.Context, orgID, accessToken, refreshToken string, expiresAt time.Time) error {
	const query = `
		UPDATE org_credentials
		SET access_token     = $2,
		    refresh_token    = COALESCE(NULLIF($3, ''), refresh_token),
		    token_expires_at = $4,
		    updated_at       = NOW()
		WHERE org_id = $1
	`
	res, err := r.db.ExecContext(ctx, query, orgID, accessToken, refreshToken, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to update tokens for org %s: %w", orgID, err)
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

func (r *credentialRepository) GetIntegration(ctx context.Context, orgID string) (models.Integration, error) {
	const query = `
		SELECT org_id, is_connected, disconnect_reason, stage_map, updated_at
		FROM integrations
		WHERE org_id = $1
	`
	var (
		integ       models.Integration
		reason      sql.NullString
		stageMapRaw []byte
	)
	err := r.db.QueryRowContext(ctx, query, orgID).Scan(
		&integ.OrgID,
		&integ.IsConnected,
		&reason,
		&stageMapRaw,
		&integ.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return integ, ErrNotFound
	}
	if err != nil {
		return integ, err
	}
	if reason.Valid {
		integ.DisconnectReason = &reason.String
	}
	if len(stageMapRaw) > 0 {
		if err := json.Unmarshal(stageMapRaw, &integ.StageMap); err != nil {
			return integ, fmt.Errorf("invalid stage_map for org %s: %w", orgID, err)
		}
	}
	return integ, nil
}

func (r *credentialRepository) MarkDisconnected(ctx context.Context, orgID, reason string) error {
	const query = `
		UPDATE integrations
		SET is_connected = FALSE, disconnect_reason = $2, updated_at = NOW()
		WHERE org_id = $1
	`
	_, err := r.db.ExecContext(ctx, query, orgID, reason)
	if err != nil {
		return fmt.Errorf("failed to mark org %s disconnected: %w", orgID, err)
	}
	return nil
}

func (r *credentialRepository) ListMembers(ctx context.Context, orgID string) ([]models.OrgMember, error) {
	const query = `
		SELECT org_id, user_id, email, role
		FROM org_members
		WHERE org_id = $1
		ORDER BY email
	`
	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.OrgMember
	for rows.Next() {
		var m models.OrgMember
		if err := rows.Scan(&m.OrgID, &m.UserID, &m.Email, &m.Role); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return members, nil
}
