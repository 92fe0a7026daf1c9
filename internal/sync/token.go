package sync

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/relaycrm/sync-api/internal/partner"
	"github.com/relaycrm/sync-api/internal/repository"
)

// ErrMissingCredentials means the org has no stored OAuth state at all.
var ErrMissingCredentials = errors.New("missing partner credentials")

// accessToken returns a usable access token for the org, refreshing through
// the OAuth refresh grant when the stored one expires within the skew. The
// common case is the cheap path: no network call.
func (w *Worker) accessToken(ctx context.Context, orgID string) (string, error) {
	cred, err := w.cfg.Credentials.GetCredential(ctx, orgID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrMissingCredentials
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to load credentials for org %s", orgID)
	}

	if time.Until(cred.TokenExpiresAt) > w.cfg.TokenSkew {
		return cred.AccessToken, nil
	}

	grant, err := w.cfg.API.RefreshToken(ctx, cred.RefreshToken)
	if err != nil {
		if partner.IsInvalidGrant(err) {
			// The grant is revoked, not down. Disconnect so future passes
			// skip this org until the user reconnects.
			if derr := w.cfg.Credentials.MarkDisconnected(ctx, orgID, err.Error()); derr != nil {
				w.logger.Error().Err(derr).Str("org_id", orgID).Msg("failed to mark integration disconnected")
			}
			return "", errors.Wrapf(err, "partner connection revoked for org %s", orgID)
		}
		return "", errors.Wrapf(err, "token refresh failed for org %s", orgID)
	}

	expiresAt := time.Now().Add(time.Duration(grant.ExpiresIn) * time.Second)
	if err := w.cfg.Credentials.UpdateTokens(ctx, orgID, grant.AccessToken, grant.RefreshToken, expiresAt); err != nil {
		return "", errors.Wrapf(err, "failed to persist refreshed tokens for org %s", orgID)
	}
	return grant.AccessToken, nil
}
