package sync

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/relaycrm/sync-api/internal/models"
)

// recordAudit appends a structured audit entry. Appends are fire-and-forget:
// a failed write is logged and never surfaces to the sync that produced it.
func (w *Worker) recordAudit(ctx context.Context, env *orgEnv, direction models.SyncDirection, objectType models.ObjectType, entityID, status string, syncErr error) {
	entry := models.AuditEntry{
		OrgID:      env.orgID,
		Direction:  direction,
		ObjectType: objectType,
		EntityID:   entityID,
		Status:     status,
	}
	if syncErr != nil {
		msg := syncErr.Error()
		entry.Error = &msg
	}
	if err := w.cfg.Audit.Append(ctx, entry); err != nil {
		env.logger.Warn().Err(err).
			Str("object_type", string(objectType)).
			Str("entity_id", entityID).
			Msg("failed to append audit entry")
	}
}

// bestEffort runs an enrichment step whose failure is non-critical by
// design: the error is logged and dropped.
func bestEffort(logger zerolog.Logger, what string, fn func() error) {
	if err := fn(); err != nil {
		logger.Warn().Err(err).Msgf("best-effort %s failed", what)
	}
}
