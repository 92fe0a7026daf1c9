package sync

import (
	"context"

	"github.com/pkg/errors"

	"github.com/relaycrm/sync-api/internal/models"
	"github.com/relaycrm/sync-api/internal/partner"
	"github.com/relaycrm/sync-api/internal/repository"
)

// Notes are push-only: the app writes them locally and mirrors them to the
// partner, attached to the mapped contact or deal.
type noteAdapter struct {
	entities repository.EntityRepository
	mappings repository.MappingRepository
}

func (a *noteAdapter) objectType() models.ObjectType { return models.ObjectNote }
func (a *noteAdapter) remoteType() string            { return "notes" }

func (a *noteAdapter) remoteProperties() []string {
	return []string{"body", "relaycrm_note_id"}
}

func (a *noteAdapter) correlationProperty() string { return "relaycrm_note_id" }
func (a *noteAdapter) localKeyProperty() string    { return "" }

func (a *noteAdapter) mapInbound(env *orgEnv, obj *partner.Object) map[string]string {
	// Sync owns no note columns; inbound note updates are not applied.
	return map[string]string{}
}

func (a *noteAdapter) loadLocal(ctx context.Context, env *orgEnv, localID string) (*localRecord, error) {
	n, err := a.entities.GetNote(ctx, env.orgID, localID)
	if err != nil {
		return nil, err
	}
	return &localRecord{
		id:          n.ID,
		updatedAt:   n.UpdatedAt,
		remoteProps: map[string]string{"body": n.Body},
		entity:      n,
	}, nil
}

func (a *noteAdapter) findLocalByKey(ctx context.Context, env *orgEnv, key string) (*localRecord, error) {
	return nil, nil
}

func (a *noteAdapter) createLocal(ctx context.Context, env *orgEnv, obj *partner.Object) (*localRecord, error) {
	return nil, errors.New("notes are push-only")
}

func (a *noteAdapter) updateLocal(ctx context.Context, env *orgEnv, localID string, fields map[string]string) error {
	return nil
}

func (a *noteAdapter) associations(ctx context.Context, env *orgEnv, rec *localRecord) []association {
	n, ok := rec.entity.(models.Note)
	if !ok {
		return nil
	}
	var assocs []association
	if n.ContactID != nil {
		if m, err := a.mappings.GetByLocalID(ctx, env.orgID, models.ObjectContact, *n.ContactID); err == nil {
			assocs = append(assocs, association{toType: "contacts", toID: m.RemoteID})
		} else if !errors.Is(err, repository.ErrNotFound) {
			env.logger.Warn().Err(err).Str("note_id", n.ID).Msg("failed to resolve contact mapping for association")
		}
	}
	if n.DealID != nil {
		if m, err := a.mappings.GetByLocalID(ctx, env.orgID, models.ObjectDeal, *n.DealID); err == nil {
			assocs = append(assocs, association{toType: "deals", toID: m.RemoteID})
		} else if !errors.Is(err, repository.ErrNotFound) {
			env.logger.Warn().Err(err).Str("note_id", n.ID).Msg("failed to resolve deal mapping for association")
		}
	}
	return assocs
}
