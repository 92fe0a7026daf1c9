package sync

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"github.com/relaycrm/sync-api/internal/models"
	"github.com/relaycrm/sync-api/internal/partner"
	"github.com/relaycrm/sync-api/internal/repository"
)

// Local proposal statuses translate to partner quote statuses through a
// fixed table; an unmapped value means "no change" in that direction.
var quoteStatusToRemote = map[string]string{
	"draft":    "DRAFT",
	"sent":     "SENT",
	"accepted": "ACCEPTED",
	"declined": "REJECTED",
}

var quoteStatusToLocal = map[string]string{
	"DRAFT":    "draft",
	"SENT":     "sent",
	"ACCEPTED": "accepted",
	"REJECTED": "declined",
}

type quoteAdapter struct {
	entities repository.EntityRepository
	mappings repository.MappingRepository
}

func (a *quoteAdapter) objectType() models.ObjectType { return models.ObjectQuote }
func (a *quoteAdapter) remoteType() string            { return "quotes" }

func (a *quoteAdapter) remoteProperties() []string {
	return []string{"title", "amount", "relaycrm_quote_status", "relaycrm_quote_id"}
}

func (a *quoteAdapter) correlationProperty() string { return "relaycrm_quote_id" }
func (a *quoteAdapter) localKeyProperty() string    { return "" }

func (a *quoteAdapter) mapInbound(env *orgEnv, obj *partner.Object) map[string]string {
	fields := map[string]string{}
	setIf(fields, "title", obj.Properties["title"])
	setIf(fields, "amount", obj.Properties["amount"])
	if remote := obj.Properties["relaycrm_quote_status"]; remote != "" {
		if local, ok := quoteStatusToLocal[remote]; ok {
			fields["status"] = local
		}
	}
	return fields
}

func (a *quoteAdapter) loadLocal(ctx context.Context, env *orgEnv, localID string) (*localRecord, error) {
	q, err := a.entities.GetQuote(ctx, env.orgID, localID)
	if err != nil {
		return nil, err
	}
	return quoteRecord(q), nil
}

func (a *quoteAdapter) findLocalByKey(ctx context.Context, env *orgEnv, key string) (*localRecord, error) {
	return nil, nil
}

func (a *quoteAdapter) createLocal(ctx context.Context, env *orgEnv, obj *partner.Object) (*localRecord, error) {
	return nil, errors.New("inbound quote creation is not supported; quotes originate locally")
}

func (a *quoteAdapter) updateLocal(ctx context.Context, env *orgEnv, localID string, fields map[string]string) error {
	return a.entities.UpdateQuoteFields(ctx, env.orgID, localID, fields)
}

func (a *quoteAdapter) associations(ctx context.Context, env *orgEnv, rec *localRecord) []association {
	q, ok := rec.entity.(models.Quote)
	if !ok || q.DealID == nil {
		return nil
	}
	m, err := a.mappings.GetByLocalID(ctx, env.orgID, models.ObjectDeal, *q.DealID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		env.logger.Warn().Err(err).Str("quote_id", q.ID).Msg("failed to resolve deal mapping for association")
		return nil
	}
	return []association{{toType: "deals", toID: m.RemoteID}}
}

func quoteRecord(q models.Quote) *localRecord {
	props := map[string]string{}
	setIf(props, "title", q.Title)
	props["amount"] = strconv.FormatFloat(q.Amount, 'f', 2, 64)
	if remote, ok := quoteStatusToRemote[q.Status]; ok {
		props["relaycrm_quote_status"] = remote
	}
	return &localRecord{
		id:          q.ID,
		updatedAt:   q.UpdatedAt,
		remoteProps: props,
		entity:      q,
	}
}
