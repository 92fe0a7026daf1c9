package sync

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"github.com/relaycrm/sync-api/internal/models"
	"github.com/relaycrm/sync-api/internal/partner"
	"github.com/relaycrm/sync-api/internal/repository"
)

type lineItemAdapter struct {
	entities repository.EntityRepository
	mappings repository.MappingRepository
}

func (a *lineItemAdapter) objectType() models.ObjectType { return models.ObjectLineItem }
func (a *lineItemAdapter) remoteType() string            { return "line_items" }

func (a *lineItemAdapter) remoteProperties() []string {
	return []string{"name", "quantity", "price", "relaycrm_line_item_id"}
}

func (a *lineItemAdapter) correlationProperty() string { return "relaycrm_line_item_id" }
func (a *lineItemAdapter) localKeyProperty() string    { return "" }

func (a *lineItemAdapter) mapInbound(env *orgEnv, obj *partner.Object) map[string]string {
	fields := map[string]string{}
	setIf(fields, "name", obj.Properties["name"])
	setIf(fields, "quantity", obj.Properties["quantity"])
	setIf(fields, "unit_price", obj.Properties["price"])
	return fields
}

func (a *lineItemAdapter) loadLocal(ctx context.Context, env *orgEnv, localID string) (*localRecord, error) {
	li, err := a.entities.GetLineItem(ctx, env.orgID, localID)
	if err != nil {
		return nil, err
	}
	return &localRecord{
		id:        li.ID,
		updatedAt: li.UpdatedAt,
		remoteProps: map[string]string{
			"name":     li.Name,
			"quantity": strconv.Itoa(li.Quantity),
			"price":    strconv.FormatFloat(li.UnitPrice, 'f', 2, 64),
		},
		entity: li,
	}, nil
}

func (a *lineItemAdapter) findLocalByKey(ctx context.Context, env *orgEnv, key string) (*localRecord, error) {
	return nil, nil
}

func (a *lineItemAdapter) createLocal(ctx context.Context, env *orgEnv, obj *partner.Object) (*localRecord, error) {
	return nil, errors.New("inbound line item creation is not supported; line items belong to a local quote")
}

func (a *lineItemAdapter) updateLocal(ctx context.Context, env *orgEnv, localID string, fields map[string]string) error {
	return a.entities.UpdateLineItemFields(ctx, env.orgID, localID, fields)
}

func (a *lineItemAdapter) associations(ctx context.Context, env *orgEnv, rec *localRecord) []association {
	li, ok := rec.entity.(models.LineItem)
	if !ok {
		return nil
	}
	m, err := a.mappings.GetByLocalID(ctx, env.orgID, models.ObjectQuote, li.QuoteID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		env.logger.Warn().Err(err).Str("line_item_id", li.ID).Msg("failed to resolve quote mapping for association")
		return nil
	}
	return []association{{toType: "quotes", toID: m.RemoteID}}
}
