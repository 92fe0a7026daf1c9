package sync

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/relaycrm/sync-api/internal/models"
	"github.com/relaycrm/sync-api/internal/partner"
	"github.com/relaycrm/sync-api/internal/repository"
)

type dealAdapter struct {
	entities repository.EntityRepository
	mappings repository.MappingRepository
}

func (a *dealAdapter) objectType() models.ObjectType { return models.ObjectDeal }
func (a *dealAdapter) remoteType() string            { return "deals" }

func (a *dealAdapter) remoteProperties() []string {
	return []string{"dealname", "amount", "dealstage", "closedate", "relaycrm_deal_id"}
}

func (a *dealAdapter) correlationProperty() string { return "relaycrm_deal_id" }
func (a *dealAdapter) localKeyProperty() string    { return "" }

func (a *dealAdapter) mapInbound(env *orgEnv, obj *partner.Object) map[string]string {
	fields := map[string]string{}
	setIf(fields, "name", obj.Properties["dealname"])
	setIf(fields, "amount", obj.Properties["amount"])
	setIf(fields, "close_date", obj.Properties["closedate"])
	// Stage identifiers translate through the org-configured two-way table;
	// an unmapped remote stage leaves the local stage unchanged.
	if remoteStage := obj.Properties["dealstage"]; remoteStage != "" {
		if local, ok := env.stageMap.Local(remoteStage); ok {
			fields["stage"] = local
		}
	}
	return fields
}

func (a *dealAdapter) loadLocal(ctx context.Context, env *orgEnv, localID string) (*localRecord, error) {
	d, err := a.entities.GetDeal(ctx, env.orgID, localID)
	if err != nil {
		return nil, err
	}
	return dealRecord(env, d), nil
}

func (a *dealAdapter) findLocalByKey(ctx context.Context, env *orgEnv, key string) (*localRecord, error) {
	return nil, nil
}

func (a *dealAdapter) createLocal(ctx context.Context, env *orgEnv, obj *partner.Object) (*localRecord, error) {
	amount, _ := strconv.ParseFloat(obj.Properties["amount"], 64)
	stage := ""
	if remoteStage := obj.Properties["dealstage"]; remoteStage != "" {
		if local, ok := env.stageMap.Local(remoteStage); ok {
			stage = local
		}
	}
	d := models.Deal{
		OrgID:  env.orgID,
		Name:   obj.Properties["dealname"],
		Amount: amount,
		Stage:  stage,
	}
	if raw := obj.Properties["closedate"]; raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			d.CloseDate = &t
		}
	}
	created, err := a.entities.CreateDeal(ctx, d)
	if err != nil {
		return nil, err
	}
	return dealRecord(env, created), nil
}

func (a *dealAdapter) updateLocal(ctx context.Context, env *orgEnv, localID string, fields map[string]string) error {
	return a.entities.UpdateDealFields(ctx, env.orgID, localID, fields)
}

func (a *dealAdapter) associations(ctx context.Context, env *orgEnv, rec *localRecord) []association {
	d, ok := rec.entity.(models.Deal)
	if !ok || d.ContactID == nil {
		return nil
	}
	m, err := a.mappings.GetByLocalID(ctx, env.orgID, models.ObjectContact, *d.ContactID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		env.logger.Warn().Err(err).Str("deal_id", d.ID).Msg("failed to resolve contact mapping for association")
		return nil
	}
	return []association{{toType: "contacts", toID: m.RemoteID}}
}

func dealRecord(env *orgEnv, d models.Deal) *localRecord {
	props := map[string]string{}
	setIf(props, "dealname", d.Name)
	props["amount"] = strconv.FormatFloat(d.Amount, 'f', 2, 64)
	if remote, ok := env.stageMap.Remote(d.Stage); ok {
		props["dealstage"] = remote
	}
	if d.CloseDate != nil {
		props["closedate"] = d.CloseDate.UTC().Format(time.RFC3339)
	}
	return &localRecord{
		id:          d.ID,
		updatedAt:   d.UpdatedAt,
		remoteProps: props,
		entity:      d,
	}
}
