package sync

import (
	"context"

	"github.com/relaycrm/sync-api/internal/models"
	"github.com/relaycrm/sync-api/internal/partner"
	"github.com/relaycrm/sync-api/internal/repository"
)

// customObjectAdapter syncs org-defined partner object types. Properties
// pass through untranslated into the local schemaless store.
type customObjectAdapter struct {
	entities   repository.EntityRepository
	remoteName string
}

func (a *customObjectAdapter) objectType() models.ObjectType {
	return models.ObjectType("custom:" + a.remoteName)
}

func (a *customObjectAdapter) remoteType() string { return a.remoteName }

func (a *customObjectAdapter) remoteProperties() []string {
	// Empty means "all properties" on the partner side.
	return nil
}

func (a *customObjectAdapter) correlationProperty() string { return "relaycrm_local_id" }
func (a *customObjectAdapter) localKeyProperty() string    { return "" }

func (a *customObjectAdapter) mapInbound(env *orgEnv, obj *partner.Object) map[string]string {
	fields := make(map[string]string, len(obj.Properties))
	for name, value := range obj.Properties {
		if name == a.correlationProperty() || value == "" {
			continue
		}
		fields[name] = value
	}
	return fields
}

func (a *customObjectAdapter) loadLocal(ctx context.Context, env *orgEnv, localID string) (*localRecord, error) {
	obj, err := a.entities.GetCustomObject(ctx, env.orgID, localID)
	if err != nil {
		return nil, err
	}
	return &localRecord{
		id:          obj.ID,
		updatedAt:   obj.UpdatedAt,
		remoteProps: obj.Properties,
		entity:      obj,
	}, nil
}

func (a *customObjectAdapter) findLocalByKey(ctx context.Context, env *orgEnv, key string) (*localRecord, error) {
	return nil, nil
}

func (a *customObjectAdapter) createLocal(ctx context.Context, env *orgEnv, obj *partner.Object) (*localRecord, error) {
	created, err := a.entities.CreateCustomObject(ctx, models.CustomObject{
		OrgID:      env.orgID,
		ObjectType: a.remoteName,
		Properties: a.mapInbound(env, obj),
	})
	if err != nil {
		return nil, err
	}
	return &localRecord{
		id:          created.ID,
		updatedAt:   created.UpdatedAt,
		remoteProps: created.Properties,
		entity:      created,
	}, nil
}

func (a *customObjectAdapter) updateLocal(ctx context.Context, env *orgEnv, localID string, fields map[string]string) error {
	return a.entities.UpdateCustomObjectProperties(ctx, env.orgID, localID, fields)
}

func (a *customObjectAdapter) associations(ctx context.Context, env *orgEnv, rec *localRecord) []association {
	return nil
}
