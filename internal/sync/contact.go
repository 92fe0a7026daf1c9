package sync

import (
	"context"

	"github.com/pkg/errors"

	"github.com/relaycrm/sync-api/internal/models"
	"github.com/relaycrm/sync-api/internal/partner"
	"github.com/relaycrm/sync-api/internal/repository"
)

// setIf writes only non-empty values; empty partner fields never clobber
// local data.
func setIf(fields map[string]string, column, value string) {
	if value != "" {
		fields[column] = value
	}
}

type contactAdapter struct {
	entities repository.EntityRepository
}

func (a *contactAdapter) objectType() models.ObjectType { return models.ObjectContact }
func (a *contactAdapter) remoteType() string            { return "contacts" }

func (a *contactAdapter) remoteProperties() []string {
	return []string{"email", "firstname", "lastname", "phone", "company", "relaycrm_contact_id", "relaycrm_lead_source"}
}

func (a *contactAdapter) correlationProperty() string { return "relaycrm_contact_id" }
func (a *contactAdapter) localKeyProperty() string    { return "email" }

func (a *contactAdapter) mapInbound(env *orgEnv, obj *partner.Object) map[string]string {
	fields := map[string]string{}
	setIf(fields, "email", obj.Properties["email"])
	setIf(fields, "first_name", obj.Properties["firstname"])
	setIf(fields, "last_name", obj.Properties["lastname"])
	setIf(fields, "phone", obj.Properties["phone"])
	setIf(fields, "company", obj.Properties["company"])
	return fields
}

func (a *contactAdapter) loadLocal(ctx context.Context, env *orgEnv, localID string) (*localRecord, error) {
	c, err := a.entities.GetContact(ctx, env.orgID, localID)
	if err != nil {
		return nil, err
	}
	return contactRecord(c), nil
}

func (a *contactAdapter) findLocalByKey(ctx context.Context, env *orgEnv, key string) (*localRecord, error) {
	c, err := a.entities.GetContactByEmail(ctx, env.orgID, key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return contactRecord(c), nil
}

func (a *contactAdapter) createLocal(ctx context.Context, env *orgEnv, obj *partner.Object) (*localRecord, error) {
	leadSource := obj.Properties["relaycrm_lead_source"]
	if leadSource == "" {
		leadSource = "partner"
	}
	c, err := a.entities.CreateContact(ctx, models.Contact{
		OrgID:      env.orgID,
		Email:      obj.Properties["email"],
		FirstName:  obj.Properties["firstname"],
		LastName:   obj.Properties["lastname"],
		Phone:      obj.Properties["phone"],
		Company:    obj.Properties["company"],
		LeadSource: leadSource,
	})
	if err != nil {
		return nil, err
	}
	return contactRecord(c), nil
}

func (a *contactAdapter) updateLocal(ctx context.Context, env *orgEnv, localID string, fields map[string]string) error {
	return a.entities.UpdateContactFields(ctx, env.orgID, localID, fields)
}

func (a *contactAdapter) associations(ctx context.Context, env *orgEnv, rec *localRecord) []association {
	return nil
}

func contactRecord(c models.Contact) *localRecord {
	props := map[string]string{}
	setIf(props, "email", c.Email)
	setIf(props, "firstname", c.FirstName)
	setIf(props, "lastname", c.LastName)
	setIf(props, "phone", c.Phone)
	setIf(props, "company", c.Company)
	setIf(props, "relaycrm_lead_source", c.LeadSource)
	return &localRecord{
		id:          c.ID,
		key:         c.Email,
		updatedAt:   c.UpdatedAt,
		remoteProps: props,
		entity:      c,
	}
}
