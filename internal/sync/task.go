package sync

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/relaycrm/sync-api/internal/models"
	"github.com/relaycrm/sync-api/internal/partner"
	"github.com/relaycrm/sync-api/internal/repository"
)

type taskAdapter struct {
	entities repository.EntityRepository
	mappings repository.MappingRepository
}

func (a *taskAdapter) objectType() models.ObjectType { return models.ObjectTask }
func (a *taskAdapter) remoteType() string            { return "tasks" }

func (a *taskAdapter) remoteProperties() []string {
	return []string{"subject", "body", "status", "due_date", "owner_email", "relaycrm_task_id"}
}

func (a *taskAdapter) correlationProperty() string { return "relaycrm_task_id" }
func (a *taskAdapter) localKeyProperty() string    { return "" }

func (a *taskAdapter) mapInbound(env *orgEnv, obj *partner.Object) map[string]string {
	fields := map[string]string{}
	setIf(fields, "title", obj.Properties["subject"])
	setIf(fields, "body", obj.Properties["body"])
	setIf(fields, "status", obj.Properties["status"])
	setIf(fields, "due_at", obj.Properties["due_date"])
	// Owner assignment goes through the roster: an owner email outside the
	// org leaves the task unassigned instead of failing the job.
	if email := obj.Properties["owner_email"]; email != "" {
		if m, ok := env.memberByEmail(email); ok {
			fields["owner_id"] = m.UserID
		}
	}
	return fields
}

func (a *taskAdapter) loadLocal(ctx context.Context, env *orgEnv, localID string) (*localRecord, error) {
	t, err := a.entities.GetTask(ctx, env.orgID, localID)
	if err != nil {
		return nil, err
	}
	return taskRecord(env, t), nil
}

func (a *taskAdapter) findLocalByKey(ctx context.Context, env *orgEnv, key string) (*localRecord, error) {
	return nil, nil
}

func (a *taskAdapter) createLocal(ctx context.Context, env *orgEnv, obj *partner.Object) (*localRecord, error) {
	t := models.Task{
		OrgID:  env.orgID,
		Title:  obj.Properties["subject"],
		Body:   obj.Properties["body"],
		Status: obj.Properties["status"],
	}
	if t.Status == "" {
		t.Status = "open"
	}
	if raw := obj.Properties["due_date"]; raw != "" {
		if due, err := time.Parse(time.RFC3339, raw); err == nil {
			t.DueAt = &due
		}
	}
	if email := obj.Properties["owner_email"]; email != "" {
		if m, ok := env.memberByEmail(email); ok {
			owner := m.UserID
			t.OwnerID = &owner
		}
	}
	created, err := a.entities.CreateTask(ctx, t)
	if err != nil {
		return nil, err
	}
	return taskRecord(env, created), nil
}

func (a *taskAdapter) updateLocal(ctx context.Context, env *orgEnv, localID string, fields map[string]string) error {
	return a.entities.UpdateTaskFields(ctx, env.orgID, localID, fields)
}

func (a *taskAdapter) associations(ctx context.Context, env *orgEnv, rec *localRecord) []association {
	t, ok := rec.entity.(models.Task)
	if !ok || t.ContactID == nil {
		return nil
	}
	m, err := a.mappings.GetByLocalID(ctx, env.orgID, models.ObjectContact, *t.ContactID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		env.logger.Warn().Err(err).Str("task_id", t.ID).Msg("failed to resolve contact mapping for association")
		return nil
	}
	return []association{{toType: "contacts", toID: m.RemoteID}}
}

func taskRecord(env *orgEnv, t models.Task) *localRecord {
	props := map[string]string{}
	setIf(props, "subject", t.Title)
	setIf(props, "body", t.Body)
	setIf(props, "status", t.Status)
	if t.DueAt != nil {
		props["due_date"] = t.DueAt.UTC().Format(time.RFC3339)
	}
	if t.OwnerID != nil {
		if m, ok := env.memberByID(*t.OwnerID); ok {
			props["owner_email"] = m.Email
		}
	}
	return &localRecord{
		id:          t.ID,
		updatedAt:   t.UpdatedAt,
		remoteProps: props,
		entity:      t,
	}
}
