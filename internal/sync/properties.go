package sync

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/relaycrm/sync-api/internal/partner"
)

// ensuredProperties is the fixed set of custom fields the sync relies on,
// per partner object type. Correlation properties carry the local id;
// enumerated properties ship with their full option lists.
var ensuredProperties = map[string][]partner.PropertyDef{
	"contacts": {
		{Name: "relaycrm_contact_id", Label: "RelayCRM Contact ID", Type: "string"},
		{Name: "relaycrm_lead_source", Label: "RelayCRM Lead Source", Type: "enumeration",
			Options: []string{"form", "import", "manual", "partner"}},
	},
	"deals": {
		{Name: "relaycrm_deal_id", Label: "RelayCRM Deal ID", Type: "string"},
	},
	"tasks": {
		{Name: "relaycrm_task_id", Label: "RelayCRM Task ID", Type: "string"},
	},
	"notes": {
		{Name: "relaycrm_note_id", Label: "RelayCRM Note ID", Type: "string"},
	},
	"quotes": {
		{Name: "relaycrm_quote_id", Label: "RelayCRM Quote ID", Type: "string"},
		{Name: "relaycrm_quote_status", Label: "RelayCRM Quote Status", Type: "enumeration",
			Options: []string{"DRAFT", "SENT", "ACCEPTED", "REJECTED"}},
	},
	"line_items": {
		{Name: "relaycrm_line_item_id", Label: "RelayCRM Line Item ID", Type: "string"},
	},
}

// ensureProperties idempotently creates any of the fixed custom fields
// missing on the partner side. Fields that already exist are fine, including
// a conflict on create when another pass raced us there.
func (w *Worker) ensureProperties(ctx context.Context, env *orgEnv) error {
	objectTypes := make([]string, 0, len(ensuredProperties))
	for objectType := range ensuredProperties {
		objectTypes = append(objectTypes, objectType)
	}
	sort.Strings(objectTypes)

	for _, objectType := range objectTypes {
		existing, err := w.cfg.API.ListProperties(ctx, env.token, objectType)
		if err != nil {
			return errors.Wrapf(err, "failed to list %s properties", objectType)
		}
		have := make(map[string]bool, len(existing))
		for _, def := range existing {
			have[def.Name] = true
		}

		for _, def := range ensuredProperties[objectType] {
			if have[def.Name] {
				continue
			}
			if err := w.cfg.API.CreateProperty(ctx, env.token, objectType, def); err != nil {
				var apiErr *partner.APIError
				if errors.As(err, &apiErr) && apiErr.Conflict() {
					continue
				}
				return errors.Wrapf(err, "failed to create property %s on %s", def.Name, objectType)
			}
			env.logger.Info().
				Str("object_type", objectType).
				Str("property", def.Name).
				Msg("created partner property")
		}
	}
	return nil
}
