package sync

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/relaycrm/sync-api/internal/models"
	"github.com/relaycrm/sync-api/internal/partner"
	"github.com/relaycrm/sync-api/internal/repository"
)

// localRecord is the adapter-agnostic view of a local entity: its identity,
// optional secondary key, modification time, and its state expressed as
// partner properties for outbound pushes.
type localRecord struct {
	id          string
	key         string
	updatedAt   time.Time
	remoteProps map[string]string
	entity      interface{}
}

// association is a best-effort link from the synced object to an
// already-mapped related object.
type association struct {
	toType string
	toID   string
}

// entityAdapter supplies the per-entity parameters of the shared
// reconciliation algorithm: field mapping, search strategy, and id
// correlation. The inbound/outbound/LWW skeleton lives in reconcile.go and
// is written exactly once.
type entityAdapter interface {
	objectType() models.ObjectType
	remoteType() string
	remoteProperties() []string
	// correlationProperty is the partner-side custom property holding the
	// local id.
	correlationProperty() string
	// localKeyProperty is the partner property carrying the local secondary
	// key (e.g. email), empty when the entity has none.
	localKeyProperty() string

	mapInbound(env *orgEnv, obj *partner.Object) map[string]string
	loadLocal(ctx context.Context, env *orgEnv, localID string) (*localRecord, error)
	// findLocalByKey returns (nil, nil) when no local record matches.
	findLocalByKey(ctx context.Context, env *orgEnv, key string) (*localRecord, error)
	createLocal(ctx context.Context, env *orgEnv, obj *partner.Object) (*localRecord, error)
	updateLocal(ctx context.Context, env *orgEnv, localID string, fields map[string]string) error
	associations(ctx context.Context, env *orgEnv, rec *localRecord) []association
}

const (
	statusCreated           = "created"
	statusUpdated           = "updated"
	statusSkippedLocalWins  = "skipped_local_newer"
	statusSkippedRemoteWins = "skipped_remote_newer"
)

// reconcileInbound applies one remote object to local storage. Last-write-
// wins: when the local record is strictly newer than the remote's modified
// timestamp, the local write is skipped, but the mapping is still refreshed.
func (w *Worker) reconcileInbound(ctx context.Context, env *orgEnv, a entityAdapter, remoteID string) error {
	obj, err := w.cfg.API.GetObject(ctx, env.token, a.remoteType(), remoteID, a.remoteProperties())
	if err != nil {
		return errors.Wrapf(err, "failed to fetch remote %s %s", a.remoteType(), remoteID)
	}

	rec, err := w.locateLocal(ctx, env, a, obj)
	if err != nil {
		return err
	}

	status := statusUpdated
	switch {
	case rec == nil:
		rec, err = a.createLocal(ctx, env, obj)
		if err != nil {
			return errors.Wrapf(err, "failed to create local %s from remote %s", a.objectType(), remoteID)
		}
		status = statusCreated
	case rec.updatedAt.After(obj.ModifiedAt):
		// Local changes win; stale remote data is not applied.
		status = statusSkippedLocalWins
	default:
		if err := a.updateLocal(ctx, env, rec.id, a.mapInbound(env, obj)); err != nil {
			return errors.Wrapf(err, "failed to update local %s %s", a.objectType(), rec.id)
		}
	}

	if _, err := w.upsertMapping(ctx, env, a.objectType(), rec, obj.ID, obj.ModifiedAt); err != nil {
		return err
	}

	w.recordAudit(ctx, env, models.DirectionInbound, a.objectType(), rec.id, status, nil)
	env.logger.Debug().
		Str("object_type", string(a.objectType())).
		Str("remote_id", obj.ID).
		Str("status", status).
		Msg("inbound reconcile")
	return nil
}

// reconcileOutbound pushes one local record to the partner, creating the
// remote object when no counterpart can be correlated.
func (w *Worker) reconcileOutbound(ctx context.Context, env *orgEnv, a entityAdapter, localID string) error {
	rec, err := a.loadLocal(ctx, env, localID)
	if err != nil {
		return errors.Wrapf(err, "failed to load local %s %s", a.objectType(), localID)
	}

	obj, err := w.locateRemote(ctx, env, a, rec)
	if err != nil {
		return err
	}

	props := make(map[string]string, len(rec.remoteProps)+1)
	for k, v := range rec.remoteProps {
		props[k] = v
	}
	props[a.correlationProperty()] = rec.id

	var (
		remoteID string
		lastSeen time.Time
		status   string
	)
	if obj != nil {
		remoteID = obj.ID
		lastSeen = obj.ModifiedAt
		if obj.ModifiedAt.After(rec.updatedAt) {
			// The remote side changed more recently; the push is discarded.
			status = statusSkippedRemoteWins
		} else {
			if err := w.cfg.API.UpdateObject(ctx, env.token, a.remoteType(), obj.ID, props); err != nil {
				return errors.Wrapf(err, "failed to update remote %s %s", a.remoteType(), obj.ID)
			}
			status = statusUpdated
		}
	} else {
		created, err := w.cfg.API.CreateObject(ctx, env.token, a.remoteType(), props)
		if err != nil {
			return errors.Wrapf(err, "failed to create remote %s for local %s", a.remoteType(), rec.id)
		}
		remoteID = created.ID
		lastSeen = created.ModifiedAt
		status = statusCreated
	}

	if _, err := w.upsertMapping(ctx, env, a.objectType(), rec, remoteID, lastSeen); err != nil {
		return err
	}

	// Associations are enrichment: failures are logged, never propagated.
	for _, assoc := range a.associations(ctx, env, rec) {
		assoc := assoc
		bestEffort(env.logger, "association", func() error {
			return w.cfg.API.Associate(ctx, env.token, a.remoteType(), remoteID, assoc.toType, assoc.toID)
		})
	}

	w.recordAudit(ctx, env, models.DirectionOutbound, a.objectType(), rec.id, status, nil)
	env.logger.Debug().
		Str("object_type", string(a.objectType())).
		Str("local_id", rec.id).
		Str("status", status).
		Msg("outbound reconcile")
	return nil
}

// locateLocal finds the local counterpart of a remote object: first through
// the embedded correlation property, then through the local key.
func (w *Worker) locateLocal(ctx context.Context, env *orgEnv, a entityAdapter, obj *partner.Object) (*localRecord, error) {
	if localID := obj.Properties[a.correlationProperty()]; localID != "" {
		rec, err := a.loadLocal(ctx, env, localID)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, errors.Wrapf(err, "failed to load local %s %s", a.objectType(), localID)
		}
	}
	if keyProp := a.localKeyProperty(); keyProp != "" {
		if key := obj.Properties[keyProp]; key != "" {
			rec, err := a.findLocalByKey(ctx, env, key)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to look up local %s by key", a.objectType())
			}
			return rec, nil
		}
	}
	return nil, nil
}

// locateRemote finds the remote counterpart of a local record: the mapping
// table first, then a partner search by correlation property, then by key.
func (w *Worker) locateRemote(ctx context.Context, env *orgEnv, a entityAdapter, rec *localRecord) (*partner.Object, error) {
	m, err := w.cfg.Mappings.GetByLocalID(ctx, env.orgID, a.objectType(), rec.id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, errors.Wrapf(err, "failed to look up mapping for local %s %s", a.objectType(), rec.id)
	}
	if err == nil {
		obj, gerr := w.cfg.API.GetObject(ctx, env.token, a.remoteType(), m.RemoteID, a.remoteProperties())
		if gerr != nil {
			return nil, errors.Wrapf(gerr, "failed to fetch mapped remote %s %s", a.remoteType(), m.RemoteID)
		}
		return obj, nil
	}

	obj, err := w.cfg.API.SearchObjects(ctx, env.token, a.remoteType(), a.correlationProperty(), rec.id, a.remoteProperties())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to search remote %s by correlation", a.remoteType())
	}
	if obj == nil && a.localKeyProperty() != "" && rec.key != "" {
		obj, err = w.cfg.API.SearchObjects(ctx, env.token, a.remoteType(), a.localKeyProperty(), rec.key, a.remoteProperties())
		if err != nil {
			return nil, errors.Wrapf(err, "failed to search remote %s by key", a.remoteType())
		}
	}
	return obj, nil
}

func (w *Worker) upsertMapping(ctx context.Context, env *orgEnv, objectType models.ObjectType, rec *localRecord, remoteID string, remoteModifiedAt time.Time) (models.ObjectMapping, error) {
	m := models.ObjectMapping{
		OrgID:      env.orgID,
		ObjectType: objectType,
		RemoteID:   remoteID,
	}
	if rec != nil {
		if rec.id != "" {
			id := rec.id
			m.LocalID = &id
		}
		if rec.key != "" {
			key := rec.key
			m.LocalKey = &key
		}
	}
	if !remoteModifiedAt.IsZero() {
		t := remoteModifiedAt
		m.LastSeenRemoteModifiedAt = &t
	}
	out, err := w.cfg.Mappings.Upsert(ctx, m)
	if err != nil {
		return models.ObjectMapping{}, errors.Wrapf(err, "failed to upsert %s mapping for remote %s", objectType, remoteID)
	}
	return out, nil
}
