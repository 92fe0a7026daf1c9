package sync

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/relaycrm/sync-api/internal/models"
)

// dispatch routes one dequeued job to its handler. Payloads are a tagged
// union keyed by job_type; the match is exhaustive and an unknown type is a
// job-level error (retries will exhaust it).
func (w *Worker) dispatch(ctx context.Context, env *orgEnv, job models.SyncJob) error {
	switch job.JobType {
	case models.JobSyncContact, models.JobSyncDeal, models.JobSyncTask,
		models.JobSyncQuote, models.JobSyncLineItem:
		return w.runEntityJob(ctx, env, w.adapters[job.JobType], job.Payload)

	case models.JobPushNote:
		var p models.EntitySyncPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return errors.Wrap(err, "invalid push_note payload")
		}
		if p.LocalID == "" {
			env.logger.Info().Str("job_id", job.ID).Msg("push_note payload has no local id, nothing to do")
			return nil
		}
		return w.reconcileOutbound(ctx, env, w.adapters[models.JobPushNote], p.LocalID)

	case models.JobSyncCustomObject:
		var p models.CustomObjectSyncPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return errors.Wrap(err, "invalid sync_custom_object payload")
		}
		if p.ObjectType == "" {
			return errors.New("sync_custom_object payload missing object_type")
		}
		a := &customObjectAdapter{entities: w.cfg.Entities, remoteName: p.ObjectType}
		switch {
		case p.RemoteID != "":
			return w.reconcileInbound(ctx, env, a, p.RemoteID)
		case p.LocalID != "":
			return w.reconcileOutbound(ctx, env, a, p.LocalID)
		default:
			env.logger.Info().Str("job_id", job.ID).Msg("custom object payload has neither id, nothing to do")
			return nil
		}

	case models.JobPollFormSubmissions:
		var p models.FormPollPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return errors.Wrap(err, "invalid poll_form_submissions payload")
		}
		return w.pollForms(ctx, env, p)

	case models.JobEnsureProperties:
		return w.ensureProperties(ctx, env)

	default:
		return errors.Errorf("unknown job type %q", job.JobType)
	}
}

func (w *Worker) runEntityJob(ctx context.Context, env *orgEnv, a entityAdapter, raw json.RawMessage) error {
	var p models.EntitySyncPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return errors.Wrapf(err, "invalid %s payload", a.objectType())
	}
	switch {
	case p.RemoteID != "":
		return w.reconcileInbound(ctx, env, a, p.RemoteID)
	case p.LocalID != "":
		return w.reconcileOutbound(ctx, env, a, p.LocalID)
	default:
		env.logger.Info().Str("object_type", string(a.objectType())).Msg("payload has neither remote nor local id, nothing to do")
		return nil
	}
}
