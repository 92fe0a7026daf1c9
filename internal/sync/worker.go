// Package sync implements the partner synchronization worker: a single-flight
// batch pass over the job queue that reconciles local entities with the
// partner CRM using last-write-wins conflict resolution.
package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/relaycrm/sync-api/internal/models"
	"github.com/relaycrm/sync-api/internal/partner"
	"github.com/relaycrm/sync-api/internal/repository"
)

const lockName = "sync_worker_pass"

type WorkerConfig struct {
	Jobs        repository.JobRepository
	Credentials repository.CredentialRepository
	Mappings    repository.MappingRepository
	Entities    repository.EntityRepository
	Cursors     repository.CursorRepository
	Locks       repository.LockRepository
	Audit       repository.AuditRepository
	API         partner.API

	BatchSize         int
	BaseBackoff       time.Duration
	BackoffCap        time.Duration
	InterJobDelay     time.Duration
	LockTTL           time.Duration
	TokenSkew         time.Duration
	NotConnectedDelay time.Duration
}

type Worker struct {
	cfg      WorkerConfig
	logger   zerolog.Logger
	adapters map[models.JobType]entityAdapter
	sleep    func(time.Duration)
}

func NewWorker(cfg WorkerConfig, logger zerolog.Logger) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 30 * time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = time.Hour
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if cfg.TokenSkew <= 0 {
		cfg.TokenSkew = 2 * time.Minute
	}
	if cfg.NotConnectedDelay <= 0 {
		cfg.NotConnectedDelay = time.Minute
	}

	w := &Worker{
		cfg:    cfg,
		logger: logger.With().Str("component", "sync_worker").Logger(),
		sleep:  time.Sleep,
	}
	w.adapters = map[models.JobType]entityAdapter{
		models.JobSyncContact:  &contactAdapter{entities: cfg.Entities},
		models.JobSyncDeal:     &dealAdapter{entities: cfg.Entities, mappings: cfg.Mappings},
		models.JobSyncTask:     &taskAdapter{entities: cfg.Entities, mappings: cfg.Mappings},
		models.JobPushNote:     &noteAdapter{entities: cfg.Entities, mappings: cfg.Mappings},
		models.JobSyncQuote:    &quoteAdapter{entities: cfg.Entities, mappings: cfg.Mappings},
		models.JobSyncLineItem: &lineItemAdapter{entities: cfg.Entities, mappings: cfg.Mappings},
	}
	return w
}

type RunOptions struct {
	Limit int
	OrgID string
}

type JobResult struct {
	ID      string         `json:"id"`
	OrgID   string         `json:"org_id"`
	JobType models.JobType `json:"job_type"`
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
}

type Summary struct {
	Locked    bool
	Processed int
	Succeeded int
	Failed    int
	Duration  time.Duration
	Results   []JobResult
}

// RunPass executes one batch pass over the queue. Overlapping invocations are
// excluded by the advisory lock: the loser returns Summary{Locked: true} and
// touches nothing. Job-level failures are rescheduled with backoff and
// reported in the summary; only lock/dequeue failures escape as errors.
func (w *Worker) RunPass(ctx context.Context, opts RunOptions) (Summary, error) {
	start := time.Now()

	limit := opts.Limit
	if limit <= 0 {
		limit = w.cfg.BatchSize
	}
	if limit > repository.MaxBatchSize {
		limit = repository.MaxBatchSize
	}

	holder := uuid.NewString()
	acquired, err := w.cfg.Locks.TryAcquire(ctx, lockName, holder, w.cfg.LockTTL)
	if err != nil {
		return Summary{}, errors.Wrap(err, "failed to acquire worker lock")
	}
	if !acquired {
		w.logger.Info().Msg("worker lock held, skipping pass")
		return Summary{Locked: true, Duration: time.Since(start)}, nil
	}
	defer func() {
		// Release must survive a canceled request context.
		if err := w.cfg.Locks.Release(context.WithoutCancel(ctx), lockName, holder); err != nil {
			w.logger.Error().Err(err).Msg("failed to release worker lock")
		}
	}()

	jobs, err := w.cfg.Jobs.DequeueEligible(ctx, limit, opts.OrgID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "failed to dequeue jobs")
	}

	summary := Summary{Results: make([]JobResult, 0, len(jobs))}
	groups, order := groupByOrg(jobs)
	for _, orgID := range order {
		group := groups[orgID]

		env, err := w.prepareOrg(ctx, orgID)
		if err != nil {
			w.logger.Warn().Err(err).Str("org_id", orgID).Int("jobs", len(group)).Msg("skipping org group")
			w.failGroup(ctx, group, &summary, err)
			continue
		}

		for i, job := range group {
			if i > 0 && w.cfg.InterJobDelay > 0 {
				// Serial execution with a small gap keeps a batch under the
				// partner's burst limits.
				w.sleep(w.cfg.InterJobDelay)
			}
			w.runJob(ctx, env, job, &summary)
		}
	}

	summary.Duration = time.Since(start)
	w.logger.Info().
		Int("processed", summary.Processed).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("pass complete")
	return summary, nil
}

// prepareOrg does the once-per-org work: connection check, member roster,
// and a single token refresh shared by the whole group.
func (w *Worker) prepareOrg(ctx context.Context, orgID string) (*orgEnv, error) {
	integ, err := w.cfg.Credentials.GetIntegration(ctx, orgID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load integration for org %s", orgID)
	}
	if !integ.IsConnected {
		return nil, errors.Errorf("org %s is not connected", orgID)
	}

	members, err := w.cfg.Credentials.ListMembers(ctx, orgID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load member roster for org %s", orgID)
	}

	token, err := w.accessToken(ctx, orgID)
	if err != nil {
		return nil, err
	}

	return newOrgEnv(orgID, token, integ.StageMap, members, w.logger), nil
}

func (w *Worker) runJob(ctx context.Context, env *orgEnv, job models.SyncJob, summary *Summary) {
	summary.Processed++

	err := w.dispatch(ctx, env, job)
	if err == nil {
		if merr := w.cfg.Jobs.MarkSucceeded(ctx, job.ID); merr != nil {
			w.logger.Error().Err(merr).Str("job_id", job.ID).Msg("failed to mark job succeeded")
		}
		summary.Succeeded++
		summary.Results = append(summary.Results, JobResult{
			ID: job.ID, OrgID: job.OrgID, JobType: job.JobType, Success: true,
		})
		return
	}

	delay := nextDelay(job.Attempts, w.cfg.BaseBackoff, w.cfg.BackoffCap, partner.RetryAfterHint(err))
	if rerr := w.cfg.Jobs.Reschedule(ctx, job.ID, time.Now().Add(delay), err.Error()); rerr != nil {
		w.logger.Error().Err(rerr).Str("job_id", job.ID).Msg("failed to reschedule job")
	}
	w.logger.Warn().Err(err).
		Str("job_id", job.ID).
		Str("job_type", string(job.JobType)).
		Int("attempts", job.Attempts+1).
		Dur("retry_in", delay).
		Msg("job failed")

	summary.Failed++
	summary.Results = append(summary.Results, JobResult{
		ID: job.ID, OrgID: job.OrgID, JobType: job.JobType, Success: false, Message: err.Error(),
	})
}

// failGroup reschedules every job of an org whose pre-flight failed (not
// connected, roster or token error) with a short fixed delay. No partner
// calls are made for these jobs this pass.
func (w *Worker) failGroup(ctx context.Context, group []models.SyncJob, summary *Summary, cause error) {
	for _, job := range group {
		summary.Processed++
		summary.Failed++
		if err := w.cfg.Jobs.Reschedule(ctx, job.ID, time.Now().Add(w.cfg.NotConnectedDelay), cause.Error()); err != nil {
			w.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to reschedule job")
		}
		summary.Results = append(summary.Results, JobResult{
			ID: job.ID, OrgID: job.OrgID, JobType: job.JobType, Success: false, Message: cause.Error(),
		})
	}
}

func groupByOrg(jobs []models.SyncJob) (map[string][]models.SyncJob, []string) {
	groups := make(map[string][]models.SyncJob)
	var order []string
	for _, job := range jobs {
		if _, ok := groups[job.OrgID]; !ok {
			order = append(order, job.OrgID)
		}
		groups[job.OrgID] = append(groups[job.OrgID], job)
	}
	return groups, order
}
