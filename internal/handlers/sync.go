package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/relaycrm/sync-api/internal/models"
	"github.com/relaycrm/sync-api/internal/repository"
	"github.com/relaycrm/sync-api/internal/sync"
)

type SyncHandler struct {
	worker *sync.Worker
	jobs   repository.JobRepository
	logger zerolog.Logger
}

func NewSyncHandler(worker *sync.Worker, jobs repository.JobRepository, logger zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		worker: worker,
		jobs:   jobs,
		logger: logger,
	}
}

type runRequest struct {
	Limit int    `json:"limit,omitempty"`
	OrgID string `json:"org_id,omitempty"`
}

type runResponse struct {
	Success    bool             `json:"success"`
	Locked     bool             `json:"locked,omitempty"`
	Message    string           `json:"message,omitempty"`
	Processed  int              `json:"processed"`
	Succeeded  int              `json:"succeeded"`
	Failed     int              `json:"failed"`
	DurationMS int64            `json:"duration_ms"`
	Results    []sync.JobResult `json:"results,omitempty"`
}

// RunPass triggers one worker pass over the queue. A pass already in flight
// is not an error: the response reports locked and nothing is touched.
func (h *SyncHandler) RunPass(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request payload", http.StatusBadRequest)
			return
		}
	}

	summary, err := h.worker.RunPass(r.Context(), sync.RunOptions{Limit: req.Limit, OrgID: req.OrgID})
	if err != nil {
		h.logger.Error().Err(err).Msg("sync pass failed")
		http.Error(w, "Sync pass failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	resp := runResponse{
		Success:    true,
		Locked:     summary.Locked,
		Processed:  summary.Processed,
		Succeeded:  summary.Succeeded,
		Failed:     summary.Failed,
		DurationMS: summary.Duration.Milliseconds(),
		Results:    summary.Results,
	}
	if summary.Locked {
		resp.Message = "Worker already running"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

type enqueueRequest struct {
	OrgID     string          `json:"org_id"`
	JobType   models.JobType  `json:"job_type"`
	Payload   json.RawMessage `json:"payload"`
	Priority  int             `json:"priority,omitempty"`
	DedupeKey string          `json:"dedupe_key,omitempty"`
}

// EnqueueJob inserts a pending job. A duplicate dedupe key against another
// pending job is reported as a conflict, not an error.
func (h *SyncHandler) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if req.OrgID == "" {
		http.Error(w, "org_id is required", http.StatusBadRequest)
		return
	}
	if !models.IsValidJobType(req.JobType) {
		http.Error(w, "Unknown job type", http.StatusBadRequest)
		return
	}

	job := models.SyncJob{
		OrgID:    req.OrgID,
		JobType:  req.JobType,
		Priority: req.Priority,
		Payload:  req.Payload,
	}
	if req.DedupeKey != "" {
		job.DedupeKey = &req.DedupeKey
	}
	if len(job.Payload) == 0 {
		job.Payload = json.RawMessage("{}")
	}

	created, err := h.jobs.Enqueue(r.Context(), job)
	if errors.Is(err, repository.ErrDuplicateJob) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "duplicate pending job"})
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("job_type", string(req.JobType)).Msg("failed to enqueue job")
		http.Error(w, "Failed to enqueue job: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

func (h *SyncHandler) QueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.jobs.QueueStats(r.Context())
	if err != nil {
		http.Error(w, "Failed to get queue stats: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if stats == nil {
		stats = []models.QueueStat{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
