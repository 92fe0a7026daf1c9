package models

import (
	"encoding/json"
	"time"
)

type JobType string

const (
	JobSyncContact         JobType = "sync_contact"
	JobSyncDeal            JobType = "sync_deal"
	JobSyncTask            JobType = "sync_task"
	JobPushNote            JobType = "push_note"
	JobSyncQuote           JobType = "sync_quote"
	JobSyncLineItem        JobType = "sync_line_item"
	JobPollFormSubmissions JobType = "poll_form_submissions"
	JobEnsureProperties    JobType = "ensure_properties"
	JobSyncCustomObject    JobType = "sync_custom_object"
)

func IsValidJobType(t JobType) bool {
	switch t {
	case JobSyncContact, JobSyncDeal, JobSyncTask, JobPushNote, JobSyncQuote,
		JobSyncLineItem, JobPollFormSubmissions, JobEnsureProperties, JobSyncCustomObject:
		return true
	}
	return false
}

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// SyncJob is one unit of reconciliation work. Failed jobs are rescheduled in
// place (attempts incremented, run_after pushed forward) until max_attempts,
// after which the row goes terminal and is never dequeued again.
type SyncJob struct {
	ID          string          `json:"id" db:"id"`
	OrgID       string          `json:"org_id" db:"org_id"`
	JobType     JobType         `json:"job_type" db:"job_type"`
	Priority    int             `json:"priority" db:"priority"`
	Attempts    int             `json:"attempts" db:"attempts"`
	MaxAttempts int             `json:"max_attempts" db:"max_attempts"`
	RunAfter    time.Time       `json:"run_after" db:"run_after"`
	Payload     json.RawMessage `json:"payload" db:"payload"`
	DedupeKey   *string         `json:"dedupe_key,omitempty" db:"dedupe_key"`
	Status      JobStatus       `json:"status" db:"status"`
	LastError   *string         `json:"last_error,omitempty" db:"last_error"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// EntitySyncPayload drives the per-entity handlers. Direction is determined
// by which id is present: remote_id means inbound, local_id means outbound.
type EntitySyncPayload struct {
	RemoteID string `json:"remote_id,omitempty"`
	LocalID  string `json:"local_id,omitempty"`
}

type CustomObjectSyncPayload struct {
	ObjectType string `json:"object_type"`
	RemoteID   string `json:"remote_id,omitempty"`
	LocalID    string `json:"local_id,omitempty"`
}

type FormPollPayload struct {
	FormIDs            []string `json:"form_ids"`
	CreateFollowUpTask bool     `json:"create_follow_up_task,omitempty"`
}

type QueueStat struct {
	Status  JobStatus `json:"status"`
	JobType JobType   `json:"job_type"`
	Count   int       `json:"count"`
}
