package models

import "time"

type ObjectType string

const (
	ObjectContact        ObjectType = "contact"
	ObjectDeal           ObjectType = "deal"
	ObjectTask           ObjectType = "task"
	ObjectNote           ObjectType = "note"
	ObjectQuote          ObjectType = "quote"
	ObjectLineItem       ObjectType = "line_item"
	ObjectFormSubmission ObjectType = "form_submission"
)

// ObjectMapping correlates a local entity with its partner counterpart.
// Unique on (org_id, object_type, remote_id); upserted on every sync, never
// deleted by the sync path itself.
type ObjectMapping struct {
	ID                       int64      `json:"id" db:"id"`
	OrgID                    string     `json:"org_id" db:"org_id"`
	ObjectType               ObjectType `json:"object_type" db:"object_type"`
	LocalID                  *string    `json:"local_id,omitempty" db:"local_id"`
	RemoteID                 string     `json:"remote_id" db:"remote_id"`
	LocalKey                 *string    `json:"local_key,omitempty" db:"local_key"`
	LastSyncedAt             time.Time  `json:"last_synced_at" db:"last_synced_at"`
	LastSeenRemoteModifiedAt *time.Time `json:"last_seen_remote_modified_at,omitempty" db:"last_seen_remote_modified_at"`
}
