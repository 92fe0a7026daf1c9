package models

import "time"

type SyncDirection string

const (
	DirectionInbound  SyncDirection = "inbound"
	DirectionOutbound SyncDirection = "outbound"
)

// AuditEntry is one structured record of a sync outcome. Appends are
// fire-and-forget; a failed append never aborts the sync that produced it.
type AuditEntry struct {
	ID         int64         `json:"id" db:"id"`
	OrgID      string        `json:"org_id" db:"org_id"`
	Direction  SyncDirection `json:"direction" db:"direction"`
	ObjectType ObjectType    `json:"object_type" db:"object_type"`
	EntityID   string        `json:"entity_id" db:"entity_id"`
	Status     string        `json:"status" db:"status"`
	Error      *string       `json:"error,omitempty" db:"error"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
}
