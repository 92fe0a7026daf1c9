package models

import "time"

// Local business objects touched by the sync subsystem. These are owned by
// the main application; sync reads them and writes only the columns listed
// in each entity's field map.

type Contact struct {
	ID         string    `json:"id" db:"id"`
	OrgID      string    `json:"org_id" db:"org_id"`
	Email      string    `json:"email" db:"email"`
	FirstName  string    `json:"first_name" db:"first_name"`
	LastName   string    `json:"last_name" db:"last_name"`
	Phone      string    `json:"phone" db:"phone"`
	Company    string    `json:"company" db:"company"`
	LeadSource string    `json:"lead_source" db:"lead_source"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

type Deal struct {
	ID        string     `json:"id" db:"id"`
	OrgID     string     `json:"org_id" db:"org_id"`
	Name      string     `json:"name" db:"name"`
	Amount    float64    `json:"amount" db:"amount"`
	Stage     string     `json:"stage" db:"stage"`
	CloseDate *time.Time `json:"close_date,omitempty" db:"close_date"`
	ContactID *string    `json:"contact_id,omitempty" db:"contact_id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

type Task struct {
	ID        string     `json:"id" db:"id"`
	OrgID     string     `json:"org_id" db:"org_id"`
	Title     string     `json:"title" db:"title"`
	Body      string     `json:"body" db:"body"`
	Status    string     `json:"status" db:"status"`
	DueAt     *time.Time `json:"due_at,omitempty" db:"due_at"`
	OwnerID   *string    `json:"owner_id,omitempty" db:"owner_id"`
	ContactID *string    `json:"contact_id,omitempty" db:"contact_id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

type Note struct {
	ID        string    `json:"id" db:"id"`
	OrgID     string    `json:"org_id" db:"org_id"`
	Body      string    `json:"body" db:"body"`
	ContactID *string   `json:"contact_id,omitempty" db:"contact_id"`
	DealID    *string   `json:"deal_id,omitempty" db:"deal_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Quote struct {
	ID        string    `json:"id" db:"id"`
	OrgID     string    `json:"org_id" db:"org_id"`
	Title     string    `json:"title" db:"title"`
	Status    string    `json:"status" db:"status"`
	Amount    float64   `json:"amount" db:"amount"`
	DealID    *string   `json:"deal_id,omitempty" db:"deal_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CustomObject is a schemaless local record mirrored from an org-defined
// partner object type; its properties are stored as an opaque bag.
type CustomObject struct {
	ID         string            `json:"id" db:"id"`
	OrgID      string            `json:"org_id" db:"org_id"`
	ObjectType string            `json:"object_type" db:"object_type"`
	Properties map[string]string `json:"properties" db:"properties"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at" db:"updated_at"`
}

type LineItem struct {
	ID        string    `json:"id" db:"id"`
	OrgID     string    `json:"org_id" db:"org_id"`
	QuoteID   string    `json:"quote_id" db:"quote_id"`
	Name      string    `json:"name" db:"name"`
	Quantity  int       `json:"quantity" db:"quantity"`
	UnitPrice float64   `json:"unit_price" db:"unit_price"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
