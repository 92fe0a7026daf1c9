// Package partner talks to the external CRM's REST API. The partner is
// treated as a generic OAuth2 + object CRUD/search collaborator; nothing in
// here knows about local storage.
package partner

import (
	"context"
	"time"
)

// Object is a remote entity: an id, a flat property bag, and the partner's
// last-modified timestamp used for last-write-wins decisions.
type Object struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
	ModifiedAt time.Time         `json:"updatedAt"`
}

type TokenGrant struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

type PropertyDef struct {
	Name    string   `json:"name"`
	Label   string   `json:"label"`
	Type    string   `json:"type"`
	Options []string `json:"options,omitempty"`
}

type FormSubmission struct {
	ID          string            `json:"id"`
	SubmittedAt time.Time         `json:"submittedAt"`
	Values      map[string]string `json:"values"`
}

// API is the surface the sync handlers consume. Search returns the first
// match or nil; implementations retry transient failures internally.
type API interface {
	RefreshToken(ctx context.Context, refreshToken string) (TokenGrant, error)

	GetObject(ctx context.Context, token, objectType, id string, properties []string) (*Object, error)
	SearchObjects(ctx context.Context, token, objectType, property, value string, properties []string) (*Object, error)
	CreateObject(ctx context.Context, token, objectType string, properties map[string]string) (*Object, error)
	UpdateObject(ctx context.Context, token, objectType, id string, properties map[string]string) error
	Associate(ctx context.Context, token, fromType, fromID, toType, toID string) error

	ListProperties(ctx context.Context, token, objectType string) ([]PropertyDef, error)
	CreateProperty(ctx context.Context, token, objectType string, def PropertyDef) error

	ListFormSubmissions(ctx context.Context, token, formID string, after time.Time) ([]FormSubmission, error)
	ListFormSubmissionsLegacy(ctx context.Context, token, formID string, after time.Time) ([]FormSubmission, error)
}
