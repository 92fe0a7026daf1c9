package models

import "time"

// OrgCredential holds the OAuth state for one organization's partner
// connection. AccessToken must outlive the refresh skew before use.
type OrgCredential struct {
	OrgID          string    `json:"org_id" db:"org_id"`
	AccessToken    string    `json:"-" db:"access_token"`
	RefreshToken   string    `json:"-" db:"refresh_token"`
	TokenExpiresAt time.Time `json:"token_expires_at" db:"token_expires_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// StageMap is the org-configured two-way lookup between local pipeline stage
// identifiers and partner-side stage identifiers.
type StageMap map[string]string

func (m StageMap) Remote(local string) (string, bool) {
	remote, ok := m[local]
	return remote, ok
}

func (m StageMap) Local(remote string) (string, bool) {
	for local, r := range m {
		if r == remote {
			return local, true
		}
	}
	return "", false
}

type Integration struct {
	OrgID            string    `json:"org_id" db:"org_id"`
	IsConnected      bool      `json:"is_connected" db:"is_connected"`
	DisconnectReason *string   `json:"disconnect_reason,omitempty" db:"disconnect_reason"`
	StageMap         StageMap  `json:"stage_map" db:"stage_map"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

type OrgMember struct {
	OrgID  string `json:"org_id" db:"org_id"`
	UserID string `json:"user_id" db:"user_id"`
	Email  string `json:"email" db:"email"`
	Role   string `json:"role" db:"role"`
}
