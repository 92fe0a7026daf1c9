package sync

import (
	"context"
	"testing"
	"time"

	"github.com/relaycrm/sync-api/internal/partner"
	"github.com/relaycrm/sync-api/internal/repository"
)

func TestAccessToken_FreshTokenSkipsRefresh(t *testing.T) {
	f := newFixture()
	f.creds.cred.AccessToken = "fresh"
	f.creds.cred.TokenExpiresAt = time.Now().Add(time.Hour)

	token, err := f.worker.accessToken(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("accessToken failed: %v", err)
	}
	if token != "fresh" {
		t.Errorf("got token %q, want stored token", token)
	}
	// refreshTokenFn was never set: a refresh would have errored.
	if len(f.creds.updated) != 0 {
		t.Error("no token write expected on the fast path")
	}
}

func TestAccessToken_ExpiringTokenRefreshesAndPersists(t *testing.T) {
	f := newFixture()
	f.creds.cred.AccessToken = "stale"
	f.creds.cred.RefreshToken = "ref-1"
	f.creds.cred.TokenExpiresAt = time.Now().Add(30 * time.Second) // inside the 2m skew

	f.api.refreshTokenFn = func(ctx context.Context, refreshToken string) (partner.TokenGrant, error) {
		if refreshToken != "ref-1" {
			t.Errorf("refresh used wrong token: %q", refreshToken)
		}
		return partner.TokenGrant{AccessToken: "new", RefreshToken: "ref-2", ExpiresIn: 1800}, nil
	}

	token, err := f.worker.accessToken(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("accessToken failed: %v", err)
	}
	if token != "new" {
		t.Errorf("got token %q, want refreshed token", token)
	}
	if len(f.creds.updated) != 1 {
		t.Fatalf("expected 1 token write, got %d", len(f.creds.updated))
	}
	saved := f.creds.updated[0]
	if saved.AccessToken != "new" || saved.RefreshToken != "ref-2" {
		t.Errorf("unexpected persisted grant: %+v", saved)
	}
	wantExpiry := time.Now().Add(1800 * time.Second)
	if saved.TokenExpiresAt.Before(wantExpiry.Add(-10*time.Second)) ||
		saved.TokenExpiresAt.After(wantExpiry.Add(10*time.Second)) {
		t.Errorf("unexpected expiry: %v", saved.TokenExpiresAt)
	}
}

func TestAccessToken_InvalidGrantDisconnectsOrg(t *testing.T) {
	f := newFixture()
	f.creds.cred.TokenExpiresAt = time.Now() // expired
	f.api.refreshTokenFn = func(ctx context.Context, refreshToken string) (partner.TokenGrant, error) {
		return partner.TokenGrant{}, &partner.InvalidGrantError{Body: "revoked"}
	}

	_, err := f.worker.accessToken(context.Background(), "org-1")
	if err == nil {
		t.Fatal("expected error on revoked grant")
	}
	if len(f.creds.disconnected) != 1 || f.creds.disconnected[0] != "org-1" {
		t.Errorf("org must be marked disconnected, got %v", f.creds.disconnected)
	}
	if len(f.creds.updated) != 0 {
		t.Error("no tokens must be persisted on a revoked grant")
	}
}

func TestAccessToken_MissingCredentials(t *testing.T) {
	f := newFixture()
	f.creds.credErr = repository.ErrNotFound

	_, err := f.worker.accessToken(context.Background(), "org-1")
	if err != ErrMissingCredentials {
		t.Errorf("got %v, want ErrMissingCredentials", err)
	}
}
