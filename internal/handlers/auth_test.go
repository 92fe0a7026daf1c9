package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func serveProtected(t *testing.T, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	auth := NewAuthHandler(testSecret, zerolog.Nop())
	handler := auth.JWTMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/sync/jobs/stats", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestJWTMiddleware_ValidServiceToken(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{
		"aud": ServiceAudience,
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	rec := serveProtected(t, "Bearer "+token)
	if rec.Code != http.StatusNoContent {
		t.Errorf("got status %d, want 204: %s", rec.Code, rec.Body.String())
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	rec := serveProtected(t, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want 401", rec.Code)
	}
}

func TestJWTMiddleware_WrongSecret(t *testing.T) {
	token := signToken(t, "other-secret", jwt.MapClaims{
		"aud": ServiceAudience,
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	rec := serveProtected(t, "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want 401", rec.Code)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{
		"aud": ServiceAudience,
		"exp": time.Now().Add(-time.Minute).Unix(),
	})

	rec := serveProtected(t, "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want 401", rec.Code)
	}
}

func TestJWTMiddleware_WrongAudience(t *testing.T) {
	// Signed with the shared secret but minted for a different service.
	token := signToken(t, testSecret, jwt.MapClaims{
		"aud": "billing-api",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	rec := serveProtected(t, "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want 401", rec.Code)
	}
}

func TestJWTMiddleware_MissingAudience(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	rec := serveProtected(t, "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want 401", rec.Code)
	}
}
