package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
)

// ServiceAudience is the audience claim service tokens must carry. Tokens
// minted for other services share the signing secret but not this claim.
const ServiceAudience = "sync-worker"

// AuthHandler verifies service-to-service bearer tokens. The sync API has no
// users of its own; callers are internal services holding an HS256 token
// signed with the shared secret.
type AuthHandler struct {
	jwtSecret string
	logger    zerolog.Logger
}

func NewAuthHandler(jwtSecret string, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

func (h *AuthHandler) JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization format", http.StatusUnauthorized)
			return
		}
		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(h.jwtSecret), nil
		})
		if err != nil || !token.Valid {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !claims.VerifyExpiresAt(time.Now().Unix(), true) {
			http.Error(w, "Token expired", http.StatusUnauthorized)
			return
		}
		if !claims.VerifyAudience(ServiceAudience, true) {
			http.Error(w, "Invalid token audience", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
