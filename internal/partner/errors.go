package partner

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// APIError is a non-2xx response from the partner.
type APIError struct {
	StatusCode int
	Body       string
	// RetryAfter carries the partner's Retry-After hint on rate-limit
	// responses, zero when absent.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("partner api: status %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether the failure is worth retrying: rate limits and
// partner-side errors, not validation or auth rejections.
func (e *APIError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Conflict reports an already-exists rejection, which idempotent creators
// treat as success.
func (e *APIError) Conflict() bool {
	return e.StatusCode == http.StatusConflict
}

// InvalidGrantError means the refresh token itself was rejected: the org's
// connection is revoked and must be re-established by the user.
type InvalidGrantError struct {
	Body string
}

func (e *InvalidGrantError) Error() string {
	return fmt.Sprintf("partner api: invalid oauth grant: %s", e.Body)
}

func IsInvalidGrant(err error) bool {
	var ig *InvalidGrantError
	return errors.As(err, &ig)
}

func IsTransient(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Transient()
	}
	// Network-level failures are transient by default.
	return err != nil && !IsInvalidGrant(err)
}

// RetryAfterHint extracts the partner's rate-limit hint from an error chain,
// zero when none was supplied.
func RetryAfterHint(err error) time.Duration {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.RetryAfter
	}
	return 0
}
