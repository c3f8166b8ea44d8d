package embed

import (
	"context"
	"errors"
	"net"

	"github.com/poiesic/corpus/core"
)

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrRateLimited indicates the embedding provider rejected the call
	// due to rate limiting. Callers should retry with backoff.
	ErrRateLimited = errors.New("embedding provider rate limited")

	// ErrUnavailable indicates the embedding provider could not be reached
	// or returned a server error. Callers should retry with backoff.
	ErrUnavailable = errors.New("embedding provider unavailable")

	// ErrCountMismatch indicates the provider returned a different number
	// of vectors than texts submitted. Not retryable.
	ErrCountMismatch = errors.New("embedding count mismatch")
)

// IsTransient reports whether an error is worth retrying. Rate limits,
// provider outages, network timeouts, and store unavailability are
// transient. Everything else (malformed input, count mismatches,
// cancellation) is permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable) {
		return true
	}
	if errors.Is(err, core.ErrStoreUnavailable) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
