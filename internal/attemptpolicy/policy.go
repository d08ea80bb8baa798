// Package attemptpolicy implements the per-key brute-force counter and
// lockout described in the component design: atomic increment against a
// window, block on threshold, Retry-After sourced from the store's
// actual remaining TTL.
package attemptpolicy

import "context"

// Outcome is the result of registering a login attempt.
type Outcome struct {
	Blocked           bool
	RetryAfterSeconds int64
}

// Policy is the C7 LoginAttemptPolicy contract.
type Policy interface {
	RegisterAttempt(ctx context.Context, key string) (Outcome, error)
	ResetAttempts(ctx context.Context, key string) error
}
