package network

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCode indicates the verification code did not match.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrCodeExpired indicates the verification code is no longer usable.
	ErrCodeExpired = errors.New("verification code expired")
	// ErrPasswordNeeded indicates the account requires a two-factor password.
	ErrPasswordNeeded = errors.New("two-factor password required")
	// ErrInvalidPassword indicates the two-factor password did not match.
	ErrInvalidPassword = errors.New("invalid two-factor password")
	// ErrSessionRevoked indicates the stored session token was invalidated remotely.
	ErrSessionRevoked = errors.New("session token revoked")
	// ErrTimeout indicates an external call exceeded its deadline.
	ErrTimeout = errors.New("network call timed out")
)

// FloodWaitError reports a rate limit imposed by the external network.
type FloodWaitError struct {
	RetryAfter time.Duration
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood limit exceeded, retry after %s", e.RetryAfter)
}

// IsFloodWait extracts a FloodWaitError from the error chain.
func IsFloodWait(err error) (*FloodWaitError, bool) {
	var flood *FloodWaitError
	if errors.As(err, &flood) {
		return flood, true
	}

	return nil, false
}
