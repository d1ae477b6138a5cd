// Package session stores PIN-authenticated sessions in Redis with an opaque,
// cryptographically random token as key. Timestamps are UTC unix seconds;
// callers pass their own normalized "now" so the store never constructs a
// competing wall-clock value.
package session

import "errors"

// ErrRedisUnavailable is returned when the backing Redis cannot be reached.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrSessionNotFound is returned when no session exists for the token.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExpired is returned when the session exists but its expiry has passed.
var ErrSessionExpired = errors.New("session expired")

// ErrSessionCorrupt is returned when a stored session cannot be decoded.
var ErrSessionCorrupt = errors.New("session corrupt")

// Session is a PIN-authenticated context awaiting or holding full (2FA)
// authentication. TwoFASatisfied is monotonic: it transitions false→true once
// and is never reset without a fresh PIN login creating a new session.
type Session struct {
	SessionID string
	UserID    string

	TwoFARequired  bool
	TwoFASatisfied bool

	CreatedAt int64 // unix UTC seconds
	ExpiresAt int64 // unix UTC seconds

	// Permissions is the opaque per-user permission set, passed through from
	// the credential store untouched.
	Permissions map[string]bool
}
