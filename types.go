package pinauth

import (
	"context"
	"time"
)

// UserCredential is the account record returned by [CredentialStore]. It carries
// the PIN digest, the on-file email, the per-user enable flags, and an opaque
// permission set that is passed through to the session untouched.
type UserCredential struct {
	UserID        string
	PINDigest     string
	Email         string
	IsAdmin       bool
	TwoFAEnabled  bool
	EmailVerified bool
	Permissions   map[string]bool
}

// CredentialStore is the interface callers must implement to integrate pinauth
// with their credential system of record. Implementations return
// [ErrCredentialNotFound] for missing rows, [ErrConflict] for unique-constraint
// violations, and wrap connectivity failures in [ErrStoreUnavailable] so the
// engine can distinguish "no match" from "could not look up".
//
// The PIN digest uniqueness invariant is enforced by the store at write time,
// never by application-level locking in this package.
type CredentialStore interface {
	GetByPINDigest(ctx context.Context, digest string) (UserCredential, error)
	GetByID(ctx context.Context, userID string) (UserCredential, error)

	// MarkEmailVerified flips email_verified and two_fa_enabled in one write,
	// completing first-time setup for the user.
	MarkEmailVerified(ctx context.Context, userID string) error
	UpdateEmail(ctx context.Context, userID, email string) error
	SetTwoFAEnabled(ctx context.Context, userID string, enabled bool) error
}

// Mailer delivers a one-time code to a destination address. Implementations
// should honor ctx cancellation; the engine calls SendCode under a configured
// timeout and treats a deadline as "slow, not failed" while any other error
// becomes [ErrEmailDeliveryFailed].
type Mailer interface {
	SendCode(ctx context.Context, to, code string, expiresAt time.Time) error
}

// PinVerifyResult is returned by [Engine.VerifyPin] on a successful match.
type PinVerifyResult struct {
	PinValid     bool
	UserType     string
	UserID       string
	SessionToken string

	TwoFAEnabled  bool
	TwoFARequired bool

	// NeedsEmailVerification is set on a user's first successful login, before
	// any code has been sent; Email carries the on-file address so the caller
	// can drive first-time setup.
	NeedsEmailVerification bool
	Email                  string
	TwoFAEmail             string
}

// SendCodeResult is returned by [Engine.SendCode].
type SendCodeResult struct {
	Message string
	Email   string
}

// TwoFASetupResult is returned by [Engine.TwoFASetup].
type TwoFASetupResult struct {
	SetupRequired bool
	EmailAddress  string
	Message       string
}

// AuthState tags an [AuthContext]. Handlers switch on the state instead of
// probing ad hoc boolean flags.
type AuthState uint8

const (
	// AuthStateUnauthenticated is an exported constant or variable used by the authentication engine.
	AuthStateUnauthenticated AuthState = iota
	// AuthStatePinVerified is an exported constant or variable used by the authentication engine.
	AuthStatePinVerified
	// AuthStateFullyAuthenticated is an exported constant or variable used by the authentication engine.
	AuthStateFullyAuthenticated
)

// AuthContext is returned by [Engine.ResolveSession]. A session whose second
// factor is still outstanding resolves to [AuthStatePinVerified]; once
// satisfied (or never required) it resolves to [AuthStateFullyAuthenticated]
// and carries the pass-through permission set.
type AuthContext struct {
	State         AuthState
	SessionToken  string
	UserID        string
	TwoFARequired bool
	Permissions   map[string]bool
	ExpiresAt     time.Time
}
