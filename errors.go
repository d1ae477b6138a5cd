package pinauth

import "errors"

var (
	// ErrInvalidCredential is an exported constant or variable used by the authentication engine.
	// It never distinguishes an unknown PIN from a malformed one.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrSessionInvalid is an exported constant or variable used by the authentication engine.
	// It covers both missing and expired session tokens.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrNoCodeIssued is an exported constant or variable used by the authentication engine.
	ErrNoCodeIssued = errors.New("no verification code issued")
	// ErrCodeExpired is an exported constant or variable used by the authentication engine.
	ErrCodeExpired = errors.New("verification code expired")
	// ErrInvalidCode is an exported constant or variable used by the authentication engine.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrRateLimited is an exported constant or variable used by the authentication engine.
	ErrRateLimited = errors.New("too many attempts")
	// ErrEmailDeliveryFailed is an exported constant or variable used by the authentication engine.
	ErrEmailDeliveryFailed = errors.New("email delivery failed")
	// ErrStoreUnavailable is an exported constant or variable used by the authentication engine.
	// It is the only condition under which a client should retry the identical request.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrConflict is an exported constant or variable used by the authentication engine.
	// Duplicate PIN digests at credential-creation time pass through as this error.
	ErrConflict = errors.New("conflicting credential state")
	// ErrCredentialNotFound is an exported constant or variable used by the authentication engine.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrSetupInvalid is an exported constant or variable used by the authentication engine.
	ErrSetupInvalid = errors.New("invalid two-factor setup request")
	// ErrTwoFARequired is an exported constant or variable used by the authentication engine.
	ErrTwoFARequired = errors.New("two-factor verification required")
	// ErrAccessTokensDisabled is an exported constant or variable used by the authentication engine.
	ErrAccessTokensDisabled = errors.New("access token issuance disabled")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
