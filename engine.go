package pinauth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/MrEthical07/pinauth/jwt"
	"github.com/MrEthical07/pinauth/session"
)

// Engine defines a public type used by pinauth APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config   Config
	sessions *session.Store
	codes    *emailCodeStore
	lockouts *lockoutLimiter
	bypass   bypassPolicy

	creds  CredentialStore
	mailer Mailer
	clock  TimeSource

	audit      *auditDispatcher
	metrics    *Metrics
	jwtManager *jwt.Manager
}

// Close releases the engine's background resources (the audit dispatcher).
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

// ResolveSession resolves an opaque session token into a tagged [AuthContext].
// Missing and expired tokens both resolve to [AuthStateUnauthenticated] with
// [ErrSessionInvalid]; callers must not learn which of the two it was.
func (e *Engine) ResolveSession(ctx context.Context, sessionToken string) (*AuthContext, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	sess, err := e.resolveActiveSession(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	state := AuthStatePinVerified
	if !sess.TwoFARequired || sess.TwoFASatisfied {
		state = AuthStateFullyAuthenticated
	}

	return &AuthContext{
		State:         state,
		SessionToken:  sess.SessionID,
		UserID:        sess.UserID,
		TwoFARequired: sess.TwoFARequired,
		Permissions:   sess.Permissions,
		ExpiresAt:     time.Unix(sess.ExpiresAt, 0).UTC(),
	}, nil
}

// resolveActiveSession maps the session store's sentinels onto the public
// taxonomy: absent and expired collapse into ErrSessionInvalid, connectivity
// failures stay retryable as ErrStoreUnavailable.
func (e *Engine) resolveActiveSession(ctx context.Context, sessionToken string) (*session.Session, error) {
	if sessionToken == "" {
		return nil, ErrSessionInvalid
	}

	sess, err := e.sessions.Get(ctx, sessionToken, unixUTC(e.clock.Now()))
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound),
			errors.Is(err, session.ErrSessionExpired),
			errors.Is(err, session.ErrSessionCorrupt):
			return nil, ErrSessionInvalid
		default:
			return nil, ErrStoreUnavailable
		}
	}

	return sess, nil
}

// HashPIN produces the deterministic digest used as the credential lookup key.
// Credential provisioning code must store this digest, never the raw PIN. The
// digest must be stable across processes, so salted hashers cannot serve here;
// uniqueness of the digest column is enforced by the credential store.
func HashPIN(pin string) string {
	sum := sha256.Sum256([]byte(pin))
	return hex.EncodeToString(sum[:])
}

func hashCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}
