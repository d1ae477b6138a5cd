package pinauth

import (
	"context"

	"github.com/MrEthical07/pinauth/session"
)

// bypassPolicy is the single, explicit carve-out that exempts the designated
// administrator identity from lockout enforcement. It is deliberately a value
// object taking the identity as a parameter: the exemption is auditable and
// testable in isolation, never an inline PIN-literal check in a handler.
//
// The exemption weakens only attempt-rate checks. Expiry and code-matching
// checks apply to the administrator exactly as to everyone else.
type bypassPolicy struct {
	adminUserID string
	lockouts    *lockoutLimiter
	sessions    *session.Store
}

func newBypassPolicy(cfg BypassConfig, lockouts *lockoutLimiter, sessions *session.Store) bypassPolicy {
	return bypassPolicy{
		adminUserID: cfg.AdminUserID,
		lockouts:    lockouts,
		sessions:    sessions,
	}
}

// IsExempt reports whether the identity skips limiter checks entirely.
// Skipped means no counter is ever incremented for the identity, so lockout
// state never accumulates for it from normal use.
func (p bypassPolicy) IsExempt(userID string) bool {
	return p.adminUserID != "" && userID == p.adminUserID
}

// OnAdminLogin clears any pre-existing lockout state for the administrator:
// the send-code lockout keyed by user, and the verify lockout of every session
// currently indexed for the identity. Clearing a non-existent lockout is a
// no-op. Called unconditionally on every successful admin PIN match.
func (p bypassPolicy) OnAdminLogin(ctx context.Context, userID string) error {
	if !p.IsExempt(userID) {
		return nil
	}

	if err := p.lockouts.ClearSendLockout(ctx, userID); err != nil {
		return err
	}

	ids, err := p.sessions.ActiveSessionIDs(ctx, userID)
	if err != nil {
		return err
	}
	for _, sid := range ids {
		if err := p.lockouts.ClearVerifyLockout(ctx, sid); err != nil {
			return err
		}
	}

	return nil
}
