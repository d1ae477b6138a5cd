package pinauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/pinauth/internal"
	"github.com/MrEthical07/pinauth/session"
)

// UserType values carried in [PinVerifyResult].
const (
	UserTypeAdmin    = "admin"
	UserTypeStandard = "standard"
)

// VerifyPin describes the verify pin operation and its observable behavior.
//
// The submitted PIN is hashed and matched against the credential store; no
// format validation happens here. A miss returns [ErrInvalidCredential]
// without revealing which part of the credential was wrong. A match issues a
// fresh session and classifies the caller:
//
//   - the designated administrator gets two_fa_required=true and has any
//     pre-existing lockout state cleared unconditionally;
//   - a first-time user (2FA not yet enabled) gets needs_email_verification=true
//     with the on-file email surfaced, and no code is sent;
//   - a returning verified user gets two_fa_required=true.
//
// A credential-store outage surfaces as [ErrStoreUnavailable], never as a
// silent "no match".
func (e *Engine) VerifyPin(ctx context.Context, pin string) (*PinVerifyResult, error) {
	if e == nil || e.creds == nil {
		return nil, ErrEngineNotReady
	}

	clientIP := clientIPFromContext(ctx)

	if err := e.lockouts.CheckPinAttempt(ctx, clientIP); err != nil {
		if errors.Is(err, errLockedOut) {
			e.metricInc(MetricPinLoginRateLimited)
			e.emitRateLimit(ctx, "pin_login", "", "")
			return nil, ErrRateLimited
		}
		return nil, ErrStoreUnavailable
	}

	cred, err := e.creds.GetByPINDigest(ctx, HashPIN(pin))
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			_ = e.lockouts.RecordPinFailure(ctx, clientIP)
			e.metricInc(MetricPinLoginFailure)
			e.emitAudit(ctx, auditEventPinLoginFailure, false, "", "", ErrInvalidCredential, nil)
			return nil, ErrInvalidCredential
		}
		if errors.Is(err, ErrStoreUnavailable) {
			return nil, err
		}
		return nil, ErrStoreUnavailable
	}

	isAdmin := cred.IsAdmin || e.bypass.IsExempt(cred.UserID)

	result := &PinVerifyResult{
		PinValid: true,
		UserID:   cred.UserID,
		UserType: UserTypeStandard,
		Email:    cred.Email,
	}

	switch {
	case isAdmin:
		result.UserType = UserTypeAdmin
		result.TwoFAEnabled = true
		result.TwoFARequired = true
		result.TwoFAEmail = e.config.Bypass.AdminEmail
	case !cred.TwoFAEnabled:
		// First successful login: the caller drives email setup before any
		// code is ever sent.
		result.NeedsEmailVerification = true
	default:
		result.TwoFAEnabled = true
		result.TwoFARequired = true
		result.TwoFAEmail = cred.Email
	}

	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, ErrStoreUnavailable
	}

	now := e.clock.Now()
	sess := &session.Session{
		SessionID:     sid.String(),
		UserID:        cred.UserID,
		TwoFARequired: result.TwoFARequired,
		CreatedAt:     unixUTC(now),
		ExpiresAt:     unixUTC(now.Add(e.config.Session.TTL)),
		Permissions:   cred.Permissions,
	}

	if err := e.sessions.Save(ctx, sess, e.config.Session.TTL); err != nil {
		return nil, ErrStoreUnavailable
	}
	result.SessionToken = sess.SessionID
	e.metricInc(MetricSessionCreated)

	_ = e.lockouts.ResetPin(ctx, clientIP)

	if isAdmin {
		if err := e.bypass.OnAdminLogin(ctx, cred.UserID); err != nil {
			return nil, ErrStoreUnavailable
		}
		e.metricInc(MetricLockoutCleared)
		e.emitAudit(ctx, auditEventAdminLockoutCleared, true, cred.UserID, sess.SessionID, nil, nil)
	}

	e.metricInc(MetricPinLoginSuccess)
	e.emitAudit(ctx, auditEventPinLoginSuccess, true, cred.UserID, sess.SessionID, nil, func() map[string]string {
		return map[string]string{
			"user_type": result.UserType,
		}
	})

	return result, nil
}
