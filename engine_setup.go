package pinauth

import (
	"context"
	"errors"
	"net/mail"
)

// TwoFASetup reports whether the session's user still needs first-time email
// verification, surfacing the on-file address so the caller can drive setup.
func (e *Engine) TwoFASetup(ctx context.Context, sessionToken string) (*TwoFASetupResult, error) {
	if e == nil || e.creds == nil {
		return nil, ErrEngineNotReady
	}

	sess, err := e.resolveActiveSession(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	cred, err := e.creds.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, ErrStoreUnavailable
	}

	result := &TwoFASetupResult{
		EmailAddress: cred.Email,
	}
	if cred.TwoFAEnabled && cred.EmailVerified {
		result.Message = "two-factor authentication already configured"
	} else {
		result.SetupRequired = true
		result.Message = "email verification required"
	}

	e.emitAudit(ctx, auditEventTwoFASetup, true, sess.UserID, sess.SessionID, nil, nil)

	return result, nil
}

// SetTwoFAEmail records the destination address during first-time setup.
// Once 2FA is enabled for the user the address is locked and the call fails
// with [ErrConflict]; a syntactically invalid address fails with
// [ErrSetupInvalid].
func (e *Engine) SetTwoFAEmail(ctx context.Context, sessionToken, email string) error {
	if e == nil || e.creds == nil {
		return ErrEngineNotReady
	}

	sess, err := e.resolveActiveSession(ctx, sessionToken)
	if err != nil {
		return err
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return ErrSetupInvalid
	}

	cred, err := e.creds.GetByID(ctx, sess.UserID)
	if err != nil {
		return ErrStoreUnavailable
	}
	if cred.TwoFAEnabled {
		return ErrConflict
	}

	if err := e.creds.UpdateEmail(ctx, sess.UserID, email); err != nil {
		if errors.Is(err, ErrCredentialNotFound) || errors.Is(err, ErrConflict) {
			return err
		}
		return ErrStoreUnavailable
	}

	e.emitAudit(ctx, auditEventTwoFAEmailSet, true, sess.UserID, sess.SessionID, nil, nil)

	return nil
}

// MarkEmailVerified completes first-time setup for a user: email_verified and
// two_fa_enabled flip together in a single credential-store write, so the next
// PIN login requires the second factor.
func (e *Engine) MarkEmailVerified(ctx context.Context, userID string) error {
	if e == nil || e.creds == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return ErrCredentialNotFound
	}

	if err := e.creds.MarkEmailVerified(ctx, userID); err != nil {
		if errors.Is(err, ErrCredentialNotFound) || errors.Is(err, ErrConflict) {
			return err
		}
		return ErrStoreUnavailable
	}

	e.metricInc(MetricEmailMarkedVerified)
	e.emitAudit(ctx, auditEventEmailMarkedVerified, true, userID, "", nil, nil)

	return nil
}
