package pinauth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/pinauth/internal"
)

// SendCode describes the send code operation and its observable behavior.
//
// A new fixed-width numeric code is generated for the session, superseding any
// prior unconsumed code, and mailed to the user's on-file address (or the
// administrator's designated 2FA address for the bypass identity). The code
// row is persisted before the mail call, so a slow transport never loses the
// code: exceeding the send timeout still returns success, while a hard
// transport failure returns [ErrEmailDeliveryFailed] with the row kept for a
// later [Engine.VerifyCode].
func (e *Engine) SendCode(ctx context.Context, sessionToken string) (*SendCodeResult, error) {
	if e == nil || e.codes == nil || e.mailer == nil {
		return nil, ErrEngineNotReady
	}

	sess, err := e.resolveActiveSession(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	exempt := e.bypass.IsExempt(sess.UserID)
	if !exempt {
		if err := e.lockouts.CheckAndRecordSend(ctx, sess.UserID); err != nil {
			if errors.Is(err, errLockedOut) {
				e.emitRateLimit(ctx, "send_code", sess.UserID, sess.SessionID)
				return nil, ErrRateLimited
			}
			return nil, ErrStoreUnavailable
		}
	}

	cred, err := e.creds.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, ErrStoreUnavailable
	}

	destination := cred.Email
	if exempt || cred.IsAdmin {
		destination = e.config.Bypass.AdminEmail
	}

	code, err := internal.NewOTP(e.config.EmailCode.Digits)
	if err != nil {
		return nil, ErrStoreUnavailable
	}

	now := e.clock.Now()
	record := &emailCodeRecord{
		SecretHash: hashCode(code),
		IssuedAt:   unixUTC(now),
		ExpiresAt:  unixUTC(now.Add(e.config.EmailCode.TTL)),
	}

	retention := e.config.EmailCode.TTL * time.Duration(e.config.EmailCode.RetentionFactor)
	if err := e.codes.Save(ctx, sess.SessionID, record, retention); err != nil {
		return nil, ErrStoreUnavailable
	}

	sendCtx, cancel := context.WithTimeout(ctx, e.config.EmailCode.SendTimeout)
	sendErr := e.mailer.SendCode(sendCtx, destination, code, time.Unix(record.ExpiresAt, 0).UTC())
	cancel()

	if sendErr != nil && !errors.Is(sendErr, context.DeadlineExceeded) {
		// Hard transport failure is reported, never swallowed. The code row
		// stays persisted so a retry of SendCode or VerifyCode is consistent.
		e.metricInc(MetricCodeSendFailure)
		e.metricInc(MetricEmailDeliveryFailure)
		e.emitAudit(ctx, auditEventCodeSendFailure, false, sess.UserID, sess.SessionID, ErrEmailDeliveryFailed, nil)
		return nil, ErrEmailDeliveryFailed
	}

	e.metricInc(MetricCodeSent)
	e.emitAudit(ctx, auditEventCodeSent, true, sess.UserID, sess.SessionID, nil, func() map[string]string {
		meta := map[string]string{"destination": destination}
		if sendErr != nil {
			meta["delivery"] = "timed_out"
		}
		return meta
	})

	return &SendCodeResult{
		Message: "verification code sent",
		Email:   destination,
	}, nil
}

// VerifyCode describes the verify code operation and its observable behavior.
//
// Expiry always wins over value comparison: an expired-but-correct code fails
// with [ErrCodeExpired], never [ErrInvalidCode] or success. Exactly one
// concurrent caller can consume a code; the rest fail. A successful match
// resets the session's failure counter and promotes the session to fully
// authenticated.
func (e *Engine) VerifyCode(ctx context.Context, sessionToken, code string) error {
	if e == nil || e.codes == nil {
		return ErrEngineNotReady
	}

	sess, err := e.resolveActiveSession(ctx, sessionToken)
	if err != nil {
		return err
	}

	if err := e.consumeSessionCode(ctx, sess.UserID, sess.SessionID, code); err != nil {
		return err
	}

	if err := e.sessions.MarkTwoFASatisfied(ctx, sess.SessionID); err != nil {
		return ErrStoreUnavailable
	}

	e.metricInc(MetricCodeVerifySuccess)
	e.metricInc(MetricTwoFASatisfied)
	e.emitAudit(ctx, auditEventCodeVerifySuccess, true, sess.UserID, sess.SessionID, nil, nil)

	return nil
}

// DisableTwoFA turns off the second factor for the authenticated identity.
// It demands a fresh valid email code under the same taxonomy as
// [Engine.VerifyCode], so possession of a bare session token is not enough.
func (e *Engine) DisableTwoFA(ctx context.Context, sessionToken, code string) error {
	if e == nil || e.codes == nil {
		return ErrEngineNotReady
	}

	sess, err := e.resolveActiveSession(ctx, sessionToken)
	if err != nil {
		return err
	}

	if err := e.consumeSessionCode(ctx, sess.UserID, sess.SessionID, code); err != nil {
		return err
	}

	if err := e.creds.SetTwoFAEnabled(ctx, sess.UserID, false); err != nil {
		if errors.Is(err, ErrCredentialNotFound) || errors.Is(err, ErrConflict) {
			return err
		}
		return ErrStoreUnavailable
	}

	e.metricInc(MetricTwoFADisabled)
	e.emitAudit(ctx, auditEventTwoFADisabled, true, sess.UserID, sess.SessionID, nil, nil)

	return nil
}

// consumeSessionCode runs the guarded consume path shared by VerifyCode and
// DisableTwoFA: limiter check (skipped entirely for the bypass identity, so
// its counters never accumulate), atomic consume with expiry-before-compare,
// failure accounting on mismatch, counter reset on success.
func (e *Engine) consumeSessionCode(ctx context.Context, userID, sessionID, code string) error {
	exempt := e.bypass.IsExempt(userID)
	if !exempt {
		if err := e.lockouts.CheckVerifyAttempt(ctx, sessionID); err != nil {
			if errors.Is(err, errLockedOut) {
				e.emitRateLimit(ctx, "verify_code", userID, sessionID)
				return ErrRateLimited
			}
			return ErrStoreUnavailable
		}
	}

	_, err := e.codes.Consume(ctx, sessionID, hashCode(code), unixUTC(e.clock.Now()))
	if err != nil {
		switch {
		case errors.Is(err, errCodeNotFound):
			e.metricInc(MetricCodeVerifyFailure)
			e.emitAudit(ctx, auditEventCodeVerifyFailure, false, userID, sessionID, ErrNoCodeIssued, nil)
			return ErrNoCodeIssued
		case errors.Is(err, errCodeExpired):
			e.metricInc(MetricCodeExpired)
			e.emitAudit(ctx, auditEventCodeVerifyFailure, false, userID, sessionID, ErrCodeExpired, nil)
			return ErrCodeExpired
		case errors.Is(err, errCodeMismatch):
			if !exempt {
				_ = e.lockouts.RecordVerifyFailure(ctx, sessionID)
			}
			e.metricInc(MetricCodeVerifyFailure)
			e.emitAudit(ctx, auditEventCodeVerifyFailure, false, userID, sessionID, ErrInvalidCode, nil)
			return ErrInvalidCode
		default:
			return ErrStoreUnavailable
		}
	}

	if !exempt {
		_ = e.lockouts.ResetVerify(ctx, sessionID)
	}

	return nil
}
