package pinauth

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventPinLoginSuccess     = "pin_login_success"
	auditEventPinLoginFailure     = "pin_login_failure"
	auditEventPinLoginRateLimited = "pin_login_rate_limited"
	auditEventAdminLockoutCleared = "admin_lockout_cleared"
	auditEventCodeSent            = "email_code_sent"
	auditEventCodeSendFailure     = "email_code_send_failure"
	auditEventCodeVerifySuccess   = "email_code_verify_success"
	auditEventCodeVerifyFailure   = "email_code_verify_failure"
	auditEventTwoFASetup          = "twofa_setup"
	auditEventTwoFAEmailSet       = "twofa_email_set"
	auditEventTwoFADisabled       = "twofa_disabled"
	auditEventEmailMarkedVerified = "email_marked_verified"
	auditEventRateLimitTriggered  = "rate_limit_triggered"
	auditEventAccessTokenIssued   = "access_token_issued"
)

// AuditErrorCode defines a public type used by pinauth APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrInvalidCredential AuditErrorCode = "invalid_credential"
	auditErrSessionInvalid    AuditErrorCode = "session_invalid"
	auditErrNoCodeIssued      AuditErrorCode = "no_code_issued"
	auditErrCodeExpired       AuditErrorCode = "code_expired"
	auditErrInvalidCode       AuditErrorCode = "invalid_code"
	auditErrRateLimited       AuditErrorCode = "rate_limited"
	auditErrEmailDelivery     AuditErrorCode = "email_delivery_failed"
	auditErrStoreUnavailable  AuditErrorCode = "store_unavailable"
	auditErrConflict          AuditErrorCode = "conflict"
	auditErrNotFound          AuditErrorCode = "not_found"
	auditErrSetupInvalid      AuditErrorCode = "setup_invalid"
	auditErrTwoFARequired     AuditErrorCode = "twofa_required"
	auditErrInternal          AuditErrorCode = "internal_error"
)

func auditErrorCode(err error) AuditErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredential):
		return auditErrInvalidCredential
	case errors.Is(err, ErrSessionInvalid):
		return auditErrSessionInvalid
	case errors.Is(err, ErrNoCodeIssued):
		return auditErrNoCodeIssued
	case errors.Is(err, ErrCodeExpired):
		return auditErrCodeExpired
	case errors.Is(err, ErrInvalidCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrEmailDeliveryFailed):
		return auditErrEmailDelivery
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrStoreUnavailable
	case errors.Is(err, ErrConflict):
		return auditErrConflict
	case errors.Is(err, ErrCredentialNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrSetupInvalid):
		return auditErrSetupInvalid
	case errors.Is(err, ErrTwoFARequired):
		return auditErrTwoFARequired
	default:
		return auditErrInternal
	}
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(
	ctx context.Context,
	scope string,
	userID string,
	sessionID string,
) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, userID, sessionID, nil, func() map[string]string {
		return map[string]string{
			"scope": scope,
		}
	})
}
