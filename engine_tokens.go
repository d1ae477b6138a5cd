package pinauth

import (
	"context"
	"sort"
)

// IssueAccessToken mints a signed access token for a fully-authenticated
// session. Sessions whose second factor is still outstanding fail with
// [ErrTwoFARequired]; when token issuance is not configured the call fails
// with [ErrAccessTokensDisabled]. The opaque session stays authoritative —
// the token is a bounded-lifetime snapshot of identity and granted
// permissions.
func (e *Engine) IssueAccessToken(ctx context.Context, sessionToken string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	if e.jwtManager == nil {
		return "", ErrAccessTokensDisabled
	}

	sess, err := e.resolveActiveSession(ctx, sessionToken)
	if err != nil {
		return "", err
	}

	if sess.TwoFARequired && !sess.TwoFASatisfied {
		return "", ErrTwoFARequired
	}

	var perms []string
	for name, granted := range sess.Permissions {
		if granted {
			perms = append(perms, name)
		}
	}
	sort.Strings(perms)

	token, err := e.jwtManager.CreateAccess(sess.UserID, sess.SessionID, perms)
	if err != nil {
		return "", err
	}

	e.metricInc(MetricAccessTokenIssued)
	e.emitAudit(ctx, auditEventAccessTokenIssued, true, sess.UserID, sess.SessionID, nil, nil)

	return token, nil
}
