// Package httpapi exposes the engine's operations as a JSON-over-HTTP surface.
//
// # Architecture boundaries
//
// Handlers translate request bodies into Engine calls and Engine errors into
// status codes. No authentication decision is made here.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/pinauth"
)

// Handler serves the authentication endpoints for a single engine.
type Handler struct {
	engine *pinauth.Engine
}

// NewHandler creates a [Handler] bound to the given engine.
func NewHandler(engine *pinauth.Engine) *Handler {
	return &Handler{engine: engine}
}

// Router returns a mux with every endpoint registered:
//
//	POST /auth/pin-verify
//	POST /auth/token
//	POST /2fa/setup
//	POST /2fa/set-email
//	POST /2fa/send-code
//	POST /2fa/verify
//	POST /2fa/disable
//	POST /users/{user_id}/mark-email-verified
func (h *Handler) Router() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/pin-verify", h.PinVerify)
	mux.HandleFunc("POST /auth/token", h.IssueToken)
	mux.HandleFunc("POST /2fa/setup", h.TwoFASetup)
	mux.HandleFunc("POST /2fa/set-email", h.SetEmail)
	mux.HandleFunc("POST /2fa/send-code", h.SendCode)
	mux.HandleFunc("POST /2fa/verify", h.VerifyCode)
	mux.HandleFunc("POST /2fa/disable", h.DisableTwoFA)
	mux.HandleFunc("POST /users/{user_id}/mark-email-verified", h.MarkEmailVerified)
	return mux
}

type pinVerifyRequest struct {
	Pin string `json:"pin"`
}

type pinVerifyResponse struct {
	PinValid               bool   `json:"pin_valid"`
	UserType               string `json:"user_type"`
	UserID                 string `json:"user_id"`
	SessionToken           string `json:"session_token"`
	TwoFAEnabled           bool   `json:"two_fa_enabled"`
	TwoFARequired          bool   `json:"two_fa_required"`
	NeedsEmailVerification bool   `json:"needs_email_verification"`
	Email                  string `json:"email,omitempty"`
	TwoFAEmail             string `json:"two_fa_email,omitempty"`
}

// PinVerify handles POST /auth/pin-verify.
func (h *Handler) PinVerify(w http.ResponseWriter, r *http.Request) {
	var req pinVerifyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.engine.VerifyPin(requestContext(r), req.Pin)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pinVerifyResponse{
		PinValid:               result.PinValid,
		UserType:               result.UserType,
		UserID:                 result.UserID,
		SessionToken:           result.SessionToken,
		TwoFAEnabled:           result.TwoFAEnabled,
		TwoFARequired:          result.TwoFARequired,
		NeedsEmailVerification: result.NeedsEmailVerification,
		Email:                  result.Email,
		TwoFAEmail:             result.TwoFAEmail,
	})
}

type sessionRequest struct {
	SessionToken string `json:"session_token"`
}

// TwoFASetup handles POST /2fa/setup.
func (h *Handler) TwoFASetup(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.engine.TwoFASetup(requestContext(r), req.SessionToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"setup_required": result.SetupRequired,
		"email_address":  result.EmailAddress,
		"message":        result.Message,
	})
}

type setEmailRequest struct {
	SessionToken string `json:"session_token"`
	Email        string `json:"email"`
}

// SetEmail handles POST /2fa/set-email.
func (h *Handler) SetEmail(w http.ResponseWriter, r *http.Request) {
	var req setEmailRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.engine.SetTwoFAEmail(requestContext(r), req.SessionToken, req.Email); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "two-factor email updated",
	})
}

// SendCode handles POST /2fa/send-code.
func (h *Handler) SendCode(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.engine.SendCode(requestContext(r), req.SessionToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": result.Message,
		"email":   result.Email,
	})
}

type verifyCodeRequest struct {
	SessionToken string `json:"session_token"`
	EmailCode    string `json:"email_code"`
}

// VerifyCode handles POST /2fa/verify.
func (h *Handler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.engine.VerifyCode(requestContext(r), req.SessionToken, req.EmailCode); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
	})
}

// DisableTwoFA handles POST /2fa/disable. The session token may arrive in the
// body or as a bearer Authorization header.
func (h *Handler) DisableTwoFA(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	token := req.SessionToken
	if token == "" {
		token = bearerToken(r.Header.Get("Authorization"))
	}

	if err := h.engine.DisableTwoFA(requestContext(r), token, req.EmailCode); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
	})
}

// MarkEmailVerified handles POST /users/{user_id}/mark-email-verified.
func (h *Handler) MarkEmailVerified(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	if err := h.engine.MarkEmailVerified(requestContext(r), userID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "email verified",
		"user_id": userID,
	})
}

// IssueToken handles POST /auth/token.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	token := req.SessionToken
	if token == "" {
		token = bearerToken(r.Header.Get("Authorization"))
	}

	access, err := h.engine.IssueAccessToken(requestContext(r), token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": access,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "malformed request body",
		})
		return false
	}
	return true
}

// requestContext tags the request context with the caller's IP for the
// optional per-IP PIN throttle.
func requestContext(r *http.Request) context.Context {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}
	return pinauth.WithClientIP(r.Context(), ip)
}

func bearerToken(value string) string {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return ""
	}
	return value[len(bearer):]
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the engine's taxonomy onto status codes. Lockout responses
// (429) must stay distinguishable from wrong-code responses (401), and expired
// codes (400) must prompt a fresh send rather than a resubmission.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, pinauth.ErrInvalidCredential),
		errors.Is(err, pinauth.ErrSessionInvalid),
		errors.Is(err, pinauth.ErrInvalidCode):
		status = http.StatusUnauthorized
	case errors.Is(err, pinauth.ErrNoCodeIssued),
		errors.Is(err, pinauth.ErrCodeExpired),
		errors.Is(err, pinauth.ErrSetupInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, pinauth.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, pinauth.ErrEmailDeliveryFailed):
		status = http.StatusBadGateway
	case errors.Is(err, pinauth.ErrStoreUnavailable),
		errors.Is(err, pinauth.ErrEngineNotReady):
		status = http.StatusServiceUnavailable
	case errors.Is(err, pinauth.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, pinauth.ErrCredentialNotFound):
		status = http.StatusNotFound
	case errors.Is(err, pinauth.ErrTwoFARequired):
		status = http.StatusForbidden
	case errors.Is(err, pinauth.ErrAccessTokensDisabled):
		status = http.StatusNotImplemented
	}

	writeJSON(w, status, map[string]any{
		"error": err.Error(),
	})
}
