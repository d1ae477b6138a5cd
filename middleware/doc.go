// Package middleware exposes HTTP middleware adapters for session-based
// authorization enforcement built on top of pinauth.Engine resolution.
//
// # Guards
//
//   - [Guard] — resolves the bearer session token and enforces a minimum auth state.
//   - [RequirePinVerified] — admits any live session, second factor pending or not.
//   - [RequireTwoFA] — admits only fully-authenticated sessions.
//
// Each guard reads the Authorization header, calls Engine.ResolveSession, and
// injects the resolved context into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself — all decisions are delegated to
// Engine.ResolveSession.
//
// # What this package must NOT do
//
//   - Inspect or decode session tokens directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from the resolved state.
package middleware
