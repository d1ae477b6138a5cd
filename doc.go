// Package pinauth provides a PIN-based login engine with email one-time-code
// second-factor verification, opaque Redis-backed session tokens, failed-attempt
// lockouts, and a narrowly-scoped administrator bypass policy.
//
// The package is designed for concurrent server workloads: Engine methods are safe
// to call from multiple goroutines after initialization through [Builder.Build].
// All shared state (sessions, one-time codes, lockout counters) lives in Redis,
// never in process memory, so correctness holds across independent replicas.
//
// # Architecture boundaries
//
// pinauth is the public surface. It exposes [Engine], [Builder], [Config], the
// collaborator interfaces ([CredentialStore], [Mailer], [TimeSource]), and value
// types. Storage encodings, lockout key layouts, and randomness helpers live under
// internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Own user credential rows. The credential system of record is reached only
//     through [CredentialStore]; this package reads credentials and flips the
//     email-verified / two-factor enable flags, nothing else.
//   - Deliver email itself. Outbound mail goes through [Mailer] under a bounded
//     timeout; a hard transport failure surfaces as [ErrEmailDeliveryFailed].
//   - Compare a stored expiry against a freshly-constructed wall-clock value.
//     Every timestamp is normalized to UTC unix seconds via the engine's
//     [TimeSource] before storage or comparison.
//
// # Failure taxonomy
//
// Engine operations return the sentinel errors declared in errors.go verbatim.
// Only [ErrStoreUnavailable] invites a client retry of the identical request;
// every other failure requires a new PIN attempt, a fresh code, or waiting out
// a lockout.
package pinauth
