// Package credstore provides a PostgreSQL implementation of the engine's
// CredentialStore contract on top of pgxpool.
package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/pinauth"
)

const uniqueViolation = "23505"

// Schema is the reference DDL for the credential table. The pin_digest unique
// constraint is what enforces digest uniqueness; the application never locks.
const Schema = `
CREATE TABLE IF NOT EXISTS auth_credentials (
    user_id        TEXT PRIMARY KEY,
    pin_digest     TEXT NOT NULL UNIQUE,
    email          TEXT NOT NULL DEFAULT '',
    is_admin       BOOLEAN NOT NULL DEFAULT FALSE,
    two_fa_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    email_verified BOOLEAN NOT NULL DEFAULT FALSE,
    permissions    JSONB NOT NULL DEFAULT '{}'::jsonb
);
`

// Postgres is a [pinauth.CredentialStore] backed by a pgx connection pool.
// The pool is safe for concurrent use; create one per process.
type Postgres struct {
	pool *pgxpool.Pool
}

// New creates a [Postgres] store and verifies connectivity with a ping.
func New(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pinauth.ErrStoreUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", pinauth.ErrStoreUnavailable, err)
	}
	return &Postgres{pool: pool}, nil
}

// NewWithPool wraps an existing pool, for callers that manage their own.
func NewWithPool(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Close releases the connection pool.
func (s *Postgres) Close() {
	s.pool.Close()
}

// CreateCredential inserts a new credential row. An empty UserID is replaced
// with a generated UUID. A duplicate PIN digest surfaces as
// [pinauth.ErrConflict], passed through unchanged to callers.
func (s *Postgres) CreateCredential(ctx context.Context, cred pinauth.UserCredential) (string, error) {
	if cred.UserID == "" {
		cred.UserID = uuid.NewString()
	}

	perms, err := marshalPermissions(cred.Permissions)
	if err != nil {
		return "", err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO auth_credentials
		    (user_id, pin_digest, email, is_admin, two_fa_enabled, email_verified, permissions)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		cred.UserID, cred.PINDigest, cred.Email, cred.IsAdmin,
		cred.TwoFAEnabled, cred.EmailVerified, perms)
	if err != nil {
		return "", mapWriteError(err)
	}

	return cred.UserID, nil
}

// GetByPINDigest describes the get by pin digest operation and its observable behavior.
//
// GetByPINDigest may return an error when input validation, dependency calls, or security checks fail.
// GetByPINDigest does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Postgres) GetByPINDigest(ctx context.Context, digest string) (pinauth.UserCredential, error) {
	return s.getOne(ctx,
		`SELECT user_id, pin_digest, email, is_admin, two_fa_enabled, email_verified, permissions
		 FROM auth_credentials WHERE pin_digest = $1`, digest)
}

// GetByID describes the get by id operation and its observable behavior.
//
// GetByID may return an error when input validation, dependency calls, or security checks fail.
// GetByID does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Postgres) GetByID(ctx context.Context, userID string) (pinauth.UserCredential, error) {
	return s.getOne(ctx,
		`SELECT user_id, pin_digest, email, is_admin, two_fa_enabled, email_verified, permissions
		 FROM auth_credentials WHERE user_id = $1`, userID)
}

// MarkEmailVerified flips email_verified and two_fa_enabled in a single
// statement, completing first-time setup atomically.
func (s *Postgres) MarkEmailVerified(ctx context.Context, userID string) error {
	return s.updateOne(ctx,
		`UPDATE auth_credentials SET email_verified = TRUE, two_fa_enabled = TRUE
		 WHERE user_id = $1`, userID)
}

// UpdateEmail describes the update email operation and its observable behavior.
//
// UpdateEmail may return an error when input validation, dependency calls, or security checks fail.
func (s *Postgres) UpdateEmail(ctx context.Context, userID, email string) error {
	return s.updateOne(ctx,
		`UPDATE auth_credentials SET email = $2 WHERE user_id = $1`, userID, email)
}

// SetTwoFAEnabled describes the set two fa enabled operation and its observable behavior.
//
// SetTwoFAEnabled may return an error when input validation, dependency calls, or security checks fail.
func (s *Postgres) SetTwoFAEnabled(ctx context.Context, userID string, enabled bool) error {
	return s.updateOne(ctx,
		`UPDATE auth_credentials SET two_fa_enabled = $2 WHERE user_id = $1`, userID, enabled)
}

func (s *Postgres) getOne(ctx context.Context, query string, arg any) (pinauth.UserCredential, error) {
	var (
		cred  pinauth.UserCredential
		perms []byte
	)

	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&cred.UserID, &cred.PINDigest, &cred.Email, &cred.IsAdmin,
		&cred.TwoFAEnabled, &cred.EmailVerified, &perms)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pinauth.UserCredential{}, pinauth.ErrCredentialNotFound
		}
		return pinauth.UserCredential{}, fmt.Errorf("%w: %v", pinauth.ErrStoreUnavailable, err)
	}

	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &cred.Permissions); err != nil {
			return pinauth.UserCredential{}, fmt.Errorf("%w: corrupt permissions: %v", pinauth.ErrStoreUnavailable, err)
		}
	}

	return cred, nil
}

func (s *Postgres) updateOne(ctx context.Context, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return pinauth.ErrCredentialNotFound
	}
	return nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pinauth.ErrConflict
	}
	return fmt.Errorf("%w: %v", pinauth.ErrStoreUnavailable, err)
}

func marshalPermissions(perms map[string]bool) ([]byte, error) {
	if perms == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(perms)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pinauth.ErrStoreUnavailable, err)
	}
	return data, nil
}
