package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists sessions in Redis keyed by session token, with a per-user
// index set so callers can enumerate a user's live sessions.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the Redis key namespace.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + "u:" + userID
}

// Save persists a [Session] with the given TTL and indexes it under the
// owning user.
//
//	Performance: 3 Redis commands in one transaction.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	sessionKey := s.key(sess.SessionID)
	userKey := s.userKey(sess.UserID)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey, data, ttl)
		pipe.SAdd(ctx, userKey, sess.SessionID)
		// The index outlives the newest session by the same TTL; stale members
		// are tolerated by every consumer.
		pipe.Expire(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get retrieves a session by token. now is the caller's normalized UTC unix
// timestamp; a session whose expiry has passed returns [ErrSessionExpired]
// even if the Redis key still exists.
//
//	Performance: 1 Redis GET.
func (s *Store) Get(ctx context.Context, sessionID string, now int64) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	// The encoding omits the session ID (it is the key); restore it so
	// callers can key dependent state off the returned session.
	sess.SessionID = sessionID

	if now >= sess.ExpiresAt {
		return nil, ErrSessionExpired
	}

	return sess, nil
}

// MarkTwoFASatisfied transitions the session's second-factor flag to true.
// The operation is idempotent and monotonic: a session already satisfied is
// left untouched, and the flag is never un-set. The remaining Redis TTL is
// preserved on write-back.
func (s *Store) MarkTwoFASatisfied(ctx context.Context, sessionID string) error {
	const maxRetries = 4
	key := s.key(sessionID)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			sess, err := Decode(data)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
			}

			if sess.TwoFASatisfied {
				return nil
			}
			sess.TwoFASatisfied = true

			updated, err := Encode(sess)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, redis.KeepTTL)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return ErrSessionNotFound
			case errors.Is(err, ErrSessionCorrupt):
				return err
			default:
				return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
		}
		return nil
	}

	return fmt.Errorf("%w: transaction contention", ErrRedisUnavailable)
}

// ActiveSessionIDs lists the session tokens currently indexed for a user.
// Members whose session has already expired may linger; callers must treat
// them as harmless.
func (s *Store) ActiveSessionIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// Delete removes a session and its user-index entry.
func (s *Store) Delete(ctx context.Context, userID, sessionID string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(sessionID))
		pipe.SRem(ctx, s.userKey(userID), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
