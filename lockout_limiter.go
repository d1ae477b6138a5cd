package pinauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	errLockedOut          = errors.New("lockout active")
	errLimiterUnavailable = errors.New("lockout limiter unavailable")
)

// lockoutLimiter tracks failed verification attempts (keyed by session token)
// and send-code requests (keyed by user ID) in Redis, escalating to an explicit
// lock key once a threshold is reached within the window. While the lock key
// exists, guarded operations are rejected without touching the counters, so
// lockouts never compound from repeated rejected calls.
type lockoutLimiter struct {
	redis   redis.UniversalClient
	lockout LockoutConfig
	pin     PinThrottleConfig
}

func newLockoutLimiter(redisClient redis.UniversalClient, lockout LockoutConfig, pin PinThrottleConfig) *lockoutLimiter {
	return &lockoutLimiter{
		redis:   redisClient,
		lockout: lockout,
		pin:     pin,
	}
}

// --- verify attempts (per session token) ---

func (l *lockoutLimiter) CheckVerifyAttempt(ctx context.Context, sessionID string) error {
	return l.checkLocked(ctx, verifyLockKey(sessionID))
}

func (l *lockoutLimiter) RecordVerifyFailure(ctx context.Context, sessionID string) error {
	return l.recordFailure(ctx,
		verifyCounterKey(sessionID), verifyLockKey(sessionID),
		l.lockout.MaxVerifyAttempts, l.lockout.VerifyWindow)
}

func (l *lockoutLimiter) ResetVerify(ctx context.Context, sessionID string) error {
	return l.deleteKeys(ctx, verifyCounterKey(sessionID))
}

func (l *lockoutLimiter) ClearVerifyLockout(ctx context.Context, sessionID string) error {
	return l.deleteKeys(ctx, verifyCounterKey(sessionID), verifyLockKey(sessionID))
}

// --- send-code requests (per user) ---

// CheckAndRecordSend counts every send request against the window; the request
// that exceeds the threshold sets the lock and is itself rejected.
func (l *lockoutLimiter) CheckAndRecordSend(ctx context.Context, userID string) error {
	if err := l.checkLocked(ctx, sendLockKey(userID)); err != nil {
		return err
	}

	count, err := l.incrementWithTTL(ctx, sendCounterKey(userID), l.lockout.SendWindow)
	if err != nil {
		return err
	}
	if count > int64(l.lockout.MaxSendPerWindow) {
		if err := l.setLock(ctx, sendLockKey(userID), sendCounterKey(userID)); err != nil {
			return err
		}
		return errLockedOut
	}

	return nil
}

func (l *lockoutLimiter) ClearSendLockout(ctx context.Context, userID string) error {
	return l.deleteKeys(ctx, sendCounterKey(userID), sendLockKey(userID))
}

// --- PIN attempts (per client IP, optional) ---

func (l *lockoutLimiter) CheckPinAttempt(ctx context.Context, ip string) error {
	if !l.pin.Enabled || ip == "" {
		return nil
	}
	return l.checkLocked(ctx, pinLockKey(ip))
}

func (l *lockoutLimiter) RecordPinFailure(ctx context.Context, ip string) error {
	if !l.pin.Enabled || ip == "" {
		return nil
	}
	return l.recordFailure(ctx, pinCounterKey(ip), pinLockKey(ip), l.pin.MaxAttempts, l.pin.Window)
}

func (l *lockoutLimiter) ResetPin(ctx context.Context, ip string) error {
	if !l.pin.Enabled || ip == "" {
		return nil
	}
	return l.deleteKeys(ctx, pinCounterKey(ip))
}

// --- shared mechanics ---

func (l *lockoutLimiter) checkLocked(ctx context.Context, lockKey string) error {
	exists, err := l.redis.Exists(ctx, lockKey).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errLimiterUnavailable, err)
	}
	if exists > 0 {
		return errLockedOut
	}
	return nil
}

// recordFailure increments the window counter and, when the threshold is
// reached, converts it into a lock. The failing attempt itself still surfaces
// its own domain error to the caller; subsequent calls observe the lock.
func (l *lockoutLimiter) recordFailure(
	ctx context.Context,
	counterKey, lockKey string,
	maxAttempts int,
	window time.Duration,
) error {
	count, err := l.incrementWithTTL(ctx, counterKey, window)
	if err != nil {
		return err
	}
	if count >= int64(maxAttempts) {
		return l.setLock(ctx, lockKey, counterKey)
	}
	return nil
}

func (l *lockoutLimiter) setLock(ctx context.Context, lockKey, counterKey string) error {
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, lockKey, "1", l.lockout.Duration)
		pipe.Del(ctx, counterKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errLimiterUnavailable, err)
	}
	return nil
}

func (l *lockoutLimiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errLimiterUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", errLimiterUnavailable, err)
		}
	}

	return count, nil
}

func (l *lockoutLimiter) deleteKeys(ctx context.Context, keys ...string) error {
	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", errLimiterUnavailable, err)
	}
	return nil
}

func verifyCounterKey(sessionID string) string { return "palv:" + sessionID }
func verifyLockKey(sessionID string) string    { return "palvl:" + sessionID }
func sendCounterKey(userID string) string      { return "pals:" + userID }
func sendLockKey(userID string) string         { return "palsl:" + userID }
func pinCounterKey(ip string) string           { return "palp:" + ip }
func pinLockKey(ip string) string              { return "palpl:" + ip }
