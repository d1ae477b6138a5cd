package pinauth

import (
	"errors"
	"time"
)

// Config defines a public type used by pinauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Session     SessionConfig
	EmailCode   EmailCodeConfig
	Lockout     LockoutConfig
	Bypass      BypassConfig
	PinThrottle PinThrottleConfig
	JWT         JWTConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by pinauth APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	RedisPrefix string
	// TTL is the session lifetime. It is independent of the email-code TTL:
	// a session may legitimately outlive several send/verify cycles.
	TTL time.Duration
}

/*
====================================
EMAIL CODE CONFIG
====================================
*/

// EmailCodeConfig defines a public type used by pinauth APIs.
//
// EmailCodeConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EmailCodeConfig struct {
	Digits int
	TTL    time.Duration
	// SendTimeout bounds the outbound mail call. Exceeding it is treated as a
	// slow transport, not a delivery failure; the code row is persisted either way.
	SendTimeout time.Duration
	// RetentionFactor scales the Redis retention of a code row past its expiry
	// so an expired-but-present code still reports as expired rather than missing.
	RetentionFactor int
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig defines a public type used by pinauth APIs.
//
// Verify-attempt and send-code counters are configured independently; they
// share only the lockout duration.
type LockoutConfig struct {
	MaxVerifyAttempts int
	VerifyWindow      time.Duration
	MaxSendPerWindow  int
	SendWindow        time.Duration
	Duration          time.Duration
}

// BypassConfig designates the single administrator identity exempt from
// lockout enforcement and its fixed 2FA destination email. AdminUserID is
// out-of-band configuration, never user-settable; leaving it empty disables
// the bypass entirely.
type BypassConfig struct {
	AdminUserID string
	AdminEmail  string
}

// PinThrottleConfig gates the optional per-IP PIN attempt limiter.
//
// PinThrottleConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PinThrottleConfig struct {
	Enabled     bool
	MaxAttempts int
	Window      time.Duration
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig defines a public type used by pinauth APIs.
//
// When Enabled, fully-authenticated sessions can mint a signed access token
// via [Engine.IssueAccessToken]; the opaque session remains the system of record.
type JWTConfig struct {
	Enabled       bool
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
}

// AuditConfig defines a public type used by pinauth APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by pinauth APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the baseline configuration: 30-minute sessions,
// 6-digit codes valid for 10 minutes, 5-failure lockout windows with a
// 15-minute lockout, audit disabled, metrics enabled.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RedisPrefix: "pa",
			TTL:         30 * time.Minute,
		},
		EmailCode: EmailCodeConfig{
			Digits:          6,
			TTL:             10 * time.Minute,
			SendTimeout:     10 * time.Second,
			RetentionFactor: 3,
		},
		Lockout: LockoutConfig{
			MaxVerifyAttempts: 5,
			VerifyWindow:      10 * time.Minute,
			MaxSendPerWindow:  5,
			SendWindow:        10 * time.Minute,
			Duration:          15 * time.Minute,
		},
		PinThrottle: PinThrottleConfig{
			Enabled:     false,
			MaxAttempts: 10,
			Window:      15 * time.Minute,
		},
		JWT: JWTConfig{
			Enabled:       false,
			AccessTTL:     15 * time.Minute,
			SigningMethod: "hs256",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	if c.Session.TTL <= 0 {
		return errors.New("Session.TTL must be positive")
	}
	if c.Session.RedisPrefix == "" {
		return errors.New("Session.RedisPrefix must not be empty")
	}
	if c.EmailCode.Digits < 6 || c.EmailCode.Digits > 10 {
		return errors.New("EmailCode.Digits must be between 6 and 10")
	}
	if c.EmailCode.TTL <= 0 {
		return errors.New("EmailCode.TTL must be positive")
	}
	if c.EmailCode.SendTimeout <= 0 {
		return errors.New("EmailCode.SendTimeout must be positive")
	}
	if c.EmailCode.RetentionFactor < 2 {
		return errors.New("EmailCode.RetentionFactor must be at least 2")
	}
	if c.Lockout.MaxVerifyAttempts <= 0 || c.Lockout.MaxSendPerWindow <= 0 {
		return errors.New("Lockout thresholds must be positive")
	}
	if c.Lockout.VerifyWindow <= 0 || c.Lockout.SendWindow <= 0 || c.Lockout.Duration <= 0 {
		return errors.New("Lockout windows and duration must be positive")
	}
	if c.PinThrottle.Enabled {
		if c.PinThrottle.MaxAttempts <= 0 || c.PinThrottle.Window <= 0 {
			return errors.New("PinThrottle requires positive attempts and window")
		}
	}
	if c.Bypass.AdminUserID != "" && c.Bypass.AdminEmail == "" {
		return errors.New("Bypass.AdminEmail required when AdminUserID is set")
	}
	if c.JWT.Enabled {
		if c.JWT.AccessTTL <= 0 {
			return errors.New("JWT.AccessTTL must be positive")
		}
		switch c.JWT.SigningMethod {
		case "hs256":
			if len(c.JWT.PrivateKey) == 0 {
				return errors.New("JWT hs256 requires a private key")
			}
		case "ed25519":
			if len(c.JWT.PrivateKey) == 0 || len(c.JWT.PublicKey) == 0 {
				return errors.New("JWT ed25519 requires a key pair")
			}
		default:
			return errors.New("unsupported JWT signing method")
		}
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit.BufferSize must be positive when audit is enabled")
	}
	return nil
}
