package pinauth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/pinauth/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

type mockCredentialStore struct {
	mu       sync.RWMutex
	byID     map[string]UserCredential
	byDigest map[string]string
	failWith error
}

func newMockCredentialStore() *mockCredentialStore {
	return &mockCredentialStore{
		byID:     make(map[string]UserCredential),
		byDigest: make(map[string]string),
	}
}

func (s *mockCredentialStore) Put(cred UserCredential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[cred.UserID] = cred
	s.byDigest[cred.PINDigest] = cred.UserID
}

func (s *mockCredentialStore) Get(userID string) (UserCredential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.byID[userID]
	return cred, ok
}

func (s *mockCredentialStore) GetByPINDigest(_ context.Context, digest string) (UserCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failWith != nil {
		return UserCredential{}, s.failWith
	}
	id, ok := s.byDigest[digest]
	if !ok {
		return UserCredential{}, ErrCredentialNotFound
	}
	return s.byID[id], nil
}

func (s *mockCredentialStore) GetByID(_ context.Context, userID string) (UserCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failWith != nil {
		return UserCredential{}, s.failWith
	}
	cred, ok := s.byID[userID]
	if !ok {
		return UserCredential{}, ErrCredentialNotFound
	}
	return cred, nil
}

func (s *mockCredentialStore) MarkEmailVerified(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.byID[userID]
	if !ok {
		return ErrCredentialNotFound
	}
	cred.EmailVerified = true
	cred.TwoFAEnabled = true
	s.byID[userID] = cred
	return nil
}

func (s *mockCredentialStore) UpdateEmail(_ context.Context, userID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.byID[userID]
	if !ok {
		return ErrCredentialNotFound
	}
	cred.Email = email
	s.byID[userID] = cred
	return nil
}

func (s *mockCredentialStore) SetTwoFAEnabled(_ context.Context, userID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.byID[userID]
	if !ok {
		return ErrCredentialNotFound
	}
	cred.TwoFAEnabled = enabled
	s.byID[userID] = cred
	return nil
}

type sentMail struct {
	To   string
	Code string
}

type mockMailer struct {
	mu      sync.Mutex
	sent    []sentMail
	failErr error
	block   bool
}

func (m *mockMailer) SendCode(ctx context.Context, to, code string, _ time.Time) error {
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.sent = append(m.sent, sentMail{To: to, Code: code})
	return nil
}

func (m *mockMailer) lastSent(t *testing.T) sentMail {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no mail was sent")
	}
	return m.sent[len(m.sent)-1]
}

func (m *mockMailer) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Bypass.AdminUserID = "admin-1"
	cfg.Bypass.AdminEmail = "admin-2fa@example.com"
	return cfg
}

func seedAdmin(store *mockCredentialStore) {
	store.Put(UserCredential{
		UserID:        "admin-1",
		PINDigest:     HashPIN("0224"),
		Email:         "admin@example.com",
		IsAdmin:       true,
		TwoFAEnabled:  true,
		EmailVerified: true,
	})
}

func seedFirstTimeUser(store *mockCredentialStore) {
	store.Put(UserCredential{
		UserID:    "user-1",
		PINDigest: HashPIN("1234"),
		Email:     "alice@example.com",
	})
}

func seedReturningUser(store *mockCredentialStore) {
	store.Put(UserCredential{
		UserID:        "user-2",
		PINDigest:     HashPIN("5678"),
		Email:         "bob@example.com",
		TwoFAEnabled:  true,
		EmailVerified: true,
		Permissions:   map[string]bool{"clinic.read": true, "clinic.write": false},
	})
}

func newTestEngine(
	t *testing.T,
	rdb *redis.Client,
	store CredentialStore,
	mailer Mailer,
	cfg Config,
	clock TimeSource,
) *Engine {
	t.Helper()

	sessions := session.NewStore(rdb, cfg.Session.RedisPrefix)
	lockouts := newLockoutLimiter(rdb, cfg.Lockout, cfg.PinThrottle)

	return &Engine{
		config:   cfg,
		sessions: sessions,
		codes:    newEmailCodeStore(rdb),
		lockouts: lockouts,
		bypass:   newBypassPolicy(cfg.Bypass, lockouts, sessions),
		creds:    store,
		mailer:   mailer,
		clock:    clock,
		metrics:  NewMetrics(cfg.Metrics),
	}
}

func mustVerifyPin(t *testing.T, engine *Engine, pin string) *PinVerifyResult {
	t.Helper()

	result, err := engine.VerifyPin(context.Background(), pin)
	if err != nil {
		t.Fatalf("VerifyPin(%q) failed: %v", pin, err)
	}
	return result
}

func mustSendCode(t *testing.T, engine *Engine, token string) *SendCodeResult {
	t.Helper()

	result, err := engine.SendCode(context.Background(), token)
	if err != nil {
		t.Fatalf("SendCode failed: %v", err)
	}
	return result
}

func wantErr(t *testing.T, got, want error) {
	t.Helper()

	if !errors.Is(got, want) {
		t.Fatalf("got error %v, want %v", got, want)
	}
}
