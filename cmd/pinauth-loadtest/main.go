// Command pinauth-loadtest exercises the full PIN → send-code → verify flow
// against Redis (miniredis by default) and reports throughput plus the
// engine's counter snapshot.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/pinauth"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		users       = flag.Int("users", 1000, "number of credentials to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "login+verify cycles to run")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	mailer := &capturingMailer{codes: make(map[string]string)}
	store := seedStore(*users)

	engine, err := pinauth.New().
		WithRedis(client).
		WithCredentialStore(store).
		WithMailer(mailer).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("running %d cycles across %d workers...\n", *ops, *concurrency)

	var (
		wg       sync.WaitGroup
		opIndex  atomic.Int64
		failures atomic.Int64
	)

	start := time.Now()
	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := opIndex.Add(1)
				if i > int64(*ops) {
					return
				}

				pin := seededPIN(int(i) % *users)
				result, err := engine.VerifyPin(ctx, pin)
				if err != nil {
					failures.Add(1)
					continue
				}
				if !result.TwoFARequired {
					continue
				}

				sent, err := engine.SendCode(ctx, result.SessionToken)
				if err != nil {
					failures.Add(1)
					continue
				}

				code := mailer.take(sent.Email)
				if code == "" {
					failures.Add(1)
					continue
				}
				if err := engine.VerifyCode(ctx, result.SessionToken, code); err != nil {
					failures.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("done in %s (%.0f cycles/sec, %d failures)\n",
		elapsed, float64(*ops)/elapsed.Seconds(), failures.Load())

	snap := engine.MetricsSnapshot()
	fmt.Println("metrics:")
	for id, v := range snap.Counters {
		if v > 0 {
			fmt.Printf("  %3d = %d\n", id, v)
		}
	}
}

func seededPIN(i int) string {
	return fmt.Sprintf("%06d", i)
}

func seedStore(users int) *memStore {
	store := newMemStore()
	for i := 0; i < users; i++ {
		store.Put(pinauth.UserCredential{
			UserID:        fmt.Sprintf("user-%d", i),
			PINDigest:     pinauth.HashPIN(seededPIN(i)),
			Email:         fmt.Sprintf("user-%d@example.com", i),
			TwoFAEnabled:  true,
			EmailVerified: true,
		})
	}
	return store
}

// capturingMailer records the last code per session so the worker can replay it.
type capturingMailer struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *capturingMailer) SendCode(_ context.Context, to, code string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[to] = code
	return nil
}

func (m *capturingMailer) take(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	code := m.codes[to]
	delete(m.codes, to)
	return code
}

type memStore struct {
	mu       sync.RWMutex
	byID     map[string]pinauth.UserCredential
	byDigest map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		byID:     make(map[string]pinauth.UserCredential),
		byDigest: make(map[string]string),
	}
}

func (s *memStore) Put(cred pinauth.UserCredential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[cred.UserID] = cred
	s.byDigest[cred.PINDigest] = cred.UserID
}

func (s *memStore) GetByPINDigest(_ context.Context, d string) (pinauth.UserCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byDigest[d]
	if !ok {
		return pinauth.UserCredential{}, pinauth.ErrCredentialNotFound
	}
	return s.byID[id], nil
}

func (s *memStore) GetByID(_ context.Context, userID string) (pinauth.UserCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.byID[userID]
	if !ok {
		return pinauth.UserCredential{}, pinauth.ErrCredentialNotFound
	}
	return cred, nil
}

func (s *memStore) MarkEmailVerified(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.byID[userID]
	if !ok {
		return pinauth.ErrCredentialNotFound
	}
	cred.EmailVerified = true
	cred.TwoFAEnabled = true
	s.byID[userID] = cred
	return nil
}

func (s *memStore) UpdateEmail(_ context.Context, userID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.byID[userID]
	if !ok {
		return pinauth.ErrCredentialNotFound
	}
	cred.Email = email
	s.byID[userID] = cred
	return nil
}

func (s *memStore) SetTwoFAEnabled(_ context.Context, userID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.byID[userID]
	if !ok {
		return pinauth.ErrCredentialNotFound
	}
	cred.TwoFAEnabled = enabled
	s.byID[userID] = cred
	return nil
}
