package pinauth

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestAuditEventsEmitted(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newMockCredentialStore()
	seedReturningUser(store)

	cfg := testConfig()
	cfg.Audit.Enabled = true

	sink := NewChannelSink(16)

	mailer := &mockMailer{}
	clock := newFakeClock(time.Now())
	engine := newTestEngine(t, rdb, store, mailer, cfg, clock)
	engine.audit = newAuditDispatcher(cfg.Audit, sink)
	defer engine.Close()

	ctx := WithClientIP(context.Background(), "10.1.2.3")
	login := mustVerifyPin(t, engine, "5678")
	mustSendCode(t, engine, login.SessionToken)
	code := mailer.lastSent(t).Code
	if err := engine.VerifyCode(ctx, login.SessionToken, code); err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}

	want := map[string]bool{
		auditEventPinLoginSuccess:   false,
		auditEventCodeSent:          false,
		auditEventCodeVerifySuccess: false,
	}

	deadline := time.After(2 * time.Second)
	for remaining := len(want); remaining > 0; {
		select {
		case event := <-sink.Events():
			if seen, tracked := want[event.EventType]; tracked && !seen {
				want[event.EventType] = true
				remaining--
			}
		case <-deadline:
			t.Fatalf("missing audit events: %v", want)
		}
	}
}

func TestAuditDispatcherDropsWhenFull(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, blockingSink{})
	defer d.Close()

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		d.Emit(ctx, AuditEvent{EventType: "x"})
	}

	if d.Dropped() == 0 {
		t.Fatal("expected drops against a blocked sink")
	}
}

type blockingSink struct{}

func (blockingSink) Emit(_ context.Context, _ AuditEvent) {
	time.Sleep(50 * time.Millisecond)
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: auditEventPinLoginFailure,
		Error:     string(auditErrInvalidCredential),
	})

	line := strings.TrimSpace(buf.String())
	var decoded AuditEvent
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("sink output is not one JSON object per line: %v", err)
	}
	if decoded.EventType != auditEventPinLoginFailure {
		t.Fatalf("event_type = %q", decoded.EventType)
	}
}

func TestAuditErrorCodeMapping(t *testing.T) {
	cases := map[error]AuditErrorCode{
		ErrInvalidCredential: auditErrInvalidCredential,
		ErrSessionInvalid:    auditErrSessionInvalid,
		ErrCodeExpired:       auditErrCodeExpired,
		ErrRateLimited:       auditErrRateLimited,
		ErrConflict:          auditErrConflict,
	}
	for err, want := range cases {
		if got := auditErrorCode(err); got != want {
			t.Errorf("auditErrorCode(%v) = %q, want %q", err, got, want)
		}
	}
	if auditErrorCode(nil) != "" {
		t.Error("nil error must map to empty code")
	}
}
