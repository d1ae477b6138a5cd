// Package mailer provides an SMTP implementation of the engine's Mailer
// contract on top of gomail.
package mailer

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"
)

// SMTPConfig defines a public type used by pinauth APIs.
//
// SMTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Subject  string
}

// SMTP delivers one-time codes over SMTP. DialAndSend has no context support,
// so the send runs in a goroutine and the caller's deadline is honored by
// abandoning the wait; the dial itself is left to finish or fail on its own.
type SMTP struct {
	dialer  *gomail.Dialer
	from    string
	subject string
}

// NewSMTP creates an [SMTP] mailer from the given config.
func NewSMTP(cfg SMTPConfig) *SMTP {
	subject := cfg.Subject
	if subject == "" {
		subject = "Your verification code"
	}
	return &SMTP{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		subject: subject,
	}
}

// SendCode describes the send code operation and its observable behavior.
//
// SendCode may return an error when input validation, dependency calls, or security checks fail.
// SendCode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *SMTP) SendCode(ctx context.Context, to, code string, expiresAt time.Time) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", s.subject)

	body := fmt.Sprintf(`
		<h3>Your verification code</h3>
		<p>Enter the following code to finish signing in: <strong>%s</strong></p>
		<p>The code expires at %s.</p>
		<p>If you did not request this code, you can ignore this email.</p>
	`, code, expiresAt.UTC().Format(time.RFC1123))

	m.SetBody("text/html", body)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.dialer.DialAndSend(m)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to send verification code: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
