// Package notify delivers account mail over SMTP: unlock links for locked
// accounts and email verification codes.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// Config holds the SMTP transport settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// Sender is the From address on every message.
	Sender string

	// SSL enables implicit TLS instead of STARTTLS.
	SSL bool

	// RetryCount is the number of delivery attempts per message.
	// Defaults to 3.
	RetryCount int

	// RetryDelay is the pause between attempts. Defaults to 1s.
	RetryDelay time.Duration
}

type sendFunc func(ctx context.Context, msg *mail.Msg) error

// SMTP implements the engine's Notifier over an SMTP client with a bounded
// retry loop per message.
type SMTP struct {
	cfg  Config
	send sendFunc
}

// NewSMTP validates cfg and connects the client settings.
func NewSMTP(cfg Config) (*SMTP, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.Sender == "" {
		return nil, errors.New("sender address is required")
	}
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	}
	if cfg.SSL {
		opts = append(opts, mail.WithSSLPort(false))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}

	return &SMTP{
		cfg: cfg,
		send: func(ctx context.Context, msg *mail.Msg) error {
			return client.DialAndSendWithContext(ctx, msg)
		},
	}, nil
}

// SendUnlockLink mails the account-unlock link for a locked identity.
func (s *SMTP) SendUnlockLink(ctx context.Context, email, link string) error {
	body := "Your account was locked after repeated failed login attempts.\n\n" +
		"Follow this link to unlock it:\n\n" + link + "\n\n" +
		"If this was not you, consider changing your master password."

	msg, err := s.compose(email, "Your account has been locked", body)
	if err != nil {
		return err
	}
	return s.deliver(ctx, msg)
}

// SendVerificationCode mails a pending email-verification code.
func (s *SMTP) SendVerificationCode(ctx context.Context, email, code string) error {
	body := "Your verification code is: " + code + "\n\n" +
		"It expires in a few minutes. If you did not request it, ignore this mail."

	msg, err := s.compose(email, "Verify your email address", body)
	if err != nil {
		return err
	}
	return s.deliver(ctx, msg)
}

func (s *SMTP) compose(to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.cfg.Sender); err != nil {
		return nil, fmt.Errorf("sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

// deliver attempts the send up to RetryCount times, pausing RetryDelay
// between attempts. Context cancellation stops the loop.
func (s *SMTP) deliver(ctx context.Context, msg *mail.Msg) error {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.RetryCount; attempt++ {
		if lastErr = s.send(ctx, msg); lastErr == nil {
			return nil
		}
		if attempt == s.cfg.RetryCount {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.RetryDelay):
		}
	}
	return fmt.Errorf("mail delivery failed after %d attempts: %w", s.cfg.RetryCount, lastErr)
}
