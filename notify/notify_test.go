package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wneessen/go-mail"
)

func newTestSMTP(t *testing.T, send sendFunc) *SMTP {
	t.Helper()
	return &SMTP{
		cfg: Config{
			Sender:     "noreply@vault.test",
			RetryCount: 3,
			RetryDelay: time.Millisecond,
		},
		send: send,
	}
}

func TestNewSMTP_RequiresHostAndSender(t *testing.T) {
	if _, err := NewSMTP(Config{Sender: "a@x.com"}); err == nil {
		t.Fatal("expected error without host")
	}
	if _, err := NewSMTP(Config{Host: "mail.x.com"}); err == nil {
		t.Fatal("expected error without sender")
	}
}

func TestSendVerificationCode_ComposesMessage(t *testing.T) {
	var captured *mail.Msg
	s := newTestSMTP(t, func(_ context.Context, msg *mail.Msg) error {
		captured = msg
		return nil
	})

	if err := s.SendVerificationCode(context.Background(), "user@x.com", "123456"); err != nil {
		t.Fatalf("SendVerificationCode: %v", err)
	}
	if captured == nil {
		t.Fatal("no message sent")
	}

	var body strings.Builder
	if _, err := captured.WriteTo(&body); err != nil {
		t.Fatalf("render message: %v", err)
	}
	rendered := body.String()
	if !strings.Contains(rendered, "123456") {
		t.Fatal("verification code missing from message body")
	}
	if !strings.Contains(rendered, "user@x.com") {
		t.Fatal("recipient missing from message")
	}
}

func TestSendUnlockLink_CarriesTheLink(t *testing.T) {
	var captured *mail.Msg
	s := newTestSMTP(t, func(_ context.Context, msg *mail.Msg) error {
		captured = msg
		return nil
	})

	link := "https://vault.test/account/a@x.com/unlock/deadbeef"
	if err := s.SendUnlockLink(context.Background(), "a@x.com", link); err != nil {
		t.Fatalf("SendUnlockLink: %v", err)
	}

	var body strings.Builder
	if _, err := captured.WriteTo(&body); err != nil {
		t.Fatalf("render message: %v", err)
	}
	if !strings.Contains(body.String(), link) {
		t.Fatal("unlock link missing from message body")
	}
}

func TestDeliver_RetriesUntilSuccess(t *testing.T) {
	attempts := 0
	s := newTestSMTP(t, func(context.Context, *mail.Msg) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if err := s.SendVerificationCode(context.Background(), "user@x.com", "123456"); err != nil {
		t.Fatalf("expected third attempt to succeed: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestDeliver_GivesUpAfterRetryCount(t *testing.T) {
	attempts := 0
	s := newTestSMTP(t, func(context.Context, *mail.Msg) error {
		attempts++
		return errors.New("permanent")
	})

	if err := s.SendVerificationCode(context.Background(), "user@x.com", "123456"); err == nil {
		t.Fatal("expected delivery failure")
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestDeliver_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	s := newTestSMTP(t, func(context.Context, *mail.Msg) error {
		attempts++
		cancel()
		return errors.New("transient")
	})

	err := s.SendVerificationCode(ctx, "user@x.com", "123456")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}
