package mpass

import (
	"context"
	"errors"
	"testing"
	"time"
)

func validRegistration(email, username string) RegisterRequest {
	return RegisterRequest{
		Email:    email,
		Username: username,
		Salt:     "c2FsdC1ieXRlcw==",         // "salt-bytes"
		Verifier: "YWJjZGVmMTIzNDU2Nzg5MA==", // hex "abcdef1234567890"
	}
}

func TestRegister_FirstAccountBootstrapsAdmin(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.engine.Register(context.Background(), validRegistration("root@x.com", "root"))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !res.Admin || res.VerificationRequired {
		t.Fatalf("first account: %+v, want admin and pre-verified", res)
	}
	if code := env.notifier.codeFor("root@x.com"); code != "" {
		t.Fatal("bootstrap account must not receive verification mail")
	}

	id, err := env.engine.Account(context.Background(), "root@x.com")
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if !id.Admin || !id.EmailVerified {
		t.Fatalf("stored identity = %+v", id)
	}
}

func TestRegister_LaterAccountsNeedVerification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.engine.Register(ctx, validRegistration("root@x.com", "root"))

	res, err := env.engine.Register(ctx, validRegistration("b@x.com", "bee"))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.Admin || !res.VerificationRequired {
		t.Fatalf("second account: %+v", res)
	}

	code := env.notifier.codeFor("b@x.com")
	if len(code) != 6 {
		t.Fatalf("verification code %q, want 6 digits", code)
	}

	if err := env.engine.VerifyEmail(ctx, "b@x.com", "000000"); !errors.Is(err, ErrVerificationCodeInvalid) {
		if code == "000000" {
			t.Skip("generated code collided with the deliberately wrong one")
		}
		t.Fatalf("wrong code: got %v, want ErrVerificationCodeInvalid", err)
	}
	if err := env.engine.VerifyEmail(ctx, "b@x.com", code); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}

	id, _ := env.engine.Account(ctx, "b@x.com")
	if !id.EmailVerified {
		t.Fatal("verification must set the flag")
	}

	if err := env.engine.VerifyEmail(ctx, "b@x.com", code); !errors.Is(err, ErrEmailAlreadyVerified) {
		t.Fatalf("repeat verify: got %v, want ErrEmailAlreadyVerified", err)
	}
}

func TestRegister_DuplicateEmailAndUsernameConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.engine.Register(ctx, validRegistration("a@x.com", "alpha"))

	if _, err := env.engine.Register(ctx, validRegistration("a@x.com", "other")); !errors.Is(err, ErrEmailRegistered) {
		t.Fatalf("got %v, want ErrEmailRegistered", err)
	}
	if _, err := env.engine.Register(ctx, validRegistration("c@x.com", "alpha")); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("got %v, want ErrUsernameTaken", err)
	}
}

func TestRegister_RejectsMalformedPayload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	bad := []RegisterRequest{
		{Email: "not-an-email", Salt: "c2FsdA==", Verifier: "YWJjZA=="},
		{Email: "a@x.com", Salt: "not base64!", Verifier: "YWJjZA=="},
		{Email: "a@x.com", Salt: "c2FsdA==", Verifier: "not base64!"},
		// base64 fine, but wraps no hex integer
		{Email: "a@x.com", Salt: "c2FsdA==", Verifier: "enp6eg=="},
	}
	for i, req := range bad {
		if _, err := env.engine.Register(ctx, req); !errors.Is(err, ErrMalformedPayload) {
			t.Fatalf("case %d: got %v, want ErrMalformedPayload", i, err)
		}
	}
}

func TestRegister_MailFailureAbortsRegistration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.engine.Register(ctx, validRegistration("root@x.com", "root"))
	env.notifier.failSend = errors.New("smtp down")

	if _, err := env.engine.Register(ctx, validRegistration("b@x.com", "bee")); !errors.Is(err, ErrNotifierUnavailable) {
		t.Fatalf("got %v, want ErrNotifierUnavailable", err)
	}
	if _, err := env.engine.Account(ctx, "b@x.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatal("row must not be written when the verification mail fails")
	}
}

func TestResend_ThrottledWhileCodeLives(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.engine.Register(ctx, validRegistration("root@x.com", "root"))
	env.engine.Register(ctx, validRegistration("b@x.com", "bee"))

	if err := env.engine.ResendVerificationCode(ctx, "b@x.com"); !errors.Is(err, ErrVerificationThrottled) {
		t.Fatalf("got %v, want ErrVerificationThrottled", err)
	}

	env.mr.FastForward(5*time.Minute + time.Second)

	if err := env.engine.ResendVerificationCode(ctx, "b@x.com"); err != nil {
		t.Fatalf("resend after window: %v", err)
	}
	if code := env.notifier.codeFor("b@x.com"); len(code) != 6 {
		t.Fatalf("resent code %q, want 6 digits", code)
	}

	if err := env.engine.ResendVerificationCode(ctx, "nobody@x.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown identity: got %v, want ErrUserNotFound", err)
	}
	if err := env.engine.ResendVerificationCode(ctx, "root@x.com"); !errors.Is(err, ErrEmailAlreadyVerified) {
		t.Fatalf("verified identity: got %v, want ErrEmailAlreadyVerified", err)
	}
}

func TestEngine_AdminListing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.engine.Register(ctx, validRegistration("root@x.com", "root"))
	env.engine.Register(ctx, validRegistration("b@x.com", "bee"))

	admin, err := env.engine.IsAdmin(ctx, "root@x.com")
	if err != nil || !admin {
		t.Fatalf("IsAdmin(root) = %v, %v", admin, err)
	}
	admin, err = env.engine.IsAdmin(ctx, "b@x.com")
	if err != nil || admin {
		t.Fatalf("IsAdmin(b) = %v, %v", admin, err)
	}

	list, err := env.engine.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2", len(list))
	}
}
