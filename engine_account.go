package mpass

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/MrEthical07/mpass/internal"
	"github.com/MrEthical07/mpass/internal/stores"
)

// Register creates a new identity from a client-side SRP enrollment.
//
// The very first account bootstraps the deployment: it is created with the
// admin flag and pre-verified, and no mail is sent. Every later account
// gets a verification code mailed before the row is written; if the mail
// cannot be delivered the registration fails and nothing is persisted.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := validateRegistration(req); err != nil {
		return nil, err
	}

	count, err := e.identities.Count(ctx)
	if err != nil {
		return nil, e.storeErr(err)
	}
	first := count == 0

	if !first {
		code, err := internal.NewOTP(e.config.VerificationDigits)
		if err != nil {
			return nil, fmt.Errorf("generate verification code: %w", err)
		}
		if err := e.codes.Save(ctx, req.Email, code, e.config.VerificationTTL); err != nil {
			return nil, e.storeErr(err)
		}
		if err := e.notifier.SendVerificationCode(ctx, req.Email, code); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotifierUnavailable, err)
		}
	}

	id := &Identity{
		Admin:         first,
		Username:      req.Username,
		Email:         req.Email,
		EmailVerified: first,
		Salt:          req.Salt,
		Verifier:      req.Verifier,
	}
	if err := e.identities.Create(ctx, id); err != nil {
		switch {
		case errors.Is(err, ErrEmailRegistered):
			return nil, ErrEmailRegistered
		case errors.Is(err, ErrUsernameTaken):
			return nil, ErrUsernameTaken
		}
		return nil, e.storeErr(err)
	}

	return &RegisterResult{VerificationRequired: !first, Admin: first}, nil
}

// VerifyEmail consumes a pending verification code and marks the address
// verified.
func (e *Engine) VerifyEmail(ctx context.Context, email, code string) error {
	id, err := e.Account(ctx, email)
	if err != nil {
		return err
	}
	if id.EmailVerified {
		return ErrEmailAlreadyVerified
	}

	if err := e.codes.Consume(ctx, email, code); err != nil {
		if errors.Is(err, stores.ErrCodeMismatch) {
			return ErrVerificationCodeInvalid
		}
		return e.storeErr(err)
	}

	id.EmailVerified = true
	if err := e.identities.Update(ctx, id); err != nil {
		return e.storeErr(err)
	}
	return nil
}

// ResendVerificationCode issues a fresh code for an unverified address.
// At most one code per expiry window: a still-live code throttles the
// resend instead of replacing it.
func (e *Engine) ResendVerificationCode(ctx context.Context, email string) error {
	id, err := e.Account(ctx, email)
	if err != nil {
		return err
	}
	if id.EmailVerified {
		return ErrEmailAlreadyVerified
	}

	code, err := internal.NewOTP(e.config.VerificationDigits)
	if err != nil {
		return fmt.Errorf("generate verification code: %w", err)
	}
	if err := e.codes.SaveIfAbsent(ctx, email, code, e.config.VerificationTTL); err != nil {
		if errors.Is(err, stores.ErrCodeAlreadySent) {
			return ErrVerificationThrottled
		}
		return e.storeErr(err)
	}
	if err := e.notifier.SendVerificationCode(ctx, email, code); err != nil {
		return fmt.Errorf("%w: %v", ErrNotifierUnavailable, err)
	}
	return nil
}

func validateRegistration(req RegisterRequest) error {
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return fmt.Errorf("%w: invalid email", ErrMalformedPayload)
	}
	if _, err := decodeSalt(req.Salt); err != nil {
		return fmt.Errorf("%w: invalid salt", ErrMalformedPayload)
	}
	if _, err := decodeVerifier(req.Verifier); err != nil {
		return fmt.Errorf("%w: invalid verifier", ErrMalformedPayload)
	}
	return nil
}
