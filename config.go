package mpass

import (
	"errors"
	"time"
)

// Config holds the engine's tunables. Zero values are filled in by
// DefaultConfig; SigningKey has no default and must be provided.
type Config struct {
	// SigningKey is the HMAC secret for session tokens. Required.
	SigningKey []byte

	// Issuer is stamped into every session token.
	Issuer string

	// SessionTTL is the lifetime of a session token and its marker.
	SessionTTL time.Duration

	// LockoutThreshold is the consecutive proof failures that install the
	// account lock.
	LockoutThreshold int

	// ExchangeTTL bounds how long an unanswered challenge stays valid.
	ExchangeTTL time.Duration

	// VerificationTTL is the lifetime of an email verification code; it
	// is also the resend window.
	VerificationTTL time.Duration

	// VerificationDigits is the length of the numeric verification code.
	VerificationDigits int

	// BaseURL prefixes the unlock links embedded in lock notifications,
	// e.g. "https://vault.example.com".
	BaseURL string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Issuer:             "mPass",
		SessionTTL:         30 * time.Minute,
		LockoutThreshold:   3,
		ExchangeTTL:        5 * time.Minute,
		VerificationTTL:    5 * time.Minute,
		VerificationDigits: 6,
	}
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if len(c.SigningKey) == 0 {
		return errors.New("SigningKey is required")
	}
	if c.Issuer == "" {
		return errors.New("Issuer must not be empty")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SessionTTL must be positive")
	}
	if c.LockoutThreshold < 1 {
		return errors.New("LockoutThreshold must be at least 1")
	}
	if c.ExchangeTTL <= 0 {
		return errors.New("ExchangeTTL must be positive")
	}
	if c.VerificationTTL <= 0 {
		return errors.New("VerificationTTL must be positive")
	}
	if c.VerificationDigits < 6 || c.VerificationDigits > 10 {
		return errors.New("VerificationDigits must be between 6 and 10")
	}
	return nil
}
