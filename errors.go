package mpass

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the engine. Callers branch on these with
// errors.Is; the HTTP layer maps them onto status codes.
var (
	// ErrEngineNotReady is returned when the engine is used before Build
	// completed or after Close.
	ErrEngineNotReady = errors.New("engine not ready")

	// ErrUserNotFound is returned by the salt step and account operations
	// for an unknown identity. The later proof steps deliberately collapse
	// an unknown identity into ErrInvalidCredentials instead.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials covers every proof failure: bad public value,
	// missing exchange state, evidence mismatch, unknown identity at the
	// proof steps. One error for all of them, so responses are not a
	// validity oracle.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountLocked is returned when the lock marker gates the salt
	// step, and by the failure that installs the lock.
	ErrAccountLocked = errors.New("account locked")

	// ErrUnlockTokenInvalid is returned when an unlock link's token does
	// not match the stored marker, or no marker exists.
	ErrUnlockTokenInvalid = errors.New("unlock token invalid")

	// ErrUnauthorized is returned for a missing, malformed, expired or
	// forged session token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidSession is returned for a well-formed token whose session
	// marker no longer exists. Distinct from ErrUnauthorized so clients
	// can tell a revoked session from a bad token.
	ErrInvalidSession = errors.New("session invalid")

	// ErrEmailRegistered is returned when registering an email that
	// already has an identity.
	ErrEmailRegistered = errors.New("email already registered")

	// ErrUsernameTaken is returned when registering a username that is
	// already in use.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrEmailAlreadyVerified is returned when verifying or resending a
	// code for an address that is already verified.
	ErrEmailAlreadyVerified = errors.New("email already verified")

	// ErrVerificationCodeInvalid is returned when the supplied code does
	// not match the pending one, or no code is pending.
	ErrVerificationCodeInvalid = errors.New("verification code invalid")

	// ErrVerificationThrottled is returned when a resend is requested
	// while the previous code is still live.
	ErrVerificationThrottled = errors.New("verification code already sent")

	// ErrMalformedPayload is returned when registration input fails the
	// engine's own checks (bad email, undecodable salt or verifier).
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrStoreUnavailable wraps backend failures from Redis or the
	// identity store.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNotifierUnavailable wraps mail delivery failures on the
	// synchronous notification paths.
	ErrNotifierUnavailable = errors.New("notifier unavailable")
)

// RemainingAttemptsError is the proof-failure result below the lockout
// threshold. It matches ErrInvalidCredentials under errors.Is so callers
// that do not care about the count keep working.
type RemainingAttemptsError struct {
	Remaining int
}

func (e *RemainingAttemptsError) Error() string {
	return fmt.Sprintf("invalid credentials: %d attempts remaining", e.Remaining)
}

func (e *RemainingAttemptsError) Is(target error) bool {
	return target == ErrInvalidCredentials
}
