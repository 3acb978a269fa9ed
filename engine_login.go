package mpass

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"math/big"
	"time"

	"github.com/MrEthical07/mpass/internal"
	"github.com/MrEthical07/mpass/internal/srp"
	"github.com/MrEthical07/mpass/internal/stores"
)

// RequestSalt starts a login: it returns the identity's stored salt so the
// client can derive its proof key. The lock marker gates this step, and any
// stale exchange state from an abandoned attempt is discarded here.
//
// This step discloses account existence (ErrUserNotFound); the later steps
// do not. Clients rely on the distinction to prompt for registration.
func (e *Engine) RequestSalt(ctx context.Context, email string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}

	locked, err := e.lockouts.Locked(ctx, email)
	if err != nil {
		return "", e.storeErr(err)
	}
	if locked {
		return "", ErrAccountLocked
	}

	if err := e.exchanges.Delete(ctx, email); err != nil {
		return "", e.storeErr(err)
	}

	id, err := e.identities.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", ErrUserNotFound
		}
		return "", e.storeErr(err)
	}

	return id.Salt, nil
}

// BeginExchange runs the challenge step: given the client public value (hex)
// it derives the server keypair, computes the shared secret, parks the
// exchange state in the ephemeral store, and returns the server public
// value (hex).
//
// An unknown identity fails with plain ErrInvalidCredentials and no counter
// movement; a malformed or degenerate public value counts as a proof
// failure like any other.
func (e *Engine) BeginExchange(ctx context.Context, email, clientPublicHex string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}

	id, err := e.identities.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", e.storeErr(err)
	}

	v, err := decodeVerifier(id.Verifier)
	if err != nil {
		return "", e.failChallenge(ctx, email)
	}
	a, ok := parseHex(clientPublicHex)
	if !ok {
		return "", e.failChallenge(ctx, email)
	}

	ex, err := srp.NewExchange(e.group, v, a, rand.Reader)
	if err != nil {
		return "", e.failChallenge(ctx, email)
	}

	state := &stores.ExchangeState{A: ex.A, B: ex.B, S: ex.S}
	if err := e.exchanges.Save(ctx, email, state, e.config.ExchangeTTL); err != nil {
		return "", e.storeErr(err)
	}

	return ex.B.Text(16), nil
}

// CompleteExchange runs the proof step: it checks the client evidence (hex)
// against the parked exchange state and, on match, returns the server
// evidence together with a fresh session. The exchange state is consumed in
// every outcome, so evidence gets exactly one try per challenge.
func (e *Engine) CompleteExchange(ctx context.Context, email, clientEvidenceHex string) (*ProofResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	id, err := e.identities.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, e.storeErr(err)
	}

	state, err := e.exchanges.Get(ctx, email)
	if err != nil {
		if errors.Is(err, stores.ErrExchangeNotFound) {
			return nil, e.recordFailure(ctx, email)
		}
		return nil, e.storeErr(err)
	}
	defer func() {
		if err := e.exchanges.Delete(ctx, email); err != nil {
			e.log.Warn("exchange state cleanup failed", "email", email, "error", err)
		}
	}()

	m1, ok := parseHex(clientEvidenceHex)
	if !ok {
		return nil, e.recordFailure(ctx, email)
	}

	ex := srp.Resume(e.group, state.A, state.B, state.S)
	m2, ok := ex.VerifyClientEvidence(m1)
	if !ok {
		return nil, e.recordFailure(ctx, email)
	}

	if err := e.lockouts.ClearAttempts(ctx, email); err != nil {
		return nil, e.storeErr(err)
	}

	now := time.Now()
	id.LastLogin = &now
	if err := e.identities.Update(ctx, id); err != nil {
		// Login timestamp is informational; never fail a proven login on it.
		e.log.Warn("last login update failed", "email", email, "error", err)
	}

	token, sessionID, expiresAt, err := e.issueSession(ctx, email)
	if err != nil {
		return nil, err
	}

	return &ProofResult{
		ServerEvidence: m2.Text(16),
		Token:          token,
		SessionID:      sessionID,
		ExpiresAt:      expiresAt,
	}, nil
}

// Unlock clears the account lock when the emailed token matches the stored
// marker. The attempt counter is untouched; it was cleared when the lock
// was installed.
func (e *Engine) Unlock(ctx context.Context, email, token string) error {
	if err := e.ready(); err != nil {
		return err
	}

	err := e.lockouts.Unlock(ctx, email, token)
	if err != nil {
		if errors.Is(err, stores.ErrUnlockTokenInvalid) {
			return ErrUnlockTokenInvalid
		}
		return e.storeErr(err)
	}
	return nil
}

// failChallenge handles a failed challenge step: any exchange state parked
// by an earlier challenge is discarded before the failure is recorded, so a
// rejected re-challenge cannot leave a stale challenge answerable.
func (e *Engine) failChallenge(ctx context.Context, email string) error {
	if err := e.exchanges.Delete(ctx, email); err != nil {
		e.log.Warn("exchange state cleanup failed", "email", email, "error", err)
	}
	return e.recordFailure(ctx, email)
}

// recordFailure advances the lockout state machine by one failure. At the
// threshold it returns ErrAccountLocked and dispatches the unlock mail on
// its own goroutine; below it, a RemainingAttemptsError.
func (e *Engine) recordFailure(ctx context.Context, email string) error {
	unlockToken := internal.NewUnlockToken()

	attempts, locked, err := e.lockouts.Fail(ctx, email, unlockToken)
	if err != nil {
		return e.storeErr(err)
	}

	if locked {
		e.notifications.Add(1)
		go e.notifyLock(email, unlockToken)
		return ErrAccountLocked
	}

	remaining := e.lockouts.Threshold() - int(attempts)
	if remaining < 0 {
		remaining = 0
	}
	return &RemainingAttemptsError{Remaining: remaining}
}

// notifyLock emails the unlock link. Best-effort: delivery failures are
// logged, never surfaced to the login caller.
func (e *Engine) notifyLock(email, token string) {
	defer e.notifications.Done()

	link := e.config.BaseURL + "/account/" + email + "/unlock/" + token
	if err := e.notifier.SendUnlockLink(context.Background(), email, link); err != nil {
		e.log.Warn("unlock notification failed", "email", email, "error", err)
	}
}

// issueSession creates the marker and signs the matching token.
func (e *Engine) issueSession(ctx context.Context, email string) (token, sessionID string, expiresAt time.Time, err error) {
	sessionID = internal.NewSessionID()

	if err = e.sessions.Create(ctx, email, sessionID, e.config.SessionTTL); err != nil {
		return "", "", time.Time{}, e.storeErr(err)
	}

	token, err = e.tokens.Create(email, sessionID)
	if err != nil {
		return "", "", time.Time{}, err
	}

	return token, sessionID, time.Now().Add(e.config.SessionTTL), nil
}

// parseHex parses a positive hex-encoded integer.
func parseHex(s string) (*big.Int, bool) {
	if s == "" {
		return nil, false
	}
	n, ok := new(big.Int).SetString(s, 16)
	if !ok || n.Sign() <= 0 {
		return nil, false
	}
	return n, true
}

// decodeSalt checks that a stored salt is non-empty base64.
func decodeSalt(stored string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.New("empty salt")
	}
	return raw, nil
}

// decodeVerifier unwraps a stored verifier: base64 around the hex string of
// the verifier integer.
func decodeVerifier(stored string) (*big.Int, error) {
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return nil, err
	}
	v, ok := parseHex(string(raw))
	if !ok {
		return nil, errors.New("verifier is not a positive hex integer")
	}
	return v, nil
}
