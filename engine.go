package mpass

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrEthical07/mpass/internal/srp"
	"github.com/MrEthical07/mpass/internal/stores"
	"github.com/MrEthical07/mpass/jwt"
	"github.com/MrEthical07/mpass/session"
)

// Engine is the credential-exchange core: registration, the three-step
// proof flow, the lockout state machine, and session issuance/validation/
// revocation. Configure it through the Builder; a built Engine is immutable
// and safe for concurrent use.
type Engine struct {
	config Config

	identities IdentityStore
	notifier   Notifier

	exchanges *stores.ExchangeStore
	lockouts  *stores.LockoutStore
	codes     *stores.VerificationStore
	sessions  *session.Store
	tokens    *jwt.Manager

	group *srp.Group
	log   *slog.Logger

	notifications sync.WaitGroup
}

// Close waits for in-flight background notifications to drain.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.notifications.Wait()
}

// ready guards the exported entry points against a zero-value Engine; the
// Builder is the only supported construction path.
func (e *Engine) ready() error {
	if e == nil || e.identities == nil {
		return ErrEngineNotReady
	}
	return nil
}

// ValidateSession checks a bearer token and its server-side marker.
// A missing, malformed, expired or forged token yields ErrUnauthorized;
// a valid token whose marker is gone yields ErrInvalidSession.
func (e *Engine) ValidateSession(ctx context.Context, token string) (*SessionInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	claims, err := e.tokens.Parse(token)
	if err != nil {
		return nil, ErrUnauthorized
	}

	alive, err := e.sessions.Exists(ctx, claims.Email, claims.SessionID)
	if err != nil {
		return nil, e.storeErr(err)
	}
	if !alive {
		return nil, ErrInvalidSession
	}

	return &SessionInfo{
		Email:     claims.Email,
		SessionID: claims.SessionID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// DeauthorizeAll revokes every live session of the identity by deleting
// its markers. Outstanding tokens keep parsing but fail validation with
// ErrInvalidSession. Returns the number of sessions revoked.
func (e *Engine) DeauthorizeAll(ctx context.Context, email string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}

	removed, err := e.sessions.DeleteAll(ctx, email)
	if err != nil {
		return removed, e.storeErr(err)
	}
	return removed, nil
}

// Account returns the identity registered under the address.
func (e *Engine) Account(ctx context.Context, email string) (*Identity, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	id, err := e.identities.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, e.storeErr(err)
	}
	return id, nil
}

// IsAdmin reports whether the identity carries the admin flag.
func (e *Engine) IsAdmin(ctx context.Context, email string) (bool, error) {
	id, err := e.Account(ctx, email)
	if err != nil {
		return false, err
	}
	return id.Admin, nil
}

// ListAccounts returns every registered identity. Callers gate this behind
// the admin check.
func (e *Engine) ListAccounts(ctx context.Context) ([]Identity, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	list, err := e.identities.List(ctx)
	if err != nil {
		return nil, e.storeErr(err)
	}
	return list, nil
}

// storeErr collapses backend failures into ErrStoreUnavailable, keeping the
// cause in the message only.
func (e *Engine) storeErr(err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
