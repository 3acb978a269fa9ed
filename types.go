package mpass

import (
	"context"
	"time"
)

// Identity is one registered account. Salt and Verifier are stored exactly
// as the client submitted them at registration: standard base64, with the
// verifier's decoded form being the hex string of the SRP verifier integer.
// The server never sees a password.
type Identity struct {
	ID            int64
	CreatedAt     time.Time
	LastLogin     *time.Time
	Admin         bool
	Username      string
	Email         string
	EmailVerified bool
	Salt          string
	Verifier      string
}

// IdentityStore is the durable store of registered accounts.
//
// FindByEmail and FindByUsername return ErrUserNotFound for an unknown
// identity. Create returns ErrEmailRegistered or ErrUsernameTaken on
// uniqueness conflicts.
type IdentityStore interface {
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	FindByUsername(ctx context.Context, username string) (*Identity, error)
	Create(ctx context.Context, identity *Identity) error
	Update(ctx context.Context, identity *Identity) error
	Count(ctx context.Context) (int64, error)
	List(ctx context.Context) ([]Identity, error)
}

// Notifier delivers account mail. Implementations own transport and
// retries; the engine decides which failures surface to callers.
type Notifier interface {
	SendUnlockLink(ctx context.Context, email, link string) error
	SendVerificationCode(ctx context.Context, email, code string) error
}

// ProofResult is the successful outcome of the final proof step: the server
// evidence that lets the client authenticate the server, plus the issued
// session.
type ProofResult struct {
	ServerEvidence string // hex
	Token          string
	SessionID      string
	ExpiresAt      time.Time
}

// SessionInfo describes a validated session.
type SessionInfo struct {
	Email     string
	SessionID string
	ExpiresAt time.Time
}

// RegisterRequest is the registration payload. Salt and Verifier are
// base64 strings produced by the client's SRP enrollment.
type RegisterRequest struct {
	Email    string
	Username string
	Salt     string
	Verifier string
}

// RegisterResult reports how registration concluded.
type RegisterResult struct {
	// VerificationRequired is false only for the bootstrap account, which
	// is created pre-verified.
	VerificationRequired bool

	// Admin is true when the new account received the admin flag.
	Admin bool
}
