package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrEthical07/mpass"
)

const identityColumns = "id, created_at, last_login, admin, COALESCE(username, ''), email, email_verified, salt, verifier"

// IdentityStore implements mpass.IdentityStore on a users table. An empty
// username is stored as NULL so the uniqueness constraint only binds real
// usernames.
type IdentityStore struct {
	db *sql.DB
}

// NewIdentityStore wraps an open database handle.
func NewIdentityStore(db *sql.DB) *IdentityStore {
	return &IdentityStore{db: db}
}

func (s *IdentityStore) FindByEmail(ctx context.Context, email string) (*mpass.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+identityColumns+" FROM users WHERE email = $1", email)
	return scanIdentity(row)
}

func (s *IdentityStore) FindByUsername(ctx context.Context, username string) (*mpass.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+identityColumns+" FROM users WHERE username = $1", username)
	return scanIdentity(row)
}

// Create inserts the identity and fills in its generated id and timestamp.
func (s *IdentityStore) Create(ctx context.Context, identity *mpass.Identity) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (admin, username, email, email_verified, salt, verifier)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
		RETURNING id, created_at`,
		identity.Admin, identity.Username, identity.Email,
		identity.EmailVerified, identity.Salt, identity.Verifier,
	).Scan(&identity.ID, &identity.CreatedAt)
	if err != nil {
		if conflict := conflictError(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

func (s *IdentityStore) Update(ctx context.Context, identity *mpass.Identity) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET last_login = $1, admin = $2, username = NULLIF($3, ''),
		    email_verified = $4, salt = $5, verifier = $6
		WHERE id = $7`,
		identity.LastLogin, identity.Admin, identity.Username,
		identity.EmailVerified, identity.Salt, identity.Verifier,
		identity.ID,
	)
	if err != nil {
		if conflict := conflictError(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("update identity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	if affected == 0 {
		return mpass.ErrUserNotFound
	}
	return nil
}

func (s *IdentityStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return n, nil
}

func (s *IdentityStore) List(ctx context.Context) ([]mpass.Identity, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+identityColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var out []mpass.Identity
	for rows.Next() {
		id, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (*mpass.Identity, error) {
	var (
		id        mpass.Identity
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&id.ID, &id.CreatedAt, &lastLogin, &id.Admin, &id.Username,
		&id.Email, &id.EmailVerified, &id.Salt, &id.Verifier,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, mpass.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan identity: %w", err)
	}
	if lastLogin.Valid {
		id.LastLogin = &lastLogin.Time
	}
	return &id, nil
}

// conflictError maps unique-violation errors (SQLSTATE 23505) onto the
// engine's registration conflicts, or returns nil for anything else.
func conflictError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	if strings.Contains(pgErr.ConstraintName, "username") {
		return mpass.ErrUsernameTaken
	}
	return mpass.ErrEmailRegistered
}
