package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"hrims/internal/platform/querier"
)

const StatusActive = "active"

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

type AuthUser struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	MFAEnabled   bool
	MFASecret    []byte
}

func (s *Store) FindActiveUserByEmail(ctx context.Context, email string) (AuthUser, error) {
	var out AuthUser
	err := s.DB.QueryRow(ctx, `
    SELECT u.id::text, u.email, COALESCE(TRIM(e.first_name || ' ' || e.last_name), ''), u.password_hash,
           u.mfa_enabled, u.mfa_secret_enc
    FROM users u
    LEFT JOIN employees e ON e.id = u.employee_id
    WHERE lower(u.email) = lower($1) AND u.status = $2
  `, strings.TrimSpace(email), StatusActive).Scan(&out.ID, &out.Email, &out.DisplayName, &out.PasswordHash, &out.MFAEnabled, &out.MFASecret)
	if errors.Is(err, pgx.ErrNoRows) {
		return AuthUser{}, ErrUserNotFound
	}
	return out, err
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET last_login = now() WHERE id::text = $1", userID)
	return err
}

func (s *Store) MFASecret(ctx context.Context, userID string) ([]byte, bool, error) {
	var sealed []byte
	var enabled bool
	err := s.DB.QueryRow(ctx, "SELECT mfa_secret_enc, mfa_enabled FROM users WHERE id::text = $1", userID).Scan(&sealed, &enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, ErrUserNotFound
	}
	return sealed, enabled, err
}

// SaveMFASecret stores a new sealed seed and leaves MFA disabled until the
// user confirms a code.
func (s *Store) SaveMFASecret(ctx context.Context, userID string, sealed []byte) error {
	tag, err := s.DB.Exec(ctx, "UPDATE users SET mfa_secret_enc = $1, mfa_enabled = false WHERE id::text = $2", sealed, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *Store) SetMFAEnabled(ctx context.Context, userID string, enabled bool) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET mfa_enabled = $1 WHERE id::text = $2", enabled, userID)
	return err
}
