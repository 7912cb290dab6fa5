package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hrims/internal/domain/auth"
	"hrims/internal/platform/config"
)

// Seed makes sure an HR administrator can sign in on a fresh database.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	return ensureHRAdmin(ctx, pool, cfg.SeedHREmail, cfg.SeedHRPassword)
}

func ensureHRAdmin(ctx context.Context, pool *pgxpool.Pool, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return nil
	}

	var userID string
	err := pool.QueryRow(ctx, "SELECT id FROM users WHERE email = $1", email).Scan(&userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var employeeID string
	if err := tx.QueryRow(ctx, `
    INSERT INTO employees (email, first_name, last_name, position_title, academic_role_level, is_hr)
    VALUES ($1, 'HR', 'Administrator', 'HR Administrator', -1, true)
    ON CONFLICT (email) DO UPDATE SET is_hr = true
    RETURNING id
  `, email).Scan(&employeeID); err != nil {
		return err
	}

	if err := tx.QueryRow(ctx, `
    INSERT INTO users (employee_id, email, password_hash)
    VALUES ($1, $2, $3)
    RETURNING id
  `, employeeID, email, hash).Scan(&userID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, "UPDATE employees SET auth_id = $1 WHERE id = $2", userID, employeeID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
