package database

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"
)

// tokenBytes is the entropy of a verification token before encoding.
// 32 bytes gives 256 bits, well above the 128-bit floor.
const tokenBytes = 32

// NormalizeEmail case-folds and trims an email address. All lookups and the
// uniqueness constraint operate on the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// newVerificationToken generates a cryptographically random, URL-safe token.
func newVerificationToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate verification token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CreateUser registers a new user with a fresh verification token.
// The token is returned separately from the user so callers hand it only to
// the mail-sending step, never back to the signup response.
// Uniqueness is enforced by the database: a concurrent signup for the same
// email loses with ErrDuplicateEmail.
func (db *DB) CreateUser(ctx context.Context, email string) (*User, string, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" || !strings.Contains(normalized, "@") {
		return nil, "", fmt.Errorf("invalid email address: %q", email)
	}

	token, err := newVerificationToken()
	if err != nil {
		return nil, "", err
	}

	query := `
		INSERT INTO users (email, verification_token, verified, active, created_at, updated_at)
		VALUES ($1, $2, FALSE, TRUE, NOW(), NOW())
		RETURNING user_id, email, verified, active, created_at, updated_at
	`
	var user User
	err = db.conn.QueryRowContext(ctx, query, normalized, token).Scan(
		&user.UserID,
		&user.Email,
		&user.Verified,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return nil, "", fmt.Errorf("user %s: %w", normalized, ErrDuplicateEmail)
		}
		return nil, "", wrapUnavailable(err, "failed to create user")
	}

	slog.Info("Created user pending verification", "user_id", user.UserID)
	return &user, token, nil
}

// VerifyToken consumes a verification token, marking the user verified and
// clearing the token in one statement so it cannot be replayed.
// Returns ErrInvalidToken when the token matches no pending user; the error
// does not reveal whether the underlying email exists.
func (db *DB) VerifyToken(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}

	query := `
		UPDATE users
		SET verified = TRUE, verification_token = NULL, updated_at = NOW()
		WHERE verification_token = $1 AND verified = FALSE
	`
	result, err := db.conn.ExecContext(ctx, query, token)
	if err != nil {
		return wrapUnavailable(err, "failed to verify token")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrInvalidToken
	}

	slog.Info("User verified")
	return nil
}

// GetUserByEmail retrieves a user by normalized email address.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT user_id, email, verification_token, verified, active, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	var user User
	var token sql.NullString
	err := db.conn.QueryRowContext(ctx, query, NormalizeEmail(email)).Scan(
		&user.UserID,
		&user.Email,
		&token,
		&user.Verified,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", NormalizeEmail(email), ErrNotFound)
	}
	if err != nil {
		return nil, wrapUnavailable(err, "failed to get user")
	}
	if token.Valid {
		user.VerificationToken = &token.String
	}
	return &user, nil
}

// DeactivateUser soft-deactivates a user and cascade-deactivates their
// subscriptions in a single transaction. Users are never hard-deleted.
func (db *DB) DeactivateUser(ctx context.Context, userID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return wrapUnavailable(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE users SET active = FALSE, updated_at = NOW() WHERE user_id = $1
	`, userID)
	if err != nil {
		return wrapUnavailable(err, "failed to deactivate user")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE subscriptions SET active = FALSE WHERE user_id = $1
	`, userID); err != nil {
		return wrapUnavailable(err, "failed to deactivate subscriptions")
	}

	if err := tx.Commit(); err != nil {
		return wrapUnavailable(err, "failed to commit deactivation")
	}

	slog.Info("Deactivated user and subscriptions", "user_id", userID)
	return nil
}
