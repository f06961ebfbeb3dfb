package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clientboard-backend/internal/apperr"
)

// CreatePasswordReset stores the hash of a mailed reset token. Only the hash
// is kept, so a leaked table cannot be used to reset passwords.
func (r *UserRepository) CreatePasswordReset(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO password_resets (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, tokenHash, userID, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("insert password reset: %w", err)
	}
	return nil
}

// RedeemPasswordReset sets a new password hash for the owner of tokenHash and
// discards every outstanding reset of that user. Unknown and expired tokens
// return apperr.ErrNotFound.
func (r *UserRepository) RedeemPasswordReset(ctx context.Context, tokenHash, passwordHash string, now time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var (
		userID    int64
		expiresAt time.Time
	)
	err = tx.QueryRowContext(ctx, `
		SELECT user_id, expires_at
		FROM password_resets
		WHERE token_hash = $1
	`, tokenHash).Scan(&userID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get password reset: %w", err)
	}

	if !now.Before(expiresAt) {
		if _, err := tx.ExecContext(ctx, `DELETE FROM password_resets WHERE token_hash = $1`, tokenHash); err != nil {
			return 0, fmt.Errorf("delete expired reset: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return 0, err
		}
		return 0, apperr.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM password_resets WHERE user_id = $1`, userID); err != nil {
		return 0, fmt.Errorf("delete password resets: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, userID); err != nil {
		return 0, fmt.Errorf("update password: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return userID, nil
}
