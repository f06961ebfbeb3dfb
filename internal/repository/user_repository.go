package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"clientboard-backend/internal/apperr"
	"clientboard-backend/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, u.Username, strings.ToLower(u.Email), u.PasswordHash, now).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.Email = strings.ToLower(u.Email)
	u.CreatedAt = now
	return nil
}

func (r *UserRepository) get(ctx context.Context, where string, arg any) (models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE `+where, arg).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (models.User, error) {
	return r.get(ctx, "id = $1", id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return r.get(ctx, "email = $1", strings.ToLower(strings.TrimSpace(email)))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (models.User, error) {
	return r.get(ctx, "username = $1", strings.TrimSpace(username))
}

// GetByIdentifier tries the identifier as an email first, then as a username.
func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (models.User, error) {
	u, err := r.GetByEmail(ctx, identifier)
	if err == nil || !apperr.IsNotFound(err) {
		return u, err
	}
	return r.GetByUsername(ctx, identifier)
}

func (r *UserRepository) ExistsUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username = $1", strings.TrimSpace(username))
}

func (r *UserRepository) ExistsEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email = $1", strings.ToLower(strings.TrimSpace(email)))
}

func (r *UserRepository) exists(ctx context.Context, where string, arg any) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE `+where, arg).Scan(&n); err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return n > 0, nil
}

// DeleteAccount removes the user and everything they own.
func (r *UserRepository) DeleteAccount(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	steps := []struct {
		name  string
		query string
	}{
		{"analytics_events", `DELETE FROM analytics_events WHERE user_id = $1`},
		{"password_resets", `DELETE FROM password_resets WHERE user_id = $1`},
		{"tasks", `DELETE FROM tasks WHERE client_id IN (SELECT id FROM clients WHERE user_id = $1)`},
		{"clients", `DELETE FROM clients WHERE user_id = $1`},
	}
	for _, s := range steps {
		if _, err := tx.ExecContext(ctx, s.query, id); err != nil {
			return fmt.Errorf("delete %s: %w", s.name, err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}

	return tx.Commit()
}
