package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clientboard-backend/internal/apperr"
	"clientboard-backend/internal/models"
)

type ClientRepository struct {
	db *sql.DB
}

func NewClientRepository(db *sql.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

func (r *ClientRepository) Create(ctx context.Context, c *models.Client) error {
	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO clients (user_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		RETURNING id
	`, c.UserID, c.Name, now).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert client: %w", err)
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

func (r *ClientRepository) ExistsByName(ctx context.Context, userID int64, name string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM clients WHERE user_id = $1 AND name = $2
	`, userID, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check client name: %w", err)
	}
	return n > 0, nil
}

// GetForUser returns apperr.ErrNotFound when the client is missing or owned
// by someone else.
func (r *ClientRepository) GetForUser(ctx context.Context, userID, id int64) (models.Client, error) {
	var c models.Client
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, created_at, updated_at
		FROM clients
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(&c.ID, &c.UserID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Client{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.Client{}, fmt.Errorf("get client %d: %w", id, err)
	}
	return c, nil
}

func (r *ClientRepository) ListForUser(ctx context.Context, userID int64) ([]models.Client, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, created_at, updated_at
		FROM clients
		WHERE user_id = $1
		ORDER BY name ASC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var clients []models.Client
	for rows.Next() {
		var c models.Client
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return clients, nil
}

// Delete removes the client and every task it owns in one transaction.
// The foreign key cascades too; the explicit delete keeps the behaviour when
// the driver runs without foreign key enforcement.
func (r *ClientRepository) Delete(ctx context.Context, userID, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM tasks
		WHERE client_id IN (SELECT id FROM clients WHERE id = $1 AND user_id = $2)
	`, id, userID); err != nil {
		return fmt.Errorf("delete client tasks: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM clients WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return apperr.ErrNotFound
	}

	return tx.Commit()
}

// Touch bumps updated_at after a child task changed.
func (r *ClientRepository) Touch(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE clients SET updated_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	return err
}
