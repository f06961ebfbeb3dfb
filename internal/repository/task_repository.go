package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clientboard-backend/internal/apperr"
	"clientboard-backend/internal/models"
	"clientboard-backend/internal/progress"
)

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `t.id, t.client_id, t.title, t.is_completed, t.created_at, t.updated_at`

func scanTask(s interface{ Scan(...any) error }) (models.Task, error) {
	var t models.Task
	err := s.Scan(&t.ID, &t.ClientID, &t.Title, &t.IsCompleted, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r *TaskRepository) Create(ctx context.Context, t *models.Task) error {
	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO tasks (client_id, title, is_completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id
	`, t.ClientID, t.Title, t.IsCompleted, now).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

// GetForUser looks a task up through its client's owner.
func (r *TaskRepository) GetForUser(ctx context.Context, userID, id int64) (models.Task, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		JOIN clients c ON c.id = t.client_id
		WHERE t.id = $1 AND c.user_id = $2
	`, id, userID)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

// ListForUser returns every task of every client the user owns.
func (r *TaskRepository) ListForUser(ctx context.Context, userID int64) ([]models.Task, error) {
	return r.list(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		JOIN clients c ON c.id = t.client_id
		WHERE c.user_id = $1
		ORDER BY t.created_at DESC, t.id DESC
	`, userID)
}

func (r *TaskRepository) list(ctx context.Context, query string, args ...any) ([]models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Toggle flips the completion flag in a single statement and returns the
// new value.
func (r *TaskRepository) Toggle(ctx context.Context, userID, id int64) (bool, error) {
	var completed bool
	err := r.db.QueryRowContext(ctx, `
		UPDATE tasks
		SET is_completed = NOT is_completed, updated_at = $1
		WHERE id = $2
		  AND client_id IN (SELECT id FROM clients WHERE user_id = $3)
		RETURNING is_completed
	`, time.Now().UTC(), id, userID).Scan(&completed)
	if errors.Is(err, sql.ErrNoRows) {
		return false, apperr.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("toggle task %d: %w", id, err)
	}
	return completed, nil
}

func (r *TaskRepository) Delete(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM tasks
		WHERE id = $1
		  AND client_id IN (SELECT id FROM clients WHERE user_id = $2)
	`, id, userID)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// StatsForClient recounts the client's persisted tasks.
func (r *TaskRepository) StatsForClient(ctx context.Context, clientID int64) (progress.Stats, error) {
	return r.stats(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN t.is_completed THEN 1 ELSE 0 END), 0)
		FROM tasks t
		WHERE t.client_id = $1
	`, clientID)
}

// StatsForUser recounts every task across the user's clients.
func (r *TaskRepository) StatsForUser(ctx context.Context, userID int64) (progress.Stats, error) {
	return r.stats(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN t.is_completed THEN 1 ELSE 0 END), 0)
		FROM tasks t
		JOIN clients c ON c.id = t.client_id
		WHERE c.user_id = $1
	`, userID)
}

func (r *TaskRepository) stats(ctx context.Context, query string, arg int64) (progress.Stats, error) {
	var total, completed int
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&total, &completed); err != nil {
		return progress.Stats{}, fmt.Errorf("task stats: %w", err)
	}
	return progress.Compute(completed, total), nil
}
