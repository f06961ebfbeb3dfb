// Package tasks creates, toggles and deletes tasks and reports the fresh
// statistics each change produces.
package tasks

import (
	"context"
	"database/sql"
	"log"
	"strings"
	"unicode/utf8"

	"clientboard-backend/internal/analytics"
	"clientboard-backend/internal/apperr"
	"clientboard-backend/internal/clients"
	"clientboard-backend/internal/models"
	"clientboard-backend/internal/repository"
)

const (
	msgTitleRequired = "Task title is required"
	msgTitleTooLong  = "Task title must be at most 500 characters"
)

type Service struct {
	clients   *repository.ClientRepository
	tasks     *repository.TaskRepository
	summaries *clients.Service
	events    *analytics.Recorder
}

func NewService(dbx *sql.DB, events *analytics.Recorder) *Service {
	return &Service{
		clients:   repository.NewClientRepository(dbx),
		tasks:     repository.NewTaskRepository(dbx),
		summaries: clients.NewService(dbx, events),
		events:    events,
	}
}

func (s *Service) Create(ctx context.Context, userID, clientID int64, title string) (CreateResult, error) {
	c, err := s.clients.GetForUser(ctx, userID, clientID)
	if err != nil {
		return CreateResult{}, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return CreateResult{}, apperr.Validation("title", msgTitleRequired)
	}
	if utf8.RuneCountInString(title) > models.MaxTaskTitleLen {
		return CreateResult{}, apperr.Validation("title", msgTitleTooLong)
	}

	t := models.Task{ClientID: c.ID, Title: title}
	if err := s.tasks.Create(ctx, &t); err != nil {
		return CreateResult{}, err
	}
	s.touch(ctx, c.ID)

	sum, err := s.summaries.Get(ctx, userID, c.ID)
	if err != nil {
		return CreateResult{}, err
	}

	s.events.Record(ctx, userID, analytics.EventTaskCreated, map[string]any{
		"client_id": c.ID,
		"task_id":   t.ID,
		"title_len": utf8.RuneCountInString(title),
	})

	return CreateResult{Task: itemOf(t), Client: sum}, nil
}

// Toggle flips the task and recounts both the client and the user's global
// statistics from the stored rows.
func (s *Service) Toggle(ctx context.Context, userID, taskID int64) (ToggleResult, error) {
	t, err := s.tasks.GetForUser(ctx, userID, taskID)
	if err != nil {
		return ToggleResult{}, err
	}

	completed, err := s.tasks.Toggle(ctx, userID, t.ID)
	if err != nil {
		return ToggleResult{}, err
	}
	s.touch(ctx, t.ClientID)

	sum, err := s.summaries.Get(ctx, userID, t.ClientID)
	if err != nil {
		return ToggleResult{}, err
	}
	global, err := s.tasks.StatsForUser(ctx, userID)
	if err != nil {
		return ToggleResult{}, err
	}

	s.events.Record(ctx, userID, analytics.EventTaskToggled, map[string]any{
		"client_id":    t.ClientID,
		"task_id":      t.ID,
		"is_completed": completed,
	})

	return ToggleResult{IsCompleted: completed, Client: sum, Global: global}, nil
}

func (s *Service) Delete(ctx context.Context, userID, taskID int64) (DeleteResult, error) {
	t, err := s.tasks.GetForUser(ctx, userID, taskID)
	if err != nil {
		return DeleteResult{}, err
	}

	if err := s.tasks.Delete(ctx, userID, t.ID); err != nil {
		return DeleteResult{}, err
	}
	s.touch(ctx, t.ClientID)

	sum, err := s.summaries.Get(ctx, userID, t.ClientID)
	if err != nil {
		return DeleteResult{}, err
	}

	s.events.Record(ctx, userID, analytics.EventTaskDeleted, map[string]any{
		"client_id": t.ClientID,
		"task_id":   t.ID,
	})

	return DeleteResult{Client: sum}, nil
}

func (s *Service) touch(ctx context.Context, clientID int64) {
	if err := s.clients.Touch(ctx, clientID); err != nil {
		log.Printf("[WARN] touch client_id=%d: %v", clientID, err)
	}
}
