package clients

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode/utf8"

	"clientboard-backend/internal/analytics"
	"clientboard-backend/internal/apperr"
	"clientboard-backend/internal/db"
	"clientboard-backend/internal/models"
	"clientboard-backend/internal/progress"
	"clientboard-backend/internal/repository"
)

const (
	msgNameRequired = "Client name is required"
	msgNameTooLong  = "Client name must be at most 200 characters"
	msgDuplicate    = "Client with this name already exists"
)

// Summary is a client plus its freshly computed statistics.
type Summary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	progress.Stats
}

type Service struct {
	clients *repository.ClientRepository
	tasks   *repository.TaskRepository
	events  *analytics.Recorder
}

func NewService(dbx *sql.DB, events *analytics.Recorder) *Service {
	return &Service{
		clients: repository.NewClientRepository(dbx),
		tasks:   repository.NewTaskRepository(dbx),
		events:  events,
	}
}

func (s *Service) Create(ctx context.Context, userID int64, name string) (Summary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Summary{}, apperr.Validation("name", msgNameRequired)
	}
	if utf8.RuneCountInString(name) > models.MaxClientNameLen {
		return Summary{}, apperr.Validation("name", msgNameTooLong)
	}

	exists, err := s.clients.ExistsByName(ctx, userID, name)
	if err != nil {
		return Summary{}, err
	}
	if exists {
		return Summary{}, apperr.Validation("name", msgDuplicate)
	}

	c := models.Client{UserID: userID, Name: name}
	if err := s.clients.Create(ctx, &c); err != nil {
		// lost a race with a concurrent create of the same name
		if db.IsUniqueViolation(err) {
			return Summary{}, apperr.Validation("name", msgDuplicate)
		}
		return Summary{}, err
	}

	s.events.Record(ctx, userID, analytics.EventClientCreated, map[string]any{
		"client_id": c.ID,
		"name_len":  utf8.RuneCountInString(name),
	})

	return Summary{ID: c.ID, Name: c.Name, Stats: progress.Compute(0, 0)}, nil
}

// Delete removes the client and its tasks and returns the deleted name.
func (s *Service) Delete(ctx context.Context, userID, id int64) (string, error) {
	c, err := s.clients.GetForUser(ctx, userID, id)
	if err != nil {
		return "", err
	}

	st, err := s.tasks.StatsForClient(ctx, c.ID)
	if err != nil {
		return "", err
	}

	if err := s.clients.Delete(ctx, userID, c.ID); err != nil {
		return "", err
	}

	s.events.Record(ctx, userID, analytics.EventClientDeleted, map[string]any{
		"client_id":   c.ID,
		"total_tasks": st.TotalTasks,
	})

	return c.Name, nil
}

// Get returns one owned client with its statistics counted from the stored
// tasks. Task changes report the owning client through it.
func (s *Service) Get(ctx context.Context, userID, id int64) (Summary, error) {
	c, err := s.clients.GetForUser(ctx, userID, id)
	if err != nil {
		return Summary{}, err
	}
	st, err := s.tasks.StatsForClient(ctx, c.ID)
	if err != nil {
		return Summary{}, fmt.Errorf("client %d stats: %w", c.ID, err)
	}
	return Summary{ID: c.ID, Name: c.Name, Stats: st}, nil
}
