// Package dashboard assembles the per-user overview: every client with its
// tasks and statistics, plus totals across all of them.
package dashboard

import (
	"context"
	"database/sql"
	"strings"

	"clientboard-backend/internal/clients"
	"clientboard-backend/internal/models"
	"clientboard-backend/internal/progress"
	"clientboard-backend/internal/repository"
)

type ClientView struct {
	clients.Summary
	Tasks []models.Task `json:"tasks"`
}

type View struct {
	Clients          []ClientView `json:"clients"`
	TotalClients     int          `json:"total_clients"`
	TotalTasks       int          `json:"total_tasks"`
	CompletedTasks   int          `json:"completed_tasks"`
	PendingTasks     int          `json:"pending_tasks"`
	GlobalCompletion int          `json:"global_completion"`
	GlobalRemaining  int          `json:"global_remaining"`
	Query            string       `json:"query,omitempty"`
}

type Builder struct {
	clients *repository.ClientRepository
	tasks   *repository.TaskRepository
}

func NewBuilder(dbx *sql.DB) *Builder {
	return &Builder{
		clients: repository.NewClientRepository(dbx),
		tasks:   repository.NewTaskRepository(dbx),
	}
}

// Build loads the user's whole dataset. query, when set, narrows the client
// list by a case-insensitive name match; totals always cover every client.
func (b *Builder) Build(ctx context.Context, userID int64, query string) (View, error) {
	cs, err := b.clients.ListForUser(ctx, userID)
	if err != nil {
		return View{}, err
	}
	all, err := b.tasks.ListForUser(ctx, userID)
	if err != nil {
		return View{}, err
	}

	byClient := make(map[int64][]models.Task, len(cs))
	for _, t := range all {
		byClient[t.ClientID] = append(byClient[t.ClientID], t)
	}

	query = strings.TrimSpace(query)
	needle := strings.ToLower(query)

	v := View{
		Clients:      make([]ClientView, 0, len(cs)),
		TotalClients: len(cs),
		Query:        query,
	}
	for _, c := range cs {
		if needle != "" && !strings.Contains(strings.ToLower(c.Name), needle) {
			continue
		}
		ts := byClient[c.ID]
		if ts == nil {
			ts = []models.Task{}
		}
		v.Clients = append(v.Clients, ClientView{
			Summary: clients.Summary{ID: c.ID, Name: c.Name, Stats: progress.FromTasks(ts)},
			Tasks:   ts,
		})
	}

	global := progress.FromTasks(all)
	v.TotalTasks = global.TotalTasks
	v.CompletedTasks = global.CompletedTasks
	v.PendingTasks = global.PendingTasks
	v.GlobalCompletion = global.CompletionPercentage
	v.GlobalRemaining = global.RemainingPercentage
	return v, nil
}
