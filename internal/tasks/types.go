package tasks

import (
	"clientboard-backend/internal/clients"
	"clientboard-backend/internal/models"
	"clientboard-backend/internal/progress"
)

// Item is the task shape returned to callers.
type Item struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	IsCompleted bool   `json:"is_completed"`
}

func itemOf(t models.Task) Item {
	return Item{ID: t.ID, Title: t.Title, IsCompleted: t.IsCompleted}
}

type CreateResult struct {
	Task   Item            `json:"task"`
	Client clients.Summary `json:"client"`
}

type ToggleResult struct {
	IsCompleted bool            `json:"is_completed"`
	Client      clients.Summary `json:"client"`
	Global      progress.Stats  `json:"global"`
}

type DeleteResult struct {
	Client clients.Summary `json:"client"`
}
