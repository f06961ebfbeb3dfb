// Package progress computes completion statistics for a set of tasks.
//
// Percentages round half up on exact integers: 1 of 8 is 12.5% and reports
// 13. An empty set reports 0 for both completion and remaining.
package progress

type Stats struct {
	TotalTasks           int `json:"total_tasks"`
	CompletedTasks       int `json:"completed_tasks"`
	PendingTasks         int `json:"pending_tasks"`
	CompletionPercentage int `json:"completion_percentage"`
	RemainingPercentage  int `json:"remaining_percentage"`
}

// Compute builds Stats from raw counts. completed is clamped to [0, total].
func Compute(completed, total int) Stats {
	if total <= 0 {
		return Stats{}
	}
	if completed < 0 {
		completed = 0
	}
	if completed > total {
		completed = total
	}

	pct := Percentage(completed, total)
	return Stats{
		TotalTasks:           total,
		CompletedTasks:       completed,
		PendingTasks:         total - completed,
		CompletionPercentage: pct,
		RemainingPercentage:  100 - pct,
	}
}

// Percentage returns round(100*completed/total), halves rounded up.
func Percentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*completed + total) / (2 * total)
}

// Completable is anything carrying a completion flag.
type Completable interface {
	Completed() bool
}

func FromTasks[T Completable](tasks []T) Stats {
	done := 0
	for _, t := range tasks {
		if t.Completed() {
			done++
		}
	}
	return Compute(done, len(tasks))
}
