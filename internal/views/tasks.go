package views

import (
	"math"
	"sort"

	"neurodash/internal/models"
)

// FilterTasks keeps tasks matching priority and category. Empty arguments
// match everything.
func FilterTasks(tasks []models.Task, priority models.Priority, category string) []models.Task {
	out := []models.Task{}
	for _, t := range tasks {
		if priority != "" && t.Priority != priority {
			continue
		}
		if category != "" && t.Category != category {
			continue
		}
		out = append(out, t)
	}
	return out
}

// SortByPriority orders tasks high first, then by creation time.
func SortByPriority(tasks []models.Task) []models.Task {
	out := make([]models.Task, len(tasks))
	copy(out, tasks)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// CompletionRate is the rounded percentage of completed tasks, 0 for none.
func CompletionRate(tasks []models.Task) int {
	if len(tasks) == 0 {
		return 0
	}
	done := 0
	for _, t := range tasks {
		if t.Completed {
			done++
		}
	}
	return int(math.Round(float64(done) / float64(len(tasks)) * 100))
}

// TaskSummary is the header of the task page.
type TaskSummary struct {
	Total          int      `json:"total"`
	Completed      int      `json:"completed"`
	Pending        int      `json:"pending"`
	CompletionRate int      `json:"completionRate"`
	Categories     []string `json:"categories"`
}

// Summarize counts tasks and collects their distinct categories in first-seen order.
func Summarize(tasks []models.Task) TaskSummary {
	s := TaskSummary{Total: len(tasks), Categories: []string{}, CompletionRate: CompletionRate(tasks)}
	seen := map[string]bool{}
	for _, t := range tasks {
		if t.Completed {
			s.Completed++
		}
		if t.Category != "" && !seen[t.Category] {
			seen[t.Category] = true
			s.Categories = append(s.Categories, t.Category)
		}
	}
	s.Pending = s.Total - s.Completed
	return s
}
