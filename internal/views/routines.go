package views

import (
	"neurodash/internal/models"
)

// PeriodGroup is one period-of-day bucket.
type PeriodGroup struct {
	Period   models.Period    `json:"period"`
	Routines []models.Routine `json:"routines"`
}

// GroupByPeriod always returns the three buckets in Morning, Afternoon,
// Night order. Routines keep their input order within a bucket.
func GroupByPeriod(routines []models.Routine) []PeriodGroup {
	groups := make([]PeriodGroup, len(models.Periods))
	for i, p := range models.Periods {
		groups[i] = PeriodGroup{Period: p, Routines: []models.Routine{}}
		for _, r := range routines {
			if r.Period == p {
				groups[i].Routines = append(groups[i].Routines, r)
			}
		}
	}
	return groups
}

// MarkAll sets every sub-task to done.
func MarkAll(r models.Routine, done bool) models.Routine {
	tasks := make([]models.TaskItem, len(r.Tasks))
	for i, t := range r.Tasks {
		t.Done = done
		tasks[i] = t
	}
	r.Tasks = tasks
	return r
}

// ToggleItem flips the done flag of the sub-task with itemID. It reports
// false when no such sub-task exists.
func ToggleItem(r models.Routine, itemID string) (models.Routine, bool) {
	tasks := make([]models.TaskItem, len(r.Tasks))
	copy(tasks, r.Tasks)
	found := false
	for i := range tasks {
		if tasks[i].ID == itemID {
			tasks[i].Done = !tasks[i].Done
			found = true
		}
	}
	r.Tasks = tasks
	return r, found
}
