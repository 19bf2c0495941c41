package api

import (
	"slices"

	"neurodash/internal/binder"
	"neurodash/internal/models"
	"neurodash/internal/views"

	"github.com/gofiber/fiber/v2"
)

var priorities = []models.Priority{models.PriorityHigh, models.PriorityMedium, models.PriorityLow}

func tasksOf(c *fiber.Ctx) binder.Collection[models.Task] {
	return binder.NewCollection[models.Task](binderOf(c), models.CollectionTasks)
}

// ListTasksHandler filters by ?priority= and ?category=; ?sort=priority puts
// high priority first.
func ListTasksHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		priority := models.Priority(c.Query("priority"))
		if priority != "" && !slices.Contains(priorities, priority) {
			return fiber.NewError(fiber.StatusBadRequest, "priority must be one of: high medium low")
		}

		all, err := tasksOf(c).List(c.UserContext(), orderedByCreation)
		if err != nil {
			return err
		}
		tasks := views.FilterTasks(all, priority, c.Query("category"))
		if c.Query("sort") == "priority" {
			tasks = views.SortByPriority(tasks)
		}
		return c.JSON(fiber.Map{
			"tasks":      tasks,
			"completion": views.CompletionRate(tasks),
		})
	}
}

func TaskSummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		all, err := tasksOf(c).List(c.UserContext(), orderedByCreation)
		if err != nil {
			return err
		}
		return c.JSON(views.Summarize(all))
	}
}

// ToggleTaskHandler flips the completed flag.
func ToggleTaskHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		task, err := tasksOf(c).Modify(c.UserContext(), c.Params("id"), func(t *models.Task) error {
			t.Completed = !t.Completed
			return nil
		})
		if err != nil {
			return err
		}
		return c.JSON(task)
	}
}

func newTaskDraft(s *Server) func() models.Task {
	return func() models.Task {
		return models.NewTask(s.today().Format(models.DateLayout))
	}
}
