package api

import (
	"slices"

	"neurodash/internal/binder"
	"neurodash/internal/docstore"
	"neurodash/internal/models"
	"neurodash/internal/views"

	"github.com/gofiber/fiber/v2"
)

func newMoodDraft(s *Server) func() models.MoodEntry {
	return func() models.MoodEntry {
		return models.MoodEntry{Date: s.today().Format(models.DateLayout)}
	}
}

// MoodHistoryHandler returns the trailing seven-day mood series ending today.
func MoodHistoryHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		today := s.today()
		entries, err := binder.NewCollection[models.MoodEntry](binderOf(c), models.CollectionMoods).
			List(c.UserContext(), docstore.Range("date", views.MoodWindowStart(today), today.Format(models.DateLayout)))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"series": views.MoodSeries(entries, today),
			"moods":  models.Moods,
			"scale":  models.MoodScale,
		})
	}
}

// ListTipsHandler returns the tips, optionally only those for ?state=.
func ListTipsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		state := models.TipState(c.Query("state"))
		if state != "" && !slices.Contains(models.TipStates, state) {
			return fiber.NewError(fiber.StatusBadRequest, "unknown state")
		}
		tips, err := binder.NewCollection[models.Tip](binderOf(c), models.CollectionTips).List(c.UserContext(), orderedByCreation)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"tips":   views.FilterTips(tips, state),
			"states": models.TipStates,
		})
	}
}
