package api

import (
	"time"

	"neurodash/internal/binder"
	"neurodash/internal/docstore"
	"neurodash/internal/models"
	"neurodash/internal/views"

	"github.com/gofiber/fiber/v2"
)

var orderedByCreation = docstore.Query{}.Order(docstore.FieldCreatedAt, false)

func monthParam(c *fiber.Ctx, s *Server) (time.Time, error) {
	month, err := views.ParseMonth(c.Query("month"), s.today())
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return month, nil
}

func monthEvents(c *fiber.Ctx, month time.Time) ([]models.CalendarEvent, error) {
	from, to := views.MonthWindow(month)
	return binder.NewCollection[models.CalendarEvent](binderOf(c), models.CollectionEvents).
		List(c.UserContext(), docstore.Range("date", from, to))
}

// ListEventsHandler returns the events of ?month=YYYY-MM, default the current month.
func ListEventsHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		month, err := monthParam(c, s)
		if err != nil {
			return err
		}
		events, err := monthEvents(c, month)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"month":  views.FormatMonth(month),
			"events": events,
		})
	}
}

// CalendarHandler returns the Monday-first month grid with events bucketed by day.
func CalendarHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		month, err := monthParam(c, s)
		if err != nil {
			return err
		}
		events, err := monthEvents(c, month)
		if err != nil {
			return err
		}
		grid := views.Bucket(views.MonthGrid(month, s.today()), events)
		return c.JSON(fiber.Map{
			"month":      views.FormatMonth(month),
			"prev":       views.FormatMonth(views.ShiftMonth(month, -1)),
			"next":       views.FormatMonth(views.ShiftMonth(month, 1)),
			"weeks":      views.Weeks(grid),
			"categories": models.EventCategories,
		})
	}
}

func newEventDraft(s *Server) func() models.CalendarEvent {
	return func() models.CalendarEvent {
		return models.NewCalendarEvent(s.today().Format(models.DateLayout))
	}
}
