package api

import (
	"encoding/json"

	"neurodash/internal/binder"
	"neurodash/internal/models"
	"neurodash/internal/views"

	"github.com/gofiber/fiber/v2"
)

func routinesOf(c *fiber.Ctx) binder.Collection[models.Routine] {
	return binder.NewCollection[models.Routine](binderOf(c), models.CollectionRoutines)
}

// ListRoutinesHandler returns the routines grouped into Morning, Afternoon and Night.
func ListRoutinesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		routines, err := routinesOf(c).List(c.UserContext(), orderedByCreation)
		if err != nil {
			return err
		}
		return c.JSON(views.GroupByPeriod(routines))
	}
}

// CreateRoutineHandler stores a routine; sub-tasks that arrive without an id
// get one on write.
func CreateRoutineHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		r := models.NewRoutine()
		if err := c.BodyParser(&r); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		created, err := routinesOf(c).Create(c.UserContext(), r)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	}
}

// UpdateRoutineHandler merges the body into the stored routine. A "tasks"
// array replaces the whole sub-task list; items without an id get one.
func UpdateRoutineHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var patch map[string]json.RawMessage
		if err := json.Unmarshal(c.Body(), &patch); err != nil || patch == nil {
			return fiber.NewError(fiber.StatusBadRequest, "Request body must be a JSON object")
		}
		updated, err := routinesOf(c).Modify(c.UserContext(), c.Params("id"), func(r *models.Routine) error {
			if _, ok := patch["tasks"]; ok {
				// Decode into fresh items rather than over the stored ones.
				r.Tasks = nil
			}
			if err := json.Unmarshal(c.Body(), r); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
			}
			return nil
		})
		if err != nil {
			return err
		}
		return c.JSON(updated)
	}
}

func ToggleRoutineItemHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		itemID := c.Params("itemId")
		routine, err := routinesOf(c).Modify(c.UserContext(), c.Params("id"), func(r *models.Routine) error {
			next, ok := views.ToggleItem(*r, itemID)
			if !ok {
				return fiber.NewError(fiber.StatusNotFound, "Routine item not found")
			}
			*r = next
			return nil
		})
		if err != nil {
			return err
		}
		return c.JSON(routine)
	}
}

// MarkAllHandler sets every sub-task to {"done": bool}, default true.
func MarkAllHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := struct {
			Done *bool `json:"done"`
		}{}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
			}
		}
		done := body.Done == nil || *body.Done

		routine, err := routinesOf(c).Modify(c.UserContext(), c.Params("id"), func(r *models.Routine) error {
			*r = views.MarkAll(*r, done)
			return nil
		})
		if err != nil {
			return err
		}
		return c.JSON(routine)
	}
}
