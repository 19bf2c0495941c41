package api

import (
	"encoding/json"

	"neurodash/internal/binder"

	"github.com/gofiber/fiber/v2"
)

// CreateHandler decodes the body over defaults() and creates the entity.
func CreateHandler[T any](collection string, defaults func() T) fiber.Handler {
	return func(c *fiber.Ctx) error {
		v := defaults()
		if err := c.BodyParser(&v); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		created, err := binder.NewCollection[T](binderOf(c), collection).Create(c.UserContext(), v)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	}
}

// UpdateHandler merges the JSON object in the body into the stored entity.
// A missing id is 404.
func UpdateHandler[T any](collection string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var patch map[string]json.RawMessage
		if err := json.Unmarshal(c.Body(), &patch); err != nil || patch == nil {
			return fiber.NewError(fiber.StatusBadRequest, "Request body must be a JSON object")
		}
		updated, err := binder.NewCollection[T](binderOf(c), collection).Update(c.UserContext(), c.Params("id"), patch)
		if err != nil {
			return err
		}
		return c.JSON(updated)
	}
}

// DeleteHandler removes the entity. Deleting a missing id succeeds.
func DeleteHandler(collection string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := binderOf(c).Delete(c.UserContext(), collection, c.Params("id")); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true})
	}
}

// ListHandler returns the whole collection in creation order.
func ListHandler[T any](collection string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		items, err := binder.NewCollection[T](binderOf(c), collection).List(c.UserContext(), orderedByCreation)
		if err != nil {
			return err
		}
		return c.JSON(items)
	}
}
