package api

import (
	"neurodash/internal/binder"
	"neurodash/internal/docstore"
	"neurodash/internal/games"
	"neurodash/internal/models"
	"neurodash/internal/viewmodel"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrorHandler renders every error as {"error": message}. Unauthenticated
// responses also carry the login path to redirect to.
func ErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := err.Error()

		var fe *fiber.Error
		switch {
		case errors.As(err, &fe):
			code = fe.Code
		case errors.Is(err, models.ErrValidation), errors.Is(err, docstore.ErrInvalidQuery), errors.Is(err, docstore.ErrNotObject):
			code = fiber.StatusBadRequest
		case errors.Is(err, binder.ErrNotAuthenticated):
			code = fiber.StatusUnauthorized
			message = "Not authenticated"
		case errors.Is(err, docstore.ErrNotFound), errors.Is(err, games.ErrUnknownGame):
			code = fiber.StatusNotFound
		}

		body := fiber.Map{"error": message}
		if code == fiber.StatusUnauthorized {
			body["redirect"] = viewmodel.LoginPath
		}
		if code >= fiber.StatusInternalServerError {
			log.Error().Stack().Err(err).Str("path", c.Path()).Msg("request failed")
			body["error"] = "Internal server error"
		}
		return c.Status(code).JSON(body)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, docstore.ErrNotFound)
}
