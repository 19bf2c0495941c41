package api

import (
	"strings"

	"neurodash/internal/auth"
	"neurodash/internal/binder"

	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware resolves the bearer token into a session identity. The
// identity context and a binder scoped to it are stored in Locals.
func AuthMiddleware(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			// Browsers cannot set headers on EventSource requests.
			token = c.Query("access_token")
		}
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing authorization header")
		}

		session := auth.Resolve(s.Tokens, token)
		id := session.CurrentUser()
		if id == nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
		}

		c.Locals("userID", id.ID)
		c.Locals("session", session)
		c.Locals("binder", binder.New(s.Store, session, s.Log))
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

func sessionOf(c *fiber.Ctx) *auth.Context {
	return c.Locals("session").(*auth.Context)
}

func binderOf(c *fiber.Ctx) *binder.Binder {
	return c.Locals("binder").(*binder.Binder)
}
