package api

import (
	"database/sql"
	"strings"

	"neurodash/internal/database"
	"neurodash/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
)

// loadUser reads one user row. where is a fixed condition with one placeholder.
func loadUser(db *sql.DB, where string, arg any) (models.User, error) {
	var (
		user      models.User
		createdAt any
	)
	err := db.QueryRow(
		"SELECT id, email, display_name, password_hash, created_at FROM users WHERE "+where, arg,
	).Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &createdAt)
	if err == sql.ErrNoRows {
		return models.User{}, err
	}
	if err != nil {
		return models.User{}, errors.Wrap(err, "load user")
	}
	if t, ok := database.ParseTime(createdAt); ok {
		user.CreatedAt = t
	}
	return user, nil
}

// GetUserProfileHandler returns the current user's profile information
func GetUserProfileHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		user, err := loadUser(s.DB, "id = ?", userID)
		if err == sql.ErrNoRows {
			return fiber.NewError(fiber.StatusNotFound, "User not found")
		}
		if err != nil {
			return err
		}
		return c.JSON(user)
	}
}

// UpdateUserProfileHandler changes the display name. Tokens minted earlier
// carry the old name until the next refresh.
func UpdateUserProfileHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		var req models.UpdateProfileRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		req.DisplayName = strings.TrimSpace(req.DisplayName)
		if err := req.Validate(); err != nil {
			return err
		}

		if _, err := s.DB.Exec("UPDATE users SET display_name = ? WHERE id = ?", req.DisplayName, userID); err != nil {
			return errors.Wrap(err, "update profile")
		}

		user, err := loadUser(s.DB, "id = ?", userID)
		if err != nil {
			return err
		}
		return c.JSON(user)
	}
}
