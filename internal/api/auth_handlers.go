package api

import (
	"database/sql"
	"strings"
	"time"

	"neurodash/internal/auth"
	"neurodash/internal/models"

	"github.com/gofiber/fiber/v2"
)

const refreshCookie = "refresh_token"

func RegisterHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		req.DisplayName = strings.TrimSpace(req.DisplayName)
		if err := req.Validate(); err != nil {
			return err
		}

		hashedPassword, err := auth.HashPassword(req.Password)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to hash password")
		}

		result, err := s.DB.Exec(
			"INSERT INTO users (email, password_hash, display_name) VALUES (?, ?, ?)",
			req.Email, hashedPassword, req.DisplayName,
		)
		if err != nil {
			return fiber.NewError(fiber.StatusConflict, "Email already registered")
		}
		userID, _ := result.LastInsertId()

		user := models.User{ID: int(userID), Email: req.Email, DisplayName: req.DisplayName, CreatedAt: s.Now().UTC()}
		token, err := issueSession(c, s, user, req.Remember)
		if err != nil {
			return err
		}

		s.Log.Info().Int("user_id", user.ID).Msg("user registered")
		return c.Status(fiber.StatusCreated).JSON(models.AuthResponse{Token: token, User: user})
	}
}

func LoginHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		if err := req.Validate(); err != nil {
			return err
		}

		user, err := loadUser(s.DB, "email = ?", req.Email)
		if err == sql.ErrNoRows {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid email or password")
		}
		if err != nil {
			return err
		}
		if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid email or password")
		}

		token, err := issueSession(c, s, user, req.Remember)
		if err != nil {
			return err
		}
		return c.JSON(models.AuthResponse{Token: token, User: user})
	}
}

// RefreshTokenHandler restores a session from the refresh token cookie and
// rotates the refresh token.
func RefreshTokenHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		refreshToken := c.Cookies(refreshCookie)
		if refreshToken == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Refresh token not found")
		}

		claims, err := s.Tokens.ValidateRefreshToken(refreshToken)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired refresh token")
		}

		dbUserID, ttlDays, err := ValidateRefreshTokenInDB(s.DB, refreshToken, s.Now())
		if err != nil {
			s.Log.Debug().Err(err).Msg("refresh token rejected")
			return fiber.NewError(fiber.StatusUnauthorized, "Refresh token not valid")
		}
		if dbUserID != claims.UserID {
			return fiber.NewError(fiber.StatusUnauthorized, "Token user mismatch")
		}

		// The profile may have changed since the token was minted.
		user, err := loadUser(s.DB, "id = ?", claims.UserID)
		if err == sql.ErrNoRows {
			return fiber.NewError(fiber.StatusUnauthorized, "User no longer exists")
		}
		if err != nil {
			return err
		}
		id := identityOf(user)

		accessToken, err := s.Tokens.GenerateToken(id)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to generate access token")
		}
		newRefreshToken, err := s.Tokens.GenerateRefreshToken(id, ttlDays)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to generate new refresh token")
		}
		expiresAt := s.Now().Add(time.Duration(ttlDays) * 24 * time.Hour)
		if err := StoreRefreshToken(s.DB, user.ID, newRefreshToken, expiresAt, ttlDays); err != nil {
			return err
		}
		if err := RevokeRefreshToken(s.DB, refreshToken); err != nil {
			s.Log.Warn().Err(err).Int("user_id", user.ID).Msg("old refresh token not revoked")
		}
		setRefreshCookie(c, s, newRefreshToken, expiresAt)

		return c.JSON(fiber.Map{"token": accessToken, "user": user})
	}
}

// LogoutHandler revokes the refresh token and signs out every live session
// of the user, closing their streams and timers.
func LogoutHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := 0
		if old := c.Cookies(refreshCookie); old != "" {
			if claims, err := s.Tokens.ValidateRefreshToken(old); err == nil {
				userID = claims.UserID
			}
			if err := RevokeRefreshToken(s.DB, old); err != nil {
				s.Log.Warn().Err(err).Msg("refresh token not revoked on logout")
			}
		}
		if userID == 0 {
			if claims, err := s.Tokens.ValidateToken(bearerToken(c)); err == nil {
				userID = claims.UserID
			}
		}

		closed := 0
		if userID != 0 {
			closed = s.Sessions.SignOutUser(userID)
			s.Log.Info().Int("user_id", userID).Int("sessions", closed).Msg("user signed out")
		}

		setRefreshCookie(c, s, "", s.Now().Add(-time.Hour))
		return c.JSON(fiber.Map{
			"message":  "Logged out successfully",
			"redirect": "/login",
		})
	}
}

func issueSession(c *fiber.Ctx, s *Server, user models.User, remember bool) (string, error) {
	id := identityOf(user)
	accessToken, err := s.Tokens.GenerateToken(id)
	if err != nil {
		return "", fiber.NewError(fiber.StatusInternalServerError, "Failed to generate token")
	}

	days := s.Tokens.RefreshDays(remember)
	refreshToken, err := s.Tokens.GenerateRefreshToken(id, days)
	if err != nil {
		return "", fiber.NewError(fiber.StatusInternalServerError, "Failed to generate refresh token")
	}
	expiresAt := s.Now().Add(time.Duration(days) * 24 * time.Hour)
	if err := StoreRefreshToken(s.DB, user.ID, refreshToken, expiresAt, days); err != nil {
		return "", err
	}
	setRefreshCookie(c, s, refreshToken, expiresAt)
	return accessToken, nil
}

func setRefreshCookie(c *fiber.Ctx, s *Server, value string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookie,
		Value:    value,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   s.Tokens.CookieSecure,
		SameSite: "Lax",
		Path:     "/api/auth",
	})
}

func identityOf(u models.User) auth.Identity {
	return auth.Identity{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName}
}
