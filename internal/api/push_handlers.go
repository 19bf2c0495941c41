package api

import (
	"fmt"

	"neurodash/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
)

func SubscribePushHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		var sub models.PushSubscription
		if err := c.BodyParser(&sub); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if sub.Endpoint == "" || sub.P256dh == "" || sub.Auth == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Missing subscription fields")
		}

		_, err := s.DB.Exec(
			`INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id, endpoint) DO UPDATE SET
			p256dh = excluded.p256dh,
			auth = excluded.auth`,
			userID, sub.Endpoint, sub.P256dh, sub.Auth,
		)
		if err != nil {
			return errors.Wrap(err, "save push subscription")
		}
		return c.JSON(fiber.Map{"success": true})
	}
}

func UnsubscribePushHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		var body struct {
			Endpoint string `json:"endpoint"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		if _, err := s.DB.Exec("DELETE FROM push_subscriptions WHERE user_id = ? AND endpoint = ?", userID, body.Endpoint); err != nil {
			return errors.Wrap(err, "delete push subscription")
		}
		return c.JSON(fiber.Map{"success": true})
	}
}

// SendTestPushHandler sends a notification to every device of the caller.
func SendTestPushHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		if !s.Push.Configured() {
			return fiber.NewError(fiber.StatusServiceUnavailable, "Push notifications not configured. Set NEURODASH_VAPID_PUBLIC_KEY, NEURODASH_VAPID_PRIVATE_KEY and NEURODASH_VAPID_SUBJECT.")
		}

		sent, err := s.Push.SendToUser(c.UserContext(), userID, PushPayload{
			Title: "NeuroDash test notification",
			Body:  "Notifications are working.",
			Tag:   fmt.Sprintf("neurodash-test-%d", s.Now().Unix()),
		})
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, "Failed to send test notification: "+err.Error())
		}
		return c.JSON(fiber.Map{"success": true, "sent": sent})
	}
}
