package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"

	"neurodash/internal/config"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrPushNotConfigured is returned when VAPID keys are missing.
var ErrPushNotConfigured = errors.New("push notifications not configured")

// PushPayload represents the notification payload sent to clients
type PushPayload struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Icon  string         `json:"icon,omitempty"`
	Badge string         `json:"badge,omitempty"`
	Tag   string         `json:"tag,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// SendFunc delivers one encrypted notification.
type SendFunc func(ctx context.Context, payload []byte, sub *webpush.Subscription, opts *webpush.Options) (*http.Response, error)

// Notifier sends web push notifications to every subscription of a user.
type Notifier struct {
	db   *sql.DB
	cfg  *config.Config
	log  zerolog.Logger
	send SendFunc
}

func NewNotifier(db *sql.DB, cfg *config.Config, log zerolog.Logger) *Notifier {
	return &Notifier{
		db:   db,
		cfg:  cfg,
		log:  log.With().Str("component", "webpush").Logger(),
		send: webpush.SendNotificationWithContext,
	}
}

// WithSender replaces the transport, e.g. in tests.
func (n *Notifier) WithSender(send SendFunc) *Notifier {
	n.send = send
	return n
}

func (n *Notifier) Configured() bool {
	return n.cfg.WebPushConfigured()
}

func (n *Notifier) options() *webpush.Options {
	return &webpush.Options{
		Subscriber:      n.cfg.VapidSubject,
		VAPIDPublicKey:  n.cfg.VapidPublicKey,
		VAPIDPrivateKey: n.cfg.VapidPrivateKey,
		TTL:             30,
	}
}

// SendToUser pushes payload to every subscription of userID and returns the
// number delivered. Subscriptions the push service rejects as gone (404,
// 410) or as signed with other keys (403) are removed.
func (n *Notifier) SendToUser(ctx context.Context, userID int, payload PushPayload) (int, error) {
	if !n.Configured() {
		n.log.Debug().Int("user_id", userID).Msg("web push not configured, skipping notification")
		return 0, ErrPushNotConfigured
	}

	rows, err := n.db.QueryContext(ctx, "SELECT endpoint, p256dh, auth FROM push_subscriptions WHERE user_id = ?", userID)
	if err != nil {
		return 0, errors.Wrap(err, "fetch subscriptions")
	}
	var subs []webpush.Subscription
	for rows.Next() {
		var s webpush.Subscription
		if err := rows.Scan(&s.Endpoint, &s.Keys.P256dh, &s.Keys.Auth); err != nil {
			rows.Close()
			return 0, errors.Wrap(err, "scan subscription")
		}
		subs = append(subs, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, errors.Wrap(err, "fetch subscriptions")
	}
	if len(subs) == 0 {
		return 0, errors.Errorf("no push subscriptions found for user %d", userID)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, errors.Wrap(err, "encode payload")
	}

	sent, failed := 0, 0
	for i := range subs {
		sub := &subs[i]
		resp, err := n.send(ctx, body, sub, n.options())
		status := 0
		if resp != nil {
			status = resp.StatusCode
			if status >= 400 {
				detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
				n.log.Warn().Int("status", status).Str("response", string(detail)).Msg("push service rejected notification")
			}
			resp.Body.Close()
		}
		if status == http.StatusNotFound || status == http.StatusGone || status == http.StatusForbidden {
			n.remove(ctx, sub.Endpoint)
			failed++
			continue
		}
		if err != nil || status >= 400 {
			n.log.Warn().Err(err).Int("user_id", userID).Msg("push delivery failed")
			failed++
			continue
		}
		sent++
	}

	n.log.Debug().Int("user_id", userID).Int("subscriptions", len(subs)).Int("sent", sent).Int("failed", failed).Msg("push notification summary")
	if sent == 0 {
		return 0, errors.Errorf("failed to send any push notifications (attempted %d)", failed)
	}
	return sent, nil
}

func (n *Notifier) remove(ctx context.Context, endpoint string) {
	if _, err := n.db.ExecContext(ctx, "DELETE FROM push_subscriptions WHERE endpoint = ?", endpoint); err != nil {
		n.log.Warn().Err(err).Msg("stale subscription not removed")
		return
	}
	n.log.Info().Msg("removed stale push subscription")
}

// VapidPublicKeyHandler returns the VAPID public key for client subscription
func VapidPublicKeyHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if s.Config.VapidPublicKey == "" {
			return fiber.NewError(fiber.StatusServiceUnavailable, "Push notifications not configured")
		}
		return c.JSON(fiber.Map{"publicKey": s.Config.VapidPublicKey})
	}
}
