package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"neurodash/internal/auth"
	"neurodash/internal/docstore"
	"neurodash/internal/models"
	"neurodash/internal/schedule"
	"neurodash/internal/viewmodel"

	"github.com/gofiber/fiber/v2"
)

type sseEvent struct {
	name string
	data any
}

func writeEvent(w *bufio.Writer, name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeHeartbeat(w *bufio.Writer) error {
	if _, err := w.WriteString(": ping\n\n"); err != nil {
		return err
	}
	return w.Flush()
}

func setStreamHeaders(c *fiber.Ctx) {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")
}

func (s *Server) heartbeat() time.Duration {
	if s.Config.StreamHeartbeat <= 0 {
		return 15 * time.Second
	}
	return s.Config.StreamHeartbeat
}

// liveQuery reads ?field=&from=&to=&order=asc|desc&limit= into a query.
func liveQuery(c *fiber.Ctx) (docstore.Query, error) {
	var q docstore.Query
	if field := c.Query("field"); field != "" {
		q = docstore.Range(field, c.Query("from"), c.Query("to"))
	}
	if c.Query("order") == "desc" {
		q.Desc = true
	}
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil {
			return q, fiber.NewError(fiber.StatusBadRequest, "limit must be a number")
		}
		q.Limit = n
	}
	return q, q.Validate()
}

func documentsJSON(docs []docstore.Document) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(docs))
	for _, d := range docs {
		if b, err := d.JSON(); err == nil {
			out = append(out, b)
		}
	}
	return out
}

// LiveCollectionHandler streams the matching documents of :collection as
// Server-Sent Events: one "snapshot" event with the full result on connect
// and after every change. The stream ends with a "signout" event when the
// user logs out.
func LiveCollectionHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		collection := c.Params("collection")
		if !slices.Contains(models.Collections, collection) {
			return fiber.NewError(fiber.StatusNotFound, "Unknown collection")
		}
		q, err := liveQuery(c)
		if err != nil {
			return err
		}

		session := sessionOf(c)
		updates := make(chan []docstore.Document, 1)
		sub, err := binderOf(c).Bind(s.Context(), collection, q, func(docs []docstore.Document) {
			// Latest result wins; the callback is the only sender.
			select {
			case <-updates:
			default:
			}
			updates <- docs
		})
		if err != nil {
			return err
		}
		untrack := s.Sessions.Track(session)
		log := s.Log.With().Int("user_id", c.Locals("userID").(int)).Str("collection", collection).Logger()

		setStreamHeaders(c)
		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer untrack()
			defer sub.Close()
			log.Debug().Str("query", q.String()).Msg("live stream opened")
			defer log.Debug().Msg("live stream closed")

			heartbeat := time.NewTicker(s.heartbeat())
			defer heartbeat.Stop()
			for {
				select {
				case docs := <-updates:
					if err := writeEvent(w, "snapshot", documentsJSON(docs)); err != nil {
						return
					}
				case <-sub.Done():
					if session.CurrentUser() == nil {
						_ = writeEvent(w, "signout", fiber.Map{"redirect": viewmodel.LoginPath})
					}
					return
				case <-heartbeat.C:
					if err := writeHeartbeat(w); err != nil {
						return
					}
				case <-s.Context().Done():
					return
				}
			}
		})
		return nil
	}
}

// LiveHomeHandler streams the home page: a "clock" event every second and a
// rotating "message" event.
func LiveHomeHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session := sessionOf(c)
		untrack := s.Sessions.Track(session)

		signedOut := make(chan struct{})
		var once sync.Once
		stopAuth := session.OnChange(func(id *auth.Identity) {
			if id == nil {
				once.Do(func() { close(signedOut) })
			}
		})

		events := make(chan sseEvent, 8)
		emit := func(e sseEvent) {
			select {
			case events <- e:
			default:
				// Slow reader: skip this tick.
			}
		}
		rotator := schedule.NewRotator(schedule.Messages)
		sched := schedule.NewScheduler(s.Context())
		sched.Every(time.Second, func(now time.Time) {
			emit(sseEvent{"clock", schedule.ClockAt(now)})
		})
		if s.Config.MessageRotation > 0 {
			sched.Every(s.Config.MessageRotation, func(time.Time) {
				emit(sseEvent{"message", fiber.Map{"text": rotator.Next()}})
			})
		}

		setStreamHeaders(c)
		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer untrack()
			defer stopAuth()
			defer sched.Stop()

			if err := writeEvent(w, "clock", schedule.ClockAt(s.Now())); err != nil {
				return
			}
			if err := writeEvent(w, "message", fiber.Map{"text": rotator.Current()}); err != nil {
				return
			}

			heartbeat := time.NewTicker(s.heartbeat())
			defer heartbeat.Stop()
			for {
				select {
				case e := <-events:
					if err := writeEvent(w, e.name, e.data); err != nil {
						return
					}
				case <-signedOut:
					_ = writeEvent(w, "signout", fiber.Map{"redirect": viewmodel.LoginPath})
					return
				case <-heartbeat.C:
					if err := writeHeartbeat(w); err != nil {
						return
					}
				case <-s.Context().Done():
					return
				}
			}
		})
		return nil
	}
}
