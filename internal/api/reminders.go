package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"neurodash/internal/auth"
	"neurodash/internal/binder"
	"neurodash/internal/docstore"
	"neurodash/internal/models"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ReminderWorker pushes a daily reminder for open tasks that are due or
// overdue, at most once per task and day.
type ReminderWorker struct {
	s        *Server
	interval time.Duration
	log      zerolog.Logger
}

func NewReminderWorker(s *Server) *ReminderWorker {
	interval := s.Config.WorkerInterval
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReminderWorker{s: s, interval: interval, log: s.Log.With().Str("component", "reminders").Logger()}
}

// Run polls until ctx is cancelled.
func (w *ReminderWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("reminder worker starting")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if n, err := w.RunOnce(ctx); err != nil {
			w.log.Error().Err(err).Msg("reminder pass failed")
		} else if n > 0 {
			w.log.Info().Int("reminded", n).Msg("due task reminders sent")
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("reminder worker stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce sends the pending reminders and returns how many tasks were covered.
func (w *ReminderWorker) RunOnce(ctx context.Context) (int, error) {
	if !w.s.Push.Configured() {
		return 0, nil
	}

	rows, err := w.s.DB.QueryContext(ctx, "SELECT DISTINCT user_id FROM push_subscriptions")
	if err != nil {
		return 0, errors.Wrap(err, "list subscribed users")
	}
	var users []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, errors.Wrap(err, "scan user")
		}
		users = append(users, id)
	}
	rows.Close()

	today := w.s.today().Format(models.DateLayout)
	total := 0
	for _, uid := range users {
		n, err := w.remindUser(ctx, uid, today)
		if err != nil {
			w.log.Warn().Err(err).Int("user_id", uid).Msg("reminder not sent")
			continue
		}
		total += n
	}
	return total, nil
}

func (w *ReminderWorker) remindUser(ctx context.Context, userID int, today string) (int, error) {
	b := binder.New(w.s.Store, auth.NewContext(&auth.Identity{ID: userID}), w.log)
	tasks := binder.NewCollection[models.Task](b, models.CollectionTasks)

	open, err := tasks.List(ctx, docstore.Query{}.
		Where("dueDate", docstore.OpLte, today).
		Where("completed", docstore.OpEq, false).
		Order("dueDate", false))
	if err != nil {
		return 0, err
	}

	var due []models.Task
	for _, t := range open {
		if t.DueDate != "" && t.RemindedOn != today {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return 0, nil
	}

	if _, err := w.s.Push.SendToUser(ctx, userID, reminderPayload(due)); err != nil {
		return 0, err
	}

	for _, t := range due {
		_, err := tasks.Modify(ctx, t.ID, func(cur *models.Task) error {
			cur.RemindedOn = today
			return nil
		})
		if err != nil && !isNotFound(err) {
			return 0, err
		}
	}
	return len(due), nil
}

func reminderPayload(due []models.Task) PushPayload {
	names := make([]string, 0, 3)
	for i, t := range due {
		if i == 3 {
			names = append(names, fmt.Sprintf("and %d more", len(due)-3))
			break
		}
		names = append(names, t.Text)
	}
	title := "1 task is due"
	if len(due) > 1 {
		title = fmt.Sprintf("%d tasks are due", len(due))
	}
	return PushPayload{
		Title: title,
		Body:  strings.Join(names, ", "),
		Tag:   "neurodash-due-tasks",
		Data:  map[string]any{"url": "/tasks"},
	}
}
