package api

import (
	"fmt"
	"sync"

	"neurodash/internal/auth"
	"neurodash/internal/binder"
	"neurodash/internal/models"
	"neurodash/internal/schedule"

	"github.com/gofiber/fiber/v2"
)

// pomodoroSession is one user's running timer. Its identity context is
// tracked in the session registry, so logging out stops the timer.
type pomodoroSession struct {
	timer    *schedule.Pomodoro
	sched    *schedule.Scheduler
	untrack  func()
	stopAuth func()
}

func (p *pomodoroSession) stop() {
	p.sched.Stop()
	p.stopAuth()
	p.untrack()
}

// PomodoroRegistry owns at most one timer per user.
type PomodoroRegistry struct {
	s *Server

	mu       sync.Mutex
	sessions map[int]*pomodoroSession
}

func NewPomodoroRegistry(s *Server) *PomodoroRegistry {
	return &PomodoroRegistry{s: s, sessions: make(map[int]*pomodoroSession)}
}

// Get returns the timer of id, creating a paused one on first use.
func (r *PomodoroRegistry) Get(id auth.Identity) *schedule.Pomodoro {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.sessions[id.ID]; ok {
		return p.timer
	}

	s := r.s
	ident := auth.NewContext(&id)
	b := binder.New(s.Store, ident, s.Log)
	cycles := binder.NewCollection[models.PomodoroCycle](b, models.CollectionPomodoro)

	timer := schedule.NewPomodoro(s.Config.PomodoroWork, s.Config.PomodoroBreak, nil)
	timer.OnPhaseEnd(func(e schedule.PhaseEnd) {
		cycle := models.PomodoroCycle{Phase: e.Phase, Minutes: e.Minutes, Date: e.At.UTC().Format(models.DateLayout)}
		if _, err := cycles.Create(s.Context(), cycle); err != nil {
			s.Log.Warn().Err(err).Int("user_id", id.ID).Msg("pomodoro cycle not recorded")
		}
		go r.notify(id.ID, e)
	})

	sched := schedule.NewScheduler(s.Context())
	timer.Run(sched, nil)

	sess := &pomodoroSession{timer: timer, sched: sched, untrack: s.Sessions.Track(ident)}
	sess.stopAuth = ident.OnChange(func(cur *auth.Identity) {
		if cur == nil {
			// Stop waits for running ticks; never from inside one.
			go r.discard(id.ID, sess)
		}
	})
	r.sessions[id.ID] = sess
	return timer
}

func (r *PomodoroRegistry) notify(userID int, e schedule.PhaseEnd) {
	if !r.s.Push.Configured() {
		return
	}
	body := "Time for a break."
	if e.Next == models.PhaseWork {
		body = "Break is over, back to focus."
	}
	_, err := r.s.Push.SendToUser(r.s.Context(), userID, PushPayload{
		Title: fmt.Sprintf("%s phase finished (%d min)", e.Phase, e.Minutes),
		Body:  body,
		Tag:   "neurodash-pomodoro",
		Data:  map[string]any{"phase": e.Phase, "next": e.Next},
	})
	if err != nil {
		r.s.Log.Debug().Err(err).Int("user_id", userID).Msg("pomodoro notification not sent")
	}
}

// Stop discards the timer of userID.
func (r *PomodoroRegistry) Stop(userID int) bool {
	r.mu.Lock()
	sess, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()
	if ok {
		sess.stop()
	}
	return ok
}

// discard stops sess if it is still the registered timer of userID.
func (r *PomodoroRegistry) discard(userID int, sess *pomodoroSession) {
	r.mu.Lock()
	if r.sessions[userID] == sess {
		delete(r.sessions, userID)
	}
	r.mu.Unlock()
	sess.stop()
}

func (r *PomodoroRegistry) StopAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[int]*pomodoroSession)
	r.mu.Unlock()
	for _, sess := range all {
		sess.stop()
	}
}

// Running returns the number of live timers.
func (r *PomodoroRegistry) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func identityFrom(c *fiber.Ctx) auth.Identity {
	return *sessionOf(c).CurrentUser()
}

func PomodoroStateHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(s.Pomodoros.Get(identityFrom(c)).State())
	}
}

// PomodoroActionHandler applies start, pause or reset.
func PomodoroActionHandler(s *Server, action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		timer := s.Pomodoros.Get(identityFrom(c))
		switch action {
		case "start":
			timer.Start()
		case "pause":
			timer.Pause()
		case "reset":
			timer.Reset()
		default:
			return fiber.NewError(fiber.StatusNotFound, "Unknown action")
		}
		return c.JSON(timer.State())
	}
}

// DiscardPomodoroHandler stops the caller's timer.
func DiscardPomodoroHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stopped := s.Pomodoros.Stop(c.Locals("userID").(int))
		return c.JSON(fiber.Map{"success": true, "stopped": stopped})
	}
}
