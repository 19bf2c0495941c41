package api

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"neurodash/internal/auth"
	"neurodash/internal/config"
	"neurodash/internal/docstore"

	"github.com/rs/zerolog"
)

// Server carries the dependencies shared by every handler.
type Server struct {
	DB        *sql.DB
	Store     *docstore.Store
	Config    *config.Config
	Tokens    *auth.TokenIssuer
	Sessions  *auth.Registry
	Push      *Notifier
	Pomodoros *PomodoroRegistry
	Log       zerolog.Logger
	Now       func() time.Time

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func NewServer(cfg *config.Config, db *sql.DB, log zerolog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		DB:       db,
		Store:    docstore.New(db),
		Config:   cfg,
		Tokens:   auth.NewTokenIssuer(cfg),
		Sessions: auth.NewRegistry(),
		Log:      log,
		Now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.Push = NewNotifier(db, cfg, log)
	s.Pomodoros = NewPomodoroRegistry(s)
	return s
}

// Context is cancelled by Close; live streams and timers end with it.
func (s *Server) Context() context.Context {
	return s.ctx
}

func (s *Server) today() time.Time {
	return s.Now().UTC()
}

// Close ends every live stream and pomodoro timer.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.Pomodoros.StopAll()
	})
}
