// Package schedule runs cancellable periodic and delayed tasks owned by a
// page or stream lifetime, and the pomodoro timer built on them.
package schedule

import (
	"context"
	"sync"
	"time"
)

// Scheduler owns a set of tasks that all stop together.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// NewScheduler returns a scheduler that also stops when parent is done.
func NewScheduler(parent context.Context) *Scheduler {
	ctx, cancel := context.WithCancel(parent)
	return &Scheduler{ctx: ctx, cancel: cancel}
}

// Every runs fn every d until Stop. It reports false if the scheduler is
// already stopped.
func (s *Scheduler) Every(d time.Duration, fn func(now time.Time)) bool {
	if !s.add() {
		return false
	}
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case now := <-ticker.C:
				// A tick racing with Stop is dropped.
				if s.ctx.Err() != nil {
					return
				}
				fn(now)
			}
		}
	}()
	return true
}

// After runs fn once after d unless the scheduler stops first.
func (s *Scheduler) After(d time.Duration, fn func()) bool {
	if !s.add() {
		return false
	}
	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-s.ctx.Done():
		case <-timer.C:
			if s.ctx.Err() == nil {
				fn()
			}
		}
	}()
	return true
}

func (s *Scheduler) add() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.ctx.Err() != nil {
		return false
	}
	s.wg.Add(1)
	return true
}

// Stop cancels every task and waits for running ones to return. It must not
// be called from inside a task.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

// Done is closed when the scheduler is stopped or its parent is done.
func (s *Scheduler) Done() <-chan struct{} {
	return s.ctx.Done()
}
