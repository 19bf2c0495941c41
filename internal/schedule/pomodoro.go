package schedule

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"neurodash/internal/models"
)

var Phrases = []string{
	"✨ Focus on one thing at a time.",
	"🚀 You can do this.",
	"🧠 Consistency is the key.",
	"🌱 Every second counts.",
	"🎯 Small steps reach big goals.",
}

// phraseEvery is how often, in seconds, the phrase changes while running.
const phraseEvery = 300

// PomodoroState is a snapshot of the timer.
type PomodoroState struct {
	Phase     models.Phase `json:"phase"`
	Remaining int          `json:"remaining"`
	Total     int          `json:"total"`
	Running   bool         `json:"running"`
	Cycles    int          `json:"cycles"`
	Phrase    string       `json:"phrase"`
	Progress  float64      `json:"progress"`
	Display   string       `json:"display"`
}

// PhaseEnd describes a finished phase.
type PhaseEnd struct {
	Phase   models.Phase
	Minutes int
	Next    models.Phase
	At      time.Time
}

// Pomodoro alternates work and break phases counting down one second per
// Tick. It stops when a phase ends; Start begins the next one.
type Pomodoro struct {
	mu        sync.Mutex
	work      int
	rest      int
	phase     models.Phase
	remaining int
	running   bool
	cycles    int
	phrase    string
	rng       *rand.Rand
	onEnd     func(PhaseEnd)
}

func NewPomodoro(work, rest time.Duration, rng *rand.Rand) *Pomodoro {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	p := &Pomodoro{
		work:  int(work.Seconds()),
		rest:  int(rest.Seconds()),
		phase: models.PhaseWork,
		rng:   rng,
	}
	p.remaining = p.work
	p.phrase = Phrases[0]
	return p
}

// OnPhaseEnd registers fn, called outside the timer lock after each phase.
func (p *Pomodoro) OnPhaseEnd(fn func(PhaseEnd)) {
	p.mu.Lock()
	p.onEnd = fn
	p.mu.Unlock()
}

func (p *Pomodoro) Start() {
	p.mu.Lock()
	p.running = true
	p.mu.Unlock()
}

func (p *Pomodoro) Pause() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

// Reset stops the timer and restores the full duration of the current phase.
func (p *Pomodoro) Reset() {
	p.mu.Lock()
	p.running = false
	p.remaining = p.total()
	p.mu.Unlock()
}

// Tick advances the timer by one second.
func (p *Pomodoro) Tick(now time.Time) PomodoroState {
	p.mu.Lock()
	if !p.running {
		st := p.snapshot()
		p.mu.Unlock()
		return st
	}

	p.remaining--
	var ended *PhaseEnd
	if p.remaining <= 0 {
		finished := p.phase
		minutes := p.total() / 60
		if p.phase == models.PhaseWork {
			p.phase = models.PhaseBreak
		} else {
			p.phase = models.PhaseWork
		}
		p.running = false
		p.remaining = p.total()
		p.cycles++
		p.phrase = p.randomPhrase()
		ended = &PhaseEnd{Phase: finished, Minutes: minutes, Next: p.phase, At: now}
	} else if p.remaining%phraseEvery == 0 {
		p.phrase = p.randomPhrase()
	}

	st := p.snapshot()
	onEnd := p.onEnd
	p.mu.Unlock()

	if ended != nil && onEnd != nil {
		onEnd(*ended)
	}
	return st
}

func (p *Pomodoro) State() PomodoroState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot()
}

func (p *Pomodoro) total() int {
	if p.phase == models.PhaseWork {
		return p.work
	}
	return p.rest
}

func (p *Pomodoro) randomPhrase() string {
	return Phrases[p.rng.IntN(len(Phrases))]
}

func (p *Pomodoro) snapshot() PomodoroState {
	total := p.total()
	st := PomodoroState{
		Phase:     p.phase,
		Remaining: p.remaining,
		Total:     total,
		Running:   p.running,
		Cycles:    p.cycles,
		Phrase:    p.phrase,
		Display:   FormatClock(p.remaining),
	}
	if total > 0 {
		st.Progress = float64(total-p.remaining) / float64(total) * 100
	}
	return st
}

// FormatClock renders seconds as MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// Run ticks p once per second on sched until the scheduler stops.
func (p *Pomodoro) Run(sched *Scheduler, onTick func(PomodoroState)) bool {
	return sched.Every(time.Second, func(now time.Time) {
		st := p.Tick(now)
		if onTick != nil {
			onTick(st)
		}
	})
}
