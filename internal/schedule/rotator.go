package schedule

import (
	"sync"
	"time"
)

var Messages = []string{
	"Breathe in, breathe out. You are doing great.",
	"One task at a time is still progress.",
	"Take a short break; your brain will thank you.",
	"Drink some water and stretch for a minute.",
	"Celebrate small wins today.",
}

// Rotator cycles through a fixed list of messages.
type Rotator struct {
	mu       sync.Mutex
	messages []string
	i        int
}

// NewRotator panics on an empty list; the caller owns the content.
func NewRotator(messages []string) *Rotator {
	if len(messages) == 0 {
		panic("schedule: rotator needs at least one message")
	}
	return &Rotator{messages: messages}
}

func (r *Rotator) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages[r.i]
}

// Next advances to and returns the following message.
func (r *Rotator) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.i = (r.i + 1) % len(r.messages)
	return r.messages[r.i]
}

// Clock is one tick of the home page clock.
type Clock struct {
	Time string `json:"time"`
	Date string `json:"date"`
	ISO  string `json:"iso"`
}

func ClockAt(t time.Time) Clock {
	return Clock{
		Time: t.Format("15:04"),
		Date: t.Format("Monday, January 2, 2006"),
		ISO:  t.Format(time.RFC3339),
	}
}
