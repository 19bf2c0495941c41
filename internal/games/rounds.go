package games

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// SequenceLength is how many numbers a sequence round shows.
const SequenceLength = 10

// SequenceRound tracks clicks on the numbers 1..SequenceLength in order.
type SequenceRound struct {
	Numbers  []int `json:"numbers"`
	Next     int   `json:"next"`
	started  time.Time
	finished time.Time
}

func NewSequenceRound(r *rand.Rand) *SequenceRound {
	nums := make([]int, SequenceLength)
	for i := range nums {
		nums[i] = i + 1
	}
	r.Shuffle(len(nums), func(i, j int) { nums[i], nums[j] = nums[j], nums[i] })
	return &SequenceRound{Numbers: nums, Next: 1}
}

// Click registers a click on n at time at. Wrong numbers are ignored.
func (s *SequenceRound) Click(n int, at time.Time) bool {
	if s.Done() || n != s.Next {
		return false
	}
	if n == 1 {
		s.started = at
	}
	if n == SequenceLength {
		s.finished = at
	}
	s.Next++
	return true
}

func (s *SequenceRound) Done() bool {
	return s.Next > SequenceLength
}

// Elapsed is the seconds between the first and last correct click.
func (s *SequenceRound) Elapsed() float64 {
	if !s.Done() {
		return 0
	}
	return s.finished.Sub(s.started).Seconds()
}

// Streak counts correct answers until the first miss or timeout.
type Streak struct {
	Score    int           `json:"score"`
	Over     bool          `json:"over"`
	limit    time.Duration // zero means no time limit
	deadline time.Time
}

// NewStreak starts a round. With a non-zero limit each answer must arrive
// within limit of the previous one.
func NewStreak(limit time.Duration, now time.Time) *Streak {
	s := &Streak{limit: limit}
	if limit > 0 {
		s.deadline = now.Add(limit)
	}
	return s
}

// Answer records an answer given at time at and reports whether the round
// continues.
func (s *Streak) Answer(correct bool, at time.Time) bool {
	if s.Over {
		return false
	}
	if !correct || s.Expired(at) {
		s.Over = true
		return false
	}
	s.Score++
	if s.limit > 0 {
		s.deadline = at.Add(s.limit)
	}
	return true
}

// Expired reports whether the time for the current problem ran out.
func (s *Streak) Expired(now time.Time) bool {
	return s.limit > 0 && now.After(s.deadline)
}

// MathTimeLimit is the time allowed per arithmetic problem.
const MathTimeLimit = 5 * time.Second

type MathProblem struct {
	Question string `json:"question"`
	Answer   int    `json:"answer"`
	Options  []int  `json:"options"`
}

// NewMathProblem draws a, b in 1..10 and one of + - ×, with four distinct
// options including the answer.
func NewMathProblem(r *rand.Rand) MathProblem {
	a, b := r.IntN(10)+1, r.IntN(10)+1
	ops := []string{"+", "-", "×"}
	op := ops[r.IntN(len(ops))]

	var answer int
	switch op {
	case "+":
		answer = a + b
	case "-":
		answer = a - b
	default:
		answer = a * b
	}

	seen := map[int]bool{answer: true}
	options := []int{answer}
	for len(options) < 4 {
		c := answer + r.IntN(11) - 5
		if !seen[c] {
			seen[c] = true
			options = append(options, c)
		}
	}
	r.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })

	return MathProblem{Question: fmt.Sprintf("%d %s %d", a, op, b), Answer: answer, Options: options}
}

var palette = []string{
	"red", "blue", "green", "yellow", "purple", "orange", "pink", "brown",
	"gray", "cyan", "magenta", "black", "white", "lime", "teal", "navy",
}

type ColorRound struct {
	Options []string `json:"options"`
	Target  string   `json:"target"`
}

// NewColorRound draws six colors, possibly repeated, and picks one as target.
func NewColorRound(r *rand.Rand) ColorRound {
	opts := make([]string, 6)
	for i := range opts {
		opts[i] = palette[r.IntN(len(palette))]
	}
	return ColorRound{Options: opts, Target: opts[r.IntN(len(opts))]}
}

var memoryEmojis = []string{"🍎", "🚀", "🐶", "🎲", "⚽", "🍕", "🌈", "🎧"}

type Card struct {
	Emoji   string `json:"emoji"`
	Flipped bool   `json:"flipped"`
	Matched bool   `json:"matched"`
}

// MemoryBoard is a shuffled deck of eight pairs.
type MemoryBoard struct {
	Cards    []Card `json:"cards"`
	Attempts int    `json:"attempts"`
	Matches  int    `json:"matches"`
	open     []int
}

func NewMemoryBoard(r *rand.Rand) *MemoryBoard {
	cards := make([]Card, 0, 2*len(memoryEmojis))
	for _, e := range memoryEmojis {
		cards = append(cards, Card{Emoji: e}, Card{Emoji: e})
	}
	r.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
	return &MemoryBoard{Cards: cards}
}

// Flip turns card i face up. The second card of a pair counts one attempt;
// a mismatched pair is turned back down by the next Flip.
func (m *MemoryBoard) Flip(i int) bool {
	if i < 0 || i >= len(m.Cards) {
		return false
	}
	if len(m.open) == 2 {
		for _, j := range m.open {
			m.Cards[j].Flipped = false
		}
		m.open = m.open[:0]
	}
	if m.Cards[i].Flipped || m.Cards[i].Matched {
		return false
	}

	m.Cards[i].Flipped = true
	m.open = append(m.open, i)
	if len(m.open) < 2 {
		return true
	}

	m.Attempts++
	a, b := m.open[0], m.open[1]
	if m.Cards[a].Emoji == m.Cards[b].Emoji {
		m.Cards[a].Matched, m.Cards[b].Matched = true, true
		m.Cards[a].Flipped, m.Cards[b].Flipped = false, false
		m.Matches++
		m.open = m.open[:0]
	}
	return true
}

func (m *MemoryBoard) Done() bool {
	return m.Matches == len(memoryEmojis)
}

// Round is a freshly dealt round of one game.
type Round struct {
	Game     ID             `json:"game"`
	Sequence *SequenceRound `json:"sequence,omitempty"`
	Color    *ColorRound    `json:"color,omitempty"`
	Math     *MathProblem   `json:"math,omitempty"`
	Memory   *MemoryBoard   `json:"memory,omitempty"`
	Limit    float64        `json:"timeLimitSeconds,omitempty"`
}

// Deal starts a round of game.
func Deal(game ID, r *rand.Rand) (Round, error) {
	round := Round{Game: game}
	switch game {
	case Sequence:
		round.Sequence = NewSequenceRound(r)
	case Color:
		c := NewColorRound(r)
		round.Color = &c
	case Math:
		p := NewMathProblem(r)
		round.Math = &p
		round.Limit = MathTimeLimit.Seconds()
	case Memory:
		round.Memory = NewMemoryBoard(r)
	default:
		return Round{}, ErrUnknownGame
	}
	return round, nil
}
