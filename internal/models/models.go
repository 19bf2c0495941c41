package models

import (
	"time"

	"github.com/google/uuid"
)

// Collection names. Every document lives under (user, collection, id).
const (
	CollectionEvents   = "events"
	CollectionTasks    = "tasks"
	CollectionRoutines = "routines"
	CollectionSubjects = "subjects"
	CollectionMoods    = "moods"
	CollectionTips     = "tips"
	CollectionScores   = "scores"
	CollectionPomodoro = "pomodoro"
)

// Collections lists every collection that can be streamed live.
var Collections = []string{
	CollectionEvents,
	CollectionTasks,
	CollectionRoutines,
	CollectionSubjects,
	CollectionMoods,
	CollectionTips,
	CollectionScores,
	CollectionPomodoro,
}

type User struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type EventCategory string

const (
	CategoryStudy    EventCategory = "Study"
	CategoryPersonal EventCategory = "Personal"
	CategoryOther    EventCategory = "Other"
)

var EventCategories = []EventCategory{CategoryStudy, CategoryPersonal, CategoryOther}

type CalendarEvent struct {
	ID        string        `json:"id,omitempty"`
	Title     string        `json:"title" validate:"nonblank"`
	Date      string        `json:"date" validate:"required,isodate"`
	StartTime string        `json:"startTime,omitempty" validate:"omitempty,clock"`
	EndTime   string        `json:"endTime,omitempty" validate:"omitempty,clock"`
	Category  EventCategory `json:"category" validate:"required,oneof=Study Personal Other"`
	Notes     string        `json:"notes,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

func (e CalendarEvent) Validate() error { return validateStruct(e) }

// NewCalendarEvent returns the draft defaults for a new event on date.
func NewCalendarEvent(date string) CalendarEvent {
	return CalendarEvent{Date: date, Category: EventCategories[0]}
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank orders priorities with high first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

type Task struct {
	ID         string    `json:"id,omitempty"`
	Text       string    `json:"text" validate:"nonblank"`
	DueDate    string    `json:"dueDate,omitempty" validate:"omitempty,isodate"`
	Priority   Priority  `json:"priority" validate:"required,oneof=high medium low"`
	Completed  bool      `json:"completed"`
	Category   string    `json:"category,omitempty"`
	RemindedOn string    `json:"remindedOn,omitempty"` // date of the last due-date push reminder
	CreatedAt  time.Time `json:"createdAt"`
}

func (t Task) Validate() error { return validateStruct(t) }

// NewTask returns the draft defaults for a new task due on date.
func NewTask(date string) Task {
	return Task{DueDate: date, Priority: PriorityMedium}
}

type Period string

const (
	PeriodMorning   Period = "Morning"
	PeriodAfternoon Period = "Afternoon"
	PeriodNight     Period = "Night"
)

var Periods = []Period{PeriodMorning, PeriodAfternoon, PeriodNight}

type TaskItem struct {
	ID   string `json:"id"`
	Text string `json:"text" validate:"nonblank"`
	Done bool   `json:"done"`
}

type Routine struct {
	ID        string     `json:"id,omitempty"`
	Title     string     `json:"title" validate:"nonblank"`
	Period    Period     `json:"period" validate:"required,oneof=Morning Afternoon Night"`
	Tasks     []TaskItem `json:"tasks" validate:"dive"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (r Routine) Validate() error { return validateStruct(r) }

// Normalize gives every sub-task a unique id, keeping the first occurrence of
// an id that is already set, so items can be toggled one at a time.
func (r *Routine) Normalize() {
	if r.Tasks == nil {
		r.Tasks = []TaskItem{}
	}
	seen := make(map[string]bool, len(r.Tasks))
	for i := range r.Tasks {
		if r.Tasks[i].ID == "" || seen[r.Tasks[i].ID] {
			r.Tasks[i].ID = uuid.NewString()
		}
		seen[r.Tasks[i].ID] = true
	}
}

// NewRoutine returns the draft defaults for a new routine.
func NewRoutine() Routine {
	return Routine{Period: Periods[0], Tasks: []TaskItem{}}
}

// Weekday is a class day, Mon through Sun.
type Weekday string

var Weekdays = []Weekday{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

const DefaultSubjectColor = "#6b7280"

type Subject struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name" validate:"nonblank"`
	Teacher   string    `json:"teacher" validate:"nonblank"`
	Color     string    `json:"color" validate:"required,hexcolor"`
	Day       Weekday   `json:"day" validate:"required,oneof=Mon Tue Wed Thu Fri Sat Sun"`
	Time      string    `json:"time" validate:"required,clock"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s Subject) Validate() error { return validateStruct(s) }

// NewSubject returns the draft defaults for a new subject.
func NewSubject() Subject {
	return Subject{Color: DefaultSubjectColor}
}

// MoodScale maps each mood emoji to its charted value.
var MoodScale = map[string]int{
	"😄": 5,
	"😐": 3,
	"😔": 2,
	"😡": 1,
	"😴": 2,
}

// Moods lists the selectable moods in display order.
var Moods = []string{"😄", "😐", "😔", "😡", "😴"}

type MoodEntry struct {
	ID        string    `json:"id,omitempty"`
	Mood      string    `json:"mood" validate:"required,mood"`
	Date      string    `json:"date" validate:"required,isodate"`
	CreatedAt time.Time `json:"createdAt"`
}

func (m MoodEntry) Validate() error { return validateStruct(m) }

type TipState string

var TipStates = []TipState{"motivated", "stressed", "sad", "unfocused", "happy", "anxious"}

type Tip struct {
	ID        string    `json:"id,omitempty"`
	Text      string    `json:"text" validate:"nonblank"`
	State     TipState  `json:"state" validate:"required,oneof=motivated stressed sad unfocused happy anxious"`
	CreatedAt time.Time `json:"createdAt"`
}

func (t Tip) Validate() error { return validateStruct(t) }

// GameScore is stored with the game id as document id.
type GameScore struct {
	ID        string    `json:"id,omitempty"`
	Best      *float64  `json:"best"`
	Plays     int       `json:"plays"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Phase string

const (
	PhaseWork  Phase = "work"
	PhaseBreak Phase = "break"
)

// PomodoroCycle records one finished pomodoro phase.
type PomodoroCycle struct {
	ID        string    `json:"id,omitempty"`
	Phase     Phase     `json:"phase" validate:"required,oneof=work break"`
	Minutes   int       `json:"minutes" validate:"min=1"`
	Date      string    `json:"date" validate:"required,isodate"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p PomodoroCycle) Validate() error { return validateStruct(p) }

type PushSubscription struct {
	ID       int    `json:"id"`
	UserID   int    `json:"user_id"`
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	DisplayName string `json:"displayName" validate:"max=80"`
	Remember    bool   `json:"remember,omitempty"`
}

func (r RegisterRequest) Validate() error { return validateStruct(r) }

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Remember bool   `json:"remember,omitempty"`
}

func (r LoginRequest) Validate() error { return validateStruct(r) }

type UpdateProfileRequest struct {
	DisplayName string `json:"displayName" validate:"max=80"`
}

func (r UpdateProfileRequest) Validate() error { return validateStruct(r) }

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
