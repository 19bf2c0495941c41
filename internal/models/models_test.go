package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarEvent_Validate(t *testing.T) {
	ev := NewCalendarEvent("2025-03-14")
	assert.Equal(t, CategoryStudy, ev.Category)

	err := ev.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "title is required", err.Error())

	ev.Title = "   "
	assert.Error(t, ev.Validate(), "blank titles are rejected")

	ev.Title = "Exam"
	assert.NoError(t, ev.Validate())

	ev.Date = "2025-02-30"
	assert.EqualError(t, ev.Validate(), "date must be a date (YYYY-MM-DD)")
	ev.Date = "2025-03-14"

	ev.StartTime = "25:00"
	assert.EqualError(t, ev.Validate(), "startTime must be a time (HH:MM)")
	ev.StartTime = "09:30"

	ev.Category = "Work"
	var verr *ValidationError
	require.True(t, errors.As(ev.Validate(), &verr))
	assert.Equal(t, "category", verr.Field)
	assert.Equal(t, "oneof", verr.Rule)
}

func TestTask_Validate(t *testing.T) {
	task := NewTask("2025-03-14")
	assert.Equal(t, PriorityMedium, task.Priority)
	assert.Error(t, task.Validate())

	task.Text = "Read chapter 3"
	assert.NoError(t, task.Validate())

	task.DueDate = ""
	assert.NoError(t, task.Validate(), "due date is optional")

	task.Priority = "urgent"
	assert.Error(t, task.Validate())
}

func TestRoutine_ValidateSubTasks(t *testing.T) {
	r := NewRoutine()
	r.Title = "Morning Routine"
	r.Tasks = []TaskItem{{ID: "a", Text: "Drink water"}, {ID: "b", Text: ""}}

	var verr *ValidationError
	require.True(t, errors.As(r.Validate(), &verr))
	assert.Equal(t, "tasks[1].text", verr.Field)

	r.Tasks[1].Text = "Stretch"
	assert.NoError(t, r.Validate())
}

func TestSubject_AllFieldsRequired(t *testing.T) {
	s := NewSubject()
	assert.Equal(t, DefaultSubjectColor, s.Color)
	assert.Error(t, s.Validate())

	s = Subject{Name: "Math", Teacher: "Ms. Lee", Color: "#ff0000", Day: "Mon", Time: "08:00"}
	assert.NoError(t, s.Validate())

	s.Day = "Monday"
	assert.Error(t, s.Validate())
}

func TestMoodAndTip_Validate(t *testing.T) {
	assert.NoError(t, MoodEntry{Mood: "😄", Date: "2025-03-14"}.Validate())
	assert.Error(t, MoodEntry{Mood: "🙂", Date: "2025-03-14"}.Validate())

	assert.NoError(t, Tip{Text: "Take a walk", State: "stressed"}.Validate())
	assert.Error(t, Tip{Text: "Take a walk", State: "bored"}.Validate())
	assert.Error(t, Tip{State: "happy"}.Validate())
}

func TestPriorityRank(t *testing.T) {
	assert.Less(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Less(t, PriorityMedium.Rank(), PriorityLow.Rank())
}

func TestRegisterRequest_Validate(t *testing.T) {
	assert.NoError(t, RegisterRequest{Email: "a@example.com", Password: "secret1"}.Validate())
	assert.Error(t, RegisterRequest{Email: "not-an-email", Password: "secret1"}.Validate())
	assert.EqualError(t, RegisterRequest{Email: "a@example.com", Password: "123"}.Validate(), "password must be at least 6")
}

func TestRoutine_NormalizeAssignsDistinctIDs(t *testing.T) {
	r := Routine{Title: "Night", Period: PeriodNight, Tasks: []TaskItem{
		{ID: "keep", Text: "Brush teeth"},
		{Text: "Stretch"},
		{ID: "keep", Text: "Read"},
		{Text: "Sleep"},
	}}
	r.Normalize()

	assert.Equal(t, "keep", r.Tasks[0].ID)
	seen := map[string]bool{}
	for _, item := range r.Tasks {
		require.NotEmpty(t, item.ID)
		seen[item.ID] = true
	}
	assert.Len(t, seen, 4)

	empty := Routine{}
	empty.Normalize()
	assert.NotNil(t, empty.Tasks)
}
