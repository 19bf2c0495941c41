package views

import (
	"time"

	"neurodash/internal/models"
)

// MoodPoint is one day of the trailing mood chart. Value is nil on days
// without an entry.
type MoodPoint struct {
	Date    string `json:"date"`
	Weekday string `json:"weekday"`
	Mood    string `json:"mood,omitempty"`
	Value   *int   `json:"value"`
}

const moodDays = 7

// MoodWindowStart is the first date included in the series ending today.
func MoodWindowStart(today time.Time) string {
	return today.AddDate(0, 0, -(moodDays - 1)).Format(models.DateLayout)
}

// MoodSeries returns seven points, oldest first and ending today. Each day
// uses its most recently created entry.
func MoodSeries(entries []models.MoodEntry, today time.Time) []MoodPoint {
	latest := map[string]models.MoodEntry{}
	for _, e := range entries {
		if cur, ok := latest[e.Date]; !ok || !e.CreatedAt.Before(cur.CreatedAt) {
			latest[e.Date] = e
		}
	}

	points := make([]MoodPoint, 0, moodDays)
	for i := moodDays - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		iso := day.Format(models.DateLayout)
		p := MoodPoint{Date: iso, Weekday: day.Format("Mon")}
		if e, ok := latest[iso]; ok {
			if v, ok := models.MoodScale[e.Mood]; ok {
				p.Mood = e.Mood
				p.Value = &v
			}
		}
		points = append(points, p)
	}
	return points
}

// FilterTips keeps tips tagged with state; an empty state keeps all.
func FilterTips(tips []models.Tip, state models.TipState) []models.Tip {
	out := []models.Tip{}
	for _, t := range tips {
		if state == "" || t.State == state {
			out = append(out, t)
		}
	}
	return out
}
