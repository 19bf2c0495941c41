// Package views holds pure computations over entity lists: calendar grids,
// routine buckets, task filters and mood series.
package views

import (
	"fmt"
	"time"

	"neurodash/internal/models"
)

const monthLayout = "2006-01"

// Day is one cell of a month grid.
type Day struct {
	Date    string                 `json:"date"`
	Day     int                    `json:"day"`
	InMonth bool                   `json:"inMonth"`
	Today   bool                   `json:"today"`
	Events  []models.CalendarEvent `json:"events"`
}

// ParseMonth parses "YYYY-MM". An empty string yields the month of now.
func ParseMonth(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return MonthStart(now), nil
	}
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q, expected YYYY-MM", s)
	}
	return t, nil
}

// MonthStart returns midnight UTC on the first day of t's month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ShiftMonth moves month by n months.
func ShiftMonth(month time.Time, n int) time.Time {
	return MonthStart(month).AddDate(0, n, 0)
}

// FormatMonth renders month as "YYYY-MM".
func FormatMonth(month time.Time) string {
	return month.Format(monthLayout)
}

// MonthWindow is the inclusive date range of events shown for month.
func MonthWindow(month time.Time) (from, to string) {
	first := MonthStart(month)
	last := first.AddDate(0, 1, -1)
	return first.Format(models.DateLayout), last.Format(models.DateLayout)
}

// mondayOffset is the number of days since the preceding Monday.
func mondayOffset(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// MonthGrid lays out month in whole weeks starting on Monday, padded with
// the trailing days of the previous month and the leading days of the next.
func MonthGrid(month, today time.Time) []Day {
	first := MonthStart(month)
	last := first.AddDate(0, 1, -1)
	start := first.AddDate(0, 0, -mondayOffset(first))
	end := last.AddDate(0, 0, 6-mondayOffset(last))
	todayISO := today.Format(models.DateLayout)

	var days []Day
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		iso := d.Format(models.DateLayout)
		days = append(days, Day{
			Date:    iso,
			Day:     d.Day(),
			InMonth: d.Month() == first.Month(),
			Today:   iso == todayISO,
			Events:  []models.CalendarEvent{},
		})
	}
	return days
}

// Bucket places each event in the cell whose date matches exactly. Events
// outside the grid are dropped. The input grid is not modified.
func Bucket(grid []Day, events []models.CalendarEvent) []Day {
	out := make([]Day, len(grid))
	index := make(map[string]int, len(grid))
	for i, d := range grid {
		out[i] = d
		out[i].Events = []models.CalendarEvent{}
		index[d.Date] = i
	}
	for _, ev := range events {
		if i, ok := index[ev.Date]; ok {
			out[i].Events = append(out[i].Events, ev)
		}
	}
	return out
}

// Weeks splits a grid into rows of seven days.
func Weeks(grid []Day) [][]Day {
	var weeks [][]Day
	for i := 0; i+7 <= len(grid); i += 7 {
		weeks = append(weeks, grid[i:i+7])
	}
	return weeks
}
