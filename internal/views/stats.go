package views

import (
	"time"

	"neurodash/internal/models"
)

// WeekdayCount is the number of work cycles finished on one day.
type WeekdayCount struct {
	Day    string `json:"day"`
	Date   string `json:"date"`
	Cycles int    `json:"cycles"`
}

// Stats feeds the statistics page.
type Stats struct {
	PomodorosCompleted int            `json:"pomodorosCompleted"`
	FocusMinutes       int            `json:"focusMinutes"`
	GamesPlayed        int            `json:"gamesPlayed"`
	Tips               int            `json:"tips"`
	Week               []WeekdayCount `json:"week"`
}

// ComputeStats aggregates cycles, scores and tips. Week covers Monday to
// Sunday of the week containing today.
func ComputeStats(cycles []models.PomodoroCycle, scores []models.GameScore, tips int, today time.Time) Stats {
	s := Stats{Tips: tips}
	for _, sc := range scores {
		s.GamesPlayed += sc.Plays
	}

	monday := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -mondayOffset(today))
	index := map[string]int{}
	for i := 0; i < 7; i++ {
		d := monday.AddDate(0, 0, i)
		iso := d.Format(models.DateLayout)
		index[iso] = i
		s.Week = append(s.Week, WeekdayCount{Day: d.Format("Mon"), Date: iso})
	}

	for _, c := range cycles {
		if c.Phase != models.PhaseWork {
			continue
		}
		s.PomodorosCompleted++
		s.FocusMinutes += c.Minutes
		if i, ok := index[c.Date]; ok {
			s.Week[i].Cycles++
		}
	}
	return s
}
