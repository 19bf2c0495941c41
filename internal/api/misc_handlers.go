package api

import (
	"neurodash/internal/games"
	"neurodash/internal/models"
	"neurodash/internal/viewmodel"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Page is one entry of the navigation menu.
type Page struct {
	Path  string `json:"path"`
	Title string `json:"title"`
}

var navigation = []Page{
	{Path: "/", Title: "Home"},
	{Path: "/calendar", Title: "Calendar"},
	{Path: "/tasks", Title: "Tasks"},
	{Path: "/routines", Title: "Routines"},
	{Path: "/subjects", Title: "Subjects"},
	{Path: "/mood", Title: "Mood"},
	{Path: "/tips", Title: "Tips"},
	{Path: "/stats", Title: "Stats"},
	{Path: "/games", Title: "Games"},
	{Path: "/timer", Title: "Focus timer"},
	{Path: "/relax", Title: "Relax"},
	{Path: viewmodel.LoginPath, Title: "Sign in"},
}

// Sound is an ambient track of the relax page.
type Sound struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Emoji string `json:"emoji"`
	File  string `json:"file"`
}

var zenSounds = []Sound{
	{ID: "rain", Title: "Rain", Emoji: "🌧️", File: "/sounds/rain.mp3"},
	{ID: "forest", Title: "Forest", Emoji: "🌲", File: "/sounds/forest.mp3"},
	{ID: "waves", Title: "Waves", Emoji: "🌊", File: "/sounds/waves.mp3"},
}

func HealthHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	}
}

// ConfigHandler exposes the settings and enumerations clients need before login.
func ConfigHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"disableRegistration": s.Config.DisableRegistration,
			"pushConfigured":      s.Push.Configured(),
			"pomodoro": fiber.Map{
				"workMinutes":  int(s.Config.PomodoroWork.Minutes()),
				"breakMinutes": int(s.Config.PomodoroBreak.Minutes()),
			},
			"eventCategories": models.EventCategories,
			"periods":         models.Periods,
			"weekdays":        models.Weekdays,
			"moods":           models.Moods,
			"tipStates":       models.TipStates,
			"games":           games.Catalog,
		})
	}
}

func NavigationHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"pages": navigation})
	}
}

func ZenSoundsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"sounds": zenSounds})
	}
}

// MetricsHandler serves the default prometheus registry.
func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
