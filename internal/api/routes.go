package api

import (
	"neurodash/internal/models"

	"github.com/gofiber/fiber/v2"
)

func SetupRoutes(app *fiber.App, s *Server) {
	app.Get("/health", HealthHandler())
	app.Get("/metrics", MetricsHandler())

	api := app.Group("/api")

	// Public
	api.Get("/config", ConfigHandler(s))
	api.Get("/navigation", NavigationHandler())
	api.Get("/zen/sounds", ZenSoundsHandler())

	auth := api.Group("/auth")
	if !s.Config.DisableRegistration {
		auth.Post("/register", RegisterHandler(s))
	}
	auth.Post("/login", LoginHandler(s))
	auth.Post("/refresh", RefreshTokenHandler(s))
	auth.Post("/logout", LogoutHandler(s))

	// VAPID public key endpoint (public, before the protected group)
	api.Get("/push/vapid-public-key", VapidPublicKeyHandler(s))

	// Protected routes
	protected := api.Group("/", AuthMiddleware(s))

	user := protected.Group("/user")
	user.Get("/profile", GetUserProfileHandler(s))
	user.Put("/profile", UpdateUserProfileHandler(s))

	events := protected.Group("/events")
	events.Get("/", ListEventsHandler(s))
	events.Post("/", CreateHandler(models.CollectionEvents, newEventDraft(s)))
	events.Put("/:id", UpdateHandler[models.CalendarEvent](models.CollectionEvents))
	events.Delete("/:id", DeleteHandler(models.CollectionEvents))
	protected.Get("/calendar", CalendarHandler(s))

	tasks := protected.Group("/tasks")
	tasks.Get("/", ListTasksHandler())
	tasks.Get("/summary", TaskSummaryHandler())
	tasks.Post("/", CreateHandler(models.CollectionTasks, newTaskDraft(s)))
	tasks.Put("/:id", UpdateHandler[models.Task](models.CollectionTasks))
	tasks.Post("/:id/toggle", ToggleTaskHandler())
	tasks.Delete("/:id", DeleteHandler(models.CollectionTasks))

	routines := protected.Group("/routines")
	routines.Get("/", ListRoutinesHandler())
	routines.Post("/", CreateRoutineHandler())
	routines.Put("/:id", UpdateRoutineHandler())
	routines.Delete("/:id", DeleteHandler(models.CollectionRoutines))
	routines.Post("/:id/items/:itemId/toggle", ToggleRoutineItemHandler())
	routines.Post("/:id/mark-all", MarkAllHandler())

	subjects := protected.Group("/subjects")
	subjects.Get("/", ListHandler[models.Subject](models.CollectionSubjects))
	subjects.Post("/", CreateHandler(models.CollectionSubjects, models.NewSubject))
	subjects.Delete("/:id", DeleteHandler(models.CollectionSubjects))

	moods := protected.Group("/moods")
	moods.Post("/", CreateHandler(models.CollectionMoods, newMoodDraft(s)))
	moods.Get("/history", MoodHistoryHandler(s))

	tips := protected.Group("/tips")
	tips.Get("/", ListTipsHandler())
	tips.Post("/", CreateHandler(models.CollectionTips, func() models.Tip { return models.Tip{} }))

	games := protected.Group("/games")
	games.Get("/", ListGamesHandler())
	games.Get("/:game", DealHandler())
	games.Post("/:game/results", RecordResultHandler(s))

	pomodoro := protected.Group("/pomodoro")
	pomodoro.Get("/", PomodoroStateHandler(s))
	pomodoro.Post("/start", PomodoroActionHandler(s, "start"))
	pomodoro.Post("/pause", PomodoroActionHandler(s, "pause"))
	pomodoro.Post("/reset", PomodoroActionHandler(s, "reset"))
	pomodoro.Delete("/", DiscardPomodoroHandler(s))

	protected.Get("/stats", StatsHandler(s))

	push := protected.Group("/push")
	push.Post("/subscribe", SubscribePushHandler(s))
	push.Delete("/unsubscribe", UnsubscribePushHandler(s))
	push.Post("/test", SendTestPushHandler(s))

	// /live/home is registered before the :collection wildcard
	live := protected.Group("/live")
	live.Get("/home", LiveHomeHandler(s))
	live.Get("/:collection", LiveCollectionHandler(s))
}
