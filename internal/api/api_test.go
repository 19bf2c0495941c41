package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"neurodash/internal/api"
	"neurodash/internal/config"
	"neurodash/internal/database"
	"neurodash/internal/models"
	"neurodash/internal/schedule"
	"neurodash/internal/views"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	t   *testing.T
	app *fiber.App
	srv *api.Server
}

func setupTestApp(t *testing.T, tweak ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := config.NewForTesting()
	for _, fn := range tweak {
		fn(cfg)
	}

	db, err := database.Initialize(database.Options{Path: ":memory:"})
	require.NoError(t, err)

	srv := api.NewServer(cfg, db, zerolog.Nop())
	srv.Now = func() time.Time { return fixedNow }
	t.Cleanup(func() {
		srv.Close()
		db.Close()
	})

	app := fiber.New(fiber.Config{ErrorHandler: api.ErrorHandler(zerolog.Nop())})
	api.SetupRoutes(app, srv)
	return &testEnv{t: t, app: app, srv: srv}
}

func (e *testEnv) request(method, path, token string, body any) *http.Request {
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func (e *testEnv) do(method, path, token string, body any) (int, []byte) {
	e.t.Helper()
	resp, err := e.app.Test(e.request(method, path, token, body), 5000)
	require.NoError(e.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	return resp.StatusCode, raw
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func (e *testEnv) register(email string) (string, models.User) {
	e.t.Helper()
	status, raw := e.do("POST", "/api/auth/register", "", models.RegisterRequest{
		Email:       email,
		Password:    "password123",
		DisplayName: "Tester",
	})
	require.Equal(e.t, fiber.StatusCreated, status, string(raw))
	resp := decode[models.AuthResponse](e.t, raw)
	return resp.Token, resp.User
}

func refreshCookieOf(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == "refresh_token" {
			return c
		}
	}
	t.Fatal("refresh_token cookie not set")
	return nil
}

func TestRegisterLoginRefreshLogout(t *testing.T) {
	e := setupTestApp(t)
	_, user := e.register("Ana@Example.com")
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Equal(t, "Tester", user.DisplayName)

	status, _ := e.do("POST", "/api/auth/register", "", models.RegisterRequest{Email: "ana@example.com", Password: "password123"})
	assert.Equal(t, fiber.StatusConflict, status)

	status, raw := e.do("POST", "/api/auth/login", "", models.LoginRequest{Email: "ana@example.com", Password: "wrong-password"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Contains(t, string(raw), "Invalid email or password")

	resp, err := e.app.Test(e.request("POST", "/api/auth/login", "", models.LoginRequest{Email: "ana@example.com", Password: "password123"}), 5000)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	login := decode[models.AuthResponse](t, mustRead(t, resp))
	require.NotEmpty(t, login.Token)
	cookie := refreshCookieOf(t, resp)

	req := e.request("POST", "/api/auth/refresh", "", nil)
	req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	resp, err = e.app.Test(req, 5000)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	rotated := refreshCookieOf(t, resp)
	assert.NotEqual(t, cookie.Value, rotated.Value)
	refreshed := decode[map[string]any](t, mustRead(t, resp))
	assert.NotEmpty(t, refreshed["token"])

	// The rotated-out token is revoked.
	req = e.request("POST", "/api/auth/refresh", "", nil)
	req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	resp, err = e.app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = e.request("POST", "/api/auth/logout", login.Token, nil)
	req.AddCookie(&http.Cookie{Name: rotated.Name, Value: rotated.Value})
	resp, err = e.app.Test(req, 5000)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	out := decode[map[string]any](t, mustRead(t, resp))
	assert.Equal(t, "/login", out["redirect"])

	req = e.request("POST", "/api/auth/refresh", "", nil)
	req.AddCookie(&http.Cookie{Name: rotated.Name, Value: rotated.Value})
	resp, err = e.app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func mustRead(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return raw
}

func TestRegistrationDisabled(t *testing.T) {
	e := setupTestApp(t, func(c *config.Config) { c.DisableRegistration = true })

	status, _ := e.do("POST", "/api/auth/register", "", models.RegisterRequest{Email: "a@example.com", Password: "password123"})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, raw := e.do("GET", "/api/config", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, decode[map[string]any](t, raw)["disableRegistration"])
}

func TestProtectedRoutesRedirectToLogin(t *testing.T) {
	e := setupTestApp(t)

	for _, path := range []string{"/api/tasks", "/api/calendar", "/api/live/tasks"} {
		status, raw := e.do("GET", path, "", nil)
		assert.Equal(t, fiber.StatusUnauthorized, status, path)
		body := decode[map[string]any](t, raw)
		assert.Equal(t, "/login", body["redirect"], path)
	}

	status, raw := e.do("GET", "/api/tasks", "not-a-token", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Contains(t, string(raw), "Invalid token")
}

func TestUnauthenticatedCreateTaskWritesNothing(t *testing.T) {
	e := setupTestApp(t)
	token, _ := e.register("a@example.com")

	status, _ := e.do("POST", "/api/tasks", "", models.Task{Text: "sneaky", Priority: models.PriorityHigh})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, raw := e.do("GET", "/api/tasks/summary", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 0, decode[views.TaskSummary](t, raw).Total)
}

func TestEventsByMonthAndCalendar(t *testing.T) {
	e := setupTestApp(t)
	token, _ := e.register("a@example.com")

	for _, ev := range []models.CalendarEvent{
		{Title: "Exam", Date: "2026-03-05", Category: models.CategoryStudy},
		{Title: "Gym", Date: "2026-03-05", Category: models.CategoryPersonal, StartTime: "18:00"},
		{Title: "Dentist", Date: "2026-03-20", Category: models.CategoryOther},
		{Title: "Trip", Date: "2026-04-01", Category: models.CategoryPersonal},
	} {
		status, raw := e.do("POST", "/api/events", token, ev)
		require.Equal(t, fiber.StatusCreated, status, string(raw))
	}

	status, raw := e.do("GET", "/api/events?month=2026-03", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	listed := decode[struct {
		Month  string                 `json:"month"`
		Events []models.CalendarEvent `json:"events"`
	}](t, raw)
	assert.Equal(t, "2026-03", listed.Month)
	assert.Len(t, listed.Events, 3)

	type calendar struct {
		Month string        `json:"month"`
		Prev  string        `json:"prev"`
		Next  string        `json:"next"`
		Weeks [][]views.Day `json:"weeks"`
	}
	countEvents := func(c calendar) map[string]int {
		seen := map[string]int{}
		for _, week := range c.Weeks {
			for _, d := range week {
				for _, ev := range d.Events {
					assert.Equal(t, d.Date, ev.Date)
					seen[ev.Title]++
				}
			}
		}
		return seen
	}

	status, raw = e.do("GET", "/api/calendar?month=2026-03", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	march := decode[calendar](t, raw)
	assert.Equal(t, "2026-02", march.Prev)
	assert.Equal(t, "2026-04", march.Next)
	assert.Equal(t, map[string]int{"Exam": 1, "Gym": 1, "Dentist": 1}, countEvents(march))

	status, raw = e.do("GET", "/api/calendar?month="+march.Next, token, nil)
	require.Equal(t, fiber.StatusOK, status)
	april := decode[calendar](t, raw)
	assert.Equal(t, 1, countEvents(april)["Trip"])

	status, raw = e.do("GET", "/api/calendar?month="+april.Prev, token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]int{"Exam": 1, "Gym": 1, "Dentist": 1}, countEvents(decode[calendar](t, raw)))

	status, _ = e.do("GET", "/api/calendar?month=march", token, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestEventUpdateAndDelete(t *testing.T) {
	e := setupTestApp(t)
	token, _ := e.register("a@example.com")

	status, raw := e.do("POST", "/api/events", token, map[string]any{"title": "Exam"})
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	ev := decode[models.CalendarEvent](t, raw)
	assert.Equal(t, "2026-03-15", ev.Date)
	assert.Equal(t, models.CategoryStudy, ev.Category)

	status, raw = e.do("PUT", "/api/events/"+ev.ID, token, map[string]any{"id": "x", "title": "Final exam", "notes": "room 4"})
	require.Equal(t, fiber.StatusOK, status, string(raw))
	updated := decode[models.CalendarEvent](t, raw)
	assert.Equal(t, "Final exam", updated.Title)
	assert.Equal(t, ev.ID, updated.ID, "the body cannot rename a document")
	status, _ = e.do("PUT", "/api/events/x", token, map[string]any{"title": "Other"})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, raw = e.do("PUT", "/api/events/"+ev.ID, token, map[string]any{"notes": ""})
	require.Equal(t, fiber.StatusOK, status, string(raw))
	assert.Empty(t, decode[models.CalendarEvent](t, raw).Notes)

	status, _ = e.do("PUT", "/api/events/"+ev.ID, token, map[string]any{"category": "Party"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = e.do("DELETE", "/api/events/"+ev.ID, token, nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = e.do("PUT", "/api/events/"+ev.ID, token, map[string]any{"title": "Gone"})
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestTaskToggleSummaryAndDelete(t *testing.T) {
	e := setupTestApp(t)
	token, _ := e.register("a@example.com")

	var ids []string
	for i, text := range []string{"Read", "Write", "Review", "Rest"} {
		prio := models.PriorityLow
		if i == 0 {
			prio = models.PriorityHigh
		}
		status, raw := e.do("POST", "/api/tasks", token, map[string]any{"text": text, "priority": prio, "category": "school"})
		require.Equal(t, fiber.StatusCreated, status, string(raw))
		ids = append(ids, decode[models.Task](t, raw).ID)
	}

	status, raw := e.do("POST", "/api/tasks/"+ids[1]+"/toggle", token, nil)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	assert.True(t, decode[models.Task](t, raw).Completed)

	status, raw = e.do("GET", "/api/tasks", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	list := decode[struct {
		Tasks      []models.Task `json:"tasks"`
		Completion int           `json:"completion"`
	}](t, raw)
	assert.Len(t, list.Tasks, 4)
	assert.Equal(t, 25, list.Completion)

	status, raw = e.do("GET", "/api/tasks?priority=high", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(raw), `"Read"`)
	assert.NotContains(t, string(raw), `"Write"`)

	status, _ = e.do("GET", "/api/tasks?priority=urgent", token, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, raw = e.do("GET", "/api/tasks/summary", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	summary := decode[views.TaskSummary](t, raw)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, []string{"school"}, summary.Categories)

	// Deleting twice is not an error.
	for range 2 {
		status, _ = e.do("DELETE", "/api/tasks/"+ids[0], token, nil)
		assert.Equal(t, fiber.StatusOK, status)
	}
	status, raw = e.do("GET", "/api/tasks/summary", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 3, decode[views.TaskSummary](t, raw).Total)

	status, _ = e.do("POST", "/api/tasks/"+ids[0]+"/toggle", token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestTaskValidation(t *testing.T) {
	e := setupTestApp(t)
	token, _ := e.register("a@example.com")

	status, raw := e.do("POST", "/api/tasks", token, map[string]any{"text": "   "})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, string(raw), "text is required")

	status, _ = e.do("POST", "/api/tasks", token, map[string]any{"text": "Read", "dueDate": "tomorrow"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = e.do("PUT", "/api/tasks/abc", token, []string{"not", "an", "object"})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestTasksAreScopedPerUser(t *testing.T) {
	e := setupTestApp(t)
	alice, _ := e.register("alice@example.com")
	bob, _ := e.register("bob@example.com")

	status, raw := e.do("POST", "/api/tasks", alice, map[string]any{"text": "Secret"})
	require.Equal(t, fiber.StatusCreated, status)
	task := decode[models.Task](t, raw)

	status, raw = e.do("GET", "/api/tasks/summary", bob, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 0, decode[views.TaskSummary](t, raw).Total)

	status, _ = e.do("POST", "/api/tasks/"+task.ID+"/toggle", bob, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestRoutineScenario(t *testing.T) {
	e := setupTestApp(t)
	token, _ := e.register("a@example.com")

	status, raw := e.do("POST", "/api/routines", token, map[string]any{
		"title":  "Morning Routine",
		"period": "Morning",
		"tasks":  []map[string]any{{"text": "Drink water"}, {"text": "Stretch"}},
	})
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	routine := decode[models.Routine](t, raw)
	require.Len(t, routine.Tasks, 2)
	for _, item := range routine.Tasks {
		assert.NotEmpty(t, item.ID)
		assert.False(t, item.Done)
	}

	status, raw = e.do("GET", "/api/routines", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	groups := decode[[]views.PeriodGroup](t, raw)
	require.Len(t, groups, 3)
	assert.Equal(t, models.PeriodMorning, groups[0].Period)
	require.Len(t, groups[0].Routines, 1)
	assert.Equal(t, "Morning Routine", groups[0].Routines[0].Title)
	assert.Empty(t, groups[1].Routines)

	status, raw = e.do("POST", "/api/routines/"+routine.ID+"/mark-all", token, nil)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	marked := decode[models.Routine](t, raw)
	require.Len(t, marked.Tasks, 2)
	for _, item := range marked.Tasks {
		assert.True(t, item.Done)
	}

	itemID := marked.Tasks[0].ID
	status, raw = e.do("POST", "/api/routines/"+routine.ID+"/items/"+itemID+"/toggle", token, nil)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	toggled := decode[models.Routine](t, raw)
	assert.False(t, toggled.Tasks[0].Done)
	assert.True(t, toggled.Tasks[1].Done)

	status, _ = e.do("POST", "/api/routines/"+routine.ID+"/items/nope/toggle", token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, raw = e.do("POST", "/api/routines/"+routine.ID+"/mark-all", token, map[string]any{"done": false})
	require.Equal(t, fiber.StatusOK, status)
	for _, item := range decode[models.Routine](t, raw).Tasks {
		assert.False(t, item.Done)
	}

	status, raw = e.do("POST", "/api/routines", token, map[string]any{"title": "Late", "period": "Midnight"})
	assert.Equal(t, fiber.StatusBadRequest, status, string(raw))
}

func TestRoutineEditAddsItemsWithIDs(t *testing.T) {
	e := setupTestApp(t)
	token, _ := e.register("a@example.com")

	status, raw := e.do("POST", "/api/routines", token, map[string]any{
		"title": "Night", "period": "Night",
		"tasks": []map[string]any{{"text": "Brush teeth"}},
	})
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	routine := decode[models.Routine](t, raw)
	existing := routine.Tasks[0]
	existing.Done = true

	status, raw = e.do("PUT", "/api/routines/"+routine.ID, token, map[string]any{
		"tasks": []any{existing, map[string]any{"text": "Stretch"}, map[string]any{"text": "Read"}},
	})
	require.Equal(t, fiber.StatusOK, status, string(raw))
	edited := decode[models.Routine](t, raw)
	require.Len(t, edited.Tasks, 3)
	assert.Equal(t, existing.ID, edited.Tasks[0].ID)
	assert.True(t, edited.Tasks[0].Done)
	seen := map[string]bool{}
	for _, item := range edited.Tasks {
		require.NotEmpty(t, item.ID)
		seen[item.ID] = true
	}
	assert.Len(t, seen, 3)

	// Each new item toggles on its own.
	status, raw = e.do("POST", "/api/routines/"+routine.ID+"/items/"+edited.Tasks[2].ID+"/toggle", token, nil)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	toggled := decode[models.Routine](t, raw)
	assert.False(t, toggled.Tasks[1].Done)
	assert.True(t, toggled.Tasks[2].Done)

	// Replacing the list does not carry done state over by position.
	status, raw = e.do("PUT", "/api/routines/"+routine.ID, token, map[string]any{
		"tasks": []map[string]any{{"text": "Journal"}},
	})
	require.Equal(t, fiber.StatusOK, status, string(raw))
	replaced := decode[models.Routine](t, raw)
	require.Len(t, replaced.Tasks, 1)
	assert.False(t, replaced.Tasks[0].Done)
	assert.NotEqual(t, existing.ID, replaced.Tasks[0].ID)
	assert.Equal(t, "Night", replaced.Title)
}

func TestSubjects(t *testing.T) {
	e := setupTestApp(t)
	token, _ := e.register("a@example.com")

	status, raw := e.do("POST", "/api/subjects", token, map[string]any{
		"name": "Physics", "teacher": "Dr. Curie", "day": "Mon", "time": "09:30",
	})
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	subject := decode[models.Subject](t, raw)
	assert.Equal(t, models.DefaultSubjectColor, subject.Color)

	status, _ = e.do("POST", "/api/subjects", token, map[string]any{"name": "Chemistry", "day": "Mon", "time": "09:30"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, raw = e.do("GET", "/api/subjects", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[[]models.Subject](t, raw), 1)

	status, _ = e.do("DELETE", "/api/subjects/"+subject.ID, token, nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, raw = e.do("GET", "/api/subjects", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, decode[[]models.Subject](t, raw))
}

func TestMoodHistory(t *testing.T) {
	e := setupTestApp(t)
	token, _ := e.register("a@example.com")

	status, raw := e.do("POST", "/api/moods", token, map[string]any{"mood": "😔", "date": "2026-03-13"})
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	status, raw = e.do("POST", "/api/moods", token, map[string]any{"mood": "😄"})
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	assert.Equal(t, "2026-03-15", decode[models.MoodEntry](t, raw).Date)

	status, _ = e.do("POST", "/api/moods", token, map[string]any{"mood": "🤖"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, raw = e.do("GET", "/api/moods/history", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	history := decode[struct {
		Series []views.MoodPoint `json:"series"`
	}](t, raw)
	require.Len(t, history.Series, 7)
	last := history.Series[6]
	assert.Equal(t, "2026-03-15", last.Date)
	require.NotNil(t, last.Value)
	assert.Equal(t, 5, *last.Value)
	require.NotNil(t, history.Series[4].Value)
	assert.Equal(t, 2, *history.Series[4].Value)
	assert.Nil(t, history.Series[5].Value)
}

func TestTipsFilter(t *testing.T) {
	e := setupTestApp(t)
	token, _ := e.register("a@example.com")

	for _, tip := range []models.Tip{
		{Text: "Box breathing", State: "stressed"},
		{Text: "Go for a walk", State: "stressed"},
		{Text: "Share the joy", State: "happy"},
	} {
		status, raw := e.do("POST", "/api/tips", token, tip)
		require.Equal(t, fiber.StatusCreated, status, string(raw))
	}

	status, raw := e.do("GET", "/api/tips?state=stressed", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	tips := decode[struct {
		Tips []models.Tip `json:"tips"`
	}](t, raw)
	assert.Len(t, tips.Tips, 2)

	status, raw = e.do("GET", "/api/tips", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[struct {
		Tips []models.Tip `json:"tips"`
	}](t, raw).Tips, 3)

	status, _ = e.do("GET", "/api/tips?state=bored", token, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestGameResultsOnlyImprove(t *testing.T) {
	e := setupTestApp(t)
	token, _ := e.register("a@example.com")

	status, raw := e.do("GET", "/api/games/sequence", token, nil)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	assert.Contains(t, string(raw), `"round"`)

	// Lower is better for the sequence game.
	plays := []struct {
		value    float64
		improved bool
		best     float64
	}{
		{12.5, true, 12.5},
		{14.1, false, 12.5},
		{9.8, true, 9.8},
		{9.8, false, 9.8},
		{30, false, 9.8},
	}
	for i, p := range plays {
		status, raw = e.do("POST", "/api/games/sequence/results", token, map[string]any{"value": p.value})
		require.Equal(t, fiber.StatusOK, status, string(raw))
		res := decode[struct {
			Score    models.GameScore `json:"score"`
			Improved bool             `json:"improved"`
		}](t, raw)
		assert.Equal(t, p.improved, res.Improved, "play %d", i)
		require.NotNil(t, res.Score.Best)
		assert.Equal(t, p.best, *res.Score.Best)
		assert.Equal(t, i+1, res.Score.Plays)
	}

	status, raw = e.do("GET", "/api/games", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(raw), `"plays":5`)

	status, _ = e.do("POST", "/api/games/sequence/results", token, map[string]any{})
	assert.Equal(t, fiber.StatusBadRequest, status)
	status, _ = e.do("POST", "/api/games/memory/results", token, map[string]any{"value": 3})
	assert.Equal(t, fiber.StatusBadRequest, status)
	status, _ = e.do("GET", "/api/games/chess", token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	status, _ = e.do("POST", "/api/games/chess/results", token, map[string]any{"value": 1})
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestPomodoroLifecycle(t *testing.T) {
	e := setupTestApp(t)
	token, _ := e.register("a@example.com")

	status, raw := e.do("GET", "/api/pomodoro", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	st := decode[schedule.PomodoroState](t, raw)
	assert.Equal(t, models.PhaseWork, st.Phase)
	assert.False(t, st.Running)
	assert.Equal(t, 25*60, st.Remaining)

	status, raw = e.do("POST", "/api/pomodoro/start", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.True(t, decode[schedule.PomodoroState](t, raw).Running)
	assert.Equal(t, 1, e.srv.Pomodoros.Running())

	status, raw = e.do("POST", "/api/pomodoro/pause", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.False(t, decode[schedule.PomodoroState](t, raw).Running)

	status, raw = e.do("DELETE", "/api/pomodoro", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, decode[map[string]any](t, raw)["stopped"])
	assert.Equal(t, 0, e.srv.Pomodoros.Running())
}

func TestLogoutStopsPomodoro(t *testing.T) {
	e := setupTestApp(t)
	token, _ := e.register("a@example.com")

	status, _ := e.do("POST", "/api/pomodoro/start", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, 1, e.srv.Pomodoros.Running())

	status, _ = e.do("POST", "/api/auth/logout", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Eventually(t, func() bool { return e.srv.Pomodoros.Running() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStats(t *testing.T) {
	e := setupTestApp(t)
	token, _ := e.register("a@example.com")

	status, _ := e.do("POST", "/api/tips", token, models.Tip{Text: "Breathe", State: "anxious"})
	require.Equal(t, fiber.StatusCreated, status)
	status, _ = e.do("POST", "/api/games/color/results", token, map[string]any{"value": 7})
	require.Equal(t, fiber.StatusOK, status)

	status, raw := e.do("GET", "/api/stats", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	stats := decode[views.Stats](t, raw)
	assert.Equal(t, 1, stats.Tips)
	assert.Equal(t, 1, stats.GamesPlayed)
	assert.Equal(t, 0, stats.PomodorosCompleted)
	assert.Len(t, stats.Week, 7)
}

func TestUserProfile(t *testing.T) {
	e := setupTestApp(t)
	token, user := e.register("a@example.com")

	status, raw := e.do("GET", "/api/user/profile", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, user.Email, decode[models.User](t, raw).Email)

	status, raw = e.do("PUT", "/api/user/profile", token, models.UpdateProfileRequest{DisplayName: "  Ana  "})
	require.Equal(t, fiber.StatusOK, status, string(raw))
	assert.Equal(t, "Ana", decode[models.User](t, raw).DisplayName)
}

func TestPublicEndpoints(t *testing.T) {
	e := setupTestApp(t)

	status, raw := e.do("GET", "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(raw), "ok")

	status, raw = e.do("GET", "/api/navigation", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(raw), `"/calendar"`)

	status, raw = e.do("GET", "/api/zen/sounds", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(raw), "rain")

	status, raw = e.do("GET", "/api/config", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	cfg := decode[map[string]any](t, raw)
	assert.Equal(t, false, cfg["pushConfigured"])

	status, _ = e.do("GET", "/api/push/vapid-public-key", "", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)

	status, raw = e.do("GET", "/metrics", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(raw), "neurodash_live_subscriptions")
}

func TestLiveCollectionValidation(t *testing.T) {
	e := setupTestApp(t)
	token, _ := e.register("a@example.com")

	status, _ := e.do("GET", "/api/live/secrets", token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = e.do("GET", "/api/live/events?field=bad%20field", token, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

// streamUntilLogout opens path as an event stream, logs the user out once the
// stream is registered and returns the streamed body.
func streamUntilLogout(t *testing.T, e *testEnv, path, token string, userID int, whileOpen func()) string {
	t.Helper()
	var (
		wg   sync.WaitGroup
		resp *http.Response
		err  error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		resp, err = e.app.Test(e.request("GET", path+"?access_token="+token, "", nil), 5000)
	}()

	require.Eventually(t, func() bool { return e.srv.Sessions.Open(userID) > 0 }, 2*time.Second, 10*time.Millisecond)
	if whileOpen != nil {
		whileOpen()
	}
	status, _ := e.do("POST", "/api/auth/logout", token, nil)
	require.Equal(t, fiber.StatusOK, status)

	wg.Wait()
	require.NoError(t, err)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	return string(mustRead(t, resp))
}

func TestLiveCollectionStreamEndsOnLogout(t *testing.T) {
	e := setupTestApp(t)
	token, user := e.register("a@example.com")

	body := streamUntilLogout(t, e, "/api/live/tasks", token, user.ID, func() {
		status, _ := e.do("POST", "/api/tasks", token, map[string]any{"text": "Streamed"})
		require.Equal(t, fiber.StatusCreated, status)
	})
	assert.Contains(t, body, "event: signout")
	assert.Contains(t, body, `"redirect":"/login"`)
	assert.Equal(t, 0, e.srv.Sessions.Open(user.ID))
}

func TestLiveHomeStreamEndsOnLogout(t *testing.T) {
	e := setupTestApp(t)
	token, user := e.register("a@example.com")

	body := streamUntilLogout(t, e, "/api/live/home", token, user.ID, nil)
	assert.Contains(t, body, "event: clock")
	assert.Contains(t, body, "event: message")
	assert.Contains(t, body, schedule.Messages[0])
	assert.Contains(t, body, "event: signout")
}

func TestPushSubscribeAndTest(t *testing.T) {
	e := setupTestApp(t)
	token, _ := e.register("a@example.com")

	sub := models.PushSubscription{Endpoint: "https://push.example.com/1", P256dh: "key", Auth: "secret"}
	status, _ := e.do("POST", "/api/push/subscribe", token, sub)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = e.do("POST", "/api/push/subscribe", token, sub)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = e.do("POST", "/api/push/subscribe", token, map[string]any{"endpoint": "x"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = e.do("POST", "/api/push/test", token, nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)

	status, _ = e.do("DELETE", "/api/push/unsubscribe", token, map[string]any{"endpoint": sub.Endpoint})
	assert.Equal(t, fiber.StatusOK, status)
}

type fakePush struct {
	mu       sync.Mutex
	payloads []api.PushPayload
	status   int
}

func (f *fakePush) send(_ context.Context, payload []byte, _ *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var p api.PushPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	f.payloads = append(f.payloads, p)
	return &http.Response{StatusCode: f.status, Body: io.NopCloser(strings.NewReader(""))}, nil
}

func withPush(c *config.Config) {
	c.VapidSubject = "mailto:admin@example.com"
	c.VapidPublicKey = "public"
	c.VapidPrivateKey = "private"
}

func TestReminderWorkerSendsOncePerDay(t *testing.T) {
	e := setupTestApp(t, withPush)
	fake := &fakePush{status: http.StatusCreated}
	e.srv.Push.WithSender(fake.send)
	token, _ := e.register("a@example.com")

	status, _ := e.do("POST", "/api/push/subscribe", token, models.PushSubscription{Endpoint: "https://push.example.com/1", P256dh: "key", Auth: "secret"})
	require.Equal(t, fiber.StatusOK, status)

	for _, task := range []map[string]any{
		{"text": "Overdue essay", "dueDate": "2026-03-10"},
		{"text": "Due today"},
		{"text": "Next week", "dueDate": "2026-03-22"},
		{"text": "Done already", "dueDate": "2026-03-01", "completed": true},
	} {
		status, raw := e.do("POST", "/api/tasks", token, task)
		require.Equal(t, fiber.StatusCreated, status, string(raw))
	}

	worker := api.NewReminderWorker(e.srv)
	n, err := worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, fake.payloads, 1)
	assert.Equal(t, "2 tasks are due", fake.payloads[0].Title)
	assert.Equal(t, "Overdue essay, Due today", fake.payloads[0].Body)

	n, err = worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, fake.payloads, 1)

	status, raw := e.do("POST", "/api/push/test", token, nil)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	assert.Len(t, fake.payloads, 2)
}

func TestGoneSubscriptionIsRemoved(t *testing.T) {
	e := setupTestApp(t, withPush)
	fake := &fakePush{status: http.StatusGone}
	e.srv.Push.WithSender(fake.send)
	token, user := e.register("a@example.com")

	status, _ := e.do("POST", "/api/push/subscribe", token, models.PushSubscription{Endpoint: "https://push.example.com/1", P256dh: "key", Auth: "secret"})
	require.Equal(t, fiber.StatusOK, status)

	_, err := e.srv.Push.SendToUser(context.Background(), user.ID, api.PushPayload{Title: "hi"})
	assert.Error(t, err)

	var count int
	require.NoError(t, e.srv.DB.QueryRow("SELECT COUNT(*) FROM push_subscriptions").Scan(&count))
	assert.Equal(t, 0, count)
}
