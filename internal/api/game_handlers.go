package api

import (
	"math/rand/v2"

	"neurodash/internal/binder"
	"neurodash/internal/docstore"
	"neurodash/internal/games"
	"neurodash/internal/models"
	"neurodash/internal/views"

	"github.com/gofiber/fiber/v2"
)

// ListGamesHandler returns the catalog with the caller's scores.
func ListGamesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scores, err := games.Scores(c.UserContext(), binderOf(c))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"games": games.Catalog, "scores": scores})
	}
}

// DealHandler starts a round of :game. Rounds are played client side; only
// results come back.
func DealHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := games.ID(c.Params("game"))
		info, err := games.Lookup(id)
		if err != nil {
			return err
		}
		round, err := games.Deal(id, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
		if err != nil {
			return err
		}

		score := models.GameScore{ID: string(id)}
		stored, err := binder.NewCollection[models.GameScore](binderOf(c), models.CollectionScores).Get(c.UserContext(), string(id))
		switch {
		case err == nil:
			score = stored
		case !isNotFound(err):
			return err
		}
		return c.JSON(fiber.Map{"game": info, "round": round, "score": score})
	}
}

// RecordResultHandler stores {"value": n} when it beats the best so far.
func RecordResultHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			Value *float64 `json:"value"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if body.Value == nil {
			return &models.ValidationError{Field: "value", Rule: "required"}
		}

		id := games.ID(c.Params("game"))
		score, improved, err := games.RecordBest(c.UserContext(), binderOf(c), id, *body.Value)
		if err != nil {
			return err
		}
		if improved {
			s.Log.Debug().Int("user_id", c.Locals("userID").(int)).Str("game", string(id)).Float64("best", *score.Best).Msg("new best score")
		}
		return c.JSON(fiber.Map{"score": score, "improved": improved})
	}
}

// StatsHandler aggregates pomodoro cycles, game plays and tips.
func StatsHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		b := binderOf(c)

		cycles, err := binder.NewCollection[models.PomodoroCycle](b, models.CollectionPomodoro).List(ctx, orderedByCreation)
		if err != nil {
			return err
		}
		scores, err := games.Scores(ctx, b)
		if err != nil {
			return err
		}
		tips, err := b.Count(ctx, models.CollectionTips, docstore.Query{})
		if err != nil {
			return err
		}
		return c.JSON(views.ComputeStats(cycles, scores, tips, s.today()))
	}
}
