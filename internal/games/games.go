// Package games scores the mini-games and keeps each user's best result.
package games

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"neurodash/internal/binder"
	"neurodash/internal/docstore"
	"neurodash/internal/models"

	"github.com/pkg/errors"
)

type ID string

const (
	Sequence ID = "sequence"
	Color    ID = "color"
	Math     ID = "math"
	Memory   ID = "memory"
)

// Direction tells which way a result improves.
type Direction string

const (
	LowerIsBetter  Direction = "lower"
	HigherIsBetter Direction = "higher"
)

type Info struct {
	ID          ID        `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Unit        string    `json:"unit"`
	Better      Direction `json:"better"`
}

var Catalog = []Info{
	{ID: Sequence, Name: "Number Sequence", Description: "Click 1 to 10 in order as fast as you can.", Unit: "seconds", Better: LowerIsBetter},
	{ID: Color, Name: "Color Finder", Description: "Pick the named color; one miss ends the round.", Unit: "points", Better: HigherIsBetter},
	{ID: Math, Name: "Quick Math", Description: "Solve each problem within five seconds.", Unit: "points", Better: HigherIsBetter},
	{ID: Memory, Name: "Memory", Description: "Match all eight pairs in as few attempts as possible.", Unit: "attempts", Better: LowerIsBetter},
}

// ErrUnknownGame is returned for ids outside Catalog.
var ErrUnknownGame = errors.New("unknown game")

func Lookup(id ID) (Info, error) {
	for _, g := range Catalog {
		if g.ID == id {
			return g, nil
		}
	}
	return Info{}, ErrUnknownGame
}

// Better reports whether candidate strictly improves on stored. Any result
// beats a missing one.
func Better(game ID, candidate float64, stored *float64) bool {
	if stored == nil {
		return true
	}
	info, err := Lookup(game)
	if err != nil {
		return false
	}
	if info.Better == LowerIsBetter {
		return candidate < *stored
	}
	return candidate > *stored
}

// ValidateResult rejects results no finished round can produce.
func ValidateResult(game ID, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return &models.ValidationError{Field: "value", Rule: "number"}
	}
	switch game {
	case Sequence:
		if value <= 0 {
			return &models.ValidationError{Field: "value", Rule: "min", Param: "0"}
		}
	case Color, Math:
		if value < 0 || value != math.Trunc(value) {
			return &models.ValidationError{Field: "value", Rule: "integer"}
		}
	case Memory:
		if value < float64(len(memoryEmojis)) || value != math.Trunc(value) {
			return &models.ValidationError{Field: "value", Rule: "min", Param: fmt.Sprint(len(memoryEmojis))}
		}
	default:
		return ErrUnknownGame
	}
	return nil
}

// RecordBest counts a play and stores value as the new best when it strictly
// improves on the stored one. Read and write happen in one transaction, so
// concurrent plays never regress the best.
func RecordBest(ctx context.Context, b *binder.Binder, game ID, value float64) (models.GameScore, bool, error) {
	if _, err := Lookup(game); err != nil {
		return models.GameScore{}, false, err
	}
	if err := ValidateResult(game, value); err != nil {
		return models.GameScore{}, false, err
	}

	var (
		score    models.GameScore
		improved bool
	)
	_, _, err := b.Transform(ctx, models.CollectionScores, string(game), func(cur docstore.Document, exists bool) (any, bool, error) {
		score = models.GameScore{}
		if exists {
			if err := json.Unmarshal(cur.Data, &score); err != nil {
				return nil, false, errors.Wrap(err, "decode score")
			}
		}
		score.Plays++
		improved = Better(game, value, score.Best)
		if improved {
			v := value
			score.Best = &v
		}
		score.UpdatedAt = time.Now().UTC()
		return score, true, nil
	})
	if err != nil {
		return models.GameScore{}, false, err
	}
	score.ID = string(game)
	return score, improved, nil
}

// Scores returns the stored score of every game, zero values for games never played.
func Scores(ctx context.Context, b *binder.Binder) ([]models.GameScore, error) {
	stored, err := binder.NewCollection[models.GameScore](b, models.CollectionScores).List(ctx, docstore.Query{})
	if err != nil {
		return nil, err
	}
	byID := map[string]models.GameScore{}
	for _, s := range stored {
		byID[s.ID] = s
	}
	out := make([]models.GameScore, 0, len(Catalog))
	for _, g := range Catalog {
		s, ok := byID[string(g.ID)]
		if !ok {
			s = models.GameScore{ID: string(g.ID)}
		}
		out = append(out, s)
	}
	return out, nil
}
