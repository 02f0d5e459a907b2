package availability

import (
	"context"
	"fmt"
	"math"

	"github.com/and161185/course-keeper/internal/model"
)

// Statistic derives progress from a record using the engine's formula setting.
func (e *Engine) Statistic(rec *model.Availability) model.Statistic {
	return ComputeStatistic(rec, e.opts.InvertedProgress)
}

// UserStatistic loads the user's record and derives progress.
func (e *Engine) UserStatistic(ctx context.Context, user *model.User) (model.Statistic, error) {
	rec, err := e.records.GetByUser(ctx, user.ID)
	if err != nil {
		return model.Statistic{}, fmt.Errorf("load availability of %s: %w", user.ID, err)
	}
	return e.Statistic(rec), nil
}

// ComputeStatistic counts attached and finished cards.
//
// With inverted set, ProgressPercent is round(allCards / cardsPassed): the
// historical formula, pending product sign-off. Otherwise it is
// round(cardsPassed / allCards * 100). A zero divisor yields 0.
func ComputeStatistic(rec *model.Availability, inverted bool) model.Statistic {
	all := len(rec.Statuses)
	passed := len(rec.Group(model.StatusFinished))

	st := model.Statistic{AllCards: all, CardsPassed: passed}
	if inverted {
		if passed > 0 {
			st.ProgressPercent = int(math.Round(float64(all) / float64(passed)))
		}
		return st
	}
	if all > 0 {
		st.ProgressPercent = int(math.Round(float64(passed) / float64(all) * 100))
	}
	return st
}
