// Package availability decides which cards of a course a user may see and
// moves cards between the OPENED, CLOSED and FINISHED groups, propagating
// changes down the card tree.
package availability

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/course-keeper/internal/errs"
	"github.com/and161185/course-keeper/internal/model"
	"github.com/and161185/course-keeper/internal/obs"
	"github.com/and161185/course-keeper/internal/repository"
)

// Options tune the engine.
type Options struct {
	// InvertedProgress keeps the historical allCards/cardsPassed progress formula.
	InvertedProgress bool
	// FanoutParallelism bounds concurrent per-user attachments; <= 0 means 4.
	FanoutParallelism int
}

// Engine is the single authority for per-user card availability.
type Engine struct {
	users   repository.UserRepository
	cards   repository.CardRepository
	records repository.AvailabilityRepository
	tx      repository.TxManager
	log     *zap.Logger
	opts    Options
}

// New constructs an Engine.
func New(
	users repository.UserRepository,
	cards repository.CardRepository,
	records repository.AvailabilityRepository,
	tx repository.TxManager,
	log *zap.Logger,
	opts Options,
) *Engine {
	if opts.FanoutParallelism <= 0 {
		opts.FanoutParallelism = 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{users: users, cards: cards, records: records, tx: tx, log: log, opts: opts}
}

// AttachCardToUser seeds a card into the user's record: OPENED when isFirst, CLOSED otherwise.
// Privileged users, users without a record and users enrolled elsewhere are skipped.
func (e *Engine) AttachCardToUser(ctx context.Context, user *model.User, card *model.Card, isFirst bool) error {
	if model.HasUniversalAccess(user.Role) {
		return nil
	}
	rec, err := e.records.GetByUser(ctx, user.ID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load availability of %s: %w", user.ID, err)
	}
	if rec.CourseID != card.CourseID {
		return nil
	}
	return e.attach(ctx, user, rec, card, isFirst)
}

func (e *Engine) attach(ctx context.Context, user *model.User, rec *model.Availability, card *model.Card, isFirst bool) error {
	if model.HasUniversalAccess(user.Role) {
		return nil
	}
	_, err := e.seed(ctx, rec, card, isFirst)
	return err
}

// seed adds the card to rec: OPENED when isFirst, CLOSED otherwise.
// A card already in rec keeps its status.
func (e *Engine) seed(ctx context.Context, rec *model.Availability, card *model.Card, isFirst bool) (model.CardStatus, error) {
	status := model.StatusClosed
	if isFirst {
		status = model.StatusOpened
	}
	if err := e.records.AddCard(ctx, rec.ID, card.ID, status); err != nil {
		return "", fmt.Errorf("attach card %s: %w", card.ID, err)
	}
	if rec.Statuses == nil {
		rec.Statuses = map[string]model.CardStatus{}
	}
	if cur, ok := rec.Statuses[card.ID]; ok {
		return cur, nil
	}
	rec.Statuses[card.ID] = status
	return status, nil
}

// AttachCardToUsers fans a new card out to every user enrolled in its course.
// Users are attached independently, so one failure does not stop the others;
// all failures are joined into the returned error. A user left out is
// re-seeded the next time the card's status is resolved for them.
func (e *Engine) AttachCardToUsers(ctx context.Context, card *model.Card, isFirst bool) error {
	users, err := e.users.ListByCourse(ctx, card.CourseID)
	if err != nil {
		return fmt.Errorf("list course users: %w", err)
	}

	var (
		g      errgroup.Group
		mu     sync.Mutex
		failed []error
	)
	g.SetLimit(e.opts.FanoutParallelism)
	for i := range users {
		u := &users[i]
		g.Go(func() error {
			if err := e.AttachCardToUser(ctx, u, card, isFirst); err != nil {
				obs.FanoutFailures.Inc()
				mu.Lock()
				failed = append(failed, fmt.Errorf("user %s: %w", u.ID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(failed...); err != nil {
		e.log.Warn("card fan-out incomplete",
			zap.String("card", card.ID),
			zap.Int64("course", card.CourseID),
			zap.Int("failed", len(failed)),
			zap.Int("users", len(users)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// InitialAvailability gives the user a fresh record for the course and seeds it
// with the card tree. The root of the earliest card is opened; other roots
// (a course may be a forest) start closed.
func (e *Engine) InitialAvailability(ctx context.Context, course *model.Course, user *model.User) error {
	return e.tx.RunInTx(ctx, func(ctx context.Context) error {
		rec, err := e.records.Create(ctx, user.ID, course.ID)
		if err != nil {
			return fmt.Errorf("create availability: %w", err)
		}
		if err := e.users.SetCourse(ctx, user.ID, course.ID); err != nil {
			return fmt.Errorf("enroll user: %w", err)
		}
		courseID := course.ID
		user.CourseID = &courseID
		if model.HasUniversalAccess(user.Role) {
			return nil
		}

		cards, err := e.cards.ListByCourse(ctx, course.ID)
		if err != nil {
			return fmt.Errorf("list cards: %w", err)
		}
		if len(cards) == 0 {
			return nil
		}

		root, err := e.RootCard(ctx, &cards[0])
		if err != nil {
			return err
		}
		if err := e.attachSubtree(ctx, user, rec, root, true, map[string]bool{}); err != nil {
			return err
		}
		for i := range cards {
			c := &cards[i]
			if c.ParentID != nil || c.ID == root.ID {
				continue
			}
			if err := e.attachSubtree(ctx, user, rec, c, false, map[string]bool{}); err != nil {
				return err
			}
		}
		return nil
	})
}
