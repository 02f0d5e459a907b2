package availability

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/course-keeper/internal/errs"
	"github.com/and161185/course-keeper/internal/model"
	"github.com/and161185/course-keeper/internal/obs"
)

// childStatus derives a child's target status from its parent's new status.
func childStatus(parent model.CardStatus) (model.CardStatus, error) {
	switch parent {
	case model.StatusFinished:
		return model.StatusOpened, nil
	case model.StatusOpened:
		return model.StatusClosed, nil
	case model.StatusClosed:
		return model.StatusClosed, nil
	}
	return "", errs.ErrUnknownCardStatus.Withf("unknown card status %q", parent)
}

// CardStatus resolves the card's status for the user.
// Privileged users always see OPENED.
func (e *Engine) CardStatus(ctx context.Context, user *model.User, card *model.Card) (model.CardStatus, error) {
	if model.HasUniversalAccess(user.Role) {
		return model.StatusOpened, nil
	}
	rec, err := e.records.GetByUser(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("load availability of %s: %w", user.ID, err)
	}
	return e.resolve(ctx, rec, card)
}

// resolve returns the card's status in rec. A card of the record's course
// that never reached the record, as after an interrupted fan-out, is seeded
// on the spot the same way the fan-out would have done it.
func (e *Engine) resolve(ctx context.Context, rec *model.Availability, card *model.Card) (model.CardStatus, error) {
	if st, ok := rec.Statuses[card.ID]; ok {
		return st, nil
	}
	if card.CourseID != rec.CourseID {
		e.log.Error("card missing from every status group",
			zap.String("card", card.ID),
			zap.Int64("availability", rec.ID),
			zap.String("user", rec.UserID.String()),
		)
		return "", errs.ErrNotInAnyStatusGroup.Withf("card %s not found in any status group", card.ID)
	}

	first := len(rec.Statuses) == 0 && card.ParentID == nil
	st, err := e.seed(ctx, rec, card, first)
	if err != nil {
		return "", err
	}
	e.log.Warn("re-attached card missing from availability",
		zap.String("card", card.ID),
		zap.Int64("availability", rec.ID),
		zap.String("status", string(st)),
	)
	return st, nil
}

// PushCardToStatusGroup puts the card into the named group.
func (e *Engine) PushCardToStatusGroup(ctx context.Context, user *model.User, card *model.Card, status model.CardStatus) error {
	rec, err := e.records.GetByUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("load availability of %s: %w", user.ID, err)
	}
	return e.records.PushStatus(ctx, rec.ID, card.ID, status)
}

// DeleteCardFromStatusGroup removes the card from the named group.
// It fails with errs.ErrNotInStatusGroup when the card was not a member.
func (e *Engine) DeleteCardFromStatusGroup(ctx context.Context, user *model.User, card *model.Card, status model.CardStatus) error {
	rec, err := e.records.GetByUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("load availability of %s: %w", user.ID, err)
	}
	return e.records.RemoveStatus(ctx, rec.ID, card.ID, status)
}

// ChangeCardStatus moves the card from one group to another and propagates the
// change down the subtree. Equal from/to is a no-op. The whole propagation runs
// in one transaction holding a lock on the user's record.
func (e *Engine) ChangeCardStatus(ctx context.Context, user *model.User, card *model.Card, from, to model.CardStatus) (*model.CardView, error) {
	if _, ok := model.ParseCardStatus(string(from)); !ok {
		return nil, errs.ErrInvalidStatus.Withf("invalid from status %q", from)
	}
	if _, ok := model.ParseCardStatus(string(to)); !ok {
		return nil, errs.ErrInvalidStatus.Withf("invalid to status %q", to)
	}
	if from == to || model.HasUniversalAccess(user.Role) {
		return e.AugmentedCard(ctx, user, card)
	}

	err := e.tx.RunInTx(ctx, func(ctx context.Context) error {
		rec, err := e.records.LockByUser(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("lock availability of %s: %w", user.ID, err)
		}
		if _, err := e.resolve(ctx, rec, card); err != nil {
			return err
		}
		if err := e.change(ctx, rec, card, from, to, map[string]bool{}); err != nil {
			return err
		}
		return e.records.BumpVersion(ctx, rec.ID)
	})
	if err != nil {
		return nil, err
	}

	fresh, err := e.cards.Get(ctx, card.CourseID, card.ID)
	if err != nil {
		return nil, err
	}
	return e.AugmentedCard(ctx, user, fresh)
}

func (e *Engine) change(
	ctx context.Context, rec *model.Availability, card *model.Card, from, to model.CardStatus, seen map[string]bool,
) error {
	if from == to {
		return nil
	}
	if seen[card.ID] {
		e.log.Error("card tree cycle", zap.String("card", card.ID), zap.Int64("course", card.CourseID))
		return errs.ErrTreeCycle
	}
	seen[card.ID] = true

	if err := e.records.RemoveStatus(ctx, rec.ID, card.ID, from); err != nil {
		return err
	}
	if err := e.records.PushStatus(ctx, rec.ID, card.ID, to); err != nil {
		return err
	}
	rec.Statuses[card.ID] = to
	obs.StatusTransitions.WithLabelValues(string(from), string(to)).Inc()

	children, err := e.cards.ListChildren(ctx, card.CourseID, card.ID)
	if err != nil {
		return fmt.Errorf("load children of %s: %w", card.ID, err)
	}
	if len(children) == 0 {
		return nil
	}
	target, err := childStatus(to)
	if err != nil {
		e.log.Error("status propagation", zap.String("card", card.ID), zap.Error(err))
		return err
	}
	for i := range children {
		child := &children[i]
		cur, err := e.resolve(ctx, rec, child)
		if err != nil {
			return err
		}
		if err := e.change(ctx, rec, child, cur, target, seen); err != nil {
			return err
		}
	}
	return nil
}
