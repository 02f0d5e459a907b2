package availability

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/course-keeper/internal/errs"
	"github.com/and161185/course-keeper/internal/model"
)

// RootCard walks parent pointers up to the card without a parent.
func (e *Engine) RootCard(ctx context.Context, card *model.Card) (*model.Card, error) {
	seen := map[string]bool{card.ID: true}
	cur := card
	for cur.ParentID != nil {
		parent, err := e.cards.Get(ctx, cur.CourseID, *cur.ParentID)
		if err != nil {
			return nil, fmt.Errorf("load parent of %s: %w", cur.ID, err)
		}
		if seen[parent.ID] {
			e.log.Error("card tree cycle", zap.String("card", parent.ID), zap.Int64("course", parent.CourseID))
			return nil, errs.ErrTreeCycle
		}
		seen[parent.ID] = true
		cur = parent
	}
	return cur, nil
}

// attachSubtree attaches card and its descendants to the user in pre-order.
// Only card itself takes first; every descendant starts closed.
func (e *Engine) attachSubtree(
	ctx context.Context, user *model.User, rec *model.Availability, card *model.Card, first bool, seen map[string]bool,
) error {
	if seen[card.ID] {
		e.log.Error("card tree cycle", zap.String("card", card.ID), zap.Int64("course", card.CourseID))
		return errs.ErrTreeCycle
	}
	seen[card.ID] = true

	if err := e.attach(ctx, user, rec, card, first); err != nil {
		return err
	}
	children, err := e.cards.ListChildren(ctx, card.CourseID, card.ID)
	if err != nil {
		return fmt.Errorf("load children of %s: %w", card.ID, err)
	}
	for i := range children {
		if err := e.attachSubtree(ctx, user, rec, &children[i], false, seen); err != nil {
			return err
		}
	}
	return nil
}
