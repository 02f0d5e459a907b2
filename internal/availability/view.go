package availability

import (
	"context"
	"fmt"

	"github.com/and161185/course-keeper/internal/model"
)

// AugmentedCard returns the card as the user sees it.
func (e *Engine) AugmentedCard(ctx context.Context, user *model.User, card *model.Card) (*model.CardView, error) {
	status, err := e.CardStatus(ctx, user, card)
	if err != nil {
		return nil, err
	}
	v := view(card, status)
	return &v, nil
}

// AugmentedCards returns views for a batch of cards, loading the user's record once.
func (e *Engine) AugmentedCards(ctx context.Context, user *model.User, cards []model.Card) ([]model.CardView, error) {
	out := make([]model.CardView, 0, len(cards))
	if model.HasUniversalAccess(user.Role) {
		for i := range cards {
			out = append(out, view(&cards[i], model.StatusOpened))
		}
		return out, nil
	}

	rec, err := e.records.GetByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load availability of %s: %w", user.ID, err)
	}
	for i := range cards {
		st, err := e.resolve(ctx, rec, &cards[i])
		if err != nil {
			return nil, err
		}
		out = append(out, view(&cards[i], st))
	}
	return out, nil
}

// view hides content of closed cards and marks finished ones.
func view(card *model.Card, status model.CardStatus) model.CardView {
	v := model.CardView{Card: *card, Status: status}
	switch status {
	case model.StatusFinished:
		v.ClassName = model.FinishedClassName
	case model.StatusOpened:
		v.ClassName = card.Type
	case model.StatusClosed:
		// Label and type stay so the canvas can draw the locked card.
		v.Content = nil
	}
	return v
}
