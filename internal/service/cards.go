package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/course-keeper/internal/availability"
	"github.com/and161185/course-keeper/internal/errs"
	"github.com/and161185/course-keeper/internal/ids"
	"github.com/and161185/course-keeper/internal/model"
	"github.com/and161185/course-keeper/internal/repository"
)

// NewCard is the input for creating a card. ParentID, when set, also records a relation.
type NewCard struct {
	ParentID *string
	Position model.Position
	Label    string
	Type     string
	Content  json.RawMessage
}

// RelationInput is the input for creating a relation. ID is generated when nil.
type RelationInput struct {
	ID       *uuid.UUID
	SourceID string
	TargetID string
}

// CardService manages course cards, their relations and per-viewer status.
type CardService interface {
	List(ctx context.Context, viewer *model.User, courseID int64) ([]model.CardView, error)
	Get(ctx context.Context, viewer *model.User, courseID int64, id string) (*model.CardView, error)
	Create(ctx context.Context, viewer *model.User, courseID int64, in NewCard) (*model.CardView, error)
	Update(ctx context.Context, viewer *model.User, courseID int64, id string, p model.CardPatch) (*model.CardView, error)
	Delete(ctx context.Context, courseID int64, id string) error
	ChangeStatus(ctx context.Context, viewer *model.User, courseID int64, id string, from, to model.CardStatus) (*model.CardView, error)

	Relations(ctx context.Context, courseID int64) ([]model.Relation, error)
	Relation(ctx context.Context, courseID int64, id uuid.UUID) (*model.Relation, error)
	CreateRelation(ctx context.Context, courseID int64, in RelationInput) (*model.Relation, error)
	DeleteRelation(ctx context.Context, courseID int64, id uuid.UUID) error

	// Progress returns the viewer's statistic; privileged viewers without a record get zeros.
	Progress(ctx context.Context, viewer *model.User) (model.Statistic, error)
}

type CardServiceImpl struct {
	cards     repository.CardRepository
	relations repository.RelationRepository
	tx        repository.TxManager
	engine    *availability.Engine
	log       *zap.Logger
}

// NewCardService constructs CardService.
func NewCardService(
	cards repository.CardRepository,
	relations repository.RelationRepository,
	tx repository.TxManager,
	engine *availability.Engine,
	log *zap.Logger,
) *CardServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &CardServiceImpl{cards: cards, relations: relations, tx: tx, engine: engine, log: log}
}

// List returns the course cards as the viewer sees them, earliest first.
func (s *CardServiceImpl) List(ctx context.Context, viewer *model.User, courseID int64) ([]model.CardView, error) {
	cards, err := s.cards.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return s.engine.AugmentedCards(ctx, viewer, cards)
}

// Get returns one card as the viewer sees it.
func (s *CardServiceImpl) Get(ctx context.Context, viewer *model.User, courseID int64, id string) (*model.CardView, error) {
	c, err := s.cards.Get(ctx, courseID, id)
	if err != nil {
		return nil, err
	}
	return s.engine.AugmentedCard(ctx, viewer, c)
}

// Create inserts a card and attaches it to every user enrolled in the course.
// The first card of a course starts OPENED, later ones CLOSED.
func (s *CardServiceImpl) Create(ctx context.Context, viewer *model.User, courseID int64, in NewCard) (*model.CardView, error) {
	id, err := ids.NewCardID()
	if err != nil {
		return nil, err
	}
	card := &model.Card{
		ID:       id,
		CourseID: courseID,
		Position: in.Position,
		Label:    strings.TrimSpace(in.Label),
		Type:     strings.TrimSpace(in.Type),
		Content:  in.Content,
	}

	var isFirst bool
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		// concurrent creates must agree on which card is the first one
		if err := s.cards.LockCourse(ctx, courseID); err != nil {
			return err
		}
		n, err := s.cards.Count(ctx, courseID)
		if err != nil {
			return err
		}
		isFirst = n == 0
		if in.ParentID != nil {
			if _, err := s.cards.Get(ctx, courseID, *in.ParentID); err != nil {
				if errors.Is(err, errs.ErrNotFound) {
					return errs.ErrSourceCardNotFound.Withf("parent card %s not found", *in.ParentID)
				}
				return err
			}
			card.ParentID = in.ParentID
		}
		if err := s.cards.Create(ctx, card); err != nil {
			return err
		}
		if card.ParentID == nil {
			return nil
		}
		relID, err := ids.NewRelationID()
		if err != nil {
			return err
		}
		return s.relations.Create(ctx, &model.Relation{ID: relID, CourseID: courseID, ParentID: *card.ParentID, ChildID: card.ID})
	})
	if err != nil {
		return nil, err
	}

	if err := s.engine.AttachCardToUsers(ctx, card, isFirst); err != nil {
		// users left out are re-seeded when their statuses are next resolved
		s.log.Error("attach new card to course users", zap.String("card", card.ID), zap.Error(err))
	}
	return s.engine.AugmentedCard(ctx, viewer, card)
}

// Update applies a partial change and returns the fresh view.
func (s *CardServiceImpl) Update(ctx context.Context, viewer *model.User, courseID int64, id string, p model.CardPatch) (*model.CardView, error) {
	if err := s.cards.Update(ctx, courseID, id, p); err != nil {
		return nil, err
	}
	return s.Get(ctx, viewer, courseID, id)
}

// Delete removes a leaf card and the relation pointing at it.
func (s *CardServiceImpl) Delete(ctx context.Context, courseID int64, id string) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.cards.Get(ctx, courseID, id); err != nil {
			return err
		}
		children, err := s.cards.ListChildren(ctx, courseID, id)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return errs.ErrCardHasChildren.Withf("card %s has %d children", id, len(children))
		}
		if err := s.relations.DeleteByChild(ctx, courseID, id); err != nil {
			return err
		}
		return s.cards.Delete(ctx, courseID, id)
	})
}

// ChangeStatus moves the card between the viewer's status groups.
func (s *CardServiceImpl) ChangeStatus(
	ctx context.Context, viewer *model.User, courseID int64, id string, from, to model.CardStatus,
) (*model.CardView, error) {
	c, err := s.cards.Get(ctx, courseID, id)
	if err != nil {
		return nil, err
	}
	return s.engine.ChangeCardStatus(ctx, viewer, c, from, to)
}

// Relations lists the course relations.
func (s *CardServiceImpl) Relations(ctx context.Context, courseID int64) ([]model.Relation, error) {
	return s.relations.ListByCourse(ctx, courseID)
}

// Relation loads one relation.
func (s *CardServiceImpl) Relation(ctx context.Context, courseID int64, id uuid.UUID) (*model.Relation, error) {
	return s.relations.Get(ctx, courseID, id)
}

// CreateRelation records source as the parent of target and rewires the tree.
func (s *CardServiceImpl) CreateRelation(ctx context.Context, courseID int64, in RelationInput) (*model.Relation, error) {
	if in.SourceID == in.TargetID {
		return nil, errs.ErrRelationSelf
	}
	rel := &model.Relation{CourseID: courseID, ParentID: in.SourceID, ChildID: in.TargetID}
	if in.ID != nil {
		rel.ID = *in.ID
	} else {
		id, err := ids.NewRelationID()
		if err != nil {
			return nil, err
		}
		rel.ID = id
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		source, err := s.cards.Get(ctx, courseID, in.SourceID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return errs.ErrSourceCardNotFound
			}
			return err
		}
		target, err := s.cards.Get(ctx, courseID, in.TargetID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return errs.ErrTargetCardNotFound
			}
			return err
		}
		exists, err := s.relations.Exists(ctx, courseID, source.ID, target.ID)
		if err != nil {
			return err
		}
		if exists {
			return errs.ErrRelationExists
		}
		if target.ParentID != nil {
			return errs.ErrTargetHasParent.Withf("card %s already has parent %s", target.ID, *target.ParentID)
		}
		if err := s.ensureNotAncestor(ctx, target.ID, source); err != nil {
			return err
		}
		if err := s.relations.Create(ctx, rel); err != nil {
			return err
		}
		return s.cards.SetParent(ctx, courseID, target.ID, &source.ID)
	})
	if err != nil {
		return nil, err
	}
	return rel, nil
}

// ensureNotAncestor fails when ancestorID lies on the parent chain of card.
func (s *CardServiceImpl) ensureNotAncestor(ctx context.Context, ancestorID string, card *model.Card) error {
	seen := map[string]bool{}
	for cur := card; cur.ParentID != nil; {
		if *cur.ParentID == ancestorID {
			return errs.ErrRelationCycle
		}
		if seen[cur.ID] {
			return errs.ErrTreeCycle
		}
		seen[cur.ID] = true
		parent, err := s.cards.Get(ctx, cur.CourseID, *cur.ParentID)
		if err != nil {
			return fmt.Errorf("load parent of %s: %w", cur.ID, err)
		}
		cur = parent
	}
	return nil
}

// DeleteRelation removes a relation and detaches the child from the tree.
func (s *CardServiceImpl) DeleteRelation(ctx context.Context, courseID int64, id uuid.UUID) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		rel, err := s.relations.Get(ctx, courseID, id)
		if err != nil {
			return err
		}
		if err := s.relations.Delete(ctx, courseID, id); err != nil {
			return err
		}
		child, err := s.cards.Get(ctx, courseID, rel.ChildID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return nil
			}
			return err
		}
		if child.ParentID == nil || *child.ParentID != rel.ParentID {
			return nil
		}
		return s.cards.SetParent(ctx, courseID, child.ID, nil)
	})
}

// Progress derives the viewer's statistic.
func (s *CardServiceImpl) Progress(ctx context.Context, viewer *model.User) (model.Statistic, error) {
	st, err := s.engine.UserStatistic(ctx, viewer)
	if err != nil && model.HasUniversalAccess(viewer.Role) && errors.Is(err, errs.ErrNotFound) {
		return model.Statistic{}, nil
	}
	return st, err
}
