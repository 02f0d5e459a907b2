package repository

import (
	"context"

	"github.com/and161185/course-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// CardRepository provides tree-aware access to course cards.
// All lookups are scoped by course.
type CardRepository interface {
	// Create inserts a new card.
	Create(ctx context.Context, c *model.Card) error
	// Get loads a card by id.
	Get(ctx context.Context, courseID int64, id string) (*model.Card, error)
	// ListByCourse returns all course cards ordered by creation time.
	ListByCourse(ctx context.Context, courseID int64) ([]model.Card, error)
	// ListChildren returns the direct children of a card ordered by creation time.
	ListChildren(ctx context.Context, courseID int64, id string) ([]model.Card, error)
	// Update applies a partial update.
	Update(ctx context.Context, courseID int64, id string, p model.CardPatch) error
	// SetParent rewires the tree pointer; nil detaches the card.
	SetParent(ctx context.Context, courseID int64, id string, parentID *string) error
	// Delete removes a card; status entries cascade.
	Delete(ctx context.Context, courseID int64, id string) error
	// Count returns the number of cards in the course.
	Count(ctx context.Context, courseID int64) (int, error)
	// LockCourse holds a row lock on the course until the surrounding
	// transaction ends, serialising card inserts per course.
	LockCourse(ctx context.Context, courseID int64) error
}

// RelationRepository stores the relation ledger keyed by (course, parent, child).
type RelationRepository interface {
	Create(ctx context.Context, r *model.Relation) error
	Get(ctx context.Context, courseID int64, id uuid.UUID) (*model.Relation, error)
	// Exists reports whether the (course, parent, child) edge is already recorded.
	Exists(ctx context.Context, courseID int64, parentID, childID string) (bool, error)
	ListByCourse(ctx context.Context, courseID int64) ([]model.Relation, error)
	Delete(ctx context.Context, courseID int64, id uuid.UUID) error
	// DeleteByChild removes every relation where the card is the child.
	DeleteByChild(ctx context.Context, courseID int64, childID string) error
}
