package repository

import (
	"context"

	"github.com/and161185/course-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// AvailabilityRepository stores per-user card status records.
type AvailabilityRepository interface {
	// Create replaces the user's record with an empty one for the course.
	Create(ctx context.Context, userID uuid.UUID, courseID int64) (*model.Availability, error)
	// GetByUser loads the user's record with all statuses.
	GetByUser(ctx context.Context, userID uuid.UUID) (*model.Availability, error)
	// LockByUser loads the record and locks it until the surrounding transaction ends.
	LockByUser(ctx context.Context, userID uuid.UUID) (*model.Availability, error)
	// AddCard attaches a card with a starting status; a card already attached is left untouched.
	AddCard(ctx context.Context, availabilityID int64, cardID string, status model.CardStatus) error
	// PushStatus sets the card's status group.
	PushStatus(ctx context.Context, availabilityID int64, cardID string, status model.CardStatus) error
	// RemoveStatus removes the card from the named group; errs.ErrNotInStatusGroup if absent.
	RemoveStatus(ctx context.Context, availabilityID int64, cardID string, status model.CardStatus) error
	// BumpVersion increments the record version.
	BumpVersion(ctx context.Context, availabilityID int64) error
}

// TxManager runs a function inside a database transaction carried by ctx.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
