package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/course-keeper/internal/errs"
	"github.com/and161185/course-keeper/internal/model"
)

// AvailabilityRepo implements AvailabilityRepository using PostgreSQL.
// Each card of a record has exactly one row in availability_cards.
type AvailabilityRepo struct{ db *DB }

// NewAvailabilityRepo constructs an availability repository.
func NewAvailabilityRepo(db *DB) *AvailabilityRepo { return &AvailabilityRepo{db: db} }

// Create replaces the user's record with an empty one bound to the course.
func (r *AvailabilityRepo) Create(ctx context.Context, userID uuid.UUID, courseID int64) (*model.Availability, error) {
	const ins = `
INSERT INTO availabilities (user_id, course_id)
VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE
SET course_id = EXCLUDED.course_id, version = availabilities.version + 1, updated_at = now()
RETURNING id, version`
	rec := &model.Availability{UserID: userID, CourseID: courseID, Statuses: map[string]model.CardStatus{}}
	q := r.db.q(ctx)
	if err := q.QueryRow(ctx, ins, userID, courseID).Scan(&rec.ID, &rec.Version); err != nil {
		return nil, mapError(err, errs.ErrNotFound, nil)
	}
	if _, err := q.Exec(ctx, `DELETE FROM availability_cards WHERE availability_id=$1`, rec.ID); err != nil {
		return nil, err
	}
	return rec, nil
}

// GetByUser loads the record with all card statuses.
func (r *AvailabilityRepo) GetByUser(ctx context.Context, userID uuid.UUID) (*model.Availability, error) {
	const q = `SELECT id, course_id, version FROM availabilities WHERE user_id=$1`
	return r.load(ctx, q, userID)
}

// LockByUser loads the record holding a row lock until the transaction ends.
func (r *AvailabilityRepo) LockByUser(ctx context.Context, userID uuid.UUID) (*model.Availability, error) {
	const q = `SELECT id, course_id, version FROM availabilities WHERE user_id=$1 FOR UPDATE`
	return r.load(ctx, q, userID)
}

func (r *AvailabilityRepo) load(ctx context.Context, head string, userID uuid.UUID) (*model.Availability, error) {
	q := r.db.q(ctx)
	rec := &model.Availability{UserID: userID, Statuses: map[string]model.CardStatus{}}
	if err := q.QueryRow(ctx, head, userID).Scan(&rec.ID, &rec.CourseID, &rec.Version); err != nil {
		return nil, mapError(err, errs.ErrRecordNotFound, nil)
	}

	rows, err := q.Query(ctx, `SELECT card_id, status FROM availability_cards WHERE availability_id=$1`, rec.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var cardID, status string
		if err := rows.Scan(&cardID, &status); err != nil {
			return nil, err
		}
		st, ok := model.ParseCardStatus(status)
		if !ok {
			return nil, errs.ErrUnknownCardStatus.Withf("card %s has unknown status %q", cardID, status)
		}
		rec.Statuses[cardID] = st
	}
	return rec, rows.Err()
}

// AddCard attaches a card; an attached card keeps its status.
func (r *AvailabilityRepo) AddCard(ctx context.Context, availabilityID int64, cardID string, status model.CardStatus) error {
	const q = `
INSERT INTO availability_cards (availability_id, card_id, status)
VALUES ($1, $2, $3)
ON CONFLICT (availability_id, card_id) DO NOTHING`
	_, err := r.db.q(ctx).Exec(ctx, q, availabilityID, cardID, string(status))
	return mapError(err, errs.ErrCardNotFound, nil)
}

// PushStatus moves the card into the group.
func (r *AvailabilityRepo) PushStatus(ctx context.Context, availabilityID int64, cardID string, status model.CardStatus) error {
	const q = `
INSERT INTO availability_cards (availability_id, card_id, status)
VALUES ($1, $2, $3)
ON CONFLICT (availability_id, card_id) DO UPDATE SET status = EXCLUDED.status`
	_, err := r.db.q(ctx).Exec(ctx, q, availabilityID, cardID, string(status))
	return mapError(err, errs.ErrCardNotFound, nil)
}

// RemoveStatus removes the card from the group it must currently be in.
func (r *AvailabilityRepo) RemoveStatus(ctx context.Context, availabilityID int64, cardID string, status model.CardStatus) error {
	const q = `DELETE FROM availability_cards WHERE availability_id=$1 AND card_id=$2 AND status=$3`
	tag, err := r.db.q(ctx).Exec(ctx, q, availabilityID, cardID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotInStatusGroup.Withf("card %s is not in the %s group", cardID, status)
	}
	return nil
}

// BumpVersion increments the record version.
func (r *AvailabilityRepo) BumpVersion(ctx context.Context, availabilityID int64) error {
	const q = `UPDATE availabilities SET version = version + 1, updated_at = now() WHERE id=$1`
	tag, err := r.db.q(ctx).Exec(ctx, q, availabilityID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrRecordNotFound
	}
	return nil
}
