package postgres

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/gofrs/uuid/v5"

	"github.com/and161185/course-keeper/internal/errs"
	"github.com/and161185/course-keeper/internal/model"
)

var cardColumns = []string{
	"id", "course_id", "parent_id", "pos_x", "pos_y", "label", "type", "content", "created_at", "updated_at",
}

type cardRow struct {
	ID        string    `db:"id"`
	CourseID  int64     `db:"course_id"`
	ParentID  *string   `db:"parent_id"`
	PosX      float64   `db:"pos_x"`
	PosY      float64   `db:"pos_y"`
	Label     string    `db:"label"`
	Type      string    `db:"type"`
	Content   []byte    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r cardRow) toModel() model.Card {
	return model.Card{
		ID:        r.ID,
		CourseID:  r.CourseID,
		ParentID:  r.ParentID,
		Position:  model.Position{X: r.PosX, Y: r.PosY},
		Label:     r.Label,
		Type:      r.Type,
		Content:   r.Content,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// CardRepo implements CardRepository using PostgreSQL.
type CardRepo struct{ db *DB }

// NewCardRepo constructs a card repository.
func NewCardRepo(db *DB) *CardRepo { return &CardRepo{db: db} }

// Create inserts a card and fills its timestamps.
func (r *CardRepo) Create(ctx context.Context, c *model.Card) error {
	const q = `
INSERT INTO cards (id, course_id, parent_id, pos_x, pos_y, label, type, content)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created_at, updated_at`
	err := r.db.q(ctx).QueryRow(ctx, q,
		c.ID, c.CourseID, c.ParentID, c.Position.X, c.Position.Y, c.Label, c.Type, nullJSON(c.Content),
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	return mapError(err, errs.ErrCourseNotFound, errs.ErrAlreadyExists)
}

// Get loads a card scoped by course.
func (r *CardRepo) Get(ctx context.Context, courseID int64, id string) (*model.Card, error) {
	sql, args, err := psql.Select(cardColumns...).From("cards").
		Where(sq.Eq{"course_id": courseID, "id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	var row cardRow
	if err := pgxscan.Get(ctx, r.db.q(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, errs.ErrCardNotFound
		}
		return nil, mapError(err, errs.ErrCardNotFound, nil)
	}
	c := row.toModel()
	return &c, nil
}

// ListByCourse returns course cards, earliest first.
func (r *CardRepo) ListByCourse(ctx context.Context, courseID int64) ([]model.Card, error) {
	return r.list(ctx, sq.Eq{"course_id": courseID})
}

// ListChildren returns direct children of a card, earliest first.
func (r *CardRepo) ListChildren(ctx context.Context, courseID int64, id string) ([]model.Card, error) {
	return r.list(ctx, sq.Eq{"course_id": courseID, "parent_id": id})
}

func (r *CardRepo) list(ctx context.Context, where sq.Eq) ([]model.Card, error) {
	sql, args, err := psql.Select(cardColumns...).From("cards").Where(where).
		OrderBy("created_at", "id").ToSql()
	if err != nil {
		return nil, err
	}
	var rows []cardRow
	if err := pgxscan.Select(ctx, r.db.q(ctx), &rows, sql, args...); err != nil {
		return nil, err
	}
	out := make([]model.Card, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

// Update applies the non-nil fields of p.
func (r *CardRepo) Update(ctx context.Context, courseID int64, id string, p model.CardPatch) error {
	b := psql.Update("cards").Set("updated_at", sq.Expr("now()"))
	if p.Position != nil {
		b = b.Set("pos_x", p.Position.X).Set("pos_y", p.Position.Y)
	}
	if p.Label != nil {
		b = b.Set("label", *p.Label)
	}
	if p.Type != nil {
		b = b.Set("type", *p.Type)
	}
	if p.Content != nil {
		b = b.Set("content", []byte(p.Content))
	}
	sql, args, err := b.Where(sq.Eq{"course_id": courseID, "id": id}).ToSql()
	if err != nil {
		return err
	}
	return r.exec(ctx, sql, args...)
}

// SetParent rewires the tree pointer.
func (r *CardRepo) SetParent(ctx context.Context, courseID int64, id string, parentID *string) error {
	const q = `UPDATE cards SET parent_id=$3, updated_at=now() WHERE course_id=$1 AND id=$2`
	return r.exec(ctx, q, courseID, id, parentID)
}

// Delete removes a card.
func (r *CardRepo) Delete(ctx context.Context, courseID int64, id string) error {
	const q = `DELETE FROM cards WHERE course_id=$1 AND id=$2`
	return r.exec(ctx, q, courseID, id)
}

// Count returns the number of cards in a course.
func (r *CardRepo) Count(ctx context.Context, courseID int64) (int, error) {
	const q = `SELECT count(*) FROM cards WHERE course_id=$1`
	var n int
	if err := r.db.q(ctx).QueryRow(ctx, q, courseID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// LockCourse locks the course row FOR UPDATE. Call it inside a transaction.
func (r *CardRepo) LockCourse(ctx context.Context, courseID int64) error {
	const q = `SELECT id FROM courses WHERE id=$1 FOR UPDATE`
	var id int64
	if err := r.db.q(ctx).QueryRow(ctx, q, courseID).Scan(&id); err != nil {
		return mapError(err, errs.ErrCourseNotFound, nil)
	}
	return nil
}

func (r *CardRepo) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := r.db.q(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return mapError(err, errs.ErrCardNotFound, nil)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrCardNotFound
	}
	return nil
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// RelationRepo implements RelationRepository using PostgreSQL.
type RelationRepo struct{ db *DB }

// NewRelationRepo constructs a relation repository.
func NewRelationRepo(db *DB) *RelationRepo { return &RelationRepo{db: db} }

// Create records an edge; a duplicate (course, parent, child) yields ErrRelationExists.
func (r *RelationRepo) Create(ctx context.Context, rel *model.Relation) error {
	const q = `INSERT INTO relations (id, course_id, parent_id, child_id) VALUES ($1, $2, $3, $4)`
	_, err := r.db.q(ctx).Exec(ctx, q, rel.ID, rel.CourseID, rel.ParentID, rel.ChildID)
	return mapError(err, errs.ErrCardNotFound, errs.ErrRelationExists)
}

// Get loads a relation scoped by course.
func (r *RelationRepo) Get(ctx context.Context, courseID int64, id uuid.UUID) (*model.Relation, error) {
	const q = `SELECT id, course_id, parent_id, child_id FROM relations WHERE course_id=$1 AND id=$2`
	var rel model.Relation
	err := r.db.q(ctx).QueryRow(ctx, q, courseID, id).Scan(&rel.ID, &rel.CourseID, &rel.ParentID, &rel.ChildID)
	if err != nil {
		return nil, mapError(err, errs.ErrRelationNotFound, nil)
	}
	return &rel, nil
}

// Exists reports whether the edge is recorded.
func (r *RelationRepo) Exists(ctx context.Context, courseID int64, parentID, childID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM relations WHERE course_id=$1 AND parent_id=$2 AND child_id=$3)`
	var ok bool
	if err := r.db.q(ctx).QueryRow(ctx, q, courseID, parentID, childID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// ListByCourse returns every edge of the course.
func (r *RelationRepo) ListByCourse(ctx context.Context, courseID int64) ([]model.Relation, error) {
	const q = `SELECT id, course_id, parent_id, child_id FROM relations WHERE course_id=$1 ORDER BY parent_id, child_id`
	rows, err := r.db.q(ctx).Query(ctx, q, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Relation
	for rows.Next() {
		var rel model.Relation
		if err := rows.Scan(&rel.ID, &rel.CourseID, &rel.ParentID, &rel.ChildID); err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}

// Delete removes an edge by id.
func (r *RelationRepo) Delete(ctx context.Context, courseID int64, id uuid.UUID) error {
	const q = `DELETE FROM relations WHERE course_id=$1 AND id=$2`
	tag, err := r.db.q(ctx).Exec(ctx, q, courseID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrRelationNotFound
	}
	return nil
}

// DeleteByChild removes every edge pointing at the card.
func (r *RelationRepo) DeleteByChild(ctx context.Context, courseID int64, childID string) error {
	const q = `DELETE FROM relations WHERE course_id=$1 AND child_id=$2`
	_, err := r.db.q(ctx).Exec(ctx, q, courseID, childID)
	return err
}
