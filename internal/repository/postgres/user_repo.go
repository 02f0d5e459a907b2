package postgres

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/gofrs/uuid/v5"

	"github.com/and161185/course-keeper/internal/errs"
	"github.com/and161185/course-keeper/internal/model"
)

var userColumns = []string{
	"id", "email", "phone", "first_name", "last_name", "patronymic", "role",
	"branch_id", "post_id", "course_id", "pwd_hash", "refresh_hash", "created_at", "last_seen_at",
}

type userRow struct {
	ID          uuid.UUID  `db:"id"`
	Email       string     `db:"email"`
	Phone       string     `db:"phone"`
	FirstName   string     `db:"first_name"`
	LastName    string     `db:"last_name"`
	Patronymic  string     `db:"patronymic"`
	Role        string     `db:"role"`
	BranchID    *int64     `db:"branch_id"`
	PostID      *int64     `db:"post_id"`
	CourseID    *int64     `db:"course_id"`
	PwdHash     string     `db:"pwd_hash"`
	RefreshHash string     `db:"refresh_hash"`
	CreatedAt   time.Time  `db:"created_at"`
	LastSeenAt  *time.Time `db:"last_seen_at"`
}

func (r userRow) toModel() model.User {
	return model.User{
		ID:          r.ID,
		Email:       r.Email,
		Phone:       r.Phone,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Patronymic:  r.Patronymic,
		Role:        model.Role(r.Role),
		BranchID:    r.BranchID,
		PostID:      r.PostID,
		CourseID:    r.CourseID,
		PwdHash:     r.PwdHash,
		RefreshHash: r.RefreshHash,
		CreatedAt:   r.CreatedAt,
		LastSeenAt:  r.LastSeenAt,
	}
}

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (id, email, phone, first_name, last_name, patronymic, role, branch_id, post_id, pwd_hash)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.q(ctx).Exec(ctx, q,
		u.ID, u.Email, u.Phone, u.FirstName, u.LastName, u.Patronymic, string(u.Role), u.BranchID, u.PostID, u.PwdHash)
	return mapError(err, errs.ErrNotFound, errs.ErrUserExists)
}

var selectUsers = "SELECT " + strings.Join(userColumns, ", ") + " FROM users"

func (r *UserRepo) getOne(ctx context.Context, cond string, arg any) (*model.User, error) {
	var row userRow
	if err := pgxscan.Get(ctx, r.db.q(ctx), &row, selectUsers+" WHERE "+cond, arg); err != nil {
		if pgxscan.NotFound(err) {
			return nil, errs.ErrUserNotFound
		}
		return nil, mapError(err, errs.ErrUserNotFound, nil)
	}
	u := row.toModel()
	return &u, nil
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.getOne(ctx, "id=$1", id)
}

// GetByEmail selects a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, "email=$1", email)
}

// List returns users matching the filter ordered by name.
func (r *UserRepo) List(ctx context.Context, f model.UserFilter) ([]model.User, error) {
	b := psql.Select(userColumns...).From("users").OrderBy("last_name", "first_name")
	if len(f.BranchIDs) > 0 {
		b = b.Where(sq.Eq{"branch_id": f.BranchIDs})
	}
	if len(f.PostIDs) > 0 {
		b = b.Where(sq.Eq{"post_id": f.PostIDs})
	}
	for _, seg := range strings.Fields(f.Name) {
		b = b.Where("concat_ws(' ', last_name, first_name, patronymic) ILIKE ?", "%"+seg+"%")
	}
	return r.list(ctx, b)
}

// ListByCourse returns users enrolled in the course.
func (r *UserRepo) ListByCourse(ctx context.Context, courseID int64) ([]model.User, error) {
	return r.list(ctx, psql.Select(userColumns...).From("users").Where(sq.Eq{"course_id": courseID}).OrderBy("created_at"))
}

func (r *UserRepo) list(ctx context.Context, b sq.SelectBuilder) ([]model.User, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	var rows []userRow
	if err := pgxscan.Select(ctx, r.db.q(ctx), &rows, sql, args...); err != nil {
		return nil, err
	}
	out := make([]model.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

// Update overwrites profile fields.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	const q = `
UPDATE users
SET email=$2, phone=$3, first_name=$4, last_name=$5, patronymic=$6, role=$7, branch_id=$8, post_id=$9
WHERE id=$1`
	tag, err := r.db.q(ctx).Exec(ctx, q,
		u.ID, u.Email, u.Phone, u.FirstName, u.LastName, u.Patronymic, string(u.Role), u.BranchID, u.PostID)
	if err != nil {
		return mapError(err, errs.ErrNotFound, errs.ErrUserExists)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrUserNotFound
	}
	return nil
}

// Delete removes a user.
func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `DELETE FROM users WHERE id=$1`, id)
}

// SetRefreshHash stores the current refresh token hash.
func (r *UserRepo) SetRefreshHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.exec(ctx, `UPDATE users SET refresh_hash=$2 WHERE id=$1`, id, hash)
}

// SetCourse records the user's enrollment.
func (r *UserRepo) SetCourse(ctx context.Context, id uuid.UUID, courseID int64) error {
	const q = `UPDATE users SET course_id=$2 WHERE id=$1`
	tag, err := r.db.q(ctx).Exec(ctx, q, id, courseID)
	if err != nil {
		return mapError(err, errs.ErrCourseNotFound, nil)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrUserNotFound
	}
	return nil
}

// TouchLastSeen records activity time.
func (r *UserRepo) TouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.exec(ctx, `UPDATE users SET last_seen_at=$2 WHERE id=$1`, id, at)
}

func (r *UserRepo) exec(ctx context.Context, q string, args ...any) error {
	tag, err := r.db.q(ctx).Exec(ctx, q, args...)
	if err != nil {
		return mapError(err, errs.ErrUserNotFound, nil)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrUserNotFound
	}
	return nil
}
