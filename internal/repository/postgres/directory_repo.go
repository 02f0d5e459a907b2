package postgres

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/and161185/course-keeper/internal/errs"
	"github.com/and161185/course-keeper/internal/model"
)

// NamedRepo stores id/name reference rows: branches, posts and courses.
type NamedRepo[T any] struct {
	db       *DB
	table    string
	notFound error
	exists   error
}

// NewBranchRepo constructs the branch repository.
func NewBranchRepo(db *DB) *NamedRepo[model.Branch] {
	return &NamedRepo[model.Branch]{db: db, table: "branches", notFound: errs.ErrBranchNotFound, exists: errs.ErrBranchExists}
}

// NewPostRepo constructs the post repository.
func NewPostRepo(db *DB) *NamedRepo[model.Post] {
	return &NamedRepo[model.Post]{db: db, table: "posts", notFound: errs.ErrPostNotFound, exists: errs.ErrPostExists}
}

// NewCourseRepo constructs the course repository.
func NewCourseRepo(db *DB) *NamedRepo[model.Course] {
	return &NamedRepo[model.Course]{db: db, table: "courses", notFound: errs.ErrCourseNotFound, exists: errs.ErrCourseExists}
}

// List returns all rows ordered by name.
func (r *NamedRepo[T]) List(ctx context.Context) ([]T, error) {
	sql, args, err := psql.Select("id", "name").From(r.table).OrderBy("name").ToSql()
	if err != nil {
		return nil, err
	}
	var out []T
	if err := pgxscan.Select(ctx, r.db.q(ctx), &out, sql, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// Get loads a row by id.
func (r *NamedRepo[T]) Get(ctx context.Context, id int64) (*T, error) {
	sql, args, err := psql.Select("id", "name").From(r.table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	var v T
	if err := pgxscan.Get(ctx, r.db.q(ctx), &v, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, r.notFound
		}
		return nil, mapError(err, r.notFound, r.exists)
	}
	return &v, nil
}

// Create inserts a row; a taken name yields the entity's exists error.
func (r *NamedRepo[T]) Create(ctx context.Context, name string) (*T, error) {
	sql, args, err := psql.Insert(r.table).Columns("name").Values(name).Suffix("RETURNING id, name").ToSql()
	if err != nil {
		return nil, err
	}
	var v T
	if err := pgxscan.Get(ctx, r.db.q(ctx), &v, sql, args...); err != nil {
		return nil, mapError(err, r.notFound, r.exists)
	}
	return &v, nil
}

// Rename changes the name of an existing row.
func (r *NamedRepo[T]) Rename(ctx context.Context, id int64, name string) error {
	sql, args, err := psql.Update(r.table).Set("name", name).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	return r.exec(ctx, sql, args...)
}

// Delete removes a row; dependants follow the schema's ON DELETE rules.
func (r *NamedRepo[T]) Delete(ctx context.Context, id int64) error {
	sql, args, err := psql.Delete(r.table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	return r.exec(ctx, sql, args...)
}

func (r *NamedRepo[T]) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := r.db.q(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return mapError(err, r.notFound, r.exists)
	}
	if tag.RowsAffected() == 0 {
		return r.notFound
	}
	return nil
}
