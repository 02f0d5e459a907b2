package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/course-keeper/internal/errs"
	"github.com/and161185/course-keeper/internal/model"
)

func TestNamedRepo_List(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewBranchRepo(db)

	mock.ExpectQuery(`SELECT id, name FROM branches ORDER BY name`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "Moscow").AddRow(int64(2), "Tver"))
	out, err := r.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, []model.Branch{{ID: 1, Name: "Moscow"}, {ID: 2, Name: "Tver"}}, out)
}

func TestNamedRepo_Create(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewCourseRepo(db)
	ctx := context.Background()

	mock.ExpectQuery(`INSERT INTO courses \(name\) VALUES \(\$1\) RETURNING id, name`).
		WithArgs("Onboarding").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).AddRow(int64(5), "Onboarding"))
	c, err := r.Create(ctx, "Onboarding")
	require.NoError(t, err)
	require.Equal(t, model.Course{ID: 5, Name: "Onboarding"}, *c)

	mock.ExpectQuery(`INSERT INTO courses`).
		WithArgs("Onboarding").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	_, err = r.Create(ctx, "Onboarding")
	require.ErrorIs(t, err, errs.ErrCourseExists)
}

func TestNamedRepo_GetNotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPostRepo(db)

	mock.ExpectQuery(`SELECT id, name FROM posts WHERE id = \$1`).
		WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}))
	_, err := r.Get(context.Background(), 9)
	require.ErrorIs(t, err, errs.ErrPostNotFound)
}

func TestNamedRepo_RenameAndDelete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewBranchRepo(db)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE branches SET name = \$1 WHERE id = \$2`).
		WithArgs("Kazan", int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.Rename(ctx, 1, "Kazan"))

	mock.ExpectExec(`UPDATE branches SET name = \$1 WHERE id = \$2`).
		WithArgs("Tver", int64(1)).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Rename(ctx, 1, "Tver"), errs.ErrBranchExists)

	mock.ExpectExec(`DELETE FROM branches WHERE id = \$1`).
		WithArgs(int64(8)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, r.Delete(ctx, 8), errs.ErrBranchNotFound)
}
