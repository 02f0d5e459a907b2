package repository

import (
	"context"

	"github.com/and161185/course-keeper/internal/model"
)

// NamedRepository stores id/name reference rows. Names are unique per table.
type NamedRepository[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id int64) (*T, error)
	Create(ctx context.Context, name string) (*T, error)
	Rename(ctx context.Context, id int64, name string) error
	Delete(ctx context.Context, id int64) error
}

// BranchRepository stores branches.
type BranchRepository = NamedRepository[model.Branch]

// PostRepository stores job titles.
type PostRepository = NamedRepository[model.Post]

// CourseRepository stores courses. Deleting a course cascades to its cards,
// relations and availability records.
type CourseRepository = NamedRepository[model.Course]
