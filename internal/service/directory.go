package service

import (
	"context"
	"strings"

	"github.com/and161185/course-keeper/internal/errs"
	"github.com/and161185/course-keeper/internal/model"
	"github.com/and161185/course-keeper/internal/repository"
)

const maxNameLen = 200

// Directory manages an id/name reference table (branches, posts, courses).
type Directory[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id int64) (*T, error)
	Create(ctx context.Context, name string) (*T, error)
	Rename(ctx context.Context, id int64, name string) (*T, error)
	Delete(ctx context.Context, id int64) error
}

type DirectoryImpl[T any] struct {
	repo repository.NamedRepository[T]
}

// NewDirectory constructs a Directory over the repository.
func NewDirectory[T any](repo repository.NamedRepository[T]) *DirectoryImpl[T] {
	return &DirectoryImpl[T]{repo: repo}
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLen {
		return "", errs.ErrInvalidInput.Withf("name must be 1..%d characters", maxNameLen)
	}
	return name, nil
}

func (d *DirectoryImpl[T]) List(ctx context.Context) ([]T, error) { return d.repo.List(ctx) }

func (d *DirectoryImpl[T]) Get(ctx context.Context, id int64) (*T, error) { return d.repo.Get(ctx, id) }

// Create inserts a row with a unique name.
func (d *DirectoryImpl[T]) Create(ctx context.Context, name string) (*T, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	return d.repo.Create(ctx, name)
}

// Rename changes the name and returns the updated row.
func (d *DirectoryImpl[T]) Rename(ctx context.Context, id int64, name string) (*T, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if err := d.repo.Rename(ctx, id, name); err != nil {
		return nil, err
	}
	return d.repo.Get(ctx, id)
}

func (d *DirectoryImpl[T]) Delete(ctx context.Context, id int64) error { return d.repo.Delete(ctx, id) }

// CourseService adds per-viewer visibility to the course directory.
type CourseService interface {
	Directory[model.Course]
	// Visible lists courses the viewer may open.
	Visible(ctx context.Context, viewer *model.User) ([]model.Course, error)
	// Access returns the course when the viewer may open it; otherwise ErrCourseNotFound.
	Access(ctx context.Context, viewer *model.User, courseID int64) (*model.Course, error)
}

type CourseServiceImpl struct {
	*DirectoryImpl[model.Course]
}

// NewCourseService constructs CourseService.
func NewCourseService(repo repository.CourseRepository) *CourseServiceImpl {
	return &CourseServiceImpl{DirectoryImpl: NewDirectory[model.Course](repo)}
}

// Visible returns every course to privileged viewers and the enrolled course to others.
func (s *CourseServiceImpl) Visible(ctx context.Context, viewer *model.User) ([]model.Course, error) {
	if model.HasUniversalAccess(viewer.Role) {
		return s.List(ctx)
	}
	if viewer.CourseID == nil {
		return []model.Course{}, nil
	}
	c, err := s.Get(ctx, *viewer.CourseID)
	if err != nil {
		return nil, err
	}
	return []model.Course{*c}, nil
}

// Access hides courses the viewer is not enrolled in.
func (s *CourseServiceImpl) Access(ctx context.Context, viewer *model.User, courseID int64) (*model.Course, error) {
	if !model.HasUniversalAccess(viewer.Role) && (viewer.CourseID == nil || *viewer.CourseID != courseID) {
		return nil, errs.ErrCourseNotFound
	}
	return s.Get(ctx, courseID)
}
