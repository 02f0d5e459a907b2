// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/and161185/course-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepository provides CRUD access for users (the user directory).
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads a user by the sign-in credential key.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// List returns users matching the filter.
	List(ctx context.Context, f model.UserFilter) ([]model.User, error)
	// ListByCourse returns users enrolled in the course.
	ListByCourse(ctx context.Context, courseID int64) ([]model.User, error)
	// Update overwrites profile fields (names, phone, role, branch, post).
	Update(ctx context.Context, u *model.User) error
	// Delete removes a user; the availability record cascades.
	Delete(ctx context.Context, id uuid.UUID) error
	// SetRefreshHash stores the hash of the current refresh token.
	SetRefreshHash(ctx context.Context, id uuid.UUID, hash string) error
	// SetCourse records the user's course enrollment.
	SetCourse(ctx context.Context, id uuid.UUID, courseID int64) error
	// TouchLastSeen records user activity.
	TouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error
}
