package service

import (
	"context"
	"errors"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/course-keeper/internal/availability"
	pkgcrypto "github.com/and161185/course-keeper/internal/crypto"
	"github.com/and161185/course-keeper/internal/errs"
	"github.com/and161185/course-keeper/internal/model"
	"github.com/and161185/course-keeper/internal/repository"
)

const minPasswordLen = 6

// NewUser is the input for creating an account.
type NewUser struct {
	Email    string
	Password string
	FullName string
	Phone    string
	Role     model.Role
	BranchID *int64
	PostID   *int64
	CourseID *int64
}

// UserPatch carries optional profile changes.
type UserPatch struct {
	Email    *string
	Phone    *string
	FullName *string
	Role     *model.Role
	BranchID *int64
	PostID   *int64
}

// UserService manages the user directory and course enrollment.
type UserService interface {
	Create(ctx context.Context, actor model.Principal, in NewUser) (*model.User, error)
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	// Me returns the caller with progress; the statistic is nil when the caller is not enrolled.
	Me(ctx context.Context, p model.Principal) (*model.User, *model.Statistic, error)
	List(ctx context.Context, f model.UserFilter) ([]model.User, error)
	Update(ctx context.Context, id uuid.UUID, p UserPatch) (*model.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// Enroll replaces the user's availability record with a fresh one for the course.
	Enroll(ctx context.Context, userID uuid.UUID, courseID int64) (*model.User, error)
}

type UserServiceImpl struct {
	users    repository.UserRepository
	branches repository.BranchRepository
	posts    repository.PostRepository
	courses  repository.CourseRepository
	hasher   pkgcrypto.PasswordHasher
	engine   *availability.Engine
	tx       repository.TxManager
}

// NewUserService constructs UserService.
func NewUserService(
	users repository.UserRepository,
	branches repository.BranchRepository,
	posts repository.PostRepository,
	courses repository.CourseRepository,
	hasher pkgcrypto.PasswordHasher,
	engine *availability.Engine,
	tx repository.TxManager,
) *UserServiceImpl {
	return &UserServiceImpl{
		users: users, branches: branches, posts: posts, courses: courses,
		hasher: hasher, engine: engine, tx: tx,
	}
}

// splitFullName parses "Last First [Patronymic...]".
func splitFullName(full string) (last, first, patronymic string, err error) {
	parts := strings.Fields(full)
	if len(parts) < 2 {
		return "", "", "", errs.ErrInvalidNameFormat.Withf("full name must contain at least last and first name")
	}
	return parts[0], parts[1], strings.Join(parts[2:], " "), nil
}

func normalizeEmail(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	at := strings.IndexByte(s, '@')
	if at < 1 || at == len(s)-1 {
		return "", errs.ErrInvalidInput.Withf("invalid email %q", s)
	}
	return s, nil
}

// Create registers a user. The branch defaults to the creator's branch; a
// system actor (nil id) leaves it empty. Only administrators may create
// privileged accounts.
func (s *UserServiceImpl) Create(ctx context.Context, actor model.Principal, in NewUser) (*model.User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if len(in.Password) < minPasswordLen {
		return nil, errs.ErrInvalidInput.Withf("password must be at least %d characters", minPasswordLen)
	}
	last, first, patronymic, err := splitFullName(in.FullName)
	if err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = model.RoleUser
	}
	if !role.Valid() {
		return nil, errs.ErrInvalidRole.Withf("invalid role %q", role)
	}
	if model.HasUniversalAccess(role) && actor.Role != model.RoleAdmin {
		return nil, errs.ErrInsufficientRole
	}

	branchID := in.BranchID
	if branchID == nil && actor.UserID != uuid.Nil {
		creator, err := s.users.GetByID(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		branchID = creator.BranchID
	}
	if err := s.checkRefs(ctx, branchID, in.PostID); err != nil {
		return nil, err
	}
	var course *model.Course
	if in.CourseID != nil {
		if course, err = s.courses.Get(ctx, *in.CourseID); err != nil {
			return nil, err
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	u := &model.User{
		ID:         id,
		Email:      email,
		Phone:      strings.TrimSpace(in.Phone),
		FirstName:  first,
		LastName:   last,
		Patronymic: patronymic,
		Role:       role,
		BranchID:   branchID,
		PostID:     in.PostID,
		PwdHash:    hash,
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}
		if course == nil {
			return nil
		}
		return s.engine.InitialAvailability(ctx, course, u)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserServiceImpl) checkRefs(ctx context.Context, branchID, postID *int64) error {
	if branchID != nil {
		if _, err := s.branches.Get(ctx, *branchID); err != nil {
			return err
		}
	}
	if postID != nil {
		if _, err := s.posts.Get(ctx, *postID); err != nil {
			return err
		}
	}
	return nil
}

// Get loads a user.
func (s *UserServiceImpl) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// Me loads the caller and their progress.
func (s *UserServiceImpl) Me(ctx context.Context, p model.Principal) (*model.User, *model.Statistic, error) {
	u, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, nil, err
	}
	if u.CourseID == nil {
		return u, nil, nil
	}
	st, err := s.engine.UserStatistic(ctx, u)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return u, nil, nil
		}
		return nil, nil, err
	}
	return u, &st, nil
}

// List returns users matching the filter.
func (s *UserServiceImpl) List(ctx context.Context, f model.UserFilter) ([]model.User, error) {
	return s.users.List(ctx, f)
}

// Update applies profile changes.
func (s *UserServiceImpl) Update(ctx context.Context, id uuid.UUID, p UserPatch) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Email != nil {
		if u.Email, err = normalizeEmail(*p.Email); err != nil {
			return nil, err
		}
	}
	if p.Phone != nil {
		u.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.FullName != nil {
		if u.LastName, u.FirstName, u.Patronymic, err = splitFullName(*p.FullName); err != nil {
			return nil, err
		}
	}
	if p.Role != nil {
		if !p.Role.Valid() {
			return nil, errs.ErrInvalidRole.Withf("invalid role %q", *p.Role)
		}
		u.Role = *p.Role
	}
	if p.BranchID != nil {
		u.BranchID = p.BranchID
	}
	if p.PostID != nil {
		u.PostID = p.PostID
	}
	if err := s.checkRefs(ctx, p.BranchID, p.PostID); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Delete removes a user together with their availability record.
func (s *UserServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return s.users.Delete(ctx, id)
}

// Enroll binds the user to a course and seeds the card tree.
func (s *UserServiceImpl) Enroll(ctx context.Context, userID uuid.UUID, courseID int64) (*model.User, error) {
	course, err := s.courses.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.engine.InitialAvailability(ctx, course, u); err != nil {
		return nil, err
	}
	return u, nil
}
