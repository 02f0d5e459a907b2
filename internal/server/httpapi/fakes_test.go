package httpapi

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/course-keeper/internal/errs"
	"github.com/and161185/course-keeper/internal/model"
	"github.com/and161185/course-keeper/internal/service"
)

// fakeAuth accepts tokens of the form "tok-<user id>".
type fakeAuth struct {
	mu      sync.Mutex
	roles   map[uuid.UUID]model.Role
	signErr error
	touched int
	lastIP  string
}

func (f *fakeAuth) token(id uuid.UUID) string { return "tok-" + id.String() }

func (f *fakeAuth) SignIn(_ context.Context, email, password, ip string) (model.Tokens, model.User, error) {
	f.mu.Lock()
	f.lastIP = ip
	f.mu.Unlock()
	if f.signErr != nil {
		return model.Tokens{}, model.User{}, f.signErr
	}
	if password != "secret1" {
		return model.Tokens{}, model.User{}, errs.ErrInvalidCredentials
	}
	u := model.User{ID: uuid.Must(uuid.NewV4()), Email: email, Role: model.RoleUser}
	return model.Tokens{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour)}, u, nil
}

func (f *fakeAuth) Refresh(_ context.Context, refreshToken string) (model.Tokens, error) {
	if refreshToken != "r" {
		return model.Tokens{}, errs.ErrInvalidToken
	}
	return model.Tokens{AccessToken: "a2", RefreshToken: "r2"}, nil
}

func (f *fakeAuth) Authenticate(_ context.Context, tok string) (model.Principal, error) {
	raw, ok := strings.CutPrefix(tok, "tok-")
	if !ok {
		return model.Principal{}, errs.ErrInvalidToken
	}
	id, err := uuid.FromString(raw)
	if err != nil {
		return model.Principal{}, errs.ErrInvalidToken
	}
	return model.Principal{UserID: id, Role: f.roles[id]}, nil
}

func (f *fakeAuth) Touch(context.Context, uuid.UUID) {
	f.mu.Lock()
	f.touched++
	f.mu.Unlock()
}

type fakeUserService struct {
	byID    map[uuid.UUID]*model.User
	created []service.NewUser
	filters []model.UserFilter
}

var _ service.UserService = (*fakeUserService)(nil)

func (f *fakeUserService) Create(_ context.Context, actor model.Principal, in service.NewUser) (*model.User, error) {
	if model.HasUniversalAccess(in.Role) && actor.Role != model.RoleAdmin {
		return nil, errs.ErrInsufficientRole
	}
	f.created = append(f.created, in)
	u := &model.User{ID: uuid.Must(uuid.NewV4()), Email: in.Email, Role: in.Role}
	return u, nil
}

func (f *fakeUserService) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUserService) Me(ctx context.Context, p model.Principal) (*model.User, *model.Statistic, error) {
	u, err := f.Get(ctx, p.UserID)
	if err != nil {
		return nil, nil, err
	}
	if u.CourseID == nil {
		return u, nil, nil
	}
	return u, &model.Statistic{AllCards: 4, CardsPassed: 1, ProgressPercent: 4}, nil
}

func (f *fakeUserService) List(_ context.Context, flt model.UserFilter) ([]model.User, error) {
	f.filters = append(f.filters, flt)
	out := make([]model.User, 0, len(f.byID))
	for _, u := range f.byID {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeUserService) Update(ctx context.Context, id uuid.UUID, p service.UserPatch) (*model.User, error) {
	u, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	return u, nil
}

func (f *fakeUserService) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.byID[id]; !ok {
		return errs.ErrUserNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeUserService) Enroll(ctx context.Context, userID uuid.UUID, courseID int64) (*model.User, error) {
	u, err := f.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.CourseID = &courseID
	return u, nil
}

type fakeDirectory[T any] struct {
	items map[int64]T
	mk    func(id int64, name string) T
	nf    error
}

func (f *fakeDirectory[T]) List(context.Context) ([]T, error) {
	out := make([]T, 0, len(f.items))
	for i := int64(1); i <= int64(len(f.items))+10; i++ {
		if v, ok := f.items[i]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeDirectory[T]) Get(_ context.Context, id int64) (*T, error) {
	v, ok := f.items[id]
	if !ok {
		return nil, f.nf
	}
	return &v, nil
}

func (f *fakeDirectory[T]) Create(_ context.Context, name string) (*T, error) {
	if name == "" {
		return nil, errs.ErrInvalidInput
	}
	id := int64(len(f.items) + 1)
	v := f.mk(id, name)
	f.items[id] = v
	return &v, nil
}

func (f *fakeDirectory[T]) Rename(_ context.Context, id int64, name string) (*T, error) {
	if _, ok := f.items[id]; !ok {
		return nil, f.nf
	}
	v := f.mk(id, name)
	f.items[id] = v
	return &v, nil
}

func (f *fakeDirectory[T]) Delete(_ context.Context, id int64) error {
	if _, ok := f.items[id]; !ok {
		return f.nf
	}
	delete(f.items, id)
	return nil
}

type fakeCourses struct {
	*fakeDirectory[model.Course]
}

func (f fakeCourses) Visible(ctx context.Context, viewer *model.User) ([]model.Course, error) {
	if model.HasUniversalAccess(viewer.Role) {
		return f.List(ctx)
	}
	if viewer.CourseID == nil {
		return []model.Course{}, nil
	}
	c, err := f.Get(ctx, *viewer.CourseID)
	if err != nil {
		return nil, err
	}
	return []model.Course{*c}, nil
}

func (f fakeCourses) Access(ctx context.Context, viewer *model.User, courseID int64) (*model.Course, error) {
	if !model.HasUniversalAccess(viewer.Role) && (viewer.CourseID == nil || *viewer.CourseID != courseID) {
		return nil, errs.ErrCourseNotFound
	}
	return f.Get(ctx, courseID)
}

type fakeCardService struct {
	views     []model.CardView
	relations []model.Relation
	statusErr error
	created   []service.NewCard
	lastMove  [2]model.CardStatus
}

var _ service.CardService = (*fakeCardService)(nil)

func (f *fakeCardService) List(context.Context, *model.User, int64) ([]model.CardView, error) {
	return f.views, nil
}

func (f *fakeCardService) Get(_ context.Context, _ *model.User, _ int64, id string) (*model.CardView, error) {
	for _, v := range f.views {
		if v.ID == id {
			return &v, nil
		}
	}
	return nil, errs.ErrCardNotFound
}

func (f *fakeCardService) Create(_ context.Context, _ *model.User, courseID int64, in service.NewCard) (*model.CardView, error) {
	f.created = append(f.created, in)
	return &model.CardView{
		Card:   model.Card{ID: "NEWCARD00001", CourseID: courseID, Label: in.Label, Type: in.Type, Content: in.Content},
		Status: model.StatusOpened,
	}, nil
}

func (f *fakeCardService) Update(ctx context.Context, viewer *model.User, courseID int64, id string, p model.CardPatch) (*model.CardView, error) {
	v, err := f.Get(ctx, viewer, courseID, id)
	if err != nil {
		return nil, err
	}
	if p.Label != nil {
		v.Label = *p.Label
	}
	return v, nil
}

func (f *fakeCardService) Delete(_ context.Context, _ int64, id string) error {
	if id == "PARENT000001" {
		return errs.ErrCardHasChildren
	}
	return nil
}

func (f *fakeCardService) ChangeStatus(
	ctx context.Context, viewer *model.User, courseID int64, id string, from, to model.CardStatus,
) (*model.CardView, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	f.lastMove = [2]model.CardStatus{from, to}
	v, err := f.Get(ctx, viewer, courseID, id)
	if err != nil {
		return nil, err
	}
	v.Status = to
	return v, nil
}

func (f *fakeCardService) Relations(context.Context, int64) ([]model.Relation, error) {
	return f.relations, nil
}

func (f *fakeCardService) Relation(_ context.Context, _ int64, id uuid.UUID) (*model.Relation, error) {
	for _, r := range f.relations {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, errs.ErrRelationNotFound
}

func (f *fakeCardService) CreateRelation(_ context.Context, courseID int64, in service.RelationInput) (*model.Relation, error) {
	if in.SourceID == "missing" {
		return nil, errs.ErrSourceCardNotFound
	}
	if in.TargetID == "missing" {
		return nil, errs.ErrTargetCardNotFound
	}
	r := model.Relation{ID: uuid.Must(uuid.NewV4()), CourseID: courseID, ParentID: in.SourceID, ChildID: in.TargetID}
	if in.ID != nil {
		r.ID = *in.ID
	}
	return &r, nil
}

func (f *fakeCardService) DeleteRelation(ctx context.Context, courseID int64, id uuid.UUID) error {
	_, err := f.Relation(ctx, courseID, id)
	return err
}

func (f *fakeCardService) Progress(context.Context, *model.User) (model.Statistic, error) {
	return model.Statistic{AllCards: 2, CardsPassed: 1, ProgressPercent: 2}, nil
}
