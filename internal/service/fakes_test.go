package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/course-keeper/internal/availability"
	"github.com/and161185/course-keeper/internal/errs"
	"github.com/and161185/course-keeper/internal/limiter"
	"github.com/and161185/course-keeper/internal/model"
	"github.com/and161185/course-keeper/internal/repository"
)

type fakeUsers struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*model.User

	createErr  error
	getErr     error
	touchCalls int
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func newFakeUsers(us ...*model.User) *fakeUsers {
	f := &fakeUsers{byID: map[uuid.UUID]*model.User{}}
	for _, u := range us {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, x := range f.byID {
		if x.Email == u.Email {
			return errs.ErrUserExists
		}
	}
	cpy := *u
	f.byID[u.ID] = &cpy
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrUserNotFound
}

func (f *fakeUsers) List(context.Context, model.UserFilter) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0, len(f.byID))
	for _, u := range f.byID {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	return out, nil
}

func (f *fakeUsers) ListByCourse(_ context.Context, courseID int64) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.User
	for _, u := range f.byID {
		if u.CourseID != nil && *u.CourseID == courseID {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUsers) Update(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[u.ID]; !ok {
		return errs.ErrUserNotFound
	}
	cpy := *u
	f.byID[u.ID] = &cpy
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return errs.ErrUserNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeUsers) SetRefreshHash(_ context.Context, id uuid.UUID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return errs.ErrUserNotFound
	}
	u.RefreshHash = hash
	return nil
}

func (f *fakeUsers) SetCourse(_ context.Context, id uuid.UUID, courseID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return errs.ErrUserNotFound
	}
	u.CourseID = &courseID
	return nil
}

func (f *fakeUsers) TouchLastSeen(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touchCalls++
	if u, ok := f.byID[id]; ok {
		u.LastSeenAt = &at
	}
	return nil
}

// fakeNamed backs branches, posts and courses.
type fakeNamed[T any] struct {
	rows     map[int64]string
	next     int64
	build    func(id int64, name string) T
	notFound error
}

func newFakeCourses(names ...string) *fakeNamed[model.Course] {
	f := &fakeNamed[model.Course]{
		rows:     map[int64]string{},
		build:    func(id int64, name string) model.Course { return model.Course{ID: id, Name: name} },
		notFound: errs.ErrCourseNotFound,
	}
	for _, n := range names {
		f.next++
		f.rows[f.next] = n
	}
	return f
}

func newFakeBranches(names ...string) *fakeNamed[model.Branch] {
	f := &fakeNamed[model.Branch]{
		rows:     map[int64]string{},
		build:    func(id int64, name string) model.Branch { return model.Branch{ID: id, Name: name} },
		notFound: errs.ErrBranchNotFound,
	}
	for _, n := range names {
		f.next++
		f.rows[f.next] = n
	}
	return f
}

func newFakePosts(names ...string) *fakeNamed[model.Post] {
	f := &fakeNamed[model.Post]{
		rows:     map[int64]string{},
		build:    func(id int64, name string) model.Post { return model.Post{ID: id, Name: name} },
		notFound: errs.ErrPostNotFound,
	}
	for _, n := range names {
		f.next++
		f.rows[f.next] = n
	}
	return f
}

func (f *fakeNamed[T]) List(context.Context) ([]T, error) {
	ids := make([]int64, 0, len(f.rows))
	for id := range f.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.build(id, f.rows[id]))
	}
	return out, nil
}

func (f *fakeNamed[T]) Get(_ context.Context, id int64) (*T, error) {
	name, ok := f.rows[id]
	if !ok {
		return nil, f.notFound
	}
	v := f.build(id, name)
	return &v, nil
}

func (f *fakeNamed[T]) Create(_ context.Context, name string) (*T, error) {
	for _, n := range f.rows {
		if n == name {
			return nil, errs.ErrAlreadyExists
		}
	}
	f.next++
	f.rows[f.next] = name
	v := f.build(f.next, name)
	return &v, nil
}

func (f *fakeNamed[T]) Rename(_ context.Context, id int64, name string) error {
	if _, ok := f.rows[id]; !ok {
		return f.notFound
	}
	f.rows[id] = name
	return nil
}

func (f *fakeNamed[T]) Delete(_ context.Context, id int64) error {
	if _, ok := f.rows[id]; !ok {
		return f.notFound
	}
	delete(f.rows, id)
	return nil
}

type fakeCards struct {
	mu      sync.Mutex
	byID    map[string]*model.Card
	seq     int
	locked  []int64
	lockErr error
}

var _ repository.CardRepository = (*fakeCards)(nil)

func newFakeCards() *fakeCards { return &fakeCards{byID: map[string]*model.Card{}} }

func (f *fakeCards) Create(_ context.Context, c *model.Card) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[c.ID]; ok {
		return errs.ErrAlreadyExists
	}
	f.seq++
	c.CreatedAt = time.Unix(int64(f.seq), 0)
	c.UpdatedAt = c.CreatedAt
	cpy := *c
	f.byID[c.ID] = &cpy
	return nil
}

func (f *fakeCards) Get(_ context.Context, courseID int64, id string) (*model.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || c.CourseID != courseID {
		return nil, errs.ErrCardNotFound
	}
	cpy := *c
	return &cpy, nil
}

func (f *fakeCards) sorted(keep func(*model.Card) bool) []model.Card {
	var out []model.Card
	for _, c := range f.byID {
		if keep(c) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (f *fakeCards) ListByCourse(_ context.Context, courseID int64) ([]model.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(func(c *model.Card) bool { return c.CourseID == courseID }), nil
}

func (f *fakeCards) ListChildren(_ context.Context, courseID int64, id string) ([]model.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(func(c *model.Card) bool {
		return c.CourseID == courseID && c.ParentID != nil && *c.ParentID == id
	}), nil
}

func (f *fakeCards) Update(_ context.Context, courseID int64, id string, p model.CardPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || c.CourseID != courseID {
		return errs.ErrCardNotFound
	}
	if p.Position != nil {
		c.Position = *p.Position
	}
	if p.Label != nil {
		c.Label = *p.Label
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.Content != nil {
		c.Content = p.Content
	}
	return nil
}

func (f *fakeCards) SetParent(_ context.Context, courseID int64, id string, parentID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || c.CourseID != courseID {
		return errs.ErrCardNotFound
	}
	c.ParentID = parentID
	return nil
}

func (f *fakeCards) Delete(_ context.Context, courseID int64, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || c.CourseID != courseID {
		return errs.ErrCardNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeCards) Count(_ context.Context, courseID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.byID {
		if c.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

func (f *fakeCards) LockCourse(_ context.Context, courseID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lockErr != nil {
		return f.lockErr
	}
	f.locked = append(f.locked, courseID)
	return nil
}

type fakeRelations struct {
	byID map[uuid.UUID]model.Relation
}

var _ repository.RelationRepository = (*fakeRelations)(nil)

func newFakeRelations() *fakeRelations { return &fakeRelations{byID: map[uuid.UUID]model.Relation{}} }

func (f *fakeRelations) Create(_ context.Context, r *model.Relation) error {
	for _, x := range f.byID {
		if x.CourseID == r.CourseID && x.ParentID == r.ParentID && x.ChildID == r.ChildID {
			return errs.ErrRelationExists
		}
	}
	f.byID[r.ID] = *r
	return nil
}

func (f *fakeRelations) Get(_ context.Context, courseID int64, id uuid.UUID) (*model.Relation, error) {
	r, ok := f.byID[id]
	if !ok || r.CourseID != courseID {
		return nil, errs.ErrRelationNotFound
	}
	return &r, nil
}

func (f *fakeRelations) Exists(_ context.Context, courseID int64, parentID, childID string) (bool, error) {
	for _, x := range f.byID {
		if x.CourseID == courseID && x.ParentID == parentID && x.ChildID == childID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRelations) ListByCourse(_ context.Context, courseID int64) ([]model.Relation, error) {
	var out []model.Relation
	for _, x := range f.byID {
		if x.CourseID == courseID {
			out = append(out, x)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChildID < out[j].ChildID })
	return out, nil
}

func (f *fakeRelations) Delete(_ context.Context, courseID int64, id uuid.UUID) error {
	r, ok := f.byID[id]
	if !ok || r.CourseID != courseID {
		return errs.ErrRelationNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeRelations) DeleteByChild(_ context.Context, courseID int64, childID string) error {
	for id, x := range f.byID {
		if x.CourseID == courseID && x.ChildID == childID {
			delete(f.byID, id)
		}
	}
	return nil
}

type fakeRecords struct {
	mu     sync.Mutex
	byUser map[uuid.UUID]*model.Availability
	next   int64

	addErr error
}

var _ repository.AvailabilityRepository = (*fakeRecords)(nil)

func newFakeRecords() *fakeRecords { return &fakeRecords{byUser: map[uuid.UUID]*model.Availability{}} }

func (f *fakeRecords) find(id int64) *model.Availability {
	for _, r := range f.byUser {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (f *fakeRecords) Create(_ context.Context, userID uuid.UUID, courseID int64) (*model.Availability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	r := &model.Availability{ID: f.next, UserID: userID, CourseID: courseID, Statuses: map[string]model.CardStatus{}}
	f.byUser[userID] = r
	return copyRecord(r), nil
}

func (f *fakeRecords) GetByUser(_ context.Context, userID uuid.UUID) (*model.Availability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byUser[userID]
	if !ok {
		return nil, errs.ErrRecordNotFound
	}
	return copyRecord(r), nil
}

func (f *fakeRecords) LockByUser(ctx context.Context, userID uuid.UUID) (*model.Availability, error) {
	return f.GetByUser(ctx, userID)
}

func (f *fakeRecords) AddCard(_ context.Context, id int64, cardID string, status model.CardStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	r := f.find(id)
	if r == nil {
		return errs.ErrRecordNotFound
	}
	if _, ok := r.Statuses[cardID]; !ok {
		r.Statuses[cardID] = status
	}
	return nil
}

func (f *fakeRecords) PushStatus(_ context.Context, id int64, cardID string, status model.CardStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.find(id)
	if r == nil {
		return errs.ErrRecordNotFound
	}
	r.Statuses[cardID] = status
	return nil
}

func (f *fakeRecords) RemoveStatus(_ context.Context, id int64, cardID string, status model.CardStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.find(id)
	if r == nil {
		return errs.ErrRecordNotFound
	}
	if r.Statuses[cardID] != status {
		return errs.ErrNotInStatusGroup
	}
	delete(r.Statuses, cardID)
	return nil
}

func (f *fakeRecords) BumpVersion(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r := f.find(id); r != nil {
		r.Version++
	}
	return nil
}

func (f *fakeRecords) status(userID uuid.UUID, cardID string) model.CardStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.byUser[userID]; ok {
		return r.Statuses[cardID]
	}
	return ""
}

func copyRecord(r *model.Availability) *model.Availability {
	c := *r
	c.Statuses = make(map[string]model.CardStatus, len(r.Statuses))
	for k, v := range r.Statuses {
		c.Statuses[k] = v
	}
	return &c
}

type passTx struct {
	calls int
	err   error
}

func (p *passTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	p.calls++
	if p.err != nil {
		return p.err
	}
	return fn(ctx)
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, time.Minute, l.allowErr
}

func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return nil
}

func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, nil
}

// plainHasher stores passwords with a prefix so tests stay fast.
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "plain:" + p, nil }

func (plainHasher) Verify(p, encoded string) (bool, error) { return encoded == "plain:"+p, nil }

// world wires services over in-memory fakes.
type world struct {
	users     *fakeUsers
	branches  *fakeNamed[model.Branch]
	posts     *fakeNamed[model.Post]
	courses   *fakeNamed[model.Course]
	cards     *fakeCards
	relations *fakeRelations
	records   *fakeRecords
	tx        *passTx
	engine    *availability.Engine
}

func newWorld(us ...*model.User) *world {
	w := &world{
		users:     newFakeUsers(us...),
		branches:  newFakeBranches("North"),
		posts:     newFakePosts("Cashier"),
		courses:   newFakeCourses("Onboarding"),
		cards:     newFakeCards(),
		relations: newFakeRelations(),
		records:   newFakeRecords(),
		tx:        &passTx{},
	}
	w.engine = availability.New(w.users, w.cards, w.records, w.tx, zap.NewNop(), availability.Options{InvertedProgress: true})
	return w
}

func (w *world) cardService() *CardServiceImpl {
	return NewCardService(w.cards, w.relations, w.tx, w.engine, zap.NewNop())
}

func (w *world) userService() *UserServiceImpl {
	return NewUserService(w.users, w.branches, w.posts, w.courses, plainHasher{}, w.engine, w.tx)
}

func newUser(role model.Role, email string) *model.User {
	return &model.User{
		ID:        uuid.Must(uuid.NewV4()),
		Email:     email,
		FirstName: "Ann",
		LastName:  "Lee",
		Role:      role,
		PwdHash:   "plain:secret1",
	}
}

func ptr[T any](v T) *T { return &v }
