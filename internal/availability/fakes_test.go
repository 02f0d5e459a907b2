package availability

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/and161185/course-keeper/internal/errs"
	"github.com/and161185/course-keeper/internal/model"
	"github.com/and161185/course-keeper/internal/repository"
	"github.com/gofrs/uuid/v5"
)

type fakeUsers struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*model.User
	listErr error
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
	f.byID[u.ID] = u
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) GetByEmail(context.Context, string) (*model.User, error) {
	return nil, errs.ErrUserNotFound
}

func (f *fakeUsers) List(context.Context, model.UserFilter) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.User
	for _, u := range f.byID {
		out = append(out, *u)
	}
	return out, f.listErr
}

func (f *fakeUsers) ListByCourse(_ context.Context, courseID int64) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.User
	for _, u := range f.byID {
		if u.CourseID != nil && *u.CourseID == courseID {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUsers) Update(context.Context, *model.User) error               { return nil }
func (f *fakeUsers) Delete(context.Context, uuid.UUID) error                 { return nil }
func (f *fakeUsers) SetRefreshHash(context.Context, uuid.UUID, string) error { return nil }
func (f *fakeUsers) TouchLastSeen(context.Context, uuid.UUID, time.Time) error {
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

// fakeCards keeps cards in insertion order; children derive from ParentID.
type fakeCards struct {
	order []string
	byID  map[string]*model.Card
}

var _ repository.CardRepository = (*fakeCards)(nil)

func newFakeCards() *fakeCards { return &fakeCards{byID: map[string]*model.Card{}} }

// add inserts a card under parent ("" for a root).
func (f *fakeCards) add(courseID int64, id, parent string) *model.Card {
	c := &model.Card{ID: id, CourseID: courseID, Label: id, Type: "lesson", Content: []byte(`{"text":"` + id + `"}`)}
	if parent != "" {
		p := parent
		c.ParentID = &p
	}
	f.order = append(f.order, id)
	f.byID[id] = c
	return c
}

func (f *fakeCards) Create(_ context.Context, c *model.Card) error {
	cp := *c
	f.order = append(f.order, c.ID)
	f.byID[c.ID] = &cp
	return nil
}

func (f *fakeCards) Get(_ context.Context, courseID int64, id string) (*model.Card, error) {
	c, ok := f.byID[id]
	if !ok || c.CourseID != courseID {
		return nil, errs.ErrCardNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCards) ListByCourse(_ context.Context, courseID int64) ([]model.Card, error) {
	var out []model.Card
	for _, id := range f.order {
		if c, ok := f.byID[id]; ok && c.CourseID == courseID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCards) ListChildren(_ context.Context, courseID int64, id string) ([]model.Card, error) {
	var out []model.Card
	for _, cid := range f.order {
		c, ok := f.byID[cid]
		if ok && c.CourseID == courseID && c.ParentID != nil && *c.ParentID == id {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCards) Update(context.Context, int64, string, model.CardPatch) error { return nil }

func (f *fakeCards) SetParent(_ context.Context, _ int64, id string, parentID *string) error {
	c, ok := f.byID[id]
	if !ok {
		return errs.ErrCardNotFound
	}
	c.ParentID = parentID
	return nil
}

func (f *fakeCards) Delete(_ context.Context, _ int64, id string) error {
	delete(f.byID, id)
	return nil
}

func (f *fakeCards) Count(_ context.Context, courseID int64) (int, error) {
	cs, _ := f.ListByCourse(context.Background(), courseID)
	return len(cs), nil
}

func (f *fakeCards) LockCourse(context.Context, int64) error { return nil }

type fakeRecords struct {
	mu     sync.Mutex
	nextID int64
	byUser map[uuid.UUID]*model.Availability
	locks  int
	bumps  int
	// addErr fails AddCard for the listed users.
	addErr map[uuid.UUID]error
}

var _ repository.AvailabilityRepository = (*fakeRecords)(nil)

func newFakeRecords() *fakeRecords {
	return &fakeRecords{byUser: map[uuid.UUID]*model.Availability{}}
}

func (f *fakeRecords) byRecordID(id int64) *model.Availability {
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
	f.nextID++
	r := &model.Availability{ID: f.nextID, UserID: userID, CourseID: courseID, Statuses: map[string]model.CardStatus{}}
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
	f.mu.Lock()
	f.locks++
	f.mu.Unlock()
	return f.GetByUser(ctx, userID)
}

func (f *fakeRecords) AddCard(ctx context.Context, id int64, cardID string, status model.CardStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.byRecordID(id)
	if r == nil {
		return errs.ErrRecordNotFound
	}
	if err := f.addErr[r.UserID]; err != nil {
		return err
	}
	if _, ok := r.Statuses[cardID]; !ok {
		r.Statuses[cardID] = status
	}
	return nil
}

func (f *fakeRecords) PushStatus(_ context.Context, id int64, cardID string, status model.CardStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.byRecordID(id)
	if r == nil {
		return errs.ErrRecordNotFound
	}
	r.Statuses[cardID] = status
	return nil
}

func (f *fakeRecords) RemoveStatus(_ context.Context, id int64, cardID string, status model.CardStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.byRecordID(id)
	if r == nil {
		return errs.ErrRecordNotFound
	}
	if cur, ok := r.Statuses[cardID]; !ok || cur != status {
		return errs.ErrNotInStatusGroup
	}
	delete(r.Statuses, cardID)
	return nil
}

func (f *fakeRecords) BumpVersion(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r := f.byRecordID(id); r != nil {
		r.Version++
	}
	f.bumps++
	return nil
}

// group returns sorted ids of the user's cards in a status group.
func (f *fakeRecords) group(userID uuid.UUID, s model.CardStatus) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byUser[userID]
	if !ok {
		return nil
	}
	ids := r.Group(s)
	sort.Strings(ids)
	return ids
}

func copyRecord(r *model.Availability) *model.Availability {
	c := *r
	c.Statuses = make(map[string]model.CardStatus, len(r.Statuses))
	for k, v := range r.Statuses {
		c.Statuses[k] = v
	}
	return &c
}

type passTx struct{ calls int }

func (p *passTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	p.calls++
	return fn(ctx)
}
