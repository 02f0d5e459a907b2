// Package httpapi exposes the course-keeper REST API.
package httpapi

import (
	"net/http"
	"net/netip"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/and161185/course-keeper/internal/limiter"
	"github.com/and161185/course-keeper/internal/model"
	"github.com/and161185/course-keeper/internal/obs"
	"github.com/and161185/course-keeper/internal/service"
)

// Deps are the collaborators of the API.
type Deps struct {
	Auth     service.AuthService
	Users    service.UserService
	Branches service.Directory[model.Branch]
	Posts    service.Directory[model.Post]
	Courses  service.CourseService
	Cards    service.CardService

	Log          *zap.Logger
	Buckets      *limiter.Buckets // nil disables request throttling
	CORS         cors.Options
	MaxBodyBytes int64
	// TrustedProxies are peers whose X-Forwarded-For is believed; empty trusts none.
	TrustedProxies []netip.Prefix
}

// API wires services into HTTP handlers.
type API struct {
	Deps
	router *mux.Router
}

// New constructs the API and registers all routes.
func New(d Deps) *API {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	a := &API{Deps: d, router: mux.NewRouter()}
	a.routes()
	return a
}

var (
	privileged = []model.Role{model.RoleAdmin, model.RoleEditor}
	adminOnly  = []model.Role{model.RoleAdmin}
)

func (a *API) routes() {
	r := a.router
	r.NotFoundHandler = a.wrap(func(http.ResponseWriter, *http.Request) error { return errNoRoute })
	r.MethodNotAllowedHandler = a.wrap(func(http.ResponseWriter, *http.Request) error { return errMethod })
	r.Use(func(next http.Handler) http.Handler { return obs.Instrument(next, routeName) })

	r.Handle("/healthz", a.wrap(a.healthz)).Methods(http.MethodGet)
	r.Handle("/metrics", obs.Handler()).Methods(http.MethodGet)

	r.Handle("/auth/signin", a.wrap(a.signIn)).Methods(http.MethodPost)
	r.Handle("/auth/refresh", a.wrap(a.refresh)).Methods(http.MethodGet)

	r.Handle("/users", a.private(a.listUsers, privileged...)).Methods(http.MethodGet)
	r.Handle("/users", a.private(a.createUser, privileged...)).Methods(http.MethodPost)
	r.Handle("/users/filter", a.private(a.filterUsers, privileged...)).Methods(http.MethodPost)
	r.Handle("/users/me", a.private(a.me)).Methods(http.MethodGet)
	r.Handle("/users/{id}", a.private(a.getUser)).Methods(http.MethodGet)
	r.Handle("/users/{id}", a.private(a.updateUser, adminOnly...)).Methods(http.MethodPatch)
	r.Handle("/users/{id}", a.private(a.deleteUser, adminOnly...)).Methods(http.MethodDelete)
	r.Handle("/users/{id}/enroll", a.private(a.enroll, privileged...)).Methods(http.MethodPost)

	registerDirectory(a, "/branches", a.Branches)
	registerDirectory(a, "/posts", a.Posts)

	r.Handle("/courses", a.private(a.listCourses)).Methods(http.MethodGet)
	r.Handle("/courses", a.private(a.createCourse, privileged...)).Methods(http.MethodPost)
	r.Handle("/courses/{cid}", a.course(a.getCourse)).Methods(http.MethodGet)
	r.Handle("/courses/{cid}", a.course(a.renameCourse, privileged...)).Methods(http.MethodPatch)
	r.Handle("/courses/{cid}", a.course(a.deleteCourse, privileged...)).Methods(http.MethodDelete)
	r.Handle("/courses/{cid}/progress", a.course(a.progress)).Methods(http.MethodGet)

	// relations first: "relations" would otherwise be read as a card id
	r.Handle("/courses/{cid}/cards/relations", a.course(a.listRelations)).Methods(http.MethodGet)
	r.Handle("/courses/{cid}/cards/relations", a.course(a.createRelation, privileged...)).Methods(http.MethodPost)
	r.Handle("/courses/{cid}/cards/relations/{id}", a.course(a.getRelation)).Methods(http.MethodGet)
	r.Handle("/courses/{cid}/cards/relations/{id}", a.course(a.deleteRelation, privileged...)).Methods(http.MethodDelete)

	r.Handle("/courses/{cid}/cards", a.course(a.listCards)).Methods(http.MethodGet)
	r.Handle("/courses/{cid}/cards", a.course(a.createCard, privileged...)).Methods(http.MethodPost)
	r.Handle("/courses/{cid}/cards/{id}", a.course(a.getCard)).Methods(http.MethodGet)
	r.Handle("/courses/{cid}/cards/{id}", a.course(a.updateCard, privileged...)).Methods(http.MethodPatch)
	r.Handle("/courses/{cid}/cards/{id}", a.course(a.deleteCard, privileged...)).Methods(http.MethodDelete)
	r.Handle("/courses/{cid}/cards/{id}/status", a.course(a.changeStatus)).Methods(http.MethodPost)
}

// Handler returns the root handler with the middleware chain applied.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.router
	h = trimSlash(h)
	h = maxBody(h, a.MaxBodyBytes)
	if a.Buckets != nil {
		h = a.rateLimit(h)
	}
	h = cors.New(a.CORS).Handler(h)
	h = a.accessLog(h)
	return a.recoverer(h)
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

func (a *API) healthz(w http.ResponseWriter, _ *http.Request) error {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}
