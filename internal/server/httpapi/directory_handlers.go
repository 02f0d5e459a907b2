package httpapi

import (
	"net/http"

	"github.com/and161185/course-keeper/internal/convert"
	"github.com/and161185/course-keeper/internal/model"
	"github.com/and161185/course-keeper/internal/service"
)

type named interface {
	model.Branch | model.Post | model.Course
}

// registerDirectory serves an id/name reference table: reads for any caller,
// writes for administrators.
func registerDirectory[T named](a *API, prefix string, dir service.Directory[T]) {
	h := directoryHandlers[T]{dir: dir}
	a.router.Handle(prefix, a.private(h.list)).Methods(http.MethodGet)
	a.router.Handle(prefix, a.private(h.create, adminOnly...)).Methods(http.MethodPost)
	a.router.Handle(prefix+"/{id}", a.private(h.get)).Methods(http.MethodGet)
	a.router.Handle(prefix+"/{id}", a.private(h.rename, adminOnly...)).Methods(http.MethodPatch)
	a.router.Handle(prefix+"/{id}", a.private(h.delete, adminOnly...)).Methods(http.MethodDelete)
}

type directoryHandlers[T named] struct {
	dir service.Directory[T]
}

func (h directoryHandlers[T]) list(w http.ResponseWriter, r *http.Request) error {
	vs, err := h.dir.List(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, convert.ToNamedList(vs))
	return nil
}

func (h directoryHandlers[T]) get(w http.ResponseWriter, r *http.Request) error {
	id, err := pathInt(r, "id")
	if err != nil {
		return err
	}
	v, err := h.dir.Get(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, convert.ToNamed(*v))
	return nil
}

func (h directoryHandlers[T]) create(w http.ResponseWriter, r *http.Request) error {
	var req convert.NameRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	v, err := h.dir.Create(r.Context(), req.Name)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, convert.ToNamed(*v))
	return nil
}

func (h directoryHandlers[T]) rename(w http.ResponseWriter, r *http.Request) error {
	id, err := pathInt(r, "id")
	if err != nil {
		return err
	}
	var req convert.NameRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	v, err := h.dir.Rename(r.Context(), id, req.Name)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, convert.ToNamed(*v))
	return nil
}

func (h directoryHandlers[T]) delete(w http.ResponseWriter, r *http.Request) error {
	id, err := pathInt(r, "id")
	if err != nil {
		return err
	}
	if err := h.dir.Delete(r.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
