package httpapi

import (
	"net/http"

	"github.com/and161185/course-keeper/internal/convert"
)

func (a *API) listCourses(w http.ResponseWriter, r *http.Request) error {
	viewer, _ := ViewerFrom(r.Context())
	cs, err := a.Courses.Visible(r.Context(), viewer)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, convert.ToNamedList(cs))
	return nil
}

func (a *API) createCourse(w http.ResponseWriter, r *http.Request) error {
	var req convert.NameRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	c, err := a.Courses.Create(r.Context(), req.Name)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, convert.ToNamed(*c))
	return nil
}

func (a *API) getCourse(w http.ResponseWriter, r *http.Request) error {
	c, _ := CourseFrom(r.Context())
	writeJSON(w, http.StatusOK, convert.ToNamed(*c))
	return nil
}

func (a *API) renameCourse(w http.ResponseWriter, r *http.Request) error {
	c, _ := CourseFrom(r.Context())
	var req convert.NameRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	renamed, err := a.Courses.Rename(r.Context(), c.ID, req.Name)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, convert.ToNamed(*renamed))
	return nil
}

func (a *API) deleteCourse(w http.ResponseWriter, r *http.Request) error {
	c, _ := CourseFrom(r.Context())
	if err := a.Courses.Delete(r.Context(), c.ID); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *API) progress(w http.ResponseWriter, r *http.Request) error {
	viewer, _ := ViewerFrom(r.Context())
	st, err := a.Cards.Progress(r.Context(), viewer)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, convert.ToStatistic(st))
	return nil
}
