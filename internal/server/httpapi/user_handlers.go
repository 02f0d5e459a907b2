package httpapi

import (
	"net/http"

	"github.com/and161185/course-keeper/internal/convert"
	"github.com/and161185/course-keeper/internal/errs"
	"github.com/and161185/course-keeper/internal/model"
)

func principalOf(u *model.User) model.Principal {
	return model.Principal{UserID: u.ID, Role: u.Role}
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) error {
	us, err := a.Users.List(r.Context(), model.UserFilter{})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, convert.ToUsers(us))
	return nil
}

func (a *API) filterUsers(w http.ResponseWriter, r *http.Request) error {
	var req convert.UserFilterRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	us, err := a.Users.List(r.Context(), convert.ToUserFilter(req))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, convert.ToUsers(us))
	return nil
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) error {
	var req convert.CreateUserRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	viewer, _ := ViewerFrom(r.Context())
	u, err := a.Users.Create(r.Context(), principalOf(viewer), convert.ToNewUser(req))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, convert.ToUser(*u, nil))
	return nil
}

func (a *API) me(w http.ResponseWriter, r *http.Request) error {
	viewer, _ := ViewerFrom(r.Context())
	u, st, err := a.Users.Me(r.Context(), principalOf(viewer))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, convert.ToUser(*u, st))
	return nil
}

// getUser serves privileged callers and the user themself.
func (a *API) getUser(w http.ResponseWriter, r *http.Request) error {
	id, err := pathUUID(r, "id")
	if err != nil {
		return err
	}
	viewer, _ := ViewerFrom(r.Context())
	if !model.HasUniversalAccess(viewer.Role) && viewer.ID != id {
		return errs.ErrInsufficientRole
	}
	u, err := a.Users.Get(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, convert.ToUser(*u, nil))
	return nil
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request) error {
	id, err := pathUUID(r, "id")
	if err != nil {
		return err
	}
	var req convert.UpdateUserRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	u, err := a.Users.Update(r.Context(), id, convert.ToUserPatch(req))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, convert.ToUser(*u, nil))
	return nil
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) error {
	id, err := pathUUID(r, "id")
	if err != nil {
		return err
	}
	if err := a.Users.Delete(r.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *API) enroll(w http.ResponseWriter, r *http.Request) error {
	id, err := pathUUID(r, "id")
	if err != nil {
		return err
	}
	var req convert.EnrollRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	if req.CourseID <= 0 {
		return errs.ErrInvalidInput.Withf("courseId is required")
	}
	u, err := a.Users.Enroll(r.Context(), id, req.CourseID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, convert.ToUser(*u, nil))
	return nil
}
