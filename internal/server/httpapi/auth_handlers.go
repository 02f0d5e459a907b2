package httpapi

import (
	"net/http"

	"github.com/and161185/course-keeper/internal/convert"
)

func (a *API) signIn(w http.ResponseWriter, r *http.Request) error {
	var req convert.SignInRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	tokens, u, err := a.Auth.SignIn(r.Context(), req.Email, req.Password, a.clientIP(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, convert.ToTokens(tokens, &u))
	return nil
}

// refresh expects the refresh token as the bearer credential.
func (a *API) refresh(w http.ResponseWriter, r *http.Request) error {
	tok, err := bearerToken(r)
	if err != nil {
		return err
	}
	tokens, err := a.Auth.Refresh(r.Context(), tok)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, convert.ToTokens(tokens, nil))
	return nil
}
