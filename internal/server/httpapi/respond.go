package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/and161185/course-keeper/internal/convert"
	"github.com/and161185/course-keeper/internal/errs"
)

var (
	errNoRoute    = errs.New(errs.ErrNotFound, "route_not_found", "route not found")
	errMethod     = errs.New(errs.ErrValidation, "method_not_allowed", "method not allowed")
	errBadBody    = errs.New(errs.ErrValidation, "invalid_body", "malformed request body")
	errBodyTooBig = errs.New(errs.ErrValidation, "body_too_large", "request body too large")
)

// handlerFunc is an HTTP handler that reports failures by returning them.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (a *API) wrap(h handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			a.respondError(w, r, err)
		}
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errMethod):
		return http.StatusMethodNotAllowed
	case errors.Is(err, errBodyTooBig):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrAlreadyExists), errors.Is(err, errs.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, errs.ErrPrecondition), errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (a *API) respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	body := convert.ErrorDTO{Error: errs.Reason(err), Message: err.Error()}

	switch {
	case errors.Is(err, errs.ErrInvariant):
		a.Log.Error("invariant violation",
			zap.String("reason", body.Error),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	case code == http.StatusInternalServerError:
		a.Log.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	}

	if code >= http.StatusInternalServerError {
		body.Message = http.StatusText(code)
	}
	if body.Error == "" {
		body.Error = reasonForStatus(code)
	}
	writeJSON(w, code, body)
}

func reasonForStatus(code int) string {
	switch code {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusTooManyRequests:
		return "too_many_requests"
	case http.StatusGatewayTimeout:
		return "timeout"
	}
	return "internal"
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	var tooBig *http.MaxBytesError
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	case errors.As(err, &tooBig):
		return errBodyTooBig
	}
	return errBadBody.Withf("malformed request body: %v", err)
}

func pathInt(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || v <= 0 {
		return 0, errs.ErrInvalidInput.Withf("invalid %s %q", name, mux.Vars(r)[name])
	}
	return v, nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.FromString(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, errs.ErrInvalidInput.Withf("invalid %s %q", name, mux.Vars(r)[name])
	}
	return id, nil
}
