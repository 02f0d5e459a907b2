package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/netip"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/course-keeper/internal/errs"
	"github.com/and161185/course-keeper/internal/model"
	"github.com/and161185/course-keeper/internal/obs"
)

type ctxKey int

const (
	viewerKey ctxKey = iota
	courseKey
)

// ViewerFrom returns the authenticated user of the request.
func ViewerFrom(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(viewerKey).(*model.User)
	return u, ok
}

// CourseFrom returns the course resolved from the {cid} path variable.
func CourseFrom(ctx context.Context) (*model.Course, bool) {
	c, ok := ctx.Value(courseKey).(*model.Course)
	return c, ok
}

func bearerToken(r *http.Request) (string, error) {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < 7 || !strings.EqualFold(v[:7], "bearer ") {
		return "", errs.ErrInvalidToken.Withf("missing bearer token")
	}
	t := strings.TrimSpace(v[7:])
	if t == "" {
		return "", errs.ErrInvalidToken.Withf("missing bearer token")
	}
	return t, nil
}

// private authenticates the caller and, when roles are given, requires one of them.
func (a *API) private(h handlerFunc, roles ...model.Role) http.Handler {
	return a.wrap(func(w http.ResponseWriter, r *http.Request) error {
		tok, err := bearerToken(r)
		if err != nil {
			return err
		}
		p, err := a.Auth.Authenticate(r.Context(), tok)
		if err != nil {
			return err
		}
		viewer, err := a.Users.Get(r.Context(), p.UserID)
		if err != nil {
			if errors.Is(err, errs.ErrUserNotFound) {
				return errs.ErrInvalidToken.Withf("account no longer exists")
			}
			return err
		}
		if len(roles) > 0 && !slices.Contains(roles, viewer.Role) {
			return errs.ErrInsufficientRole
		}
		a.Auth.Touch(r.Context(), viewer.ID)
		return h(w, r.WithContext(context.WithValue(r.Context(), viewerKey, viewer)))
	})
}

// course is private plus the course-access check on {cid}.
func (a *API) course(h handlerFunc, roles ...model.Role) http.Handler {
	return a.private(func(w http.ResponseWriter, r *http.Request) error {
		cid, err := pathInt(r, "cid")
		if err != nil {
			return err
		}
		viewer, _ := ViewerFrom(r.Context())
		c, err := a.Courses.Access(r.Context(), viewer, cid)
		if err != nil {
			return err
		}
		return h(w, r.WithContext(context.WithValue(r.Context(), courseKey, c)))
	}, roles...)
}

func (a *API) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				a.Log.Error("panic",
					zap.Any("reason", rec),
					zap.ByteString("stack", debug.Stack()),
					zap.String("path", r.URL.Path),
				)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal", "message": "Internal Server Error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// accessLog logs request metadata only, never payloads.
func (a *API) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &obs.StatusWriter{ResponseWriter: w, Code: http.StatusOK}
		next.ServeHTTP(sw, r)
		a.Log.Info("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.Code),
			zap.Duration("dur", time.Since(start)),
			zap.String("remote", a.clientIP(r)),
		)
	})
}

// rateLimit applies a token bucket per client IP.
func (a *API) rateLimit(next http.Handler) http.Handler {
	return a.wrapMiddleware(next, func(r *http.Request) error {
		if !a.Buckets.Allow(a.clientIP(r)) {
			return errs.ErrTooManyRequests
		}
		return nil
	})
}

func (a *API) wrapMiddleware(next http.Handler, check func(r *http.Request) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := check(r); err != nil {
			a.respondError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func maxBody(next http.Handler, limit int64) http.Handler {
	if limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		next.ServeHTTP(w, r)
	})
}

// trimSlash lets "/users/" and "/users" reach the same route without a redirect.
func trimSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := r.URL.Path; len(p) > 1 && strings.HasSuffix(p, "/") {
			r.URL.Path = strings.TrimRight(p, "/")
			if r.URL.Path == "" {
				r.URL.Path = "/"
			}
			r.URL.RawPath = ""
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP is the peer address. Behind a trusted proxy it is the right-most
// X-Forwarded-For hop that is not itself a trusted proxy.
func (a *API) clientIP(r *http.Request) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		peer = host
	}
	if !a.trustedProxy(peer) {
		return peer
	}
	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if _, err := netip.ParseAddr(hop); err != nil {
			return peer
		}
		if !a.trustedProxy(hop) {
			return hop
		}
	}
	return peer
}

func (a *API) trustedProxy(ip string) bool {
	if len(a.TrustedProxies) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range a.TrustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
