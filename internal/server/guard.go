package server

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/nhle/accomplishment-tracker/internal/model"
)

const (
	loginPath     = "/login"
	magicLinkPath = "/login/magic-link"
	signupPath    = "/signup"
	callbackPath  = "/auth/callback"
	dashboardPath = "/dashboard"
)

// SessionResolver returns the session carried by r, or nil when there is
// none. It may refresh the session and write new cookies to w.
type SessionResolver func(w http.ResponseWriter, r *http.Request) (*model.Session, error)

type viewerKey struct{}

// ViewerFrom returns the viewer the guard attached to ctx.
func ViewerFrom(ctx context.Context) (model.Viewer, bool) {
	v, ok := ctx.Value(viewerKey{}).(model.Viewer)
	return v, ok && !v.IsZero()
}

func withViewer(ctx context.Context, v model.Viewer) context.Context {
	return context.WithValue(ctx, viewerKey{}, v)
}

// authOnly reports whether path is only for signed-out visitors.
func authOnly(path string) bool {
	return path == loginPath || path == magicLinkPath || path == signupPath
}

// unguarded reports whether path bypasses the guard: API routes, static
// assets, the favicon, the auth callback and the landing page.
func unguarded(path string) bool {
	switch {
	case path == "/", path == "/favicon.ico", path == "/health":
		return true
	case strings.HasPrefix(path, "/api/"), path == "/api":
		return true
	case strings.HasPrefix(path, "/static/"):
		return true
	case strings.HasPrefix(path, "/auth/"):
		return true
	}
	return false
}

// Guard decides per request whether to redirect. A signed-in visitor asking
// for /login or /signup goes to /dashboard; a signed-out visitor asking for
// anything else goes to /login. A resolver error counts as signed out.
// Requests that pass carry the viewer in their context.
func Guard(resolve SessionResolver, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if unguarded(path) {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := resolve(w, r)
			if err != nil {
				log.Warn("resolving session failed", zap.String("path", path), zap.Error(err))
				sess = nil
			}
			signedIn := sess != nil && !sess.Viewer.IsZero()

			switch {
			case signedIn && authOnly(path):
				http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
				return
			case !signedIn && !authOnly(path):
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}

			if signedIn {
				r = r.WithContext(withViewer(r.Context(), sess.Viewer))
			}
			next.ServeHTTP(w, r)
		})
	}
}
