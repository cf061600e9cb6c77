package server

import (
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// handleAuthCallback completes a sign-in by exchanging the one-time code
// for a session. The session cookies are written by the gateway's store.
func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := strings.TrimSpace(q.Get("code"))
	next := safeNext(q.Get("next"))

	if code == "" {
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return
	}

	sess, err := s.gatewayFor(w, r).ExchangeAuthCode(r.Context(), code)
	if err != nil || sess == nil {
		s.log.Warn("exchanging auth code failed", zap.Error(err))
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return
	}

	s.log.Info("signed in", zap.String("viewer", sess.Viewer.ID))
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// safeNext returns next when it is a path on this site and /dashboard
// otherwise.
func safeNext(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return dashboardPath
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return dashboardPath
	}
	return next
}
