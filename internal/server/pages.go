package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/nhle/accomplishment-tracker/internal/gateway"
	"github.com/nhle/accomplishment-tracker/internal/model"
)

// passwordSignIn is implemented by gateways that accept email and
// password directly.
type passwordSignIn interface {
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)
}

// magicLinkSender is implemented by gateways that can email a one-time
// sign-in link.
type magicLinkSender interface {
	SendMagicLink(ctx context.Context, email, redirectTo string) error
}

// accountCreator is implemented by gateways that can register accounts.
type accountCreator interface {
	SignUp(ctx context.Context, email, password, redirectTo string) (*model.Session, error)
}

type loginVM struct {
	Email  string
	Error  string
	Notice string
}

func (s *Server) handleLoginGet(w http.ResponseWriter, r *http.Request) {
	s.writeHTMLTemplate(w, "login.html", loginVM{})
}

func (s *Server) handleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")

	signer, ok := s.gatewayFor(w, r).(passwordSignIn)
	if !ok {
		s.writeHTMLTemplate(w, "login.html", loginVM{Email: email, Error: "Password sign-in is not available"})
		return
	}
	if email == "" {
		s.writeHTMLTemplate(w, "login.html", loginVM{Error: "Email is required"})
		return
	}

	sess, err := signer.SignInWithPassword(r.Context(), email, password)
	if err != nil || sess == nil {
		s.log.Info("sign in failed", zap.String("email", email), zap.Error(err))
		s.writeHTMLTemplate(w, "login.html", loginVM{Email: email, Error: "Invalid login credentials"})
		return
	}
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

func (s *Server) handleMagicLinkPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.PostForm.Get("email"))

	sender, ok := s.gatewayFor(w, r).(magicLinkSender)
	if !ok {
		s.writeHTMLTemplate(w, "login.html", loginVM{Email: email, Error: "Sign-in links are not available"})
		return
	}
	if email == "" {
		s.writeHTMLTemplate(w, "login.html", loginVM{Error: "Email is required"})
		return
	}

	if err := sender.SendMagicLink(r.Context(), email, s.callbackURL(r)); err != nil {
		s.log.Warn("sending sign-in link failed", zap.String("email", email), zap.Error(err))
		s.writeHTMLTemplate(w, "login.html", loginVM{Email: email, Error: "Could not send a sign-in link"})
		return
	}
	s.writeHTMLTemplate(w, "login.html", loginVM{Email: email, Notice: "Check your email for a sign-in link"})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	s.writeHTMLTemplate(w, "signup.html", loginVM{})
}

func (s *Server) handleSignupPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")

	creator, ok := s.gatewayFor(w, r).(accountCreator)
	if !ok {
		s.writeHTMLTemplate(w, "signup.html", loginVM{Email: email, Error: "Sign-up is not available"})
		return
	}
	if email == "" || password == "" {
		s.writeHTMLTemplate(w, "signup.html", loginVM{Email: email, Error: "Email and password are required"})
		return
	}

	sess, err := creator.SignUp(r.Context(), email, password, s.callbackURL(r))
	switch {
	case gateway.IsAuthError(err):
		var authErr *gateway.AuthError
		errors.As(err, &authErr)
		s.writeHTMLTemplate(w, "signup.html", loginVM{Email: email, Error: authErr.Message})
	case err != nil:
		s.log.Warn("sign up failed", zap.String("email", email), zap.Error(err))
		s.writeHTMLTemplate(w, "signup.html", loginVM{Email: email, Error: "Could not create the account"})
	case sess == nil:
		s.writeHTMLTemplate(w, "signup.html", loginVM{Email: email, Notice: "Check your email to confirm your account"})
	default:
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
	}
}

// callbackURL is where emailed links send the browser back to.
func (s *Server) callbackURL(r *http.Request) string {
	base := s.cfg.PublicURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + callbackPath
}

func (s *Server) handleLogoutPost(w http.ResponseWriter, r *http.Request) {
	viewer, _ := ViewerFrom(r.Context())
	if err := s.gatewayFor(w, r).SignOut(r.Context()); err != nil {
		s.log.Warn("sign out failed", zap.Error(err))
	}
	s.cache.InvalidateViewer(viewer.ID)
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}
