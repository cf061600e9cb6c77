package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/nhle/accomplishment-tracker/internal/gateway"
	"github.com/nhle/accomplishment-tracker/internal/model"
	"github.com/nhle/accomplishment-tracker/internal/session"
)

const (
	tokenPath  = "/auth/v1/token"
	userPath   = "/auth/v1/user"
	logoutPath = "/auth/v1/logout"
	otpPath    = "/auth/v1/otp"
	signupPath = "/auth/v1/signup"

	challengeMethod = "s256"
)

// GetCurrentSession returns the stored session after checking it with the
// auth service. A session the service rejects is cleared and reported as
// absent; an unreachable service is a TransportError.
func (g *Gateway) GetCurrentSession(ctx context.Context) (*model.Session, error) {
	s, err := g.sessions.Load()
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if s == nil {
		return nil, nil
	}

	if s.Expired(g.now()) {
		s, err = g.refresh(ctx, s)
		if gateway.IsAuthError(err) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
	}

	var user userInfo
	err = g.client.do(ctx, request{
		op:     "get user",
		method: http.MethodGet,
		path:   userPath,
		token:  s.AccessToken,
		result: &user,
	})
	if gateway.IsAuthError(err) {
		g.log.Info("stored session rejected", zap.Error(err))
		g.clear()
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.Viewer = model.Viewer{ID: user.ID, Email: user.Email}
	return s, nil
}

// ExchangeAuthCode trades a one-time code for a session and stores it.
func (g *Gateway) ExchangeAuthCode(ctx context.Context, code string) (*model.Session, error) {
	if code == "" {
		return nil, &gateway.AuthError{Op: "exchange code", Message: "missing auth code"}
	}
	grant := pkceGrant{AuthCode: code}
	vs, ok := g.sessions.(session.VerifierStore)
	if ok {
		grant.CodeVerifier = vs.CodeVerifier()
	}
	s, err := g.grant(ctx, "exchange code", "pkce", grant)
	if err != nil {
		return nil, err
	}
	if ok {
		if err := vs.SetCodeVerifier(""); err != nil {
			g.log.Warn("forgetting code verifier failed", zap.Error(err))
		}
	}
	return s, nil
}

// SendMagicLink emails a one-time sign-in link that lands on redirectTo
// with a code for ExchangeAuthCode. The verifier for that code is kept in
// the session store, which must be a session.VerifierStore.
func (g *Gateway) SendMagicLink(ctx context.Context, email, redirectTo string) error {
	if email == "" {
		return &gateway.AuthError{Op: "send sign-in link", Message: "email is required"}
	}
	challenge, err := g.startPKCE("send sign-in link")
	if err != nil {
		return err
	}
	err = g.client.do(ctx, request{
		op:     "send sign-in link",
		method: http.MethodPost,
		path:   otpPath,
		query:  redirectQuery(redirectTo),
		body: otpRequest{
			Email:               email,
			CreateUser:          true,
			CodeChallenge:       challenge,
			CodeChallengeMethod: challengeMethod,
		},
	})
	if err != nil {
		return fmt.Errorf("sending sign-in link: %w", err)
	}
	return nil
}

// SignUp creates an account. When the project confirms emails first, the
// returned session is nil and the confirmation link lands on redirectTo
// with a code for ExchangeAuthCode.
func (g *Gateway) SignUp(ctx context.Context, email, password, redirectTo string) (*model.Session, error) {
	if email == "" || password == "" {
		return nil, &gateway.AuthError{Op: "sign up", Message: "email and password are required"}
	}
	challenge, err := g.startPKCE("sign up")
	if err != nil {
		return nil, err
	}

	var tok tokenResponse
	err = g.client.do(ctx, request{
		op:     "sign up",
		method: http.MethodPost,
		path:   signupPath,
		query:  redirectQuery(redirectTo),
		body: signupRequest{
			Email:               email,
			Password:            password,
			CodeChallenge:       challenge,
			CodeChallengeMethod: challengeMethod,
		},
		result: &tok,
	})
	if err != nil {
		var tErr *gateway.TransportError
		if errors.As(err, &tErr) && (tErr.StatusCode == http.StatusBadRequest || tErr.StatusCode == http.StatusUnprocessableEntity) {
			return nil, &gateway.AuthError{Op: "sign up", Message: tErr.Err.Error()}
		}
		return nil, fmt.Errorf("signing up: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, nil
	}

	s := tok.session(g.now())
	if err := g.sessions.Save(s); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	return s, nil
}

// startPKCE creates a verifier, keeps it for the exchange and returns its
// challenge.
func (g *Gateway) startPKCE(op string) (string, error) {
	vs, ok := g.sessions.(session.VerifierStore)
	if !ok {
		return "", &gateway.AuthError{Op: op, Message: "this session store cannot complete a sign-in link"}
	}
	verifier := oauth2.GenerateVerifier()
	if err := vs.SetCodeVerifier(verifier); err != nil {
		return "", fmt.Errorf("storing code verifier: %w", err)
	}
	return oauth2.S256ChallengeFromVerifier(verifier), nil
}

func redirectQuery(redirectTo string) url.Values {
	if redirectTo == "" {
		return nil
	}
	return url.Values{"redirect_to": {redirectTo}}
}

// SignInWithPassword creates a session from email and password.
func (g *Gateway) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	return g.grant(ctx, "sign in", "password", passwordGrant{Email: email, Password: password})
}

// SignOut revokes the session on the server and clears it locally. A
// session the server no longer knows is still cleared.
func (g *Gateway) SignOut(ctx context.Context) error {
	s, err := g.sessions.Load()
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	if s == nil {
		return nil
	}

	err = g.client.do(ctx, request{
		op:     "sign out",
		method: http.MethodPost,
		path:   logoutPath,
		token:  s.AccessToken,
	})
	if err != nil && !gateway.IsAuthError(err) {
		return err
	}
	if err := g.sessions.Clear(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// refresh exchanges the refresh token of s for a new session. A rejected
// refresh token clears the stored session.
func (g *Gateway) refresh(ctx context.Context, s *model.Session) (*model.Session, error) {
	if s.RefreshToken == "" {
		g.clear()
		return nil, &gateway.AuthError{Op: "refresh session", Message: "session expired"}
	}
	next, err := g.grant(ctx, "refresh session", "refresh_token", refreshGrant{RefreshToken: s.RefreshToken})
	if gateway.IsAuthError(err) {
		g.clear()
	}
	return next, err
}

func (g *Gateway) grant(ctx context.Context, op, grantType string, body any) (*model.Session, error) {
	var tok tokenResponse
	err := g.client.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   tokenPath,
		query:  url.Values{"grant_type": {grantType}},
		body:   body,
		result: &tok,
	})
	if err != nil {
		// An invalid grant comes back as 400; it is a credentials problem,
		// not a transport one.
		var tErr *gateway.TransportError
		if errors.As(err, &tErr) && tErr.StatusCode == http.StatusBadRequest {
			return nil, &gateway.AuthError{Op: op, Message: tErr.Err.Error()}
		}
		return nil, err
	}
	if tok.AccessToken == "" || tok.User.ID == "" {
		return nil, &gateway.AuthError{Op: op, Message: "token response carried no session"}
	}

	s := tok.session(g.now())
	if err := g.sessions.Save(s); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	g.log.Debug("session stored", zap.String("op", op), zap.String("viewer", s.Viewer.ID))
	return s, nil
}

func (g *Gateway) clear() {
	if err := g.sessions.Clear(); err != nil {
		g.log.Warn("clearing session failed", zap.Error(err))
	}
}
