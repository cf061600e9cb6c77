package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/nhle/accomplishment-tracker/internal/gateway"
	"github.com/nhle/accomplishment-tracker/internal/gateway/supabase"
	"github.com/nhle/accomplishment-tracker/internal/model"
	"github.com/nhle/accomplishment-tracker/internal/session"
)

// identityProvider stands in for the hosted auth service. It remembers the
// challenge of the last link it sent and redeems "link-code" only with the
// matching verifier.
type identityProvider struct {
	mu        sync.Mutex
	challenge string
	redirect  string
	confirm   bool
}

func (p *identityProvider) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	record := func(r *http.Request) map[string]any {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		p.mu.Lock()
		defer p.mu.Unlock()
		p.challenge, _ = body["code_challenge"].(string)
		p.redirect = r.URL.Query().Get("redirect_to")
		assert.Equal(t, "s256", body["code_challenge_method"])
		return body
	}
	reply := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	granted := map[string]any{
		"access_token": "at", "refresh_token": "rt", "expires_in": 3600,
		"user": map[string]string{"id": "alice", "email": "alice@example.com"},
	}

	mux.HandleFunc("POST /auth/v1/otp", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		reply(w, http.StatusOK, map[string]any{})
	})
	mux.HandleFunc("POST /auth/v1/signup", func(w http.ResponseWriter, r *http.Request) {
		body := record(r)
		if body["email"] == "taken@example.com" {
			reply(w, http.StatusUnprocessableEntity, map[string]string{"msg": "User already registered"})
			return
		}
		if p.confirm {
			reply(w, http.StatusOK, map[string]any{"id": "alice", "email": body["email"]})
			return
		}
		reply(w, http.StatusOK, granted)
	})
	mux.HandleFunc("POST /auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		var grant struct {
			AuthCode     string `json:"auth_code"`
			CodeVerifier string `json:"code_verifier"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&grant))
		p.mu.Lock()
		want := p.challenge
		p.mu.Unlock()
		if grant.AuthCode != "link-code" || want == "" || oauth2.S256ChallengeFromVerifier(grant.CodeVerifier) != want {
			reply(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "code verifier mismatch"})
			return
		}
		reply(w, http.StatusOK, granted)
	})
	mux.HandleFunc("GET /auth/v1/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		reply(w, http.StatusOK, map[string]string{"id": "alice", "email": "alice@example.com"})
	})
	return mux
}

func (p *identityProvider) lastRedirect() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.redirect
}

func newHostedServer(t *testing.T, idp *identityProvider, publicURL string) http.Handler {
	t.Helper()
	backend := httptest.NewServer(idp.handler(t))
	t.Cleanup(backend.Close)
	cfg := model.BackendConfig{URL: backend.URL, AnonKey: "anon"}

	srv, err := New(Config{
		Addr:          "127.0.0.1:0",
		PublicURL:     publicURL,
		SecureCookies: strings.HasPrefix(publicURL, "https://"),
	},
		func(store session.Store) gateway.Gateway { return supabase.New(cfg, store) },
		WithClock(func() time.Time { return time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC) }),
	)
	require.NoError(t, err)
	return srv.Handler()
}

func serve(h http.Handler, req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func formRequest(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestMagicLinkRoundTrip(t *testing.T) {
	idp := &identityProvider{}
	h := newHostedServer(t, idp, "https://tracker.example.com/")

	rec := serve(h, formRequest(magicLinkPath, url.Values{"email": {"alice@example.com"}}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Check your email for a sign-in link")
	assert.Equal(t, "https://tracker.example.com/auth/callback", idp.lastRedirect())

	verifier := findCookie(rec, verifierCookieName)
	require.NotNil(t, verifier, "starting sign-in leaves the verifier with the browser")
	assert.NotEmpty(t, verifier.Value)
	assert.True(t, verifier.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, verifier.SameSite)
	assert.True(t, verifier.Secure)
	assert.Positive(t, verifier.MaxAge)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/auth/callback?code=link-code&next=/dashboard", nil),
		&http.Cookie{Name: verifierCookieName, Value: verifier.Value})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
	require.NotNil(t, findCookie(rec, sessionCookieName))
	cleared := findCookie(rec, verifierCookieName)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge, "the verifier is single use")
}

func TestCallbackWithoutVerifierLandsOnLogin(t *testing.T) {
	idp := &identityProvider{}
	h := newHostedServer(t, idp, "")

	rec := serve(h, formRequest(magicLinkPath, url.Values{"email": {"alice@example.com"}}))
	require.NotNil(t, findCookie(rec, verifierCookieName))
	assert.Equal(t, "http://example.com/auth/callback", idp.lastRedirect(), "origin of the request")

	// Opened in another browser: the code alone is not enough.
	rec = serve(h, httptest.NewRequest(http.MethodGet, "/auth/callback?code=link-code", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, loginPath, rec.Header().Get("Location"))
	assert.Nil(t, findCookie(rec, sessionCookieName))
}

func TestSignupPost(t *testing.T) {
	t.Run("confirmation required", func(t *testing.T) {
		idp := &identityProvider{confirm: true}
		h := newHostedServer(t, idp, "")

		rec := serve(h, formRequest(signupPath, url.Values{"email": {"alice@example.com"}, "password": {"hunter22"}}))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Check your email to confirm your account")
		verifier := findCookie(rec, verifierCookieName)
		require.NotNil(t, verifier)

		rec = serve(h, httptest.NewRequest(http.MethodGet, "/auth/callback?code=link-code", nil),
			&http.Cookie{Name: verifierCookieName, Value: verifier.Value})
		assert.Equal(t, dashboardPath, rec.Header().Get("Location"))
	})

	t.Run("signed in at once", func(t *testing.T) {
		h := newHostedServer(t, &identityProvider{}, "")
		rec := serve(h, formRequest(signupPath, url.Values{"email": {"alice@example.com"}, "password": {"hunter22"}}))
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, dashboardPath, rec.Header().Get("Location"))
		assert.NotNil(t, findCookie(rec, sessionCookieName))
	})

	t.Run("rejected", func(t *testing.T) {
		h := newHostedServer(t, &identityProvider{}, "")
		rec := serve(h, formRequest(signupPath, url.Values{"email": {"taken@example.com"}, "password": {"hunter22"}}))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "User already registered")
	})

	t.Run("missing password", func(t *testing.T) {
		h := newHostedServer(t, &identityProvider{}, "")
		rec := serve(h, formRequest(signupPath, url.Values{"email": {"alice@example.com"}}))
		assert.Contains(t, rec.Body.String(), "Email and password are required")
	})
}

func TestSignInLinksUnavailableOnLocalBackend(t *testing.T) {
	f := newFixture(t)
	rec := f.postForm(t, magicLinkPath, url.Values{"email": {"alice@example.com"}}, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sign-in links are not available")
	assert.Nil(t, findCookie(rec, verifierCookieName))

	rec = f.postForm(t, signupPath, url.Values{"email": {"a@example.com"}, "password": {"x"}}, false)
	assert.Contains(t, rec.Body.String(), "Sign-up is not available")
}
