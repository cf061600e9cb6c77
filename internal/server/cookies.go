package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/nhle/accomplishment-tracker/internal/model"
	"github.com/nhle/accomplishment-tracker/internal/session"
)

const (
	sessionCookieName  = "accomplish-session"
	verifierCookieName = "accomplish-code-verifier"
)

var (
	_ session.Store         = (*cookieStore)(nil)
	_ session.VerifierStore = (*cookieStore)(nil)
)

// cookieStore keeps a session in an HttpOnly cookie for the span of one
// request. Writes are visible to later reads in the same request.
type cookieStore struct {
	w       http.ResponseWriter
	r       *http.Request
	secure  bool
	session *model.Session
	loaded  bool

	verifier    string
	verifierSet bool
}

// verifierMaxAge bounds how long a sign-in link can be completed in the
// browser that asked for it.
const verifierMaxAge = 3600

func newCookieStore(w http.ResponseWriter, r *http.Request, secure bool) *cookieStore {
	return &cookieStore{w: w, r: r, secure: secure}
}

func (c *cookieStore) Load() (*model.Session, error) {
	if c.loaded {
		return c.session, nil
	}
	c.loaded = true

	ck, err := c.r.Cookie(sessionCookieName)
	if err != nil || ck.Value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(ck.Value)
	if err != nil {
		return nil, nil
	}
	var s model.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, nil
	}
	c.session = &s
	return c.session, nil
}

func (c *cookieStore) Save(s *model.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	cp := *s
	c.session, c.loaded = &cp, true
	http.SetCookie(c.w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (c *cookieStore) Clear() error {
	c.session, c.loaded = nil, true
	http.SetCookie(c.w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// CodeVerifier returns the PKCE verifier left by the sign-in page.
func (c *cookieStore) CodeVerifier() string {
	if c.verifierSet {
		return c.verifier
	}
	ck, err := c.r.Cookie(verifierCookieName)
	if err != nil {
		return ""
	}
	return ck.Value
}

// SetCodeVerifier keeps v in a short-lived cookie for the callback; the
// empty string deletes it.
func (c *cookieStore) SetCodeVerifier(v string) error {
	c.verifier, c.verifierSet = v, true
	ck := &http.Cookie{
		Name:     verifierCookieName,
		Value:    v,
		Path:     "/",
		MaxAge:   verifierMaxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if v == "" {
		ck.MaxAge = -1
	}
	http.SetCookie(c.w, ck)
	return nil
}
