package model

import "time"

// Viewer is the authenticated end user whose accomplishments are shown.
type Viewer struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// IsZero reports whether the viewer carries no identity.
func (v Viewer) IsZero() bool {
	return v.ID == ""
}

// Session is an authenticated backend session.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Viewer       Viewer    `json:"user"`
}

// Expired reports whether the access token is past its expiry at now.
// A zero ExpiresAt never expires.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}
