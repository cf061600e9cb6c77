// Package session resolves and persists the signed-in viewer.
package session

import (
	"context"
	"sync"

	"github.com/nhle/accomplishment-tracker/internal/gateway"
	"github.com/nhle/accomplishment-tracker/internal/model"
)

// Store persists a session between calls. Load returns (nil, nil) when no
// session is stored.
type Store interface {
	Load() (*model.Session, error)
	Save(s *model.Session) error
	Clear() error
}

// VerifierStore is implemented by stores that also keep the PKCE code
// verifier created when a sign-in flow starts. Setting the empty string
// forgets it.
type VerifierStore interface {
	CodeVerifier() string
	SetCodeVerifier(v string) error
}

var _ VerifierStore = (*Memory)(nil)

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	session  *model.Session
	verifier string
}

// NewMemory returns a Memory store holding s, which may be nil.
func NewMemory(s *model.Session) *Memory {
	return &Memory{session: s}
}

// Load returns a copy of the stored session.
func (m *Memory) Load() (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil
	}
	cp := *m.session
	return &cp, nil
}

// Save replaces the stored session.
func (m *Memory) Save(s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.session = &cp
	return nil
}

// Clear removes the stored session.
func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

// SetCodeVerifier records the PKCE verifier for the next code exchange.
func (m *Memory) SetCodeVerifier(v string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifier = v
	return nil
}

// CodeVerifier returns the recorded PKCE verifier.
func (m *Memory) CodeVerifier() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verifier
}

// CurrentViewer returns the viewer of the current session, or
// gateway.ErrUnauthenticated when there is none.
func CurrentViewer(ctx context.Context, auth gateway.Auth) (model.Viewer, error) {
	s, err := auth.GetCurrentSession(ctx)
	if err != nil {
		return model.Viewer{}, err
	}
	if s == nil || s.Viewer.IsZero() {
		return model.Viewer{}, gateway.ErrUnauthenticated
	}
	return s.Viewer, nil
}
