// Package credential keeps the signed-in session in the system keyring.
package credential

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"github.com/nhle/accomplishment-tracker/internal/model"
	"github.com/nhle/accomplishment-tracker/internal/session"
)

const (
	serviceName = "accomplishments"
	sessionKey  = "session"
	verifierKey = "code-verifier"
)

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/accomplishments/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("accomplishments-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

var _ session.VerifierStore = (*SessionStore)(nil)

// SessionStore stores a model.Session as JSON under a single keyring item,
// and the PKCE verifier of a pending sign-in under a second one.
type SessionStore struct {
	ring        keyring.Keyring
	key         string
	verifierKey string
}

// NewSessionStore opens the system keyring.
func NewSessionStore() (*SessionStore, error) {
	ring, err := openKeyring()
	if err != nil {
		return nil, err
	}
	return NewSessionStoreWithKeyring(ring), nil
}

// NewSessionStoreWithKeyring wraps an already opened keyring.
func NewSessionStoreWithKeyring(ring keyring.Keyring) *SessionStore {
	return &SessionStore{ring: ring, key: sessionKey, verifierKey: verifierKey}
}

// Load returns the stored session, or nil when none is stored.
func (s *SessionStore) Load() (*model.Session, error) {
	item, err := s.ring.Get(s.key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting credential %q: %w", s.key, err)
	}

	var sess model.Session
	if err := json.Unmarshal(item.Data, &sess); err != nil {
		return nil, fmt.Errorf("decoding credential %q: %w", s.key, err)
	}
	return &sess, nil
}

// Save stores sess, replacing any previous session.
func (s *SessionStore) Save(sess *model.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	err = s.ring.Set(keyring.Item{
		Key:         s.key,
		Data:        data,
		Label:       "Accomplishments session",
		Description: "Signed-in session for the accomplishments tracker",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", s.key, err)
	}

	return nil
}

// Clear removes the stored session. Clearing an empty store is not an error.
func (s *SessionStore) Clear() error {
	err := s.ring.Remove(s.key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", s.key, err)
	}
	return nil
}

// CodeVerifier returns the verifier of the pending sign-in, or "" when
// there is none.
func (s *SessionStore) CodeVerifier() string {
	item, err := s.ring.Get(s.verifierKey)
	if err != nil {
		return ""
	}
	return string(item.Data)
}

// SetCodeVerifier records v for the next code exchange. The empty string
// removes it.
func (s *SessionStore) SetCodeVerifier(v string) error {
	if v == "" {
		err := s.ring.Remove(s.verifierKey)
		if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
			return fmt.Errorf("deleting credential %q: %w", s.verifierKey, err)
		}
		return nil
	}
	err := s.ring.Set(keyring.Item{
		Key:         s.verifierKey,
		Data:        []byte(v),
		Label:       "Accomplishments sign-in verifier",
		Description: "PKCE code verifier of a pending sign-in link",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", s.verifierKey, err)
	}
	return nil
}
