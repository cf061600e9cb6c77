package store

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/nhle/accomplishment-tracker/internal/gateway"
	"github.com/nhle/accomplishment-tracker/internal/model"
)

// LocalAuth is the session half of the offline backend. There is no hosted
// identity provider, so the configured viewer is signed in until SignOut is
// called, for the lifetime of the process.
type LocalAuth struct {
	store     *SQLiteStore
	viewerID  string
	signedOut atomic.Bool
}

// NewLocalAuth returns an Auth that resolves to viewerID's profile.
func NewLocalAuth(s *SQLiteStore, viewerID string) *LocalAuth {
	return &LocalAuth{store: s, viewerID: viewerID}
}

// GetCurrentSession returns a session for the local viewer, creating the
// viewer's profile row on first use.
func (a *LocalAuth) GetCurrentSession(ctx context.Context) (*model.Session, error) {
	if a.signedOut.Load() || a.viewerID == "" {
		return nil, nil
	}
	viewer, err := a.store.EnsureProfile(ctx, a.viewerID)
	if err != nil {
		return nil, err
	}
	return &model.Session{Viewer: *viewer}, nil
}

// ExchangeAuthCode always fails: the offline backend issues no codes.
func (a *LocalAuth) ExchangeAuthCode(ctx context.Context, code string) (*model.Session, error) {
	return nil, &gateway.AuthError{
		Op:      "exchange code",
		Message: "auth codes are not supported by the sqlite backend",
	}
}

// SignInWithPassword signs the local viewer back in and records email on
// their profile. The password is not checked; the database file is the
// only credential.
func (a *LocalAuth) SignInWithPassword(ctx context.Context, email, _ string) (*model.Session, error) {
	if a.viewerID == "" {
		return nil, &gateway.AuthError{Op: "sign in", Message: "no local viewer configured"}
	}
	if email != "" {
		if err := a.store.SetProfileEmail(ctx, a.viewerID, email); err != nil {
			return nil, err
		}
	}
	a.signedOut.Store(false)
	return a.GetCurrentSession(ctx)
}

// SignOut ends the local session.
func (a *LocalAuth) SignOut(ctx context.Context) error {
	a.signedOut.Store(true)
	return nil
}

// EnsureProfile returns the profile for id, inserting an empty one if it
// does not exist yet.
func (s *SQLiteStore) EnsureProfile(ctx context.Context, id string) (*model.Viewer, error) {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO profiles (id, email) VALUES (?, '')", id)
	if err != nil {
		return nil, fmt.Errorf("creating profile %s: %w", id, err)
	}

	var v model.Viewer
	err = s.db.QueryRowxContext(ctx,
		"SELECT id, email FROM profiles WHERE id = ?", id).Scan(&v.ID, &v.Email)
	if err != nil {
		return nil, fmt.Errorf("getting profile %s: %w", id, err)
	}
	return &v, nil
}

// SetProfileEmail records the email shown for a local viewer.
func (s *SQLiteStore) SetProfileEmail(ctx context.Context, id, email string) error {
	if _, err := s.EnsureProfile(ctx, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE profiles SET email = ? WHERE id = ?", email, id)
	if err != nil {
		return fmt.Errorf("updating profile %s: %w", id, err)
	}
	return nil
}

// LocalGateway combines the SQLite rows with LocalAuth.
type LocalGateway struct {
	*SQLiteStore
	*LocalAuth
}

var _ gateway.Gateway = LocalGateway{}
