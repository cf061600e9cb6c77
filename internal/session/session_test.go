package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/accomplishment-tracker/internal/gateway"
	"github.com/nhle/accomplishment-tracker/internal/model"
)

type stubAuth struct {
	session *model.Session
	err     error
}

func (a stubAuth) GetCurrentSession(context.Context) (*model.Session, error) {
	return a.session, a.err
}

func (a stubAuth) ExchangeAuthCode(context.Context, string) (*model.Session, error) {
	return nil, errors.New("unused")
}

func (a stubAuth) SignOut(context.Context) error { return nil }

func TestMemoryStoreCopies(t *testing.T) {
	m := NewMemory(nil)
	got, err := m.Load()
	require.NoError(t, err)
	assert.Nil(t, got)

	s := &model.Session{AccessToken: "a", Viewer: model.Viewer{ID: "u1"}}
	require.NoError(t, m.Save(s))
	s.AccessToken = "mutated"

	got, err = m.Load()
	require.NoError(t, err)
	assert.Equal(t, "a", got.AccessToken)

	require.NoError(t, m.Clear())
	got, err = m.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCurrentViewer(t *testing.T) {
	ctx := context.Background()

	v, err := CurrentViewer(ctx, stubAuth{session: &model.Session{Viewer: model.Viewer{ID: "u1"}}})
	require.NoError(t, err)
	assert.Equal(t, "u1", v.ID)

	_, err = CurrentViewer(ctx, stubAuth{})
	assert.ErrorIs(t, err, gateway.ErrUnauthenticated)

	boom := &gateway.TransportError{Op: "get user", Err: errors.New("down")}
	_, err = CurrentViewer(ctx, stubAuth{err: boom})
	assert.ErrorIs(t, err, boom)
}
