package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nhle/accomplishment-tracker/internal/gateway"
	"github.com/nhle/accomplishment-tracker/internal/model"
	"github.com/nhle/accomplishment-tracker/internal/store"
	"github.com/nhle/accomplishment-tracker/tests/testutil"
)

func insert(t *testing.T, s *store.SQLiteStore, owner, title, date string) model.Accomplishment {
	t.Helper()
	a, err := s.Insert(context.Background(), model.NewAccomplishment{
		UserID:      owner,
		Title:       title,
		Description: title + " details",
		Date:        date,
	})
	require.NoError(t, err)
	return *a
}

func titles(records []model.Accomplishment) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Title
	}
	return out
}

func TestListByOwnerOrdersByDateDescending(t *testing.T) {
	s := testutil.NewTestStore(t)

	insert(t, s, "alice", "old", "2024-01-10")
	insert(t, s, "alice", "new", "2024-03-01")
	insert(t, s, "alice", "tie-first", "2024-02-01")
	insert(t, s, "alice", "tie-second", "2024-02-01")

	got, err := s.ListByOwner(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "tie-first", "tie-second", "old"}, titles(got))
}

func TestListByOwnerIsScopedToOwner(t *testing.T) {
	s := testutil.NewTestStore(t)

	insert(t, s, "alice", "mine", "2024-01-10")
	insert(t, s, "bob", "theirs", "2024-01-11")

	got, err := s.ListByOwner(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].UserID)

	empty, err := s.ListByOwner(context.Background(), "carol")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestInsertAssignsServerFields(t *testing.T) {
	s := testutil.NewTestStore(t)

	before := time.Now().UTC().Add(-time.Second)
	a := insert(t, s, "alice", "Shipped v2", "2024-05-04")

	assert.NotEmpty(t, a.ID)
	assert.True(t, a.CreatedAt.After(before))

	got, err := s.ListByOwner(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)
	assert.Equal(t, "2024-05-04", got[0].Date)
	assert.WithinDuration(t, a.CreatedAt, got[0].CreatedAt, time.Second)
}

func TestInsertRejectsInvalidInput(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, model.NewAccomplishment{UserID: "alice", Title: "  ", Date: "2024-01-01"})
	assert.Error(t, err)

	_, err = s.Insert(ctx, model.NewAccomplishment{UserID: "alice", Title: "x", Date: "01/02/2024"})
	assert.Error(t, err)

	_, err = s.Insert(ctx, model.NewAccomplishment{Title: "x", Date: "2024-01-01"})
	assert.ErrorIs(t, err, gateway.ErrUnauthenticated)
}

func TestDeleteByIDRequiresOwnership(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	a := insert(t, s, "alice", "mine", "2024-01-10")

	err := s.DeleteByID(ctx, "bob", a.ID)
	assert.True(t, errors.Is(err, gateway.ErrNotFound))

	require.NoError(t, s.DeleteByID(ctx, "alice", a.ID))

	got, err := s.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSubscribeToOwnerChangesDeliversOnlyOwnerEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	events := make(chan model.ChangeEvent, 4)
	unsubscribe, err := s.SubscribeToOwnerChanges(context.Background(), "alice",
		func(ev model.ChangeEvent) { events <- ev })
	require.NoError(t, err)

	insert(t, s, "bob", "theirs", "2024-01-11")
	a := insert(t, s, "alice", "mine", "2024-01-10")

	select {
	case ev := <-events:
		assert.Equal(t, model.ChangeInsert, ev.Type)
		assert.Equal(t, "alice", ev.OwnerID)
		assert.Equal(t, a.ID, ev.RecordID)
	case <-time.After(2 * time.Second):
		t.Fatal("no change event delivered")
	}

	unsubscribe()
	unsubscribe()

	insert(t, s, "alice", "after", "2024-01-12")
	select {
	case ev := <-events:
		t.Fatalf("unexpected event after unsubscribe: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLocalAuthSession(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetProfileEmail(ctx, "local", "me@example.com"))

	auth := store.NewLocalAuth(s, "local")
	sess, err := auth.GetCurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, model.Viewer{ID: "local", Email: "me@example.com"}, sess.Viewer)

	_, err = auth.ExchangeAuthCode(ctx, "code")
	assert.True(t, gateway.IsAuthError(err))

	require.NoError(t, auth.SignOut(ctx))
	sess, err = auth.GetCurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestLocalAuthSignInAfterSignOut(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	auth := store.NewLocalAuth(s, "local")

	require.NoError(t, auth.SignOut(ctx))
	sess, err := auth.SignInWithPassword(ctx, "me@example.com", "ignored")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "me@example.com", sess.Viewer.Email)

	_, err = store.NewLocalAuth(s, "").SignInWithPassword(ctx, "x@example.com", "")
	assert.True(t, gateway.IsAuthError(err))
}

func TestPollingReportsChangesFromAnotherHandle(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "shared.db")
	watcher, err := store.NewSQLiteStore(path, store.WithPollInterval(20*time.Millisecond))
	require.NoError(t, err)
	defer watcher.Close()

	writer, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer writer.Close()

	events := make(chan model.ChangeEvent, 8)
	unsubscribe, err := watcher.SubscribeToOwnerChanges(context.Background(), "alice",
		func(ev model.ChangeEvent) { events <- ev })
	require.NoError(t, err)
	defer unsubscribe()

	// Let the first poll record the baseline.
	require.Eventually(t, func() bool {
		fp, err := watcher.OwnerFingerprint(context.Background(), "alice")
		return err == nil && fp != ""
	}, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	insert(t, writer, "alice", "from elsewhere", "2024-01-10")

	select {
	case ev := <-events:
		assert.Equal(t, "alice", ev.OwnerID)
	case <-time.After(3 * time.Second):
		t.Fatal("change from another handle not reported")
	}
}

func TestOwnerFingerprintTracksRows(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	empty, err := s.OwnerFingerprint(ctx, "alice")
	require.NoError(t, err)

	a := insert(t, s, "alice", "one", "2024-01-10")
	one, err := s.OwnerFingerprint(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, empty, one)

	insert(t, s, "bob", "theirs", "2024-01-10")
	same, err := s.OwnerFingerprint(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, one, same, "other owners do not move the fingerprint")

	require.NoError(t, s.DeleteByID(ctx, "alice", a.ID))
	back, err := s.OwnerFingerprint(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, empty, back)
}
