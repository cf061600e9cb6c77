package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/nhle/accomplishment-tracker/internal/model"
	"github.com/nhle/accomplishment-tracker/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T, opts ...store.Option) *store.SQLiteStore {
	t.Helper()
	return OpenStore(t, ":memory:", opts...)
}

// OpenStore opens the SQLite database at path and closes it when the test
// completes.
func OpenStore(t *testing.T, path string, opts ...store.Option) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(path, opts...)
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// Seed inserts one accomplishment per title for ownerID, dated on
// consecutive days of March 2024 starting at the 1st.
func Seed(t *testing.T, s *store.SQLiteStore, ownerID string, titles ...string) []model.Accomplishment {
	t.Helper()

	out := make([]model.Accomplishment, 0, len(titles))
	for i, title := range titles {
		a, err := s.Insert(context.Background(), model.NewAccomplishment{
			UserID:      ownerID,
			Title:       title,
			Description: "Notes on " + title,
			Date:        fmt.Sprintf("2024-03-%02d", i+1),
		})
		if err != nil {
			t.Fatalf("seeding %q: %v", title, err)
		}
		out = append(out, *a)
	}
	return out
}
