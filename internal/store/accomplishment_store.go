package store

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/accomplishment-tracker/internal/gateway"
	"github.com/nhle/accomplishment-tracker/internal/model"
)

// ListByOwner returns the owner's accomplishments ordered by date descending.
// Rows sharing a date keep their insertion order.
func (s *SQLiteStore) ListByOwner(
	ctx context.Context,
	ownerID string,
) ([]model.Accomplishment, error) {
	if ownerID == "" {
		return nil, gateway.ErrUnauthenticated
	}

	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, user_id, title, description, date, created_at
		FROM accomplishments
		WHERE user_id = ?
		ORDER BY date DESC, seq ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying accomplishments: %w", err)
	}
	defer rows.Close()

	records := []model.Accomplishment{}
	for rows.Next() {
		var a model.Accomplishment
		if err := rows.StructScan(&a); err != nil {
			return nil, fmt.Errorf("scanning accomplishment row: %w", err)
		}
		records = append(records, a)
	}

	return records, rows.Err()
}

// Insert stores a new accomplishment, assigning its ID and creation time.
func (s *SQLiteStore) Insert(
	ctx context.Context,
	rec model.NewAccomplishment,
) (*model.Accomplishment, error) {
	if rec.UserID == "" {
		return nil, gateway.ErrUnauthenticated
	}
	if strings.TrimSpace(rec.Title) == "" {
		return nil, fmt.Errorf("accomplishment title must not be empty")
	}
	if _, err := model.ParseDate(rec.Date); err != nil {
		return nil, fmt.Errorf("parsing accomplishment date %q: %w", rec.Date, err)
	}

	a := model.Accomplishment{
		ID:          uuid.New().String(),
		UserID:      rec.UserID,
		Title:       rec.Title,
		Description: rec.Description,
		Date:        strings.TrimSpace(rec.Date),
		CreatedAt:   time.Now().UTC(),
	}

	// seq is assigned in the same statement so concurrent writers sharing
	// the file cannot both claim MAX(seq)+1.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accomplishments (
			id, user_id, title, description, date, created_at, seq
		)
		SELECT ?, ?, ?, ?, ?, ?, COALESCE(MAX(seq), 0) + 1
		FROM accomplishments
		WHERE user_id = ?`,
		a.ID, a.UserID, a.Title, a.Description, a.Date, a.CreatedAt, a.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting accomplishment: %w", err)
	}

	s.log.Debug("inserted accomplishment",
		zap.String("id", a.ID), zap.String("owner", a.UserID))
	s.hub.publish(model.ChangeEvent{
		Type:     model.ChangeInsert,
		OwnerID:  a.UserID,
		RecordID: a.ID,
	})

	return &a, nil
}

// DeleteByID removes the accomplishment id if it belongs to ownerID.
func (s *SQLiteStore) DeleteByID(ctx context.Context, ownerID, id string) error {
	if ownerID == "" {
		return gateway.ErrUnauthenticated
	}

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM accomplishments WHERE id = ? AND user_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting accomplishment %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("accomplishment %s: %w", id, gateway.ErrNotFound)
	}

	s.hub.publish(model.ChangeEvent{
		Type:     model.ChangeDelete,
		OwnerID:  ownerID,
		RecordID: id,
	})
	return nil
}

// SubscribeToOwnerChanges registers onChange for every change to rows owned
// by ownerID. The handler runs on a dedicated goroutine until unsubscribe is
// called, the context is done, or the store is closed.
func (s *SQLiteStore) SubscribeToOwnerChanges(
	ctx context.Context,
	ownerID string,
	onChange gateway.ChangeHandler,
) (func(), error) {
	if ownerID == "" {
		return nil, gateway.ErrUnauthenticated
	}
	unsubscribe := s.hub.subscribe(ctx, ownerID, onChange)
	if s.poller == nil {
		return unsubscribe, nil
	}
	unwatch := s.poller.Watch(ownerID)
	return func() {
		unsubscribe()
		unwatch()
	}, nil
}

// OwnerFingerprint hashes the ids of ownerID's rows. It changes whenever a
// row of the owner is inserted or deleted, by any process.
func (s *SQLiteStore) OwnerFingerprint(ctx context.Context, ownerID string) (string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		"SELECT id FROM accomplishments WHERE user_id = ? ORDER BY id", ownerID)
	if err != nil {
		return "", fmt.Errorf("listing ids for %s: %w", ownerID, err)
	}
	h := fnv.New64a()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return strconv.FormatUint(h.Sum64(), 16), nil
}
