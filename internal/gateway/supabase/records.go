package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nhle/accomplishment-tracker/internal/gateway"
	"github.com/nhle/accomplishment-tracker/internal/model"
)

const (
	tablePath = "/rest/v1/accomplishments"
	tableName = "accomplishments"
)

func representation() http.Header {
	return http.Header{"Prefer": {"return=representation"}}
}

// ListByOwner returns the owner's rows, newest date first. Rows sharing a
// date keep their creation order.
func (g *Gateway) ListByOwner(ctx context.Context, ownerID string) ([]model.Accomplishment, error) {
	token, err := g.accessToken(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	rows := []model.Accomplishment{}
	err = g.client.do(ctx, request{
		op:     "list accomplishments",
		method: http.MethodGet,
		path:   tablePath,
		query: url.Values{
			"select":  {"*"},
			"user_id": {"eq." + ownerID},
			"order":   {"date.desc,created_at.asc"},
		},
		token:  token,
		result: &rows,
	})
	if err != nil {
		return nil, fmt.Errorf("listing accomplishments: %w", err)
	}
	return rows, nil
}

// Insert creates a row and returns it with its server-assigned fields.
func (g *Gateway) Insert(ctx context.Context, in model.NewAccomplishment) (*model.Accomplishment, error) {
	token, err := g.accessToken(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	var rows []model.Accomplishment
	err = g.client.do(ctx, request{
		op:     "insert accomplishment",
		method: http.MethodPost,
		path:   tablePath,
		header: representation(),
		token:  token,
		body:   []model.NewAccomplishment{in},
		result: &rows,
	})
	if err != nil {
		return nil, fmt.Errorf("inserting accomplishment: %w", err)
	}
	if len(rows) == 0 {
		return nil, &gateway.TransportError{
			Op:  "insert accomplishment",
			Err: fmt.Errorf("no row returned"),
		}
	}
	return &rows[0], nil
}

// DeleteByID deletes the row with id owned by ownerID.
func (g *Gateway) DeleteByID(ctx context.Context, ownerID, id string) error {
	token, err := g.accessToken(ctx, ownerID)
	if err != nil {
		return err
	}

	var rows []model.Accomplishment
	err = g.client.do(ctx, request{
		op:     "delete accomplishment",
		method: http.MethodDelete,
		path:   tablePath,
		query: url.Values{
			"id":      {"eq." + id},
			"user_id": {"eq." + ownerID},
		},
		header: representation(),
		token:  token,
		result: &rows,
	})
	if err != nil {
		return fmt.Errorf("deleting accomplishment %s: %w", id, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("deleting accomplishment %s: %w", id, gateway.ErrNotFound)
	}
	return nil
}
