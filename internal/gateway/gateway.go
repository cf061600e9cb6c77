package gateway

import (
	"context"

	"github.com/nhle/accomplishment-tracker/internal/model"
)

// ChangeHandler receives change notifications for a subscribed owner.
// It may be called from any goroutine.
type ChangeHandler func(model.ChangeEvent)

// Records is the row half of the data service: owner-scoped CRUD plus a
// change-notification feed.
type Records interface {
	// ListByOwner returns every accomplishment owned by ownerID,
	// ordered by date descending.
	ListByOwner(ctx context.Context, ownerID string) ([]model.Accomplishment, error)

	// Insert stores a new accomplishment and returns the stored row with
	// its server-assigned ID and CreatedAt.
	Insert(ctx context.Context, rec model.NewAccomplishment) (*model.Accomplishment, error)

	// DeleteByID removes the row with id owned by ownerID.
	DeleteByID(ctx context.Context, ownerID, id string) error

	// SubscribeToOwnerChanges opens a change feed scoped to ownerID.
	// The returned function closes the feed; it is safe to call more
	// than once. A feed that ends on its own delivers one final event of
	// type model.ChangeFeedLost; the caller still unsubscribes it and
	// subscribes again to resume.
	SubscribeToOwnerChanges(
		ctx context.Context,
		ownerID string,
		onChange ChangeHandler,
	) (unsubscribe func(), err error)
}

// Auth is the session half of the data service.
type Auth interface {
	// GetCurrentSession returns the active session, or nil when there is
	// none. Callers treat an error the same as no session.
	GetCurrentSession(ctx context.Context) (*model.Session, error)

	// ExchangeAuthCode trades a one-time auth code for a session.
	ExchangeAuthCode(ctx context.Context, code string) (*model.Session, error)

	// SignOut ends the current session.
	SignOut(ctx context.Context) error
}

// Gateway is the full external data service contract.
type Gateway interface {
	Records
	Auth
}
