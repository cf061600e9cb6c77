// Package gatewaytest provides an in-memory gateway.Records for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nhle/accomplishment-tracker/internal/gateway"
	"github.com/nhle/accomplishment-tracker/internal/model"
)

var _ gateway.Records = (*Fake)(nil)

// Fake is an in-memory gateway.Records. Errors set on the exported fields
// are returned by the matching call until cleared. It is safe for
// concurrent use.
type Fake struct {
	mu sync.Mutex

	ListErr      error
	InsertErr    error
	DeleteErr    error
	SubscribeErr error

	rows     []model.Accomplishment
	nextID   int
	handlers map[int]subscription
	nextSub  int

	ListCalls        int
	InsertCalls      int
	DeleteCalls      int
	UnsubscribeCalls int
}

type subscription struct {
	ownerID string
	fn      gateway.ChangeHandler
	dropped bool
}

// NewFake returns a Fake holding rows.
func NewFake(rows ...model.Accomplishment) *Fake {
	f := &Fake{handlers: map[int]subscription{}}
	f.rows = append(f.rows, rows...)
	return f
}

// SetError sets one of the error fields under the lock.
func (f *Fake) SetError(target *error, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	*target = err
}

// Put adds or replaces a row without notifying subscribers.
func (f *Fake) Put(rec model.Accomplishment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == rec.ID {
			f.rows[i] = rec
			return
		}
	}
	f.rows = append(f.rows, rec)
}

// Rows returns every stored row.
func (f *Fake) Rows() []model.Accomplishment {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Accomplishment, len(f.rows))
	copy(out, f.rows)
	return out
}

// Calls returns the list, insert and delete call counts.
func (f *Fake) Calls() (list, insert, del int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ListCalls, f.InsertCalls, f.DeleteCalls
}

// Subscribers returns the number of open feeds.
func (f *Fake) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

// ListByOwner returns the owner's rows by date descending, ties in
// insertion order.
func (f *Fake) ListByOwner(_ context.Context, ownerID string) ([]model.Accomplishment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++
	if ownerID == "" {
		return nil, gateway.ErrUnauthenticated
	}
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	out := []model.Accomplishment{}
	for _, r := range f.rows {
		if r.UserID == ownerID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

// Insert stores a row with a generated id and notifies subscribers.
func (f *Fake) Insert(_ context.Context, in model.NewAccomplishment) (*model.Accomplishment, error) {
	f.mu.Lock()
	f.InsertCalls++
	if in.UserID == "" {
		f.mu.Unlock()
		return nil, gateway.ErrUnauthenticated
	}
	if f.InsertErr != nil {
		err := f.InsertErr
		f.mu.Unlock()
		return nil, err
	}
	f.nextID++
	rec := model.Accomplishment{
		ID:          fmt.Sprintf("fake-%d", f.nextID),
		UserID:      in.UserID,
		Title:       in.Title,
		Description: in.Description,
		Date:        in.Date,
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, f.nextID, 0, time.UTC),
	}
	f.rows = append(f.rows, rec)
	f.mu.Unlock()

	f.Emit(model.ChangeEvent{Type: model.ChangeInsert, OwnerID: rec.UserID, RecordID: rec.ID})
	return &rec, nil
}

// DeleteByID removes the owner's row and notifies subscribers.
func (f *Fake) DeleteByID(_ context.Context, ownerID, id string) error {
	f.mu.Lock()
	f.DeleteCalls++
	if f.DeleteErr != nil {
		err := f.DeleteErr
		f.mu.Unlock()
		return err
	}
	idx := -1
	for i, r := range f.rows {
		if r.ID == id && r.UserID == ownerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		f.mu.Unlock()
		return fmt.Errorf("deleting accomplishment %s: %w", id, gateway.ErrNotFound)
	}
	f.rows = append(f.rows[:idx], f.rows[idx+1:]...)
	f.mu.Unlock()

	f.Emit(model.ChangeEvent{Type: model.ChangeDelete, OwnerID: ownerID, RecordID: id})
	return nil
}

// SubscribeToOwnerChanges registers onChange for ownerID.
func (f *Fake) SubscribeToOwnerChanges(
	_ context.Context,
	ownerID string,
	onChange gateway.ChangeHandler,
) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubscribeErr != nil {
		return nil, f.SubscribeErr
	}
	f.nextSub++
	id := f.nextSub
	f.handlers[id] = subscription{ownerID: ownerID, fn: onChange}

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.handlers, id)
			f.UnsubscribeCalls++
		})
	}, nil
}

// DropFeeds ends every open feed of ownerID the way a lost connection
// would: each handler gets a final model.ChangeFeedLost event and no more
// events after it. The feeds still count as open until unsubscribed.
func (f *Fake) DropFeeds(ownerID string) {
	f.mu.Lock()
	var fns []gateway.ChangeHandler
	for id, s := range f.handlers {
		if s.ownerID == ownerID && !s.dropped {
			fns = append(fns, s.fn)
			s.dropped = true
			f.handlers[id] = s
		}
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(model.ChangeEvent{Type: model.ChangeFeedLost, OwnerID: ownerID})
	}
}

// Emit delivers ev to the feeds of ev.OwnerID.
func (f *Fake) Emit(ev model.ChangeEvent) {
	for _, fn := range f.handlersFor(ev.OwnerID, false) {
		fn(ev)
	}
}

// EmitToAll delivers ev to every open feed regardless of owner, the way a
// misconfigured backend filter would.
func (f *Fake) EmitToAll(ev model.ChangeEvent) {
	for _, fn := range f.handlersFor("", true) {
		fn(ev)
	}
}

func (f *Fake) handlersFor(ownerID string, all bool) []gateway.ChangeHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []gateway.ChangeHandler
	for _, s := range f.handlers {
		if s.dropped {
			continue
		}
		if all || s.ownerID == ownerID {
			out = append(out, s.fn)
		}
	}
	return out
}
