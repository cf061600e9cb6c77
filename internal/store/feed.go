package store

import (
	"context"
	"sync"

	"github.com/nhle/accomplishment-tracker/internal/gateway"
	"github.com/nhle/accomplishment-tracker/internal/model"
)

// subscriber is one open change feed.
type subscriber struct {
	events chan model.ChangeEvent
	done   chan struct{}
	once   sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// changeHub fans out row changes to the feeds of the owning viewer.
type changeHub struct {
	mu     sync.Mutex
	subs   map[string]map[*subscriber]struct{}
	closed bool
}

func newChangeHub() *changeHub {
	return &changeHub{subs: map[string]map[*subscriber]struct{}{}}
}

// subscribe starts delivering ownerID's changes to onChange and returns the
// function that stops delivery.
func (h *changeHub) subscribe(
	ctx context.Context,
	ownerID string,
	onChange gateway.ChangeHandler,
) func() {
	sub := &subscriber{
		events: make(chan model.ChangeEvent, 8),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return func() {}
	}
	if h.subs[ownerID] == nil {
		h.subs[ownerID] = map[*subscriber]struct{}{}
	}
	h.subs[ownerID][sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		defer h.remove(ownerID, sub)
		for {
			select {
			case <-sub.done:
				return
			case <-ctx.Done():
				return
			case ev := <-sub.events:
				select {
				case <-sub.done:
					return
				default:
				}
				onChange(ev)
			}
		}
	}()

	return sub.close
}

func (h *changeHub) remove(ownerID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[ownerID], sub)
	if len(h.subs[ownerID]) == 0 {
		delete(h.subs, ownerID)
	}
}

// publish delivers ev to the owner's feeds without blocking. A feed that is
// behind drops the event; any pending event already triggers a refetch.
func (h *changeHub) publish(ev model.ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[ev.OwnerID] {
		select {
		case sub.events <- ev:
		default:
		}
	}
}

// closeAll stops every feed.
func (h *changeHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, set := range h.subs {
		for sub := range set {
			sub.close()
		}
	}
}
