package viewmodel

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/accomplishment-tracker/internal/gateway"
	"github.com/nhle/accomplishment-tracker/internal/model"
)

// feed is the ViewModel's side of one change subscription. The gateway
// callback runs on the gateway's goroutine and only marks the feed dirty;
// waitForChange turns that mark into a message on the event loop.
type feed struct {
	id      int
	ownerID string
	dirty   chan struct{}
	lost    chan struct{}
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc

	mu          sync.Mutex
	closed      bool
	unsubscribe func()
}

func newFeed(id int, ownerID string) *feed {
	ctx, cancel := context.WithCancel(context.Background())
	return &feed{
		id:      id,
		ownerID: ownerID,
		dirty:   make(chan struct{}, 1),
		lost:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// notify is the gateway.ChangeHandler. Events for other owners are ignored
// and pending notifications coalesce into one.
func (f *feed) notify(ev model.ChangeEvent) {
	if ev.OwnerID != f.ownerID {
		return
	}
	ch := f.dirty
	if ev.Type == model.ChangeFeedLost {
		ch = f.lost
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// attach records the gateway's unsubscribe function. It reports false when
// the feed was closed while the subscription was being set up, in which
// case the caller must unsubscribe itself.
func (f *feed) attach(unsubscribe func()) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.unsubscribe = unsubscribe
	return true
}

func (f *feed) close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	unsubscribe := f.unsubscribe
	f.mu.Unlock()

	close(f.done)
	f.cancel()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// waitForChange blocks until the feed is dirty, lost or closed.
func (f *feed) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-f.dirty:
			return changedMsg{feedID: f.id}
		case <-f.lost:
			return feedLostMsg{feedID: f.id}
		case <-f.done:
			return nil
		}
	}
}

// Subscribe opens viewer's change feed, closing any feed already open.
// Each change triggers a full Load; event payloads are not used.
func (vm *ViewModel) Subscribe(viewer model.Viewer) tea.Cmd {
	if vm.disposed {
		return nil
	}
	if viewer.IsZero() {
		return redirect(gateway.ErrUnauthenticated)
	}
	if viewer.ID != vm.viewer.ID {
		vm.switchViewer(viewer)
	}

	vm.closeFeed()
	vm.feedSeq++
	f := newFeed(vm.feedSeq, viewer.ID)
	vm.feed = f
	gw := vm.gw

	return func() tea.Msg {
		unsubscribe, err := gw.SubscribeToOwnerChanges(f.ctx, f.ownerID, f.notify)
		return subscribedMsg{feedID: f.id, unsubscribe: unsubscribe, err: err}
	}
}

func (vm *ViewModel) applySubscribed(msg subscribedMsg) tea.Cmd {
	f := vm.feed
	if vm.disposed || f == nil || f.id != msg.feedID {
		if msg.unsubscribe != nil {
			msg.unsubscribe()
		}
		return nil
	}

	if msg.err != nil {
		if gateway.IsAuthError(msg.err) {
			return redirect(msg.err)
		}
		vm.log.Warn("opening change feed failed", zap.Error(msg.err))
		return tea.Batch(
			vm.setNotice(NoticeError, "Live updates are unavailable"),
			vm.scheduleResubscribe(f),
		)
	}

	if !f.attach(msg.unsubscribe) {
		msg.unsubscribe()
		return nil
	}
	return f.waitForChange()
}

func (vm *ViewModel) applyChanged(msg changedMsg) tea.Cmd {
	f := vm.feed
	if vm.disposed || f == nil || f.id != msg.feedID {
		return nil
	}
	vm.feedRetries = 0
	return tea.Batch(vm.Load(vm.viewer), f.waitForChange())
}

// applyFeedLost refetches once, since changes made while the feed was down
// were missed, and schedules a new subscription.
func (vm *ViewModel) applyFeedLost(msg feedLostMsg) tea.Cmd {
	f := vm.feed
	if vm.disposed || f == nil || f.id != msg.feedID {
		return nil
	}
	vm.log.Warn("change feed lost", zap.String("owner", f.ownerID), zap.Int("retries", vm.feedRetries))
	return tea.Batch(
		vm.setNotice(NoticeError, "Live updates are unavailable"),
		vm.Load(vm.viewer),
		vm.scheduleResubscribe(f),
	)
}

// scheduleResubscribe replaces f after a backoff that grows with each
// consecutive failure.
func (vm *ViewModel) scheduleResubscribe(f *feed) tea.Cmd {
	delay := resubscribeDelay(vm.feedRetries, vm.opts.ResubscribeMin, vm.opts.ResubscribeMax)
	vm.feedRetries++
	id := f.id
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return resubscribeMsg{feedID: id}
	})
}

func (vm *ViewModel) applyResubscribe(msg resubscribeMsg) tea.Cmd {
	f := vm.feed
	// A newer Subscribe or Dispose already replaced the feed.
	if vm.disposed || f == nil || f.id != msg.feedID {
		return nil
	}
	return vm.Subscribe(vm.viewer)
}

// resubscribeDelay doubles from lo for every retry, capped at hi.
func resubscribeDelay(retries int, lo, hi time.Duration) time.Duration {
	d := lo
	for range retries {
		if d >= hi/2 {
			return hi
		}
		d *= 2
	}
	return min(d, hi)
}

func (vm *ViewModel) closeFeed() {
	if vm.feed != nil {
		vm.feed.close()
		vm.feed = nil
	}
}
