package viewmodel

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nhle/accomplishment-tracker/internal/gateway"
	"github.com/nhle/accomplishment-tracker/internal/model"
)

// subscribe opens the feed and returns the command waiting for its first
// change.
func subscribe(t *testing.T, vm *ViewModel, viewer model.Viewer) tea.Cmd {
	t.Helper()
	msg, ok := execCmd(vm.Subscribe(viewer), time.Second)
	require.True(t, ok)
	wait := vm.Update(msg)
	require.NotNil(t, wait)
	return wait
}

func TestFeedEventTriggersRefetch(t *testing.T) {
	fake := seedFake()
	vm, _ := newTestVM(t, fake)
	run(t, vm, vm.Load(alice))

	wait := subscribe(t, vm, alice)
	require.Equal(t, 1, fake.Subscribers())

	// Written by another session; only the feed tells us.
	fake.Put(rec("d", "alice", "From elsewhere", "2024-06-01"))
	fake.Emit(model.ChangeEvent{Type: model.ChangeInsert, OwnerID: "alice", RecordID: "d"})
	fake.Emit(model.ChangeEvent{Type: model.ChangeUpdate, OwnerID: "alice", RecordID: "d"})

	changed, ok := execCmd(wait, time.Second)
	require.True(t, ok)
	require.IsType(t, changedMsg{}, changed)
	assert.Empty(t, vm.feed.dirty, "bursts coalesce into one refetch")

	run(t, vm, vm.Update(changed))
	assert.Equal(t, []string{"d", "a", "b", "c"}, ids(vm.Records()))
}

func TestFeedIgnoresOtherOwners(t *testing.T) {
	fake := seedFake()
	vm, _ := newTestVM(t, fake)
	subscribe(t, vm, alice)

	fake.EmitToAll(model.ChangeEvent{Type: model.ChangeInsert, OwnerID: "bob", RecordID: "y"})
	assert.Empty(t, vm.feed.dirty)
}

func TestResubscribeClosesPriorFeed(t *testing.T) {
	fake := seedFake()
	vm, _ := newTestVM(t, fake)
	subscribe(t, vm, alice)
	old := vm.feed

	subscribe(t, vm, alice)
	assert.Equal(t, 1, fake.Subscribers())
	assert.Equal(t, 1, fake.UnsubscribeCalls)

	// A change signal that raced the close is dropped.
	assert.Nil(t, vm.Update(changedMsg{feedID: old.id}))
}

func TestSupersededSubscriptionIsReleased(t *testing.T) {
	fake := seedFake()
	vm, _ := newTestVM(t, fake)

	first := vm.Subscribe(alice)
	second := vm.Subscribe(alice)

	late, ok := execCmd(first, time.Second)
	require.True(t, ok)
	assert.Nil(t, vm.Update(late))
	assert.Equal(t, 0, fake.Subscribers(), "a subscription set up for a closed feed is released")

	msg, ok := execCmd(second, time.Second)
	require.True(t, ok)
	assert.NotNil(t, vm.Update(msg))
	assert.Equal(t, 1, fake.Subscribers())
}

func TestSubscribeFailureIsRecoverable(t *testing.T) {
	fake := seedFake()
	fake.SetError(&fake.SubscribeErr, &gateway.TransportError{Op: "subscribe", Err: errors.New("no socket")})
	vm, _ := newTestVM(t, fake)

	msgs := run(t, vm, vm.Subscribe(alice))
	assert.Empty(t, redirects(msgs))
	assert.Equal(t, Notice{Kind: NoticeError, Text: "Live updates are unavailable"}, vm.Notification())
}

func TestDisposeClosesFeedAndReleasesWaiter(t *testing.T) {
	baseline := goleak.IgnoreCurrent()
	defer goleak.VerifyNone(t, baseline)

	fake := seedFake()
	vm := New(fake, alice, testOptions(nil))

	msg, ok := execCmd(vm.Subscribe(alice), time.Second)
	require.True(t, ok)
	wait := vm.Update(msg)

	done := make(chan any, 1)
	go func() { done <- wait() }()

	vm.Dispose()
	vm.Dispose()

	select {
	case m := <-done:
		assert.Nil(t, m)
	case <-time.After(time.Second):
		t.Fatal("waiter not released by Dispose")
	}
	assert.Equal(t, 0, fake.Subscribers())
	assert.True(t, vm.Disposed())

	fake.Emit(model.ChangeEvent{Type: model.ChangeDelete, OwnerID: "alice", RecordID: "a"})
	list, _, _ := fake.Calls()
	assert.Zero(t, list)
}

func TestLostFeedRefetchesAndResubscribes(t *testing.T) {
	fake := seedFake()
	opts := testOptions(nil)
	opts.ResubscribeMin = 5 * time.Millisecond
	vm := New(fake, alice, opts)
	t.Cleanup(vm.Dispose)

	wait := subscribe(t, vm, alice)
	old := vm.feed

	// Written while the connection was down; no change event will come.
	fake.Put(rec("d", "alice", "Missed while offline", "2024-06-01"))
	fake.DropFeeds("alice")

	lost, ok := execCmd(wait, time.Second)
	require.True(t, ok)
	require.Equal(t, feedLostMsg{feedID: old.id}, lost)

	msgs := run(t, vm, vm.Update(lost))
	assert.Equal(t, Notice{Kind: NoticeError, Text: "Live updates are unavailable"}, vm.Notification())
	assert.Equal(t, []string{"d", "a", "b", "c"}, ids(vm.Records()), "one refetch covers the gap")

	var resubscribed bool
	for _, m := range msgs {
		if _, isResub := m.(resubscribeMsg); isResub {
			resubscribed = true
		}
	}
	assert.True(t, resubscribed)
	require.NotNil(t, vm.feed)
	assert.NotEqual(t, old.id, vm.feed.id)
	assert.Equal(t, 1, fake.UnsubscribeCalls, "the lost feed is released")
	assert.Equal(t, 1, fake.Subscribers(), "one live feed after the retry")
}

func TestSubscribeFailureRetriesWithBackoff(t *testing.T) {
	fake := seedFake()
	fake.SetError(&fake.SubscribeErr, &gateway.TransportError{Op: "subscribe", Err: errors.New("no socket")})
	opts := testOptions(nil)
	opts.ResubscribeMin = 5 * time.Millisecond
	vm := New(fake, alice, opts)
	t.Cleanup(vm.Dispose)

	msg, ok := execCmd(vm.Subscribe(alice), time.Second)
	require.True(t, ok)
	retry := vm.Update(msg)
	require.NotNil(t, retry)
	assert.Equal(t, 1, vm.feedRetries)

	fake.SetError(&fake.SubscribeErr, nil)
	run(t, vm, retry)
	assert.Equal(t, 1, fake.Subscribers())
	assert.Equal(t, 1, vm.feedRetries, "only a delivered change resets the backoff")
}

func TestResubscribeAfterDisposeIsDropped(t *testing.T) {
	fake := seedFake()
	vm, _ := newTestVM(t, fake)
	subscribe(t, vm, alice)
	id := vm.feed.id

	vm.Dispose()
	assert.Nil(t, vm.Update(resubscribeMsg{feedID: id}))
	assert.Nil(t, vm.Update(feedLostMsg{feedID: id}))
	assert.Equal(t, 0, fake.Subscribers())
}

func TestStaleResubscribeIsDropped(t *testing.T) {
	fake := seedFake()
	vm, _ := newTestVM(t, fake)
	subscribe(t, vm, alice)
	old := vm.feed.id
	subscribe(t, vm, alice)

	assert.Nil(t, vm.Update(resubscribeMsg{feedID: old}))
	assert.Nil(t, vm.Update(feedLostMsg{feedID: old}))
	assert.Equal(t, 1, fake.Subscribers())
}

func TestResubscribeDelay(t *testing.T) {
	lo, hi := time.Second, 30*time.Second
	want := []time.Duration{1, 2, 4, 8, 16, 30, 30}
	for retries, w := range want {
		assert.Equal(t, w*time.Second, resubscribeDelay(retries, lo, hi), "retry %d", retries)
	}
	assert.Equal(t, hi, resubscribeDelay(1000, lo, hi))
}
