package viewmodel

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/accomplishment-tracker/internal/analytics"
	"github.com/nhle/accomplishment-tracker/internal/gateway"
	"github.com/nhle/accomplishment-tracker/internal/gateway/gatewaytest"
	"github.com/nhle/accomplishment-tracker/internal/model"
)

var alice = model.Viewer{ID: "alice", Email: "alice@example.com"}

func rec(id, owner, title, date string) model.Accomplishment {
	return model.Accomplishment{
		ID:          id,
		UserID:      owner,
		Title:       title,
		Description: "about " + title,
		Date:        date,
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func ids(rows []model.Accomplishment) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

// testOptions keeps timers out of the way unless a test shortens them.
func testOptions(tr analytics.Tracker) Options {
	return Options{
		PageSize:      5,
		ConfirmWindow: time.Hour,
		NoticeTTL:     time.Hour,
		Tracker:       tr,
	}
}

func newTestVM(t *testing.T, gw gateway.Records) (*ViewModel, *analytics.Recorder) {
	t.Helper()
	tr := &analytics.Recorder{}
	vm := New(gw, alice, testOptions(tr))
	t.Cleanup(vm.Dispose)
	return vm, tr
}

// execCmd runs cmd and returns its message. It reports false when the
// command is still blocked after wait, as timers and idle feeds are.
func execCmd(cmd tea.Cmd, wait time.Duration) (tea.Msg, bool) {
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case msg := <-ch:
		return msg, true
	case <-time.After(wait):
		return nil, false
	}
}

// run executes cmd and everything it leads to, applying each message to
// vm. Blocked commands are abandoned. Every message seen is returned.
func run(t *testing.T, vm *ViewModel, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	var seen []tea.Msg
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		msg, ok := execCmd(next, 20*time.Millisecond)
		if !ok || msg == nil {
			continue
		}
		if batch, isBatch := msg.(tea.BatchMsg); isBatch {
			queue = append(queue, batch...)
			continue
		}
		seen = append(seen, msg)
		queue = append(queue, vm.Update(msg))
	}
	return seen
}

func redirects(msgs []tea.Msg) []RedirectMsg {
	var out []RedirectMsg
	for _, m := range msgs {
		if r, ok := m.(RedirectMsg); ok {
			out = append(out, r)
		}
	}
	return out
}

func seedFake() *gatewaytest.Fake {
	return gatewaytest.NewFake(
		rec("a", "alice", "Shipped search", "2024-03-01"),
		rec("b", "alice", "Gave a talk", "2024-02-14"),
		rec("c", "alice", "Mentored intern", "2024-01-05"),
		rec("x", "bob", "Bob's thing", "2024-02-20"),
	)
}
