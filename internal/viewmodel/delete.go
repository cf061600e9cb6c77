package viewmodel

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/accomplishment-tracker/internal/analytics"
	"github.com/nhle/accomplishment-tracker/internal/gateway"
)

// RequestDelete is the delete button. The first request for id arms it
// and returns a timer that disarms it after the confirm window. A second
// request while id is armed commits the delete. Requests for an id whose
// delete is already running do nothing.
func (vm *ViewModel) RequestDelete(id string) tea.Cmd {
	if vm.disposed || id == "" || vm.inFlight[id] {
		return nil
	}
	if vm.pending == id {
		return vm.commitDelete(id)
	}

	vm.pending = id
	vm.armSeq++
	seq := vm.armSeq
	return tea.Tick(vm.opts.ConfirmWindow, func(time.Time) tea.Msg {
		return confirmExpiredMsg{id: id, seq: seq}
	})
}

func (vm *ViewModel) applyConfirmExpired(msg confirmExpiredMsg) {
	if vm.pending == msg.id && vm.armSeq == msg.seq && !vm.inFlight[msg.id] {
		vm.pending = ""
	}
}

func (vm *ViewModel) commitDelete(id string) tea.Cmd {
	vm.inFlight[id] = true
	ownerID := vm.viewer.ID
	gw := vm.gw
	timeout := vm.opts.CallTimeout

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := gw.DeleteByID(ctx, ownerID, id)
		return deletedMsg{id: id, ownerID: ownerID, err: err}
	}
}

func (vm *ViewModel) applyDeleted(msg deletedMsg) tea.Cmd {
	if vm.disposed || msg.ownerID != vm.viewer.ID {
		return nil
	}
	delete(vm.inFlight, msg.id)
	if vm.pending == msg.id {
		vm.pending = ""
	}

	if msg.err != nil {
		if gateway.IsAuthError(msg.err) {
			return redirect(msg.err)
		}
		vm.log.Warn("deleting accomplishment failed",
			zap.String("id", msg.id),
			zap.Error(msg.err),
		)
		return vm.setNotice(NoticeError, "Failed to delete accomplishment")
	}

	title := ""
	rows := vm.records[:0:0]
	for _, r := range vm.records {
		if r.ID == msg.id {
			title = r.Title
			continue
		}
		rows = append(rows, r)
	}
	vm.setRecords(rows)
	vm.opts.Tracker.Track(analytics.ActionDelete, title)
	return vm.setNotice(NoticeSuccess, "Accomplishment deleted")
}
