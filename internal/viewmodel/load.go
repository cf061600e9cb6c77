package viewmodel

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/accomplishment-tracker/internal/gateway"
	"github.com/nhle/accomplishment-tracker/internal/model"
)

// Load fetches viewer's records. Only the response of the most recently
// issued Load is applied; earlier responses that arrive later are dropped.
// Loading for a different viewer than the current one clears the records
// first.
func (vm *ViewModel) Load(viewer model.Viewer) tea.Cmd {
	if vm.disposed {
		return nil
	}
	if viewer.IsZero() {
		return redirect(gateway.ErrUnauthenticated)
	}
	if viewer.ID != vm.viewer.ID {
		vm.switchViewer(viewer)
	}

	vm.loadSeq++
	vm.loading = true
	seq := vm.loadSeq
	gw := vm.gw
	timeout := vm.opts.CallTimeout

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		rows, err := gw.ListByOwner(ctx, viewer.ID)
		return loadedMsg{seq: seq, ownerID: viewer.ID, rows: rows, err: err}
	}
}

func (vm *ViewModel) applyLoaded(msg loadedMsg) tea.Cmd {
	if vm.disposed || msg.seq != vm.loadSeq || msg.ownerID != vm.viewer.ID {
		return nil
	}
	vm.loading = false

	if msg.err != nil {
		if gateway.IsAuthError(msg.err) {
			return redirect(msg.err)
		}
		vm.log.Warn("loading accomplishments failed", zap.Error(msg.err))
		return vm.setNotice(NoticeError, "Failed to load accomplishments")
	}

	vm.setRecords(vm.ownedOnly(msg.rows, msg.ownerID))
	return nil
}

// switchViewer resets per-viewer state. The open feed belongs to the old
// viewer and is closed.
func (vm *ViewModel) switchViewer(viewer model.Viewer) {
	vm.closeFeed()
	vm.feedRetries = 0
	vm.viewer = viewer
	vm.pending = ""
	vm.armSeq++
	vm.inFlight = map[string]bool{}
	vm.setRecords(nil)
}
