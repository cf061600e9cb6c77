// Package viewmodel holds the state behind the accomplishments list: the
// viewer's records, search and pagination over them, the two-step delete
// confirmation and record creation.
//
// The ViewModel is driven by a Bubble Tea event loop. Operations that talk
// to the gateway return a tea.Cmd; the command's result comes back as a Msg
// which must be passed to Update. State is only ever touched from the loop,
// so the ViewModel has no locks and must not be shared across goroutines.
package viewmodel

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/accomplishment-tracker/internal/analytics"
	"github.com/nhle/accomplishment-tracker/internal/gateway"
	"github.com/nhle/accomplishment-tracker/internal/model"
)

const (
	DefaultPageSize      = 5
	DefaultConfirmWindow = 3 * time.Second
	DefaultNoticeTTL     = 4 * time.Second
	DefaultCallTimeout   = 30 * time.Second

	DefaultResubscribeMin = time.Second
	DefaultResubscribeMax = 30 * time.Second
)

// LoginPath is where an unauthenticated viewer is sent.
const LoginPath = "/login"

// Options configures a ViewModel. Zero values take the defaults.
type Options struct {
	PageSize      int
	ConfirmWindow time.Duration
	NoticeTTL     time.Duration
	CallTimeout   time.Duration
	// ResubscribeMin and ResubscribeMax bound the wait before reopening a
	// change feed that failed or was lost.
	ResubscribeMin time.Duration
	ResubscribeMax time.Duration
	Tracker        analytics.Tracker
	Logger         *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.ConfirmWindow <= 0 {
		o.ConfirmWindow = DefaultConfirmWindow
	}
	if o.NoticeTTL <= 0 {
		o.NoticeTTL = DefaultNoticeTTL
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	if o.ResubscribeMin <= 0 {
		o.ResubscribeMin = DefaultResubscribeMin
	}
	if o.ResubscribeMax < o.ResubscribeMin {
		o.ResubscribeMax = max(DefaultResubscribeMax, o.ResubscribeMin)
	}
	if o.Tracker == nil {
		o.Tracker = analytics.Nop{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// NoticeKind classifies a Notice.
type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	NoticeSuccess
	NoticeError
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeSuccess:
		return "success"
	case NoticeError:
		return "error"
	default:
		return "info"
	}
}

// Notice is a transient status message for the viewer.
type Notice struct {
	Kind NoticeKind
	Text string
}

// ViewModel is the state of one mounted accomplishments list.
type ViewModel struct {
	gw     gateway.Records
	viewer model.Viewer
	opts   Options
	log    *zap.Logger

	records  []model.Accomplishment
	query    string
	filtered []model.Accomplishment
	page     int
	loading  bool

	pending  string
	armSeq   int
	inFlight map[string]bool

	loadSeq int

	feed        *feed
	feedSeq     int
	feedRetries int

	notice    Notice
	noticeSeq int

	disposed bool
}

// New mounts a ViewModel for viewer. Nothing is fetched until Load or
// Subscribe is called.
func New(gw gateway.Records, viewer model.Viewer, opts Options) *ViewModel {
	opts = opts.withDefaults()
	return &ViewModel{
		gw:       gw,
		viewer:   viewer,
		opts:     opts,
		log:      opts.Logger.Named("viewmodel"),
		page:     1,
		inFlight: map[string]bool{},
	}
}

// Mount loads viewer's records and subscribes to their changes.
func (vm *ViewModel) Mount(viewer model.Viewer) tea.Cmd {
	return tea.Batch(vm.Load(viewer), vm.Subscribe(viewer))
}

// Update applies a message produced by one of the ViewModel's commands.
// Messages of other types are ignored.
func (vm *ViewModel) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case loadedMsg:
		return vm.applyLoaded(msg)
	case subscribedMsg:
		return vm.applySubscribed(msg)
	case changedMsg:
		return vm.applyChanged(msg)
	case feedLostMsg:
		return vm.applyFeedLost(msg)
	case resubscribeMsg:
		return vm.applyResubscribe(msg)
	case confirmExpiredMsg:
		vm.applyConfirmExpired(msg)
	case deletedMsg:
		return vm.applyDeleted(msg)
	case CreatedMsg:
		return vm.applyCreated(msg)
	case noticeExpiredMsg:
		if msg.seq == vm.noticeSeq {
			vm.notice = Notice{}
		}
	}
	return nil
}

// Dispose unmounts the ViewModel. The change feed is closed before Dispose
// returns and results of commands still running are discarded.
func (vm *ViewModel) Dispose() {
	if vm.disposed {
		return
	}
	vm.disposed = true
	vm.closeFeed()
	vm.pending = ""
	vm.armSeq++
}

// Disposed reports whether Dispose has been called.
func (vm *ViewModel) Disposed() bool { return vm.disposed }

// Viewer returns the viewer the ViewModel is mounted for.
func (vm *ViewModel) Viewer() model.Viewer { return vm.viewer }

// Records returns every record of the viewer, ignoring the search query.
// The slice must not be modified.
func (vm *ViewModel) Records() []model.Accomplishment { return vm.records }

// Filtered returns the records matching the current query.
func (vm *ViewModel) Filtered() []model.Accomplishment { return vm.filtered }

// Query returns the current search query.
func (vm *ViewModel) Query() string { return vm.query }

// Loading reports whether a load is outstanding.
func (vm *ViewModel) Loading() bool { return vm.loading }

// Empty reports whether the viewer has no records at all.
func (vm *ViewModel) Empty() bool { return !vm.loading && len(vm.records) == 0 }

// Notification returns the current notice. Its Text is empty when there is
// nothing to show.
func (vm *ViewModel) Notification() Notice { return vm.notice }

// PendingDeletion returns the id awaiting a confirming second request, or
// "" when none is armed.
func (vm *ViewModel) PendingDeletion() string { return vm.pending }

// InFlight reports whether a delete of id is in progress.
func (vm *ViewModel) InFlight(id string) bool { return vm.inFlight[id] }

// setNotice replaces the notice and schedules its expiry.
func (vm *ViewModel) setNotice(kind NoticeKind, text string) tea.Cmd {
	vm.noticeSeq++
	vm.notice = Notice{Kind: kind, Text: text}
	seq := vm.noticeSeq
	return tea.Tick(vm.opts.NoticeTTL, func(time.Time) tea.Msg {
		return noticeExpiredMsg{seq: seq}
	})
}

// redirect sends the viewer to the login view.
func redirect(err error) tea.Cmd {
	return func() tea.Msg {
		return RedirectMsg{Path: LoginPath, Err: err}
	}
}

// ownedOnly drops rows that do not belong to ownerID.
func (vm *ViewModel) ownedOnly(rows []model.Accomplishment, ownerID string) []model.Accomplishment {
	out := rows[:0:0]
	for _, r := range rows {
		if r.UserID != ownerID {
			vm.log.Warn("dropping row of another owner",
				zap.String("id", r.ID),
				zap.String("owner", r.UserID),
			)
			continue
		}
		out = append(out, r)
	}
	return out
}

// setRecords replaces the record set and refreshes derived state.
func (vm *ViewModel) setRecords(rows []model.Accomplishment) {
	vm.records = rows
	vm.refilter(false)
}
