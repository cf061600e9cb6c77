package app

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/nhle/accomplishment-tracker/internal/analytics"
	"github.com/nhle/accomplishment-tracker/internal/export"
	"github.com/nhle/accomplishment-tracker/internal/gateway"
	"github.com/nhle/accomplishment-tracker/internal/model"
	"github.com/nhle/accomplishment-tracker/internal/ui"
	"github.com/nhle/accomplishment-tracker/internal/ui/accomplishments"
	"github.com/nhle/accomplishment-tracker/internal/ui/addform"
	helpview "github.com/nhle/accomplishment-tracker/internal/ui/help"
	"github.com/nhle/accomplishment-tracker/internal/ui/search"
	"github.com/nhle/accomplishment-tracker/internal/viewmodel"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewSearch
	ViewAdd
	ViewHelp
)

// Options configures the root model.
type Options struct {
	ViewModel      viewmodel.Options
	SearchDebounce time.Duration
	// MarkdownStyle is the glamour style for descriptions.
	MarkdownStyle string
	// ExportDir is where the export key writes its CSV file.
	ExportDir string
	Tracker   analytics.Tracker
	Logger    *zap.Logger
	Now       func() time.Time
}

// exportedMsg reports the outcome of a CSV export.
type exportedMsg struct {
	path  string
	count int
	err   error
}

// Model is the root Bubble Tea model. It owns the View Model for the
// signed-in viewer and routes keys to the active view.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *KeyMap
	viewer       model.Viewer
	vm           *viewmodel.ViewModel
	list         accomplishments.Model
	search       search.Model
	form         addform.Model
	helpView     helpview.Model
	opts         Options
	log          *zap.Logger
	ready        bool
	status       viewmodel.Notice
	redirect     *viewmodel.RedirectMsg
}

// New creates the root model for viewer backed by gw.
func New(gw gateway.Records, viewer model.Viewer, opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Tracker == nil {
		opts.Tracker = analytics.Nop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}
	vmOpts := opts.ViewModel
	if vmOpts.Tracker == nil {
		vmOpts.Tracker = opts.Tracker
	}
	if vmOpts.Logger == nil {
		vmOpts.Logger = opts.Logger
	}

	k := DefaultKeyMap()
	return Model{
		currentView: ViewList,
		keys:        k,
		viewer:      viewer,
		vm:          viewmodel.New(gw, viewer, vmOpts),
		list:        accomplishments.New(k, opts.MarkdownStyle, 80, 24),
		search:      search.New(opts.SearchDebounce, 80),
		form:        addform.New(80, 24),
		helpView:    helpview.New(k, 80, 24),
		opts:        opts,
		log:         opts.Logger.Named("app"),
	}
}

// Init loads the viewer's records and opens their change feed.
func (m Model) Init() tea.Cmd {
	return m.vm.Mount(m.viewer)
}

// Redirected returns the redirect that ended the program, if any.
func (m Model) Redirected() (viewmodel.RedirectMsg, bool) {
	if m.redirect == nil {
		return viewmodel.RedirectMsg{}, false
	}
	return *m.redirect, true
}

// ViewModel returns the mounted View Model.
func (m Model) ViewModel() *viewmodel.ViewModel {
	return m.vm
}

// CurrentView returns the active view.
func (m Model) CurrentView() ViewState {
	return m.currentView
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.list.SetSize(contentWidth, contentHeight-1)
		m.search.SetWidth(contentWidth)
		m.form.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		return m, nil

	case viewmodel.RedirectMsg:
		m.log.Info("session ended", zap.String("path", msg.Path), zap.Error(msg.Err))
		m.redirect = &msg
		cmd := m.quit()
		return m, cmd

	case search.QueryChangedMsg:
		m.vm.Search(msg.Query)
		m.list.ResetCursor()
		return m, nil

	case addform.SubmitMsg:
		cmd, err := m.vm.Create(m.viewer, msg.Input)
		if err != nil {
			m.form.SetError(err.Error())
			cmd := m.form.Start()
			return m, cmd
		}
		m.form.SetError("")
		m.currentView = ViewList
		return m, cmd

	case addform.CancelMsg:
		m.currentView = ViewList
		return m, nil

	case viewmodel.CreatedMsg:
		cmd := m.vm.Update(msg)
		switch {
		case msg.Err == nil:
			m.form.Reset()
		case !gateway.IsAuthError(msg.Err):
			m.form.SetError("Failed to add accomplishment")
		}
		return m, cmd

	case exportedMsg:
		if msg.err != nil {
			m.log.Warn("exporting failed", zap.Error(msg.err))
			m.status = viewmodel.Notice{Kind: viewmodel.NoticeError, Text: "Failed to export accomplishments"}
			return m, nil
		}
		m.opts.Tracker.Track(analytics.ActionExport, "")
		m.status = viewmodel.Notice{
			Kind: viewmodel.NoticeSuccess,
			Text: fmt.Sprintf("Exported %d accomplishments to %s", msg.count, msg.path),
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			cmd := m.quit()
			return m, cmd
		}
		return m.handleKey(msg)
	}

	return m.broadcast(msg)
}

// handleKey routes a key press by the active view.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.currentView {
	case ViewSearch:
		switch msg.String() {
		case "esc", "enter":
			m.search.Blur()
			m.currentView = ViewList
			return m, nil
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd

	case ViewAdd:
		if key.Matches(msg, m.keys.Back) {
			m.currentView = ViewList
			return m, nil
		}
		var cmd tea.Cmd
		m.form, cmd = m.form.Update(msg)
		return m, cmd

	case ViewHelp:
		if key.Matches(msg, m.keys.Back) || key.Matches(msg, m.keys.Help) {
			m.currentView = m.previousView
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		cmd := m.quit()
		return m, cmd
	case key.Matches(msg, m.keys.Help):
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil
	case key.Matches(msg, m.keys.Search):
		m.currentView = ViewSearch
		cmd := m.search.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.Back):
		cmd := m.search.Clear()
		return m, cmd
	case key.Matches(msg, m.keys.Add):
		m.currentView = ViewAdd
		cmd := m.form.Start()
		return m, cmd
	case key.Matches(msg, m.keys.Refresh):
		return m, m.vm.Load(m.viewer)
	case key.Matches(msg, m.keys.Export):
		return m, m.exportCSV()
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg, m.vm)
	return m, cmd
}

// broadcast hands a non-key message to every component that may own it:
// View Model results, search settle ticks and form internals.
func (m Model) broadcast(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.vm.Update(msg)}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	cmds = append(cmds, cmd)

	if m.currentView == ViewAdd {
		m.form, cmd = m.form.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// quit unmounts the View Model and stops the program.
func (m *Model) quit() tea.Cmd {
	m.search.Dispose()
	m.vm.Dispose()
	return tea.Quit
}

// exportCSV writes the viewer's full record set, ignoring the search
// query, to a dated file in the export directory.
func (m Model) exportCSV() tea.Cmd {
	records := slices.Clone(m.vm.Records())
	path := filepath.Join(m.opts.ExportDir, export.Filename(m.opts.Now()))
	return func() tea.Msg {
		f, err := os.Create(path)
		if err != nil {
			return exportedMsg{path: path, err: err}
		}
		if err := export.WriteCSV(f, records); err != nil {
			_ = f.Close()
			return exportedMsg{path: path, err: err}
		}
		if err := f.Close(); err != nil {
			return exportedMsg{path: path, err: err}
		}
		return exportedMsg{path: path, count: len(records)}
	}
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Accomplishment Tracker", m.viewer.Email)
	notice := m.vm.Notification()
	if notice.Text == "" {
		notice = m.status
	}
	noticeLine := m.layout.RenderNotice(notice.Kind.String(), notice.Text)
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, noticeLine, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewAdd:
		return m.form.View()
	case ViewHelp:
		return m.helpView.View(m.summary())
	default:
		return lipgloss.JoinVertical(lipgloss.Left,
			m.search.View(),
			m.list.View(m.vm),
		)
	}
}

// summary describes the list for the help overlay.
func (m Model) summary() helpview.Summary {
	viewer := m.viewer.Email
	if viewer == "" {
		viewer = m.viewer.ID
	}
	return helpview.Summary{
		Viewer:     viewer,
		Total:      len(m.vm.Records()),
		Matching:   len(m.vm.Filtered()),
		Query:      m.vm.Query(),
		Page:       m.vm.CurrentPage(),
		TotalPages: m.vm.TotalPages(),
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewSearch:
		return "type to search | enter done | esc back"
	case ViewAdd:
		return "tab next field | enter submit | esc back"
	case ViewHelp:
		return "? close help | esc back"
	default:
		return "q quit | ? help | n add | d delete | / search | h/l page | x export"
	}
}
