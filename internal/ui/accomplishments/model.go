// Package accomplishments renders the viewer's page of records and turns
// list keys into View Model operations.
package accomplishments

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/paginator"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/accomplishment-tracker/internal/keys"
	"github.com/nhle/accomplishment-tracker/internal/model"
	"github.com/nhle/accomplishment-tracker/internal/theme"
	"github.com/nhle/accomplishment-tracker/internal/viewmodel"
)

// Delete control labels.
const (
	LabelDelete   = "Delete"
	LabelConfirm  = "Click to confirm"
	LabelDeleting = "Deleting..."
)

const (
	emptyText   = "No accomplishments yet. Add your first one!"
	loadingText = "Loading accomplishments..."
)

// Model is the list view. It holds only the cursor and rendering state;
// records and paging live in the View Model.
type Model struct {
	keys     *keys.KeyMap
	cursor   int
	width    int
	height   int
	style    string
	renderer *glamour.TermRenderer
}

// New creates a list view. style names a glamour standard style used for
// descriptions, e.g. "dark", "light" or "notty".
func New(k *keys.KeyMap, style string, width, height int) Model {
	if style == "" {
		style = "dark"
	}
	m := Model{keys: k, style: style}
	m.SetSize(width, height)
	return m
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.style),
		glamour.WithWordWrap(max(20, width-8)),
	)
	if err != nil {
		r = nil
	}
	m.renderer = r
}

// Cursor returns the focused row on the current page.
func (m Model) Cursor() int {
	return m.cursor
}

// ResetCursor moves focus to the first row.
func (m *Model) ResetCursor() {
	m.cursor = 0
}

// Selected returns the focused record.
func (m Model) Selected(vm *viewmodel.ViewModel) (model.Accomplishment, bool) {
	page := vm.Page()
	if len(page) == 0 {
		return model.Accomplishment{}, false
	}
	return page[min(m.cursor, len(page)-1)], true
}

// DeleteLabel returns the label of the delete control for id.
func DeleteLabel(vm *viewmodel.ViewModel, id string) string {
	switch {
	case vm.InFlight(id):
		return LabelDeleting
	case vm.PendingDeletion() == id:
		return LabelConfirm
	default:
		return LabelDelete
	}
}

// Update handles list keys. Paging and deletion go through vm.
func (m Model) Update(msg tea.Msg, vm *viewmodel.ViewModel) (Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	n := len(vm.Page())

	switch {
	case key.Matches(km, m.keys.Down):
		if m.cursor < n-1 {
			m.cursor++
		}
	case key.Matches(km, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(km, m.keys.NextPage):
		before := vm.CurrentPage()
		vm.NextPage()
		if vm.CurrentPage() != before {
			m.cursor = 0
		}
	case key.Matches(km, m.keys.PrevPage):
		before := vm.CurrentPage()
		vm.PrevPage()
		if vm.CurrentPage() != before {
			m.cursor = 0
		}
	case key.Matches(km, m.keys.Delete):
		rec, ok := m.Selected(vm)
		if !ok {
			return m, nil
		}
		return m, vm.RequestDelete(rec.ID)
	}
	return m, nil
}

// View renders the current page of vm.
func (m Model) View(vm *viewmodel.ViewModel) string {
	if vm.Loading() && len(vm.Records()) == 0 {
		return theme.HelpStyle.Render(loadingText)
	}
	if vm.Empty() {
		return theme.HelpStyle.Render(emptyText)
	}
	page := vm.Page()
	if len(page) == 0 {
		return theme.HelpStyle.Render(fmt.Sprintf("No accomplishments match %q.", vm.Query()))
	}

	cursor := min(m.cursor, len(page)-1)
	rows := make([]string, 0, len(page)+1)
	for i, rec := range page {
		rows = append(rows, m.renderRow(vm, rec, i == cursor))
	}
	rows = append(rows, m.pager(vm))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m Model) renderRow(vm *viewmodel.ViewModel, rec model.Accomplishment, selected bool) string {
	label := DeleteLabel(vm, rec.ID)
	state := "idle"
	switch label {
	case LabelConfirm:
		state = "confirm"
	case LabelDeleting:
		state = "deleting"
	}

	title := theme.TitleStyle.Render(rec.Title)
	button := theme.DeleteStyle(state).Render(label)
	gap := max(1, m.width-6-lipgloss.Width(title)-lipgloss.Width(button))
	head := title + strings.Repeat(" ", gap) + button

	body := lipgloss.JoinVertical(lipgloss.Left,
		head,
		theme.DateStyle.Render(rec.LocaleDate()),
		m.description(rec.Description),
	)
	if selected {
		return theme.SelectedRowStyle.Render(body)
	}
	return theme.RowStyle.Render(body)
}

func (m Model) description(md string) string {
	md = strings.TrimSpace(md)
	if md == "" || m.renderer == nil {
		return md
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.Trim(out, "\n")
}

func (m Model) pager(vm *viewmodel.ViewModel) string {
	p := paginator.New()
	p.Type = paginator.Arabic
	p.PerPage = vm.PageSize()
	p.SetTotalPages(len(vm.Filtered()))
	p.Page = vm.CurrentPage() - 1
	return theme.HelpStyle.Render("Page " + p.View())
}
