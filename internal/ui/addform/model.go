// Package addform is the "Add New Accomplishment" form.
package addform

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/accomplishment-tracker/internal/model"
	"github.com/nhle/accomplishment-tracker/internal/theme"
	"github.com/nhle/accomplishment-tracker/internal/viewmodel"
)

// SubmitMsg is dispatched when the form completes with valid input.
type SubmitMsg struct {
	Input viewmodel.Input
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// formBindings holds field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	title       string
	description string
	date        string
}

// Model is the add form. Input survives a failed submit and is cleared
// only by Reset.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	err    string
	now    func() time.Time
	width  int
	height int
}

// New creates an add form whose date defaults to today.
func New(width, height int) Model {
	m := Model{fb: &formBindings{}, now: time.Now, width: width, height: height}
	m.Reset()
	return m
}

// Reset clears the inputs and any form error.
func (m *Model) Reset() {
	m.fb.title = ""
	m.fb.description = ""
	m.fb.date = m.now().Format(model.DateLayout)
	m.err = ""
}

// Input returns the current field values.
func (m Model) Input() viewmodel.Input {
	return viewmodel.Input{Title: m.fb.title, Description: m.fb.description, Date: m.fb.date}
}

// SetInput replaces the field values.
func (m *Model) SetInput(in viewmodel.Input) {
	m.fb.title = in.Title
	m.fb.description = in.Description
	m.fb.date = in.Date
}

// SetError shows a form-level error above the fields.
func (m *Model) SetError(msg string) {
	m.err = msg
}

// Start builds a fresh form around the current inputs.
func (m *Model) Start() tea.Cmd {
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Placeholder("What did you accomplish?").
				Value(&m.fb.title).
				Validate(viewmodel.ValidateTitle),
			huh.NewText().
				Title("Description").
				Placeholder("Describe your accomplishment (Markdown supported)").
				Value(&m.fb.description).
				Validate(viewmodel.ValidateDescription),
			huh.NewInput().
				Title("Date").
				Placeholder("YYYY-MM-DD").
				Value(&m.fb.date).
				Validate(viewmodel.ValidateDate),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
	return m.form.Init()
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.form = nil
		in := m.Input()
		return m, func() tea.Msg { return SubmitMsg{Input: in} }
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}
	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render("Add New Accomplishment")
	if m.err != "" {
		content += "\n" + theme.ErrorStyle.Render(m.err)
	}
	if m.form != nil {
		content += "\n" + m.form.View()
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth()).WithHeight(m.formHeight())
	}
}

func (m Model) formWidth() int {
	return min(100, max(40, m.width-4))
}

func (m Model) formHeight() int {
	return max(10, m.height-6)
}
