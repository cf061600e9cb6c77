// Package search is the debounced search box above the accomplishments
// list.
package search

import (
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// DefaultDebounce is how long typing must pause before a query is emitted.
const DefaultDebounce = 300 * time.Millisecond

// QueryChangedMsg carries a settled query.
type QueryChangedMsg struct {
	Query string
}

// settleMsg fires when a debounce window closes. Only the one carrying the
// current generation is acted on.
type settleMsg struct {
	gen   int
	query string
}

// Model is the search box. Each edit bumps a generation and schedules a
// settle tick; ticks from older generations are dropped.
type Model struct {
	input    textinput.Model
	debounce time.Duration
	gen      int
	emitted  string
}

// New creates a search box. A non-positive debounce uses DefaultDebounce.
func New(debounce time.Duration, width int) Model {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	ti := textinput.New()
	ti.Placeholder = "Search accomplishments..."
	ti.Prompt = "/ "
	ti.Width = max(10, width-4)
	return Model{input: ti, debounce: debounce}
}

// Focus gives the box keyboard focus.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}

// Blur removes keyboard focus.
func (m *Model) Blur() {
	m.input.Blur()
}

// Focused reports whether the box has keyboard focus.
func (m Model) Focused() bool {
	return m.input.Focused()
}

// Value returns the text currently in the box.
func (m Model) Value() string {
	return m.input.Value()
}

// Generation returns the current debounce generation.
func (m Model) Generation() int {
	return m.gen
}

// Clear empties the box and emits the empty query immediately.
func (m *Model) Clear() tea.Cmd {
	m.input.SetValue("")
	m.gen++
	if m.emitted == "" {
		return nil
	}
	m.emitted = ""
	return func() tea.Msg { return QueryChangedMsg{} }
}

// Dispose drops any pending settle tick.
func (m *Model) Dispose() {
	m.gen++
}

// SetWidth resizes the input.
func (m *Model) SetWidth(width int) {
	m.input.Width = max(10, width-4)
}

// Update handles key input while focused and settle ticks at any time.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case settleMsg:
		if msg.gen != m.gen || msg.query == m.emitted {
			return m, nil
		}
		m.emitted = msg.query
		q := msg.query
		return m, func() tea.Msg { return QueryChangedMsg{Query: q} }

	case tea.KeyMsg:
		if !m.input.Focused() {
			return m, nil
		}
		before := m.input.Value()
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		if m.input.Value() == before {
			return m, cmd
		}
		m.gen++
		gen, query := m.gen, m.input.Value()
		tick := tea.Tick(m.debounce, func(time.Time) tea.Msg {
			return settleMsg{gen: gen, query: query}
		})
		return m, tea.Batch(cmd, tick)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the box.
func (m Model) View() string {
	return m.input.View()
}
