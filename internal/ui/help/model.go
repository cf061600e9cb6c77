// Package help renders the keyboard reference together with a summary of
// the signed-in viewer's list.
package help

import (
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/accomplishment-tracker/internal/keys"
	"github.com/nhle/accomplishment-tracker/internal/theme"
)

// Summary describes the list behind the overlay.
type Summary struct {
	Viewer     string
	Total      int
	Matching   int
	Query      string
	Page       int
	TotalPages int
}

func (s Summary) String() string {
	line := fmt.Sprintf("%s has %d accomplishments", s.Viewer, s.Total)
	if s.Query != "" {
		line += fmt.Sprintf(", %d matching %q", s.Matching, s.Query)
	}
	return line + fmt.Sprintf(" (page %d of %d)", s.Page, max(1, s.TotalPages))
}

// Model is the help overlay.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a help overlay for k.
func New(k *keys.KeyMap, width, height int) Model {
	m := Model{keys: k, help: help.New()}
	m.help.ShowAll = true
	m.SetSize(width, height)
	return m
}

// View renders the overlay for the given summary.
func (m Model) View(s Summary) string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		Render("Keyboard Shortcuts")

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		theme.DateStyle.Render(s.String()),
		"",
		m.help.View(m.keys),
		"",
		theme.HelpStyle.Render("Press d twice within a few seconds to delete. Esc or ? closes this view."),
	)

	return theme.PanelStyle.
		Width(max(0, m.width-4)).
		Height(max(0, m.height-4)).
		Render(content)
}

// SetSize updates the overlay dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = max(0, width-4)
}
