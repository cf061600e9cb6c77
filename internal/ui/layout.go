package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/accomplishment-tracker/internal/theme"
)

// Layout manages the terminal layout dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	NoticeHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions. The
// header, notice line and status bar are one row each.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		NoticeHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height left for the main content area.
func (l Layout) ContentHeight() int {
	return max(0, l.Height-l.HeaderHeight-l.NoticeHeight-l.StatusBarHeight)
}

// RenderHeader renders the top bar with the title on the left and the
// signed-in viewer on the right.
func (l Layout) RenderHeader(title, viewer string) string {
	titleRendered := theme.HeaderStyle.Render(title)

	viewerRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(viewer)

	gap := max(0, l.Width-
		lipgloss.Width(titleRendered)-
		lipgloss.Width(viewerRendered))

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.HeaderStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		filler,
		viewerRendered,
	)
}

// RenderNotice renders a one-line toast in the style of kind. An empty
// text renders a blank line so the layout does not jump.
func (l Layout) RenderNotice(kind, text string) string {
	if text == "" {
		return ""
	}
	return theme.NoticeStyle(kind).MaxWidth(l.Width).Render(text)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)

	gap := max(0, l.Width-lipgloss.Width(rendered))

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.StatusBarStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderWithFrame composes a full terminal view from the header, notice,
// content area and status bar. The content is padded to ContentHeight.
func (l Layout) RenderWithFrame(header, notice, content, statusBar string) string {
	body := lipgloss.NewStyle().
		Height(l.ContentHeight()).
		MaxHeight(l.ContentHeight()).
		Render(content)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		notice,
		body,
		statusBar,
	)
}
