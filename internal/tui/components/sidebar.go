package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/cadence/internal/tui/styles"
)

// Sidebar lists the track sources: the catalog, favorites and each
// selection.
type Sidebar struct {
	cursor int
}

// NewSidebar creates a sidebar with the first entry highlighted.
func NewSidebar() *Sidebar {
	return &Sidebar{}
}

// Cursor returns the highlighted entry.
func (s *Sidebar) Cursor() int {
	return s.cursor
}

// Move shifts the cursor within n entries.
func (s *Sidebar) Move(delta, n int) {
	s.cursor = max(0, min(s.cursor+delta, n-1))
}

// Render renders entries, marking the active one.
func (s *Sidebar) Render(entries []string, active, width, height int, focused bool) string {
	lines := []string{styles.PanelTitle("Library", focused), ""}
	for i, e := range entries {
		label := styles.Truncate(e, width-6)
		switch {
		case i == active:
			label = styles.Highlight.Render("● " + label)
		default:
			label = "  " + label
		}
		if focused && i == s.cursor {
			label = styles.Selected.Render(label)
		}
		lines = append(lines, label)
	}

	return styles.Panel(focused).
		Width(width).
		Height(height).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
