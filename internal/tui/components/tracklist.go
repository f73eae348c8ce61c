package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/filter"
	"github.com/tessro/cadence/internal/tui/styles"
)

// TrackList displays the filtered tracks with a cursor.
type TrackList struct {
	offset int
	cursor int
}

// NewTrackList creates an empty list view.
func NewTrackList() *TrackList {
	return &TrackList{}
}

// Cursor returns the highlighted row.
func (l *TrackList) Cursor() int {
	return l.cursor
}

// Move shifts the cursor by delta rows within n rows.
func (l *TrackList) Move(delta, n int) {
	l.cursor += delta
	l.Clamp(n)
}

// Reset returns the cursor to the top.
func (l *TrackList) Reset() {
	l.cursor = 0
	l.offset = 0
}

// Clamp keeps the cursor inside n rows.
func (l *TrackList) Clamp(n int) {
	l.cursor = max(0, min(l.cursor, n-1))
}

// Render renders the list panel. liked reports favorites; playing is the
// id of the current track or -1.
func (l *TrackList) Render(title string, tracks []core.Track, liked func(int) bool, playing, width, height int, focused bool) string {
	header := styles.PanelTitle(fmt.Sprintf("%s (%d)", title, len(tracks)), focused)

	var content string
	if len(tracks) == 0 {
		content = styles.Muted.Render("No tracks")
	} else {
		content = l.renderRows(tracks, liked, playing, width-4, height-4)
	}

	return styles.Panel(focused).
		Width(width).
		Height(height).
		Render(lipgloss.JoinVertical(lipgloss.Left, header, "", content))
}

func (l *TrackList) renderRows(tracks []core.Track, liked func(int) bool, playing, width, maxLines int) string {
	visible := max(maxLines, 1)
	l.Clamp(len(tracks))
	if l.cursor < l.offset {
		l.offset = l.cursor
	}
	if l.cursor >= l.offset+visible {
		l.offset = l.cursor - visible + 1
	}
	end := min(l.offset+visible, len(tracks))

	// Fixed overhead: marker (2) + heart (2) + released (16) + duration (6)
	const overhead = 26
	available := max(width-overhead, 10)
	authorWidth := max(available/3, 8)
	titleWidth := max(available-authorWidth-1, 8)

	lines := make([]string, 0, end-l.offset)
	for i := l.offset; i < end; i++ {
		t := tracks[i]

		marker := "  "
		if t.ID == playing {
			marker = styles.Playing.Render("▶ ")
		}

		line := fmt.Sprintf("%s%s %s %s %s %s",
			marker,
			styles.HeartIcon(liked(t.ID)),
			styles.Pad(t.Title, titleWidth),
			styles.Muted.Render(styles.Pad(t.Author, authorWidth)),
			styles.Dim.Render(styles.Pad(Released(t.ReleaseDate), 15)),
			styles.Dim.Render(FormatSeconds(float64(t.DurationSec))),
		)
		if i == l.cursor {
			line = styles.Selected.Render(line)
		}
		lines = append(lines, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// Released formats a release date relative to now, or "-" when unknown.
func Released(date string) string {
	t, ok := filter.ParseReleaseDate(date)
	if !ok {
		return "-"
	}
	return humanize.Time(t)
}
