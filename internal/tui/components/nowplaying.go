package components

import (
	"fmt"
	"math"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/cadence/internal/playback"
	"github.com/tessro/cadence/internal/tui/styles"
)

// NowPlaying displays the current track and the playback flags.
type NowPlaying struct{}

// NewNowPlaying creates a new NowPlaying component
func NewNowPlaying() *NowPlaying {
	return &NowPlaying{}
}

// Render renders the now playing panel. Nothing is shown without a track.
func (n *NowPlaying) Render(state playback.State, liked bool, width int) string {
	if state.Track == nil {
		return ""
	}

	inner := width - 4
	track := state.Track

	title := styles.StatusIcon(state.IsPlaying) + " " +
		styles.Title.Render(styles.Truncate(track.Title, inner-4)) + " " +
		styles.HeartIcon(liked)
	byline := styles.Subtitle.Render(styles.Truncate(track.Author, inner/2))
	if track.Album != "" {
		byline += styles.Dim.Render(" · " + styles.Truncate(track.Album, inner/2))
	}

	barWidth := max(inner-14, 10)
	progress := fmt.Sprintf("%s %s %s",
		FormatSeconds(state.CurrentTime),
		styles.ProgressBar(state.Progress(), barWidth),
		FormatSeconds(state.Duration))

	return styles.Panel(false).Width(width).Render(lipgloss.JoinVertical(lipgloss.Left,
		title,
		"  "+byline,
		progress,
		n.renderControls(state),
	))
}

func (n *NowPlaying) renderControls(state playback.State) string {
	flag := func(label string, on bool) string {
		if on {
			return styles.Highlight.Render(label)
		}
		return styles.Dim.Render(label)
	}

	return fmt.Sprintf("%s  %s  %s  %s",
		flag("shuffle", state.Shuffle),
		flag("repeat", state.Repeat),
		styles.Muted.Render(fmt.Sprintf("vol %d%%", int(math.Round(state.Volume*100)))),
		styles.Dim.Render(fmt.Sprintf("%d/%d", state.Index()+1, len(state.Playlist))),
	)
}

// FormatSeconds formats a position as m:ss.
func FormatSeconds(sec float64) string {
	if sec < 0 || math.IsNaN(sec) || math.IsInf(sec, 0) {
		sec = 0
	}
	total := int(sec)
	if total >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", total/3600, total%3600/60, total%60)
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
