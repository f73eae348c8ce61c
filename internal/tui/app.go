// Package tui is the interactive track browser and player.
package tui

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/cadence/internal/api"
	"github.com/tessro/cadence/internal/app"
	"github.com/tessro/cadence/internal/core"
	cerrors "github.com/tessro/cadence/internal/errors"
	"github.com/tessro/cadence/internal/notify"
	"github.com/tessro/cadence/internal/playback"
	"github.com/tessro/cadence/internal/tui/components"
	"github.com/tessro/cadence/internal/tui/styles"
)

// Panel represents which panel is focused
type Panel int

const (
	PanelTracks Panel = iota
	PanelSidebar
)

const (
	requestTimeout = 30 * time.Second
	sidebarWidth   = 28
	seekStep       = 5.0
	volumeStep     = 0.05
)

// Model is the main TUI model
type Model struct {
	ctx     context.Context
	app     *app.App
	catalog catalog
	binding *playback.Binding
	refresh time.Duration

	width  int
	height int
	focus  Panel

	source     source
	sources    []source
	tracks     []core.Track
	version    uint64
	filter     core.FilterState
	list       *memo
	signedOut  bool
	playerNote string

	state   playback.State
	notices []notify.Notice

	trackList  *components.TrackList
	sidebar    *components.Sidebar
	nowPlaying *components.NowPlaying

	sidebarOpen bool
	showHelp    bool
	searching   bool
	searchInput textinput.Model

	quitting bool
}

// NewModel creates a browser over a. binding may be nil when no media
// player is available; playback state still updates but nothing is heard.
func NewModel(ctx context.Context, a *app.App, binding *playback.Binding) Model {
	ti := textinput.New()
	ti.Placeholder = "Search titles..."
	ti.CharLimit = 100
	ti.Width = 40

	refresh := time.Duration(a.Config.TUI.RefreshInterval) * time.Millisecond
	if refresh <= 0 {
		refresh = time.Second
	}

	return Model{
		ctx:         ctx,
		app:         a,
		catalog:     a.API,
		binding:     binding,
		refresh:     refresh,
		sources:     sources(nil),
		list:        &memo{},
		trackList:   components.NewTrackList(),
		sidebar:     components.NewSidebar(),
		nowPlaying:  components.NewNowPlaying(),
		sidebarOpen: a.Store.MenuOpen(),
		searchInput: ti,
		state:       a.Machine.State(),
	}
}

// Messages
type tickMsg time.Time

type tracksMsg struct {
	source source
	tracks []core.Track
	err    error
}

type selectionsMsg struct {
	selections []core.Selection
	err        error
}

// Commands
func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) fetchTracks(src source) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, requestTimeout)
		defer cancel()

		tracks, err := src.fetch(ctx, m.catalog)
		return tracksMsg{source: src, tracks: tracks, err: err}
	}
}

func (m Model) fetchSelections() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, requestTimeout)
		defer cancel()

		selections, err := m.catalog.Selections(ctx)
		return selectionsMsg{selections: selections, err: err}
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.tick(),
		m.fetchTracks(m.source),
		m.fetchSelections(),
	)
}

// displayed returns the filtered, sorted view of the loaded tracks.
func (m Model) displayed() []core.Track {
	return m.list.displayed(listKey{Source: m.source, Version: m.version, Filter: m.filter}, m.tracks)
}

func (m Model) highlighted() (core.Track, bool) {
	shown := m.displayed()
	i := m.trackList.Cursor()
	if i < 0 || i >= len(shown) {
		return core.Track{}, false
	}
	return shown[i], true
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.state = m.app.Machine.State()
		m.notices = m.app.Notices.Active()
		select {
		case <-m.app.Redirects:
			m.signedOut = true
		default:
		}
		return m, m.tick()

	case tracksMsg:
		if msg.source != m.source {
			return m, nil
		}
		if msg.err != nil {
			m.app.Notices.Error(noticeText(msg.err))
			return m, nil
		}
		m.tracks = msg.tracks
		m.version++
		m.trackList.Clamp(len(m.displayed()))
		return m, nil

	case selectionsMsg:
		if msg.err != nil {
			m.app.Logger.Warn("failed to load selections", "err", msg.err)
			return m, nil
		}
		m.sources = sources(msg.selections)
		return m, nil
	}

	if m.searching {
		return m.updateSearch(msg)
	}
	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.showHelp {
		switch msg.String() {
		case "?", "esc", "q":
			m.showHelp = false
		}
		return m, nil
	}

	if m.searching {
		switch msg.String() {
		case "esc", "enter":
			m.searching = false
			m.searchInput.Blur()
			return m, nil
		}
		return m.updateSearch(msg)
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "?":
		m.showHelp = true
		return m, nil
	case "/":
		m.searching = true
		m.searchInput.SetValue(m.filter.Query)
		m.searchInput.Focus()
		return m, textinput.Blink
	case "m":
		return m.toggleSidebar(), nil
	case "tab", "shift+tab":
		if m.sidebarOpen {
			if m.focus == PanelTracks {
				m.focus = PanelSidebar
			} else {
				m.focus = PanelTracks
			}
		}
		return m, nil
	case "r":
		return m, tea.Batch(m.fetchTracks(m.source), m.fetchSelections())
	}

	if m.focus == PanelSidebar {
		switch msg.String() {
		case "j", "down":
			m.sidebar.Move(1, len(m.sources))
			return m, nil
		case "k", "up":
			m.sidebar.Move(-1, len(m.sources))
			return m, nil
		case "enter":
			m.sidebar.Move(0, len(m.sources))
			return m.switchSource(m.sources[m.sidebar.Cursor()])
		}
	}

	// Filter controls
	switch msg.String() {
	case "a":
		if t, ok := m.highlighted(); ok {
			m.filter.Authors = toggleValue(m.filter.Authors, t.Author)
			m.trackList.Reset()
		}
		return m, nil
	case "g":
		if t, ok := m.highlighted(); ok && len(t.Genres) > 0 {
			m.filter.Genres = toggleValue(m.filter.Genres, t.Genres[0])
			m.trackList.Reset()
		}
		return m, nil
	case "s":
		m.filter.Sort = m.filter.Sort.Next()
		return m, nil
	case "x":
		m.filter = core.FilterState{}
		m.trackList.Reset()
		return m, nil
	}

	// Playback controls
	switch msg.String() {
	case "j", "down":
		m.trackList.Move(1, len(m.displayed()))
	case "k", "up":
		m.trackList.Move(-1, len(m.displayed()))
	case "enter":
		if t, ok := m.highlighted(); ok {
			m.state = m.app.Machine.SelectTrack(t.Item(), core.Items(m.displayed()))
		}
	case " ":
		m.state = m.app.Machine.TogglePlayPause()
	case "n":
		m.state = m.app.Machine.Next()
	case "p":
		m.state = m.app.Machine.Previous()
	case "+", "=":
		m.state = m.app.Machine.SetVolume(m.state.Volume + volumeStep)
	case "-":
		m.state = m.app.Machine.SetVolume(m.state.Volume - volumeStep)
	case "right", "l":
		m.state = m.seek(m.state.CurrentTime + seekStep)
	case "left", "h":
		m.state = m.seek(m.state.CurrentTime - seekStep)
	case "S":
		m.state = m.app.Machine.ToggleShuffle()
	case "R":
		m.state = m.app.Machine.ToggleRepeat()
	case "f":
		if t, ok := m.highlighted(); ok {
			_, _ = m.app.Favorites.ToggleLike(m.ctx, t.ID)
		}
	case "y":
		if t, ok := m.highlighted(); ok {
			return m, m.copyLink(t)
		}
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	if q := m.searchInput.Value(); q != m.filter.Query {
		m.filter.Query = q
		m.trackList.Reset()
	}
	return m, cmd
}

func (m Model) seek(seconds float64) playback.State {
	if m.binding != nil {
		return m.binding.Scrub(m.ctx, seconds)
	}
	return m.app.Machine.Seek(seconds)
}

// switchSource changes what is browsed. The filter does not carry over.
func (m Model) switchSource(src source) (tea.Model, tea.Cmd) {
	m.focus = PanelTracks
	if src == m.source {
		return m, nil
	}
	m.source = src
	m.tracks = nil
	m.version++
	m.filter = core.FilterState{}
	m.searchInput.SetValue("")
	m.trackList.Reset()
	return m, m.fetchTracks(src)
}

func (m Model) toggleSidebar() Model {
	m.sidebarOpen = !m.sidebarOpen
	if !m.sidebarOpen {
		m.focus = PanelTracks
	}
	if err := m.app.Store.SetMenuOpen(m.sidebarOpen); err != nil {
		m.app.Logger.Warn("failed to save menu state", "err", err)
	}
	return m
}

func (m Model) copyLink(t core.Track) tea.Cmd {
	notices := m.app.Notices
	return func() tea.Msg {
		if t.MediaURL == "" {
			notices.Error("Track has no media link")
			return nil
		}
		if err := clipboard.WriteAll(t.MediaURL); err != nil {
			notices.Error("Could not copy to clipboard")
			return nil
		}
		notices.Info("Copied link to " + t.Title)
		return nil
	}
}

// toggleValue adds v to values, or removes it if present.
func toggleValue(values []string, v string) []string {
	if i := slices.Index(values, v); i >= 0 {
		return slices.Delete(slices.Clone(values), i, i+1)
	}
	return append(slices.Clone(values), v)
}

// noticeText is the short message shown for a failed request.
func noticeText(err error) string {
	var apiErr *api.APIError
	switch cerrors.Classify(err) {
	case cerrors.KindValidation:
		if errors.As(err, &apiErr) {
			return apiErr.Message
		}
	case cerrors.KindTransport:
		return "Network error, try again"
	case cerrors.KindAuthorization:
		return "Sign in to continue"
	}
	return err.Error()
}

// View renders the UI
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	bottom := []string{}
	if np := m.nowPlaying.Render(m.state, m.nowPlayingLiked(), m.width); np != "" {
		bottom = append(bottom, np)
	}
	if m.searching || m.filter.Query != "" {
		bottom = append(bottom, " "+m.searchInput.View())
	}
	bottom = append(bottom, m.renderStatusBar())
	footer := lipgloss.JoinVertical(lipgloss.Left, bottom...)

	header := m.renderHeader()
	bodyHeight := max(m.height-lipgloss.Height(header)-lipgloss.Height(footer), 5)

	listWidth := m.width
	var body string
	if m.sidebarOpen {
		listWidth -= sidebarWidth
		entries := make([]string, len(m.sources))
		active := 0
		for i, s := range m.sources {
			entries[i] = s.title()
			if s == m.source {
				active = i
			}
		}
		side := m.sidebar.Render(entries, active, sidebarWidth, bodyHeight-2, m.focus == PanelSidebar)
		list := m.renderList(listWidth, bodyHeight-2)
		body = lipgloss.JoinHorizontal(lipgloss.Top, side, list)
	} else {
		body = m.renderList(listWidth, bodyHeight-2)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) renderList(width, height int) string {
	playing := -1
	if m.state.Track != nil {
		playing = m.state.Track.ID
	}
	return m.trackList.Render(m.source.title(), m.displayed(), m.app.Favorites.Contains, playing, width, height, m.focus == PanelTracks)
}

func (m Model) nowPlayingLiked() bool {
	return m.state.Track != nil && m.app.Favorites.Contains(m.state.Track.ID)
}

func (m Model) renderHeader() string {
	who := styles.Dim.Render("not signed in")
	if sess := m.app.Store.Session(); sess.User != nil {
		who = styles.Muted.Render(sess.User.Username)
	} else if sess.IsAuthenticated() {
		who = styles.Muted.Render("signed in")
	}

	var parts []string
	if len(m.filter.Authors) > 0 {
		parts = append(parts, "authors: "+strings.Join(m.filter.Authors, ", "))
	}
	if len(m.filter.Genres) > 0 {
		parts = append(parts, "genres: "+strings.Join(m.filter.Genres, ", "))
	}
	if m.filter.Sort != "" && m.filter.Sort != core.SortNone {
		parts = append(parts, "sort: "+string(m.filter.Sort))
	}
	filters := styles.Dim.Render(strings.Join(parts, "  "))

	return lipgloss.NewStyle().Padding(0, 1).Render(
		styles.Highlight.Render("cadence") + "  " + who + "  " + filters)
}

func (m Model) renderStatusBar() string {
	status := styles.Dim.Render("q:quit  ?:help  /:search  enter:play  space:play/pause  f:like  m:menu")

	switch {
	case m.signedOut:
		status = styles.ErrorText.Render("Signed out. Run 'cadence auth login' to sign in again.")
	case len(m.notices) > 0:
		n := m.notices[len(m.notices)-1]
		if n.Level == notify.Error {
			status = styles.ErrorText.Render(n.Message)
		} else {
			status = styles.InfoText.Render(n.Message)
		}
	case m.playerNote != "":
		status = styles.Paused.Render(m.playerNote)
	}

	return lipgloss.NewStyle().
		Width(m.width).
		Padding(0, 1).
		Render(status)
}

func (m Model) renderHelp() string {
	title := "cadence - Keyboard Shortcuts"
	divider := strings.Repeat("═", len(title))

	help := `
  ` + title + `
  ` + divider + `

  Global
  ──────
  q, Ctrl+C    Quit
  ?            Toggle help
  m            Toggle library menu
  Tab          Switch panel
  r            Reload

  Browse
  ──────
  j/↓ k/↑      Move
  Enter        Play highlighted track
  /            Search titles
  a            Filter by highlighted author
  g            Filter by highlighted genre
  s            Cycle date sort
  x            Clear filters
  f            Like/unlike
  y            Copy media link

  Playback
  ────────
  Space        Play/Pause
  n / p        Next / previous
  ←/→          Seek 5s
  +/-          Volume
  S / R        Shuffle / repeat

  Press ? or Esc to close
`

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(styles.BorderStyle.Render(help))
}

// Run starts the TUI. Without a working mpv the browser still runs and
// says so in the status bar.
func Run(ctx context.Context, a *app.App) error {
	styles.UseTheme(a.Config.TUI.Theme)

	binding, err := a.StartPlayer(ctx)
	model := NewModel(ctx, a, binding)
	if err != nil {
		a.Logger.Warn("media player unavailable", "err", err)
		note := cerrors.GetSuggestion(err)
		if note == "" {
			note = err.Error()
		}
		model.playerNote = "No audio: " + note
	}

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
