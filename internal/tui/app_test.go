package tui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tessro/cadence/internal/app"
	"github.com/tessro/cadence/internal/config"
	"github.com/tessro/cadence/internal/core"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.API.BaseURL = srv.URL
	cfg.Storage.Dir = t.TempDir()
	a, err := app.New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = a.Close() })

	m := NewModel(context.Background(), a, nil)
	m.width, m.height = 100, 30
	return m
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(Model)
	}
	return m
}

var catalogTracks = []core.Track{
	{ID: 1, Title: "Blue Train", Author: "Coltrane", Genres: []string{"jazz"}, ReleaseDate: "1957-09-15"},
	{ID: 2, Title: "So What", Author: "Davis", Genres: []string{"jazz"}, ReleaseDate: "1959-08-17"},
	{ID: 3, Title: "Blackbird", Author: "Beatles", Genres: []string{"rock"}, ReleaseDate: "1968-11-22"},
}

func loaded(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tracksMsg{source: m.source, tracks: catalogTracks})
	return next.(Model)
}

func TestMemoizesDisplayedList(t *testing.T) {
	var mm memo
	key := listKey{Filter: core.FilterState{Authors: []string{"b", "a"}}}

	mm.displayed(key, catalogTracks)
	mm.displayed(key, catalogTracks)
	if mm.computed != 1 {
		t.Errorf("computed = %d, want 1", mm.computed)
	}

	// Author selection is a set; order does not matter.
	mm.displayed(listKey{Filter: core.FilterState{Authors: []string{"a", "b"}}}, catalogTracks)
	if mm.computed != 1 {
		t.Errorf("reordered set recomputed: computed = %d", mm.computed)
	}

	mm.displayed(listKey{Filter: core.FilterState{Sort: core.SortAsc}}, catalogTracks)
	if mm.computed != 2 {
		t.Errorf("computed = %d, want 2", mm.computed)
	}
}

func TestSearchFiltersList(t *testing.T) {
	m := loaded(t, newTestModel(t))
	m = press(t, m, "/", "b", "l")

	got := m.displayed()
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Errorf("displayed = %+v, want Blue Train and Blackbird", got)
	}

	m = press(t, m, "enter", "x")
	if len(m.displayed()) != 3 {
		t.Error("x did not clear the filter")
	}
}

func TestAuthorFilterAndSort(t *testing.T) {
	m := loaded(t, newTestModel(t))

	m = press(t, m, "a") // highlighted: Coltrane
	if got := m.displayed(); len(got) != 1 || got[0].Author != "Coltrane" {
		t.Errorf("displayed = %+v", got)
	}
	m = press(t, m, "a")
	if len(m.filter.Authors) != 0 {
		t.Errorf("second a did not remove the author: %v", m.filter.Authors)
	}

	m = press(t, m, "s", "s")
	if m.filter.Sort != core.SortDesc {
		t.Errorf("sort = %v, want desc", m.filter.Sort)
	}
	if got := m.displayed(); got[0].ID != 3 {
		t.Errorf("first = %d, want newest", got[0].ID)
	}
}

func TestEnterPlaysWithDisplayedPlaylist(t *testing.T) {
	m := loaded(t, newTestModel(t))
	m = press(t, m, "/", "b", "enter", "j", "enter")

	st := m.app.Machine.State()
	if st.Track == nil || st.Track.ID != 3 {
		t.Fatalf("track = %+v, want Blackbird", st.Track)
	}
	if len(st.Playlist) != 2 {
		t.Errorf("playlist = %d items, want the 2 displayed", len(st.Playlist))
	}
	if !st.IsPlaying {
		t.Error("not playing")
	}
}

func TestSwitchSourceResetsFilter(t *testing.T) {
	m := loaded(t, newTestModel(t))
	m = press(t, m, "/", "b", "enter", "s")

	m = press(t, m, "m")
	if !m.app.Store.MenuOpen() {
		t.Error("menu state not persisted")
	}
	m = press(t, m, "tab", "j", "enter") // Favorites
	if m.source.Kind != sourceFavorites {
		t.Fatalf("source = %+v", m.source)
	}
	if !m.filter.IsZero() {
		t.Errorf("filter carried over: %+v", m.filter)
	}

	// A late response for the old source is ignored.
	next, _ := m.Update(tracksMsg{source: source{Kind: sourceAll}, tracks: catalogTracks})
	m = next.(Model)
	if len(m.tracks) != 0 {
		t.Error("stale tracks applied")
	}
}

func TestLikeWhileAnonymousPostsNotice(t *testing.T) {
	m := loaded(t, newTestModel(t))
	m = press(t, m, "f")

	if m.app.Favorites.Contains(1) {
		t.Error("anonymous like applied")
	}
	if _, ok := m.app.Notices.Latest(); !ok {
		t.Error("no notice")
	}
}
