// Package filter narrows and orders track listings.
//
// Every function here is pure: it never mutates its input and always
// returns a freshly allocated slice, so callers may hold on to results
// across refreshes of the underlying collection.
package filter

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/tessro/cadence/internal/core"
)

// BySearch keeps tracks whose title starts with query, ignoring case.
// A blank query keeps everything.
func BySearch(tracks []core.Track, query string) []core.Track {
	if strings.TrimSpace(query) == "" {
		return clone(tracks)
	}

	fold := cases.Fold()
	prefix := fold.String(query)

	out := make([]core.Track, 0, len(tracks))
	for _, t := range tracks {
		if strings.HasPrefix(fold.String(t.Title), prefix) {
			out = append(out, t)
		}
	}
	return out
}

// ByAuthors keeps tracks whose author is one of authors.
// An empty selection keeps everything.
func ByAuthors(tracks []core.Track, authors []string) []core.Track {
	if len(authors) == 0 {
		return clone(tracks)
	}

	want := toSet(authors)
	out := make([]core.Track, 0, len(tracks))
	for _, t := range tracks {
		if _, ok := want[t.Author]; ok {
			out = append(out, t)
		}
	}
	return out
}

// ByGenres keeps tracks tagged with at least one of genres.
// An empty selection keeps everything.
func ByGenres(tracks []core.Track, genres []string) []core.Track {
	if len(genres) == 0 {
		return clone(tracks)
	}

	want := toSet(genres)
	out := make([]core.Track, 0, len(tracks))
	for _, t := range tracks {
		for _, g := range t.Genres {
			if _, ok := want[g]; ok {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// Apply runs search, author, genre and date ordering, in that order.
func Apply(tracks []core.Track, state core.FilterState) []core.Track {
	out := BySearch(tracks, state.Query)
	out = ByAuthors(out, state.Authors)
	out = ByGenres(out, state.Genres)
	return SortByDate(out, state.Sort)
}

// UniqueAuthors lists the distinct authors of tracks in ascending order.
func UniqueAuthors(tracks []core.Track) []string {
	seen := make(map[string]struct{})
	for _, t := range tracks {
		addValue(seen, t.Author)
	}
	return sortedKeys(seen)
}

// UniqueGenres lists the distinct genres of tracks in ascending order.
func UniqueGenres(tracks []core.Track) []string {
	seen := make(map[string]struct{})
	for _, t := range tracks {
		for _, g := range t.Genres {
			addValue(seen, g)
		}
	}
	return sortedKeys(seen)
}

// placeholder is how the catalog records a missing author or genre.
const placeholder = "-"

func addValue(seen map[string]struct{}, v string) {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" || trimmed == placeholder {
		return
	}
	seen[v] = struct{}{}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func clone(tracks []core.Track) []core.Track {
	out := make([]core.Track, len(tracks))
	copy(out, tracks)
	return out
}
