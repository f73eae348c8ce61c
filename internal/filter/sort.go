package filter

import (
	"slices"
	"strings"
	"time"

	"github.com/tessro/cadence/internal/core"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseReleaseDate parses the catalog's release_date field.
func ParseReleaseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SortByDate orders tracks by release date. Tracks whose date cannot be
// parsed go last in both directions, and ties keep their input order.
func SortByDate(tracks []core.Track, order core.SortOrder) []core.Track {
	out := clone(tracks)
	if order != core.SortAsc && order != core.SortDesc {
		return out
	}

	type keyed struct {
		track core.Track
		date  time.Time
		ok    bool
	}
	keys := make([]keyed, len(out))
	for i, t := range out {
		d, ok := ParseReleaseDate(t.ReleaseDate)
		keys[i] = keyed{track: t, date: d, ok: ok}
	}

	slices.SortStableFunc(keys, func(a, b keyed) int {
		switch {
		case !a.ok && !b.ok:
			return 0
		case !a.ok:
			return 1
		case !b.ok:
			return -1
		}
		c := a.date.Compare(b.date)
		if order == core.SortDesc {
			c = -c
		}
		return c
	})

	for i, k := range keys {
		out[i] = k.track
	}
	return out
}
