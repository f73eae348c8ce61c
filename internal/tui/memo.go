package tui

import (
	"github.com/mitchellh/hashstructure/v2"

	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/filter"
)

// listKey identifies one derived list. Version changes whenever the loaded
// tracks are replaced.
type listKey struct {
	Source  source
	Version uint64
	Filter  core.FilterState
}

// memo caches the displayed list for the last key it saw.
type memo struct {
	hash  uint64
	valid bool
	items []core.Track
	// computed counts recomputations.
	computed int
}

func (m *memo) displayed(key listKey, tracks []core.Track) []core.Track {
	h, err := hashstructure.Hash(key, hashstructure.FormatV2, nil)
	if err == nil && m.valid && h == m.hash {
		return m.items
	}

	m.items = filter.Apply(tracks, key.Filter)
	m.hash = h
	m.valid = err == nil
	m.computed++
	return m.items
}
