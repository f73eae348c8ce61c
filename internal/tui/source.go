package tui

import (
	"context"

	"github.com/tessro/cadence/internal/core"
)

type sourceKind int

const (
	sourceAll sourceKind = iota
	sourceFavorites
	sourceSelection
)

// source is where the browsed tracks come from.
type source struct {
	Kind        sourceKind
	SelectionID int
	Name        string
}

func (s source) title() string {
	switch s.Kind {
	case sourceFavorites:
		return "Favorites"
	case sourceSelection:
		return s.Name
	default:
		return "All tracks"
	}
}

// catalog is the slice of the API the browser reads.
type catalog interface {
	AllTracks(ctx context.Context) ([]core.Track, error)
	FavoriteTracks(ctx context.Context) ([]core.Track, error)
	SelectionTracks(ctx context.Context, id int) ([]core.Track, error)
	Selections(ctx context.Context) ([]core.Selection, error)
}

func (s source) fetch(ctx context.Context, c catalog) ([]core.Track, error) {
	switch s.Kind {
	case sourceFavorites:
		return c.FavoriteTracks(ctx)
	case sourceSelection:
		return c.SelectionTracks(ctx, s.SelectionID)
	default:
		return c.AllTracks(ctx)
	}
}

// sources lists the sidebar entries for the given selections.
func sources(selections []core.Selection) []source {
	out := []source{{Kind: sourceAll}, {Kind: sourceFavorites}}
	for _, sel := range selections {
		out = append(out, source{Kind: sourceSelection, SelectionID: sel.ID, Name: sel.Label()})
	}
	return out
}
