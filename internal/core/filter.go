package core

import "fmt"

// SortOrder orders tracks by release date.
type SortOrder string

const (
	SortNone SortOrder = "none"
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ParseSortOrder parses a sort flag value. The empty string means SortNone.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(s) {
	case "", SortNone:
		return SortNone, nil
	case SortAsc, SortDesc:
		return SortOrder(s), nil
	default:
		return SortNone, fmt.Errorf("invalid sort order: %s (must be none, asc, or desc)", s)
	}
}

// Next cycles none -> asc -> desc -> none.
func (o SortOrder) Next() SortOrder {
	switch o {
	case SortAsc:
		return SortDesc
	case SortDesc:
		return SortNone
	default:
		return SortAsc
	}
}

// FilterState is the ephemeral filter configuration of a track listing.
type FilterState struct {
	Query   string    `json:"query"`
	Authors []string  `json:"authors" hash:"set"`
	Genres  []string  `json:"genres" hash:"set"`
	Sort    SortOrder `json:"sort"`
}

// IsZero reports whether no filter or ordering is applied.
func (f FilterState) IsZero() bool {
	return f.Query == "" && len(f.Authors) == 0 && len(f.Genres) == 0 && (f.Sort == "" || f.Sort == SortNone)
}
