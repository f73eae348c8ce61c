package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tessro/cadence/internal/app"
	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/filter"
)

var (
	tracksSearch    string
	tracksAuthors   []string
	tracksGenres    []string
	tracksSort      string
	tracksSelection int
	tracksFavorites bool
	tracksLimit     int
)

var tracksCmd = &cobra.Command{
	Use:   "tracks",
	Short: "List tracks",
	Long: `List tracks from the catalog, a selection, or your favorites.

Filters combine: the search matches title prefixes (case-insensitive),
--author and --genre keep tracks matching any of the given values, and
--sort orders by release date.

Examples:
  cadence tracks --search blue
  cadence tracks --author Coltrane --author Davis --sort desc
  cadence tracks --favorites
  cadence tracks --selection 3 --genre jazz`,
	RunE: runTracks,
}

var tracksAuthorsCmd = &cobra.Command{
	Use:   "authors",
	Short: "List the distinct authors",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFacet(cmd, filter.UniqueAuthors)
	},
}

var tracksGenresCmd = &cobra.Command{
	Use:   "genres",
	Short: "List the distinct genres",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFacet(cmd, filter.UniqueGenres)
	},
}

func init() {
	f := tracksCmd.PersistentFlags()
	f.IntVar(&tracksSelection, "selection", 0, "list tracks of a selection id")
	f.BoolVar(&tracksFavorites, "favorites", false, "list your favorite tracks")

	tracksCmd.Flags().StringVarP(&tracksSearch, "search", "s", "", "title prefix")
	tracksCmd.Flags().StringArrayVar(&tracksAuthors, "author", nil, "keep tracks by author (repeatable)")
	tracksCmd.Flags().StringArrayVar(&tracksGenres, "genre", nil, "keep tracks in genre (repeatable)")
	tracksCmd.Flags().StringVar(&tracksSort, "sort", "none", "release date order: none, asc, desc")
	tracksCmd.Flags().IntVarP(&tracksLimit, "limit", "n", 0, "show at most n tracks")

	tracksCmd.AddCommand(tracksAuthorsCmd)
	tracksCmd.AddCommand(tracksGenresCmd)
	rootCmd.AddCommand(tracksCmd)
}

// fetchTracks loads the collection selected by the source flags.
func fetchTracks(ctx context.Context, a *app.App) ([]core.Track, error) {
	switch {
	case tracksFavorites:
		if err := requireAuth(a); err != nil {
			return nil, err
		}
		return a.API.FavoriteTracks(ctx)
	case tracksSelection != 0:
		return a.API.SelectionTracks(ctx, tracksSelection)
	default:
		return a.API.AllTracks(ctx)
	}
}

func runTracks(cmd *cobra.Command, args []string) error {
	order, err := core.ParseSortOrder(tracksSort)
	if err != nil {
		return err
	}
	state := core.FilterState{
		Query:   tracksSearch,
		Authors: tracksAuthors,
		Genres:  tracksGenres,
		Sort:    order,
	}

	a, done, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer done()

	tracks, err := fetchTracks(cmd.Context(), a)
	if err != nil {
		return fmt.Errorf("failed to load tracks: %w", err)
	}

	shown := filter.Apply(tracks, state)
	if tracksLimit > 0 && len(shown) > tracksLimit {
		shown = shown[:tracksLimit]
	}

	if JSONOutput() {
		return printJSON(shown)
	}

	if len(shown) == 0 {
		fmt.Println("No tracks match.")
		return nil
	}

	// A restored session loads favorites in the background.
	a.Favorites.Wait()

	table := NewTable("", "ID", "TITLE", "AUTHOR", "GENRE", "RELEASED", "TIME")
	for _, t := range shown {
		liked := tracksFavorites || a.Favorites.Contains(t.ID)
		table.Row(
			heart(liked),
			strconv.Itoa(t.ID),
			TruncateString(t.Title, 40),
			TruncateString(t.Author, 24),
			TruncateString(strings.Join(t.Genres, ", "), 20),
			released(t.ReleaseDate),
			FormatDuration(t.DurationSec),
		)
	}
	table.Flush()

	if len(shown) != len(tracks) {
		fmt.Printf("\n%d of %d tracks\n", len(shown), len(tracks))
	}
	return nil
}

func runFacet(cmd *cobra.Command, facet func([]core.Track) []string) error {
	a, done, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer done()

	tracks, err := fetchTracks(cmd.Context(), a)
	if err != nil {
		return fmt.Errorf("failed to load tracks: %w", err)
	}

	values := facet(tracks)
	if JSONOutput() {
		return printJSON(values)
	}
	for _, v := range values {
		fmt.Println(v)
	}
	return nil
}

func heart(liked bool) string {
	if liked {
		return "♥"
	}
	return " "
}

func released(date string) string {
	t, ok := filter.ParseReleaseDate(date)
	if !ok {
		return "-"
	}
	return humanize.Time(t)
}
