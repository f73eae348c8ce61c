package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tessro/cadence/internal/core"
	cerrors "github.com/tessro/cadence/internal/errors"
	"github.com/tessro/cadence/internal/filter"
	"github.com/tessro/cadence/internal/playback"
)

var (
	playID      int
	playAuthors []string
	playGenres  []string
	playSort    string
	playShuffle bool
	playRepeat  bool
)

var playCmd = &cobra.Command{
	Use:   "play [query]",
	Short: "Play tracks in the foreground",
	Long: `Play the tracks whose titles start with query, in order, through mpv.
Without a query the whole catalog is the playlist. Playback wraps around
at the end of the playlist and stops on a media error or Ctrl+C.

Examples:
  cadence play blue                # Tracks starting with "blue"
  cadence play --author Coltrane   # Everything by an author
  cadence play --id 12             # Start at a specific track
  cadence play --genre jazz --shuffle`,
	RunE: runPlay,
}

func init() {
	playCmd.Flags().IntVar(&playID, "id", 0, "track id to start with")
	playCmd.Flags().StringArrayVar(&playAuthors, "author", nil, "keep tracks by author (repeatable)")
	playCmd.Flags().StringArrayVar(&playGenres, "genre", nil, "keep tracks in genre (repeatable)")
	playCmd.Flags().StringVar(&playSort, "sort", "none", "release date order: none, asc, desc")
	playCmd.Flags().BoolVar(&playShuffle, "shuffle", false, "shuffle the playlist")
	playCmd.Flags().BoolVar(&playRepeat, "repeat", false, "repeat the current track")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	order, err := core.ParseSortOrder(playSort)
	if err != nil {
		return err
	}

	a, done, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer done()

	tracks, err := a.API.AllTracks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tracks: %w", err)
	}
	playlist := filter.Apply(tracks, core.FilterState{
		Query:   strings.Join(args, " "),
		Authors: playAuthors,
		Genres:  playGenres,
		Sort:    order,
	})
	if len(playlist) == 0 {
		return fmt.Errorf("%w: nothing matches", cerrors.ErrTrackNotFound)
	}

	items := core.Items(playlist)
	start := 0
	if playID != 0 {
		start = core.IndexOf(items, playID)
		if start < 0 {
			return fmt.Errorf("%w: id %d", cerrors.ErrTrackNotFound, playID)
		}
	}

	if _, err := a.StartPlayer(ctx); err != nil {
		return err
	}

	m := a.Machine
	if m.State().Shuffle != playShuffle {
		m.ToggleShuffle()
	}
	if m.State().Repeat != playRepeat {
		m.ToggleRepeat()
	}

	updates, cancel := m.Subscribe()
	defer cancel()
	m.SelectTrack(items[start], items)

	var current uint64
	for {
		select {
		case <-ctx.Done():
			m.Stop()
			return nil
		case st := <-updates:
			if st.Track != nil && st.Epoch != current {
				current = st.Epoch
				printNowPlaying(st)
			}
			if !st.IsPlaying {
				fmt.Println("Playback stopped.")
				return nil
			}
		}
	}
}

func printNowPlaying(st playback.State) {
	t := st.Track
	if JSONOutput() {
		_ = printJSON(map[string]any{
			"id":       t.ID,
			"title":    t.Title,
			"author":   t.Author,
			"position": st.Index() + 1,
			"of":       len(st.Playlist),
		})
		return
	}
	fmt.Printf("▶ %s - %s  [%s/%d]  %s\n",
		TruncateString(t.Title, 40),
		TruncateString(t.Author, 24),
		strconv.Itoa(st.Index()+1),
		len(st.Playlist),
		FormatDuration(int(t.DurationSec)))
}
