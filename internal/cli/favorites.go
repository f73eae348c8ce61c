package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	cerrors "github.com/tessro/cadence/internal/errors"
)

var favoritesCmd = &cobra.Command{
	Use:     "favorites",
	Aliases: []string{"fav"},
	Short:   "Manage favorite tracks",
}

var favoritesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List favorite tracks",
	RunE: func(cmd *cobra.Command, args []string) error {
		tracksFavorites = true
		return runTracks(cmd, args)
	},
}

var favoritesToggleCmd = &cobra.Command{
	Use:   "toggle <track-id>...",
	Short: "Like or unlike tracks",
	Long:  `Flip the favorite state of each track. Failed changes are rolled back.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFavoritesToggle,
}

func init() {
	favoritesCmd.AddCommand(favoritesListCmd)
	favoritesCmd.AddCommand(favoritesToggleCmd)
	rootCmd.AddCommand(favoritesCmd)
}

type toggleResult struct {
	ID    int    `json:"id"`
	Liked bool   `json:"liked"`
	Error string `json:"error,omitempty"`
}

func runFavoritesToggle(cmd *cobra.Command, args []string) error {
	ids := make([]int, len(args))
	for i, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid track id %q", arg)
		}
		ids[i] = id
	}

	a, done, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer done()

	if err := requireAuth(a); err != nil {
		return err
	}
	// Toggles flip the loaded set, so it must be current first.
	a.Favorites.Wait()
	if !a.Favorites.Loaded() {
		if err := a.Favorites.Load(cmd.Context()); err != nil {
			return err
		}
	}

	want := make(map[int]bool, len(ids))
	for _, id := range ids {
		liked, err := a.Favorites.ToggleLike(cmd.Context(), id)
		if err != nil {
			return err
		}
		want[id] = liked
	}
	a.Favorites.Wait()

	results := make([]toggleResult, 0, len(ids))
	var failed int
	for _, id := range ids {
		r := toggleResult{ID: id, Liked: a.Favorites.Contains(id)}
		if r.Liked != want[id] {
			r.Error = "change was rejected"
			if n, ok := a.Notices.Latest(); ok {
				r.Error = n.Message
			}
			failed++
		}
		results = append(results, r)
	}

	if JSONOutput() {
		if err := printJSON(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			switch {
			case r.Error != "":
				fmt.Printf("✗ %d: %s\n", r.ID, r.Error)
			case r.Liked:
				fmt.Printf("♥ %d liked\n", r.ID)
			default:
				fmt.Printf("♡ %d unliked\n", r.ID)
			}
		}
	}

	if failed > 0 {
		return cerrors.WithSuggestion(
			errors.New(strconv.Itoa(failed)+" favorite change(s) failed"),
			"Check your connection and try again")
	}
	return nil
}
