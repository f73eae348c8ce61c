package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tessro/cadence/internal/core"
	cerrors "github.com/tessro/cadence/internal/errors"
)

var selectionsTracks bool

var selectionsCmd = &cobra.Command{
	Use:   "selections",
	Short: "List curated selections",
	Long: `List the curated selections. With --tracks, each selection's track
count is fetched as well; selections that fail to load are reported
without hiding the rest.`,
	RunE: runSelections,
}

func init() {
	selectionsCmd.Flags().BoolVar(&selectionsTracks, "tracks", false, "fetch track counts")
	rootCmd.AddCommand(selectionsCmd)
}

type selectionRow struct {
	core.Selection
	Tracks *int `json:"tracks,omitempty"`
}

func runSelections(cmd *cobra.Command, args []string) error {
	a, done, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer done()

	ctx := cmd.Context()
	selections, err := a.API.Selections(ctx)
	if err != nil {
		return fmt.Errorf("failed to load selections: %w", err)
	}

	result := cerrors.PartialResult[[]selectionRow]{Data: make([]selectionRow, len(selections))}
	errs := make([]error, len(selections))
	var g errgroup.Group
	g.SetLimit(4)
	for i, sel := range selections {
		result.Data[i] = selectionRow{Selection: sel}
		if !selectionsTracks {
			continue
		}
		g.Go(func() error {
			tracks, err := a.API.SelectionTracks(ctx, sel.ID)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", sel.Label(), err)
				return nil
			}
			n := len(tracks)
			result.Data[i].Tracks = &n
			return nil
		})
	}
	_ = g.Wait()
	for _, err := range errs {
		result.AddError(err)
	}

	if JSONOutput() {
		return printJSON(map[string]any{
			"selections": result.Data,
			"errors":     errorStrings(result.Errors),
		})
	}

	if len(result.Data) == 0 {
		fmt.Println("No selections.")
		return nil
	}

	headers := []string{"ID", "NAME", "ITEMS"}
	if selectionsTracks {
		headers = append(headers, "TRACKS")
	}
	table := NewTable(headers...)
	for _, row := range result.Data {
		values := []string{strconv.Itoa(row.ID), TruncateString(row.Label(), 40), strconv.Itoa(len(row.Items))}
		if selectionsTracks {
			count := "?"
			if row.Tracks != nil {
				count = strconv.Itoa(*row.Tracks)
			}
			values = append(values, count)
		}
		table.Row(values...)
	}
	table.Flush()

	if result.HasErrors() {
		fmt.Printf("\n%s\n", result.ErrorSummary())
	}
	return nil
}

func errorStrings(errs []error) []string {
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}
