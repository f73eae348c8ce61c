package cli

import (
	"github.com/spf13/cobra"

	"github.com/tessro/cadence/internal/tui"
)

var tuiRefresh int

var tuiCmd = &cobra.Command{
	Use:     "ui",
	Aliases: []string{"tui"},
	Short:   "Launch the interactive browser",
	Long: `Launch the interactive track browser and player.

The screen shows:
  • Library - all tracks, favorites and selections (toggle with m)
  • Tracks - the filtered list for the chosen source
  • Now Playing - current track, progress, shuffle/repeat and volume

Keyboard shortcuts:
  q, Ctrl+C    Quit
  ?            Help
  /            Search titles
  a / g        Filter by highlighted author / genre
  s            Cycle date sort
  Enter        Play
  Space        Play/Pause
  n / p        Next / previous track
  f            Like/unlike
  y            Copy media link`,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().IntVar(&tuiRefresh, "refresh", 0, "Refresh interval in milliseconds (default from config)")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	if tuiRefresh > 0 {
		cfg.TUI.RefreshInterval = tuiRefresh
	}

	a, done, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer done()

	return tui.Run(cmd.Context(), a)
}
