package cli

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/tessro/cadence/internal/config"
)

var (
	// Set via ldflags at build time
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// buildInfo describes this binary and the player it will drive.
type buildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Service   string `json:"service,omitempty"`
	MPV       string `json:"mpv,omitempty"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := collectBuildInfo(cfg, exec.LookPath)
		if JSONOutput() {
			_ = printJSON(info)
			return
		}
		info.write(os.Stdout, Verbose())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// collectBuildInfo fills in whatever ldflags left unset from the module
// build info, which is present for `go install` builds.
func collectBuildInfo(c *config.Config, lookPath func(string) (string, error)) buildInfo {
	info := buildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Commit == "unknown" {
					info.Commit = s.Value
				}
			case "vcs.time":
				if info.BuildDate == "unknown" {
					info.BuildDate = s.Value
				}
			}
		}
	}

	if c == nil {
		return info
	}
	info.Service = c.API.BaseURL
	bin := c.Player.MpvPath
	if bin == "" {
		bin = "mpv"
	}
	if path, err := lookPath(bin); err == nil {
		info.MPV = path
	} else {
		info.MPV = bin + " (not found)"
	}
	return info
}

func (b buildInfo) write(w io.Writer, verbose bool) {
	fmt.Fprintf(w, "cadence %s\n", b.Version)
	if !verbose {
		return
	}
	rows := [][2]string{
		{"commit", b.Commit},
		{"built", b.BuildDate},
		{"go version", b.GoVersion},
		{"platform", b.Platform},
		{"service", b.Service},
		{"mpv", b.MPV},
	}
	for _, r := range rows {
		if r[1] != "" {
			fmt.Fprintf(w, "  %-11s %s\n", r[0]+":", r[1])
		}
	}
}
