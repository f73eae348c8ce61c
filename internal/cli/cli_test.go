package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tessro/cadence/internal/config"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"a longer title", 8, "a lon..."},
		{"abcdef", 3, "abc"},
		{"日本語タイトル", 9, "日本語..."},
	}
	for _, tt := range tests {
		if got := TruncateString(tt.in, tt.max); got != tt.want {
			t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0:00"},
		{65, "1:05"},
		{3600, "1:00:00"},
		{-1, "0:00"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReleased(t *testing.T) {
	if got := released(""); got != "-" {
		t.Errorf("released(\"\") = %q", got)
	}
	if got := released("1999-01-01"); !strings.HasSuffix(got, "ago") {
		t.Errorf("released(1999-01-01) = %q", got)
	}
}

func TestConfigSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfgFile = path
	t.Cleanup(func() { cfgFile = "" })

	if err := runConfigSet(configSetCmd, []string{"player.volume", "70"}); err != nil {
		t.Fatalf("set volume: %v", err)
	}
	if err := runConfigSet(configSetCmd, []string{"api.base_url", "https://music.example.com"}); err != nil {
		t.Fatalf("set base_url: %v", err)
	}

	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Player.Volume != 70 || cfg.API.BaseURL != "https://music.example.com" {
		t.Errorf("config = %+v", cfg)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"unknown key", []string{"player.device", "x"}},
		{"not an int", []string{"player.volume", "loud"}},
		{"out of range", []string{"player.volume", "300"}},
		{"not a bool", []string{"player.shuffle", "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := runConfigSet(configSetCmd, tt.args); err == nil {
				t.Error("expected error")
			}
		})
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "300") {
		t.Error("invalid value was written")
	}
}

func TestBuildInfo(t *testing.T) {
	c := config.Default()
	c.API.BaseURL = "https://api.example.test"
	c.Player.MpvPath = "/opt/mpv/bin/mpv"

	found := func(bin string) (string, error) { return bin, nil }
	info := collectBuildInfo(c, found)
	if info.Service != "https://api.example.test" || info.MPV != "/opt/mpv/bin/mpv" {
		t.Errorf("info = %+v", info)
	}

	missing := func(string) (string, error) { return "", os.ErrNotExist }
	if got := collectBuildInfo(c, missing).MPV; got != "/opt/mpv/bin/mpv (not found)" {
		t.Errorf("MPV = %q", got)
	}

	if got := collectBuildInfo(nil, found); got.Service != "" || got.MPV != "" {
		t.Errorf("without config: %+v", got)
	}

	var short, long strings.Builder
	info.write(&short, false)
	info.write(&long, true)
	if strings.Count(short.String(), "\n") != 1 || !strings.HasPrefix(short.String(), "cadence ") {
		t.Errorf("short output = %q", short.String())
	}
	for _, want := range []string{"service:", "https://api.example.test", "mpv:", "platform:"} {
		if !strings.Contains(long.String(), want) {
			t.Errorf("verbose output missing %q:\n%s", want, long.String())
		}
	}
}
