package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tessro/cadence/internal/gate"
)

var (
	serveListen  string
	serveWebRoot string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a web root behind the sign-in gate",
	Long: `Serve static files with request-time route gating.

Visitors without the access_token cookie are sent from protected views
(/, /favorites, /category/...) to /signin?next=<path>. Signed-in visitors
are sent from /signin and /signup to /.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (default from config)")
	serveCmd.Flags().StringVar(&serveWebRoot, "root", "", "web root directory (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	listen := cfg.Server.Listen
	if serveListen != "" {
		listen = serveListen
	}
	root := cfg.Server.WebRoot
	if serveWebRoot != "" {
		root = serveWebRoot
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return fmt.Errorf("web root %q is not a directory", root)
	}

	logger, closer, err := newLogger(false)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	srv := gate.NewServer(gate.Options{Listen: listen, WebRoot: root, Logger: logger})
	if !JSONOutput() {
		fmt.Printf("Serving %s on http://%s\n", root, listen)
	}
	return srv.ListenAndServe(cmd.Context())
}
