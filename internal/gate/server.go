package gate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	"github.com/tessro/cadence/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	Listen  string
	WebRoot string
	Logger  *log.Logger
}

// Server serves a static web root behind the gate.
type Server struct {
	http   *http.Server
	logger *log.Logger
}

// NewServer builds the gateway. Unknown view paths fall back to the web
// root's index.html so client-side routes resolve.
func NewServer(opts Options) *Server {
	logger := logging.Component(opts.Logger, "serve")
	return &Server{
		http: &http.Server{
			Addr:              opts.Listen,
			Handler:           Router(opts.WebRoot, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Router returns the gated handler tree for root.
func Router(root string, logger *log.Logger) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodGet, http.MethodHead)

	views := router.PathPrefix("/").Subrouter()
	views.Use(Middleware(logger))
	views.PathPrefix("/").Handler(spa{root: root}).Methods(http.MethodGet, http.MethodHead)
	return router
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.http.Addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		return nil
	}
}

type spa struct {
	root string
}

func (h spa) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := filepath.Join(h.root, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		http.ServeFile(w, r, name)
		return
	}
	if strings.Contains(filepath.Base(r.URL.Path), ".") {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(h.root, "index.html"))
}
