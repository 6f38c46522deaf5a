// Package web serves a read-only HTML view of the run ledger.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lucasnoah/vitestgpt/internal/db"
	"github.com/lucasnoah/vitestgpt/internal/pipeline"
)

//go:embed templates
var templateFS embed.FS

var funcMap = template.FuncMap{
	"badgeClass": func(status string) string {
		return "badge badge-" + strings.ReplaceAll(status, "_", "-")
	},
	"passClass": func(passed bool) string {
		if passed {
			return "result-pass"
		}
		return "result-fail"
	},
	"relTime": relTime,
}

// Server is the read-only web UI server.
type Server struct {
	db     *db.DB
	store  *pipeline.Store // optional; run artifacts are shown when present
	port   int
	logger *zap.Logger

	// pollInterval is how often the event stream re-reads the ledger.
	pollInterval time.Duration

	dashboardTmpl *template.Template
	runTmpl       *template.Template
}

// NewServer creates a Server with parsed templates.
func NewServer(database *db.DB, store *pipeline.Store, port int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		db:            database,
		store:         store,
		port:          port,
		logger:        logger,
		pollInterval:  2 * time.Second,
		dashboardTmpl: mustParseTmpl("base.html", "dashboard.html"),
		runTmpl:       mustParseTmpl("base.html", "run.html"),
	}
}

func mustParseTmpl(names ...string) *template.Template {
	patterns := make([]string, len(names))
	for i, n := range names {
		patterns[i] = "templates/" + n
	}
	return template.Must(template.New("").Funcs(funcMap).ParseFS(templateFS, patterns...))
}

// Handler returns the routed mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/":
			s.handleDashboard(w, r)
		case strings.HasPrefix(r.URL.Path, "/run/"):
			s.routeRun(w, r)
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/api/stats", s.handleStats)
	return mux
}

func (s *Server) routeRun(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/run/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if parts[0] == "" || strings.ContainsAny(parts[0], "\\.") {
		http.NotFound(w, r)
		return
	}
	switch {
	case len(parts) == 1:
		s.handleRunDetail(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "conversation":
		s.handleConversation(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "stream":
		s.handleEventStream(w, r, parts[0])
	default:
		http.NotFound(w, r)
	}
}

// Start listens on the configured port until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("vitestgpt UI listening", zap.String("url", fmt.Sprintf("http://localhost:%d", s.port)))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
