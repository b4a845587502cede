// Package daemon serves the local HTTP API that browser extensions feed tab
// events into, and that exposes journeys, insights, export and import.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/runnerr0/burrow/internal/analysis"
	"github.com/runnerr0/burrow/internal/config"
	"github.com/runnerr0/burrow/internal/journey"
	"github.com/runnerr0/burrow/internal/logging"
	"github.com/runnerr0/burrow/internal/retention"
	"github.com/runnerr0/burrow/internal/storage"
	"github.com/runnerr0/burrow/internal/tracker"
	"github.com/runnerr0/burrow/internal/transfer"
)

const shutdownTimeout = 10 * time.Second

// Server wires the tracker, analyzer and codec behind an HTTP router.
type Server struct {
	cfg      *config.Config
	store    storage.Store
	tracker  *tracker.Tracker
	analyzer *analysis.Analyzer
	codec    *transfer.Codec
	pruner   *retention.Pruner
	metrics  *Metrics
	logger   *zap.Logger
	version  string
}

// New builds a Server over store. A nil logger disables logging.
func New(cfg *config.Config, store storage.Store, version string, logger *zap.Logger) *Server {
	logger = logging.OrNop(logger)
	m := NewMetrics("burrow")

	s := &Server{
		cfg:      cfg,
		store:    store,
		analyzer: analysis.New(store, logger),
		codec:    transfer.New(store, logger),
		metrics:  m,
		logger:   logger.Named("daemon"),
		version:  version,
	}
	s.tracker = tracker.New(store, logger,
		tracker.WithNodeObserver(func(journey.Node) { m.NodesCreated.Inc() }),
	)
	interval := time.Duration(cfg.Retention.PruneIntervalHours) * time.Hour
	s.pruner = retention.NewPruner(store, interval, logger)
	return s
}

// Tracker returns the server's tracker.
func (s *Server) Tracker() *tracker.Tracker { return s.tracker }

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(instrument(s.metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Daemon.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(s.cfg.Daemon.AuthToken))
		r.Use(limitBody(s.cfg.Daemon.MaxRequestSize))

		r.Get("/status", s.handleStatus)
		r.Post("/events", s.handleEvent)

		r.Route("/journeys", func(r chi.Router) {
			r.Get("/", s.handleListJourneys)
			r.Post("/", s.handleStartJourney)
			r.Get("/current", s.handleCurrentJourney)
			r.Get("/{id}", s.handleGetJourney)
			r.Get("/{id}/tree", s.handleTree)
			r.Get("/{id}/insights", s.handleInsights)
			r.Get("/{id}/export", s.handleExport)
		})

		r.Post("/import", s.handleImport)
		r.Get("/backup", s.handleBackup)
		r.Post("/restore", s.handleRestore)

		r.Post("/nodes/{id}/note", s.handleNote)
		r.Post("/nodes/{id}/aha", s.handleAha)
	})

	return r
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Daemon.Host, strconv.Itoa(s.cfg.Daemon.Port))
}

// Run seeds missing settings from the config and restores tracker state,
// then serves HTTP and prunes expired data
// until ctx is cancelled. Shutdown waits for in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	seeded, err := config.SeedSettings(ctx, s.store, s.cfg)
	if err != nil {
		ln.Close()
		return err
	}
	if len(seeded) > 0 {
		s.logger.Info("seeded settings from config", zap.Strings("keys", seeded))
	}
	if err := s.tracker.Restore(ctx); err != nil {
		ln.Close()
		return err
	}

	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("daemon listening", zap.String("addr", ln.Addr().String()), zap.String("version", s.version))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return s.pruner.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("daemon shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
