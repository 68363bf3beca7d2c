package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/rainarea-service/internal/domain"
	"github.com/couchcryptid/rainarea-service/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SnapshotSource is the read side of the snapshot cache.
type SnapshotSource interface {
	sharedobs.ReadinessChecker
	GetCurrent() (*pipeline.Entry, error)
	GetHistorical(ctx context.Context, slot string) (*domain.Snapshot, error)
	Now() domain.SlotID
}

// Server exposes health, readiness, metrics and the rain-area endpoints.
type Server struct {
	httpServer      *http.Server
	source          SnapshotSource
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// snapshot routes.
func NewServer(addr string, source SnapshotSource, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		source:          source,
		shutdownTimeout: 10 * time.Second,
		logger:          logger,
	}

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(source))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/", s.handleStatus)
	r.Get("/now", s.handleNow)
	r.Get("/now-id", s.handleNowID)
	r.Get("/rainarea", s.handleHistorical)

	return s
}

// SetShutdownTimeout bounds how long Serve waits for connections to drain.
func (s *Server) SetShutdownTimeout(d time.Duration) {
	s.shutdownTimeout = d
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Serve runs the server until ctx is cancelled, then shuts it down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
			return err
		}
		return ctx.Err()
	}
}

func (s *Server) String() string { return "http-server" }

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
