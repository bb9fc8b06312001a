// Package server exposes export and preview operations over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/forPelevin/cutlist/internal/logging"
	"github.com/forPelevin/cutlist/internal/metrics"
	"github.com/forPelevin/cutlist/internal/usecase"
)

const defaultShutdownTimeout = 10 * time.Second

type Options struct {
	// Root, when set, confines every request path to this directory.
	Root string
	// OutDir receives exports that name no destination; empty means next to
	// the source.
	OutDir          string
	ShutdownTimeout time.Duration
}

type Server struct {
	uc      usecase.Usecase
	log     *slog.Logger
	metrics *metrics.Metrics
	opts    Options
	now     func() time.Time
}

// New returns a Server. m may be nil to disable metrics.
func New(uc usecase.Usecase, log *slog.Logger, m *metrics.Metrics, opts Options) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	return &Server{
		uc:      uc,
		log:     logging.WithComponent(logging.OrDiscard(log), "http"),
		metrics: m,
		opts:    opts,
		now:     time.Now,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger(s.log))
	if s.metrics != nil {
		r.Use(metrics.RequestMiddleware(s.metrics))
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	r.Get("/healthz", s.healthz)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/probe", s.probe)
		r.Post("/plan", s.plan)
		r.Post("/export", s.export)
		r.Post("/preview", s.preview)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then drains
// connections for at most the shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("server starting", slog.String("addr", addr), slog.String("root", s.opts.Root))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutdown signal received, draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("server stopped")
	return nil
}
