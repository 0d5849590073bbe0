// Package server is the HTTP bridge a graphical front end talks to. It
// exposes the component list and installation record as JSON, starts
// operations in the background, and streams their progress over a
// websocket.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/arthur-debert/kitman/pkg/core"
	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/fingerprint"
	"github.com/arthur-debert/kitman/pkg/logging"
	"github.com/arthur-debert/kitman/pkg/manifest"
	"github.com/arthur-debert/kitman/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Engine is the part of core.Engine the server drives.
type Engine interface {
	Record() (*fingerprint.Record, error)
	Install(ctx context.Context, m *manifest.Manifest, req core.Request) (*core.Result, error)
	Update(ctx context.Context, m *manifest.Manifest, req core.Request) (*core.Result, error)
	Uninstall(ctx context.Context, keepSelf bool) (*core.Result, error)
}

// ManifestSource returns the manifest install and update run against.
type ManifestSource func() (*manifest.Manifest, error)

// Options configures a Server.
type Options struct {
	Engine   Engine
	Manifest ManifestSource
	// Hub must be the progress reporter the engine was built with.
	Hub     *Hub
	Metrics *metrics.Metrics
	Logger  *zerolog.Logger
}

// Server runs at most one operation at a time.
type Server struct {
	engine   Engine
	manifest ManifestSource
	hub      *Hub
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	mu      sync.Mutex
	running string
	cancel  context.CancelFunc
	last    *ResultView
	wg      sync.WaitGroup
}

// New builds a Server.
func New(opts Options) *Server {
	if opts.Hub == nil {
		opts.Hub = NewHub(opts.Logger)
	}
	return &Server{
		engine:   opts.Engine,
		manifest: opts.Manifest,
		hub:      opts.Hub,
		metrics:  opts.Metrics,
		logger:   logging.OrDefault(opts.Logger, "server"),
	}
}

// Router returns the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	r.Get("/ws", s.hub.HandleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/components", s.listComponents)
		r.Get("/fingerprint", s.getRecord)
		r.Get("/operation", s.getOperation)
		r.Delete("/operation", s.cancelOperation)
		r.Post("/install", s.startInstall)
		r.Post("/update", s.startUpdate)
		r.Post("/uninstall", s.startUninstall)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then cancels the running
// operation and waits for it to stop.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrapf(err, errors.ErrNetwork, "listen on %s", addr)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.Close()
	err := srv.Shutdown(shutdownCtx)
	s.Wait()
	if err != nil {
		return errors.Wrap(err, errors.ErrNetwork, "shutdown")
	}
	return nil
}

// Wait blocks until the running operation, if any, has finished.
func (s *Server) Wait() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// start runs fn in the background unless another operation is running.
func (s *Server) start(op string, fn func(ctx context.Context) (*core.Result, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running != "" {
		return errors.Newf(errors.ErrStateLocked, "%s is already running", s.running).
			WithDetail("operation", s.running)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.running, s.cancel = op, cancel
	s.hub.begin()
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer cancel()

		res, err := fn(ctx)
		view := newResultView(op, res, err)
		if err != nil {
			s.logger.Error().Err(err).Str("operation", op).Msg("Operation failed")
		} else {
			s.logger.Info().Str("operation", op).Int("failed", len(view.Failed)).Msg("Operation finished")
		}

		s.mu.Lock()
		s.running, s.cancel, s.last = "", nil, view
		s.mu.Unlock()
		s.hub.finish(Message{Type: TypeResult, Result: view})
	}()
	return nil
}

// requestLogger logs each request through zerolog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("requestId", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
