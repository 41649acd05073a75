// Package web provides the HTTP service: upload a spreadsheet, refine it
// with an instruction and download the result.
//
// Handlers keep nothing between requests. A recovered table travels back to
// the client as JSON and returns with the export request.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/klytics/sheetkit/internal/ai"
	"github.com/klytics/sheetkit/internal/logging"
	"github.com/klytics/sheetkit/internal/prompt"
	"github.com/klytics/sheetkit/internal/refine"
)

// Options configures a Server.
type Options struct {
	Provider    ai.Provider
	Builder     prompt.Builder
	MaxUploadMB int
	// Timeout bounds a whole request. It should exceed the provider timeout
	// so the provider's own timeout is what the client sees.
	Timeout      time.Duration
	PreviewRows  int
	ShutdownWait time.Duration
}

// Server is the HTTP server for the refine service.
type Server struct {
	refiner   *refine.Refiner
	router    *chi.Mux
	maxUpload int64
	preview   int
	timeout   time.Duration
	drain     time.Duration
}

// NewServer creates a new Server instance.
func NewServer(opts Options) *Server {
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = ai.DefaultTimeout + 15*time.Second
	}
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = 50
	}
	if opts.ShutdownWait <= 0 {
		opts.ShutdownWait = 10 * time.Second
	}

	s := &Server{
		refiner:   &refine.Refiner{Provider: opts.Provider, Builder: opts.Builder},
		router:    chi.NewRouter(),
		maxUpload: int64(opts.MaxUploadMB) << 20,
		preview:   opts.PreviewRows,
		timeout:   opts.Timeout,
		drain:     opts.ShutdownWait,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.timeout))
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleIndex)
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/preview", s.handlePreview)
		r.Post("/refine", s.handleRefine)
		r.Post("/export", s.handleExport)
	})
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.drain)
		defer cancel()
		slog.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// requestLogger logs one line per request with chi's request ID.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.FromContext(r.Context()).Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
