// Package frontend serves the HTTP API and the event stream.
package frontend

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Kohei-Wada/taskdog-sub001/internal/common/config"
	"github.com/Kohei-Wada/taskdog-sub001/internal/common/logger"
	api "github.com/Kohei-Wada/taskdog-sub001/internal/service/frontend/api/v1"
	"github.com/Kohei-Wada/taskdog-sub001/internal/service/tasks"
)

// Server is the HTTP server for the task API.
type Server struct {
	config     *config.Config
	api        *api.API
	registry   *prometheus.Registry
	httpServer *http.Server
	listener   net.Listener // Optional pre-bound listener (for tests)
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithListener sets a pre-bound listener for the server. When set, the
// server uses this listener instead of creating its own, which lets tests
// avoid races on port allocation.
func WithListener(l net.Listener) ServerOption {
	return func(s *Server) {
		s.listener = l
	}
}

// NewServer wires the API over the task service. The registry may be nil
// when metrics exposure is not wanted.
func NewServer(cfg *config.Config, svc *tasks.Service, hub api.EventHub, registry *prometheus.Registry, opts ...ServerOption) *Server {
	srv := &Server{
		config:   cfg,
		api:      api.New(svc, hub),
		registry: registry,
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// Serve starts the HTTP server and blocks until the context is canceled or
// a termination signal arrives, then shuts the server down.
func (srv *Server) Serve(ctx context.Context) error {
	requestLogger := httplog.NewLogger("http", httplog.Options{
		LogLevel:         slog.LevelDebug,
		JSON:             srv.config.Log.Format == "json",
		Concise:          true,
		RequestHeaders:   true,
		MessageFieldName: "msg",
		ResponseHeaders:  true,
	})

	r := chi.NewMux()
	r.Use(middleware.RealIP)
	r.Use(middleware.Compress(5))
	r.Use(httplog.RequestLogger(requestLogger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Content-Encoding", "Accept"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RedirectSlashes)

	apiBasePath := srv.apiBasePath()
	r.Route(apiBasePath, func(r chi.Router) {
		srv.api.ConfigureRoutes(r)
	})

	if srv.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(srv.registry, promhttp.HandlerOpts{}))
	}

	addr := net.JoinHostPort(srv.config.Server.Host, strconv.Itoa(srv.config.Server.Port))
	srv.httpServer = &http.Server{
		Handler:           r,
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info(ctx, "Server is starting", "addr", addr, "apiBasePath", apiBasePath)

	go srv.startServer(ctx)

	srv.setupGracefulShutdown(ctx)
	return nil
}

// apiBasePath returns the API mount point under the configured base path.
func (srv *Server) apiBasePath() string {
	p := path.Join(srv.config.Server.BasePath, "api/v1")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// startServer runs the HTTP server with or without TLS.
func (srv *Server) startServer(ctx context.Context) {
	var err error

	tlsConfig := srv.config.Server.TLS
	switch {
	case srv.listener != nil && tlsConfig != nil:
		logger.Info(ctx, "Starting TLS server on pre-bound listener", "cert", tlsConfig.CertFile)
		err = srv.httpServer.ServeTLS(srv.listener, tlsConfig.CertFile, tlsConfig.KeyFile)
	case srv.listener != nil:
		logger.Info(ctx, "Starting server on pre-bound listener")
		err = srv.httpServer.Serve(srv.listener)
	case tlsConfig != nil:
		logger.Info(ctx, "Starting TLS server", "cert", tlsConfig.CertFile)
		err = srv.httpServer.ListenAndServeTLS(tlsConfig.CertFile, tlsConfig.KeyFile)
	default:
		err = srv.httpServer.ListenAndServe()
	}

	if err != nil && err != http.ErrServerClosed {
		logger.Error(ctx, "Server failed to start or unexpected shutdown", "err", err)
	}
}

// Shutdown gracefully shuts down the server.
func (srv *Server) Shutdown(ctx context.Context) error {
	if srv.httpServer == nil {
		return nil
	}
	logger.Info(ctx, "Server is shutting down", "addr", srv.httpServer.Addr)

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	srv.httpServer.SetKeepAlivesEnabled(false)
	return srv.httpServer.Shutdown(shutdownCtx)
}

// setupGracefulShutdown blocks until the context is done or a termination
// signal is received, then drains the server.
func (srv *Server) setupGracefulShutdown(ctx context.Context) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-ctx.Done():
		logger.Info(ctx, "Context done, shutting down server")
	case sig := <-quit:
		logger.Info(ctx, "Received shutdown signal", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv.httpServer.SetKeepAlivesEnabled(false)
	if err := srv.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Failed to shutdown server gracefully", "err", err)
	}
}
