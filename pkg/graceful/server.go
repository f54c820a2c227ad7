// Package graceful runs the public HTTP server and drains it on shutdown.
package graceful

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/botforge/botforge/pkg/config"
)

const defaultShutdownTimeout = 15 * time.Second

// Server serves webhook and mini-app traffic until its context ends.
type Server struct {
	httpServer      *http.Server
	listener        net.Listener
	shutdownTimeout time.Duration
	beforeShutdown  []func()
	log             *slog.Logger
}

// NewServer builds a Server for handler from the server section of the config.
func NewServer(cfg config.ServerConfig, handler http.Handler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
		shutdownTimeout: timeout,
		log:             log.With(slog.String("component", "http_server")),
	}
}

// BeforeShutdown registers fn to run once the context ends and before
// connections are drained.
func (s *Server) BeforeShutdown(fn func()) {
	s.beforeShutdown = append(s.beforeShutdown, fn)
}

// Listen binds the configured address. Bind failures surface here rather
// than after startup.
func (s *Server) Listen() (net.Addr, error) {
	if s.listener != nil {
		return s.listener.Addr(), nil
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln

	return ln.Addr(), nil
}

// Serve accepts connections until ctx ends, then drains in-flight requests
// for at most the shutdown timeout.
func (s *Server) Serve(ctx context.Context) error {
	if _, err := s.Listen(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", slog.String("addr", s.listener.Addr().String()))
		errCh <- s.httpServer.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	for _, fn := range s.beforeShutdown {
		fn()
	}

	s.log.Info("draining http server", slog.Duration("timeout", s.shutdownTimeout))

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(drainCtx); err != nil {
		s.log.Error("http server drain incomplete", slog.Any("error", err))
		return fmt.Errorf("drain http server: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}

	s.log.Info("http server stopped")
	return nil
}

// ListenAndServe is Listen followed by Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if _, err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}
