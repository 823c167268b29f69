package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/common-nighthawk/go-figure"
)

const shutdownTimeout = 5 * time.Second

// Server runs the dashboard until its context is cancelled.
type Server struct {
	httpServer *http.Server
	logger     *log.Logger
}

// New builds an HTTP server around router, with logging and panic recovery installed first.
func New(addr string, router *BasicRouter, logger *log.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// NewRouter returns a router with the standard middleware stack.
func NewRouter(logger *log.Logger) *BasicRouter {
	router := NewBasicRouter()
	router.Use(Recoverer(logger), Logging(logger), NoStore)
	return router
}

// Banner renders the startup banner.
func Banner(name string) string {
	return figure.NewFigure(name, "small", true).String()
}

// Run listens and serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is [Server.Run] on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("dashboard stopped")
	return nil
}
