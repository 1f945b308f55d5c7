// Package server runs the monitoring API next to a crawl.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server wraps an http.Server that is started in the background and shut
// down with the crawl.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	errCh      chan error
}

func New(addr string, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 35 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
		errCh:  make(chan error, 1),
	}
}

// Start serves in a new goroutine. A listen failure is reported by Shutdown.
func (s *Server) Start() {
	go func() {
		s.logger.Info("starting monitoring server", zap.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("monitoring server stopped", zap.Error(err))
			s.errCh <- err
		}
		close(s.errCh)
	}()
}

// Shutdown stops the server gracefully and returns any listen error.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	return <-s.errCh
}
