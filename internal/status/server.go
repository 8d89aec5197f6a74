package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"gridforge/internal/platform"
)

const shutdownTimeout = 5 * time.Second

// Server runs the status router on its own listener. It satisfies the
// platform support module contract.
type Server struct {
	addr    string
	handler http.Handler
	logger  *slog.Logger

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{addr: addr, handler: handler, logger: logger}
}

func (s *Server) Name() string { return "status" }

func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server stopped", "addr", ln.Addr().String(), "error", err)
		}
	}()

	s.srv = srv
	s.listener = ln
	s.done = done
	s.logger.Info("status server listening", "addr", ln.Addr().String())
	return nil
}

// Addr is the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.srv, s.done
	s.srv, s.listener, s.done = nil, nil, nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(ctx)
	<-done
	return err
}

// StopWithReason logs why the host is stopping and shuts the server down.
func (s *Server) StopWithReason(ctx context.Context, reason platform.StopReason) error {
	if addr := s.Addr(); addr != "" {
		s.logger.Info("status server stopping", "addr", addr, "reason", string(reason))
	}
	return s.Stop(ctx)
}
