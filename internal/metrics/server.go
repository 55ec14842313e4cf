package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/aatumaykin/singleschedule/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves /metrics for a gatherer.
type Server struct {
	server   *http.Server
	listener net.Listener
	logger   *logger.Logger
}

// NewServer builds a server for addr. Nothing listens until Start.
func NewServer(addr string, gatherer prometheus.Gatherer, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       5 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
		logger: log,
	}
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.logger.Info("metrics endpoint listening", logger.Field{Key: "addr", Value: ln.Addr().String()})

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
