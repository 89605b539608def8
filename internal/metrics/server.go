// Package metrics provides the HTTP server exposing Prometheus metrics.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/trafficbandit/allocator/internal/config"
)

// Server exposes /metrics and /health on its own port, separate from the
// main API server, so Prometheus scraping never competes with the rate
// limiter or request logging applied to the API surface.
type Server struct {
	port   int
	server *http.Server
	mux    *http.ServeMux
	log    zerolog.Logger
}

// NewServer creates a metrics server bound to port.
func NewServer(port int, log zerolog.Logger) *Server {
	return &Server{
		port: port,
		log:  log.With().Str("component", "metrics_server").Logger(),
	}
}

// Start starts the metrics HTTP server in a background goroutine.
func (s *Server) Start() error {
	s.mux = http.NewServeMux()
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"version":   config.Version,
		})
	})

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info().Int("port", s.port).Msg("starting metrics server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("metrics server error")
		}
	}()

	return nil
}

// RegisterHandler registers an additional HTTP handler on the metrics
// server's mux. Must be called after Start.
func (s *Server) RegisterHandler(pattern string, handler http.HandlerFunc) {
	if s.mux != nil {
		s.mux.HandleFunc(pattern, handler)
	}
}

// Shutdown gracefully shuts down the metrics server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.log.Info().Msg("shutting down metrics server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	return nil
}
