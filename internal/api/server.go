// Package api is the HTTP ingress for the allocation service: experiment
// CRUD, metric ingestion, allocation computation, and history retrieval.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/trafficbandit/allocator/internal/allocator"
	"github.com/trafficbandit/allocator/internal/db"
	ginmetrics "github.com/trafficbandit/allocator/internal/metrics"
	"github.com/trafficbandit/allocator/internal/ratelimit"
)

// Server wires the gin engine, its middleware stack, and the route table
// over a Store and Orchestrator.
type Server struct {
	router       *gin.Engine
	store        db.Store
	orchestrator *allocator.Orchestrator
	addr         string
	server       *http.Server
	log          zerolog.Logger
}

// Config configures a new Server.
type Config struct {
	Host         string
	Port         int
	Store        db.Store
	Orchestrator *allocator.Orchestrator
	Limiter      ratelimit.Limiter
	Limits       []ratelimit.EndpointLimit
	Log          zerolog.Logger
}

// NewServer builds the middleware chain (recovery, request logging, metrics,
// rate limiting, CORS) and registers every route from spec.md §6.
func NewServer(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(cfg.Log))
	router.Use(ginmetrics.GinMiddleware())
	if cfg.Limiter != nil {
		router.Use(ratelimit.Middleware(cfg.Limiter, cfg.Limits))
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	s := &Server{
		router:       router,
		store:        cfg.Store,
		orchestrator: cfg.Orchestrator,
		addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		log:          cfg.Log,
	}
	s.setupRoutes()
	return s
}

// Router exposes the underlying gin engine for tests that drive requests
// through httptest without a live listener.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start runs the HTTP server until Stop is called or it fails.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info().Str("addr", s.addr).Msg("starting API server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down, waiting for in-flight requests to
// complete or ctx to expire.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info().Msg("stopping API server")
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
	}
	return nil
}
