// Command api runs the traffic-allocation HTTP service: experiment
// management, metric ingestion, and Thompson-sampling allocation, with a
// separate Prometheus metrics server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/trafficbandit/allocator/internal/allocator"
	"github.com/trafficbandit/allocator/internal/api"
	"github.com/trafficbandit/allocator/internal/config"
	"github.com/trafficbandit/allocator/internal/db"
	"github.com/trafficbandit/allocator/internal/metrics"
	"github.com/trafficbandit/allocator/internal/ratelimit"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	config.InitLogger(cfg.App.LogLevel, envLogFormat(cfg.App.Environment))

	ctx := context.Background()

	validator := config.NewValidator(cfg, config.DefaultValidatorOptions())
	if err := validator.ValidateStartup(ctx); err != nil {
		log.Fatal().Err(err).Msg("startup validation failed")
	}

	store, err := db.New(ctx, cfg.Database.GetDSN(), db.PoolSettings{
		MaxConns:        int32(cfg.Database.PoolSize),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	}, db.BreakerSettings{
		MinRequests:     uint32(cfg.Database.CircuitBreaker.MinRequests),
		FailureRatio:    cfg.Database.CircuitBreaker.FailureRatio,
		OpenTimeout:     cfg.Database.CircuitBreaker.OpenTimeout,
		HalfOpenMaxReqs: uint32(cfg.Database.CircuitBreaker.HalfOpenMaxReqs),
		CountInterval:   cfg.Database.CircuitBreaker.CountInterval,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer store.Close()

	limiter, err := newRateLimiter(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize rate limiter")
	}

	orchestrator := allocator.New(store, allocator.Config{
		DefaultWindowDays: cfg.Algorithm.DefaultWindowDays,
		MaxWindowDays:     cfg.Algorithm.MaxWindowDays,
		MinImpressions:    cfg.Algorithm.MinImpressions,
		ThompsonSamples:   cfg.Algorithm.ThompsonSamples,
		PriorAlpha:        cfg.Algorithm.PriorAlpha,
		PriorBeta:         cfg.Algorithm.PriorBeta,
		AlgorithmVersion:  cfg.Algorithm.Version,
	})

	server := api.NewServer(api.Config{
		Host:         cfg.API.Host,
		Port:         cfg.API.Port,
		Store:        store,
		Orchestrator: orchestrator,
		Limiter:      limiter,
		Limits:       ratelimit.DefaultEndpointLimits(),
		Log:          config.NewLogger("api"),
	})

	var metricsServer *metrics.Server
	if cfg.Monitoring.EnableMetrics {
		metricsServer = metrics.NewServer(cfg.Monitoring.MetricsPort, config.NewLogger("metrics"))
		if err := metricsServer.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start metrics server")
		}
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("API server shutdown error")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	log.Info().Msg("shutdown complete")
}

// newRateLimiter builds the configured Limiter backend. "redis" requires
// Redis connectivity, already verified by ValidateStartup.
func newRateLimiter(cfg *config.Config) (ratelimit.Limiter, error) {
	switch cfg.RateLimit.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetRedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return ratelimit.NewRedisLimiter(client, "allocator:ratelimit:"), nil
	default:
		return ratelimit.NewMemoryLimiter(), nil
	}
}

func envLogFormat(environment string) string {
	if environment == "production" {
		return "json"
	}
	return "console"
}
