package config

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ValidatorOptions contains options for startup configuration validation.
type ValidatorOptions struct {
	VerifyConnectivity bool // check database/Redis connectivity
	Timeout            time.Duration
}

// DefaultValidatorOptions returns default validator options for startup.
func DefaultValidatorOptions() ValidatorOptions {
	return ValidatorOptions{
		VerifyConnectivity: true,
		Timeout:            5 * time.Second,
	}
}

// Validator handles configuration validation at startup.
type Validator struct {
	config  *Config
	options ValidatorOptions
}

// NewValidator creates a new configuration validator.
func NewValidator(config *Config, options ValidatorOptions) *Validator {
	return &Validator{config: config, options: options}
}

// ValidateStartup performs field validation followed by, if enabled,
// connectivity checks against Postgres and (when ratelimit.backend=redis)
// Redis. Called once before any service starts accepting traffic.
func (v *Validator) ValidateStartup(ctx context.Context) error {
	if err := v.config.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if !v.options.VerifyConnectivity {
		return nil
	}

	if err := v.checkDatabaseConnectivity(ctx); err != nil {
		return fmt.Errorf("database connectivity check failed: %w", err)
	}

	if v.config.RateLimit.Backend == "redis" {
		if err := v.checkRedisConnectivity(ctx); err != nil {
			return fmt.Errorf("redis connectivity check failed: %w", err)
		}
	}

	log.Info().Msg("configuration validation completed successfully")
	return nil
}

func (v *Validator) checkDatabaseConnectivity(ctx context.Context) error {
	connCtx, cancel := context.WithTimeout(ctx, v.options.Timeout)
	defer cancel()

	pool, err := pgxpool.New(connCtx, v.config.Database.GetDSN())
	if err != nil {
		return fmt.Errorf("create database connection pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(connCtx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	log.Info().
		Str("host", v.config.Database.Host).
		Int("port", v.config.Database.Port).
		Msg("database connectivity check passed")
	return nil
}

func (v *Validator) checkRedisConnectivity(ctx context.Context) error {
	connCtx, cancel := context.WithTimeout(ctx, v.options.Timeout)
	defer cancel()

	client := redis.NewClient(&redis.Options{
		Addr:     v.config.Redis.GetRedisAddr(),
		Password: v.config.Redis.Password,
		DB:       v.config.Redis.DB,
	})
	defer client.Close()

	if err := client.Ping(connCtx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	log.Info().Str("addr", v.config.Redis.GetRedisAddr()).Msg("redis connectivity check passed")
	return nil
}
