package config

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// Validate performs comprehensive configuration validation.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateApp()...)
	errors = append(errors, c.validateDatabase()...)
	errors = append(errors, c.validateRedis()...)
	errors = append(errors, c.validateRateLimit()...)
	errors = append(errors, c.validateAlgorithm()...)
	errors = append(errors, c.validateAPI()...)
	errors = append(errors, c.validateEnvironmentRequirements()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errors ValidationErrors

	if c.App.Name == "" {
		errors = append(errors, ValidationError{Field: "app.name", Message: "application name is required"})
	}

	if c.App.Environment == "" {
		errors = append(errors, ValidationError{Field: "app.environment", Message: "environment is required (development, staging, or production)"})
	} else {
		validEnvs := []string{"development", "staging", "production"}
		valid := false
		for _, env := range validEnvs {
			if c.App.Environment == env {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, ValidationError{
				Field:   "app.environment",
				Message: fmt.Sprintf("invalid environment %q, must be one of %v", c.App.Environment, validEnvs),
			})
		}
	}

	if c.App.LogLevel == "" {
		errors = append(errors, ValidationError{Field: "app.log_level", Message: "log level is required (debug, info, warn, error)"})
	}

	return errors
}

func (c *Config) validateDatabase() ValidationErrors {
	var errors ValidationErrors

	if c.Database.Host == "" {
		errors = append(errors, ValidationError{Field: "database.host", Message: "database host is required"})
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "database.port",
			Message: fmt.Sprintf("invalid port %d, must be between 1-65535", c.Database.Port),
		})
	}

	if c.Database.User == "" {
		errors = append(errors, ValidationError{Field: "database.user", Message: "database user is required"})
	}

	if c.Database.Database == "" {
		errors = append(errors, ValidationError{Field: "database.database", Message: "database name is required"})
	}

	if c.Database.Password == "" && c.App.Environment != "development" {
		errors = append(errors, ValidationError{Field: "database.password", Message: "database password is required in non-development environments"})
	}

	if c.Database.PoolSize < 1 {
		errors = append(errors, ValidationError{Field: "database.pool_size", Message: "database pool size must be at least 1"})
	}

	cb := c.Database.CircuitBreaker
	if cb.FailureRatio < 0 || cb.FailureRatio > 1 {
		errors = append(errors, ValidationError{
			Field:   "database.circuit_breaker.failure_ratio",
			Message: fmt.Sprintf("invalid failure_ratio %.2f, must be between 0-1", cb.FailureRatio),
		})
	}

	return errors
}

func (c *Config) validateRedis() ValidationErrors {
	var errors ValidationErrors

	if c.RateLimit.Backend != "redis" {
		return errors
	}

	if c.Redis.Host == "" {
		errors = append(errors, ValidationError{Field: "redis.host", Message: "redis host is required when ratelimit.backend=redis"})
	}

	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "redis.port",
			Message: fmt.Sprintf("invalid port %d, must be between 1-65535", c.Redis.Port),
		})
	}

	return errors
}

func (c *Config) validateRateLimit() ValidationErrors {
	var errors ValidationErrors

	switch c.RateLimit.Backend {
	case "memory", "redis":
	default:
		errors = append(errors, ValidationError{
			Field:   "ratelimit.backend",
			Message: fmt.Sprintf("invalid backend %q, must be 'memory' or 'redis'", c.RateLimit.Backend),
		})
	}

	return errors
}

func (c *Config) validateAlgorithm() ValidationErrors {
	var errors ValidationErrors

	if _, err := semver.NewVersion(c.Algorithm.Version); err != nil {
		errors = append(errors, ValidationError{
			Field:   "algorithm.version",
			Message: fmt.Sprintf("invalid semver %q: %v", c.Algorithm.Version, err),
		})
	}

	if c.Algorithm.DefaultWindowDays < 1 {
		errors = append(errors, ValidationError{Field: "algorithm.default_window_days", Message: "must be at least 1"})
	}

	if c.Algorithm.MaxWindowDays < c.Algorithm.DefaultWindowDays {
		errors = append(errors, ValidationError{
			Field:   "algorithm.max_window_days",
			Message: "must be greater than or equal to default_window_days",
		})
	}

	if c.Algorithm.MinImpressions < 0 {
		errors = append(errors, ValidationError{Field: "algorithm.min_impressions", Message: "must be non-negative"})
	}

	if c.Algorithm.ThompsonSamples < 1 {
		errors = append(errors, ValidationError{Field: "algorithm.thompson_samples", Message: "must be at least 1"})
	}

	if c.Algorithm.PriorAlpha <= 0 || c.Algorithm.PriorBeta <= 0 {
		errors = append(errors, ValidationError{Field: "algorithm.prior_alpha/prior_beta", Message: "must be strictly positive"})
	}

	return errors
}

func (c *Config) validateAPI() ValidationErrors {
	var errors ValidationErrors

	if c.API.Port < 1 || c.API.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "api.port",
			Message: fmt.Sprintf("invalid port %d, must be between 1-65535", c.API.Port),
		})
	}

	return errors
}

func (c *Config) validateEnvironmentRequirements() ValidationErrors {
	var errors ValidationErrors

	if c.App.Environment == "production" && c.Database.SSLMode == "disable" {
		errors = append(errors, ValidationError{
			Field:   "database.ssl_mode",
			Message: "SSL must be enabled for database in production",
		})
	}

	return errors
}
