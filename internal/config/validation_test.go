package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "trafficbandit",
			Environment: "development",
			LogLevel:    "info",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "allocator",
			SSLMode:  "disable",
			PoolSize: 10,
			CircuitBreaker: CircuitBreakerConfig{
				FailureRatio: 0.6,
			},
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		RateLimit: RateLimitConfig{
			Backend: "memory",
		},
		Algorithm: AlgorithmConfig{
			Version:           "1.0.0",
			DefaultWindowDays: 14,
			MaxWindowDays:     30,
			MinImpressions:    200,
			ThompsonSamples:   10000,
			PriorAlpha:        1,
			PriorBeta:         99,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Monitoring: MonitoringConfig{
			EnableMetrics: true,
			MetricsPort:   9100,
		},
	}
}

func TestValidate_ValidConfigPasses(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_MissingAppName(t *testing.T) {
	cfg := validConfig()
	cfg.App.Name = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.name")
}

func TestValidate_InvalidEnvironment(t *testing.T) {
	cfg := validConfig()
	cfg.App.Environment = "sandbox"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.environment")
}

func TestValidate_DatabasePortOutOfRange(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Port = 70000
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.port")
}

func TestValidate_DatabasePasswordRequiredOutsideDevelopment(t *testing.T) {
	cfg := validConfig()
	cfg.App.Environment = "production"
	cfg.Database.SSLMode = "require"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.password")
}

func TestValidate_RedisRequiredOnlyForRedisBackend(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.Backend = "memory"
	cfg.Redis.Host = ""
	assert.NoError(t, cfg.Validate())

	cfg.RateLimit.Backend = "redis"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.host")
}

func TestValidate_InvalidRateLimitBackend(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.Backend = "memcached"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ratelimit.backend")
}

func TestValidate_InvalidAlgorithmVersion(t *testing.T) {
	cfg := validConfig()
	cfg.Algorithm.Version = "not-a-semver"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "algorithm.version")
}

func TestValidate_MaxWindowMustBeAtLeastDefault(t *testing.T) {
	cfg := validConfig()
	cfg.Algorithm.DefaultWindowDays = 30
	cfg.Algorithm.MaxWindowDays = 14
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "algorithm.max_window_days")
}

func TestValidate_NonPositivePriorsRejected(t *testing.T) {
	cfg := validConfig()
	cfg.Algorithm.PriorAlpha = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prior_alpha")
}

func TestValidate_ProductionRequiresSSL(t *testing.T) {
	cfg := validConfig()
	cfg.App.Environment = "production"
	cfg.Database.Password = "s3cret-enough-to-pass"
	cfg.Database.SSLMode = "disable"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.ssl_mode")
}

func TestValidationErrors_ErrorFormatsAllEntries(t *testing.T) {
	errs := ValidationErrors{
		{Field: "a.b", Message: "first"},
		{Field: "c.d", Message: "second"},
	}
	msg := errs.Error()
	assert.Contains(t, msg, "a.b")
	assert.Contains(t, msg, "c.d")
	assert.Contains(t, msg, "2 error")
}

func TestDefaultValidatorOptions(t *testing.T) {
	opts := DefaultValidatorOptions()
	assert.True(t, opts.VerifyConnectivity)
	assert.Equal(t, 5*time.Second, opts.Timeout)
}
