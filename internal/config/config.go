package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Algorithm  AlgorithmConfig  `mapstructure:"algorithm"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	API        APIConfig        `mapstructure:"api"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
}

// CircuitBreakerConfig configures the warehouse connection's gobreaker
// thresholds.
type CircuitBreakerConfig struct {
	MinRequests     uint32        `mapstructure:"min_requests"`
	FailureRatio    float64       `mapstructure:"failure_ratio"`
	OpenTimeout     time.Duration `mapstructure:"open_timeout"`
	HalfOpenMaxReqs uint32        `mapstructure:"half_open_max_requests"`
	CountInterval   time.Duration `mapstructure:"count_interval"`
}

// DatabaseConfig contains PostgreSQL connection and pool settings.
type DatabaseConfig struct {
	Host            string                `mapstructure:"host"`
	Port            int                   `mapstructure:"port"`
	User            string                `mapstructure:"user"`
	Password        string                `mapstructure:"password"`
	Database        string                `mapstructure:"database"`
	SSLMode         string                `mapstructure:"ssl_mode"`
	PoolSize        int                   `mapstructure:"pool_size"`
	MaxConnLifetime time.Duration         `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration         `mapstructure:"max_conn_idle_time"`
	CircuitBreaker  CircuitBreakerConfig  `mapstructure:"circuit_breaker"`
}

// RedisConfig contains Redis connection settings, consulted only when
// RateLimitConfig.Backend is "redis".
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RateLimitConfig selects and tunes the rate-limiter backend.
type RateLimitConfig struct {
	Backend string `mapstructure:"backend"` // "memory" or "redis"
}

// AlgorithmConfig tunes the Thompson-sampling allocation engine.
type AlgorithmConfig struct {
	Version            string  `mapstructure:"version"` // semver, recorded on every AllocationRecord
	DefaultWindowDays   int     `mapstructure:"default_window_days"`
	MaxWindowDays       int     `mapstructure:"max_window_days"`
	MinImpressions      int64   `mapstructure:"min_impressions"`
	ThompsonSamples     int     `mapstructure:"thompson_samples"`
	PriorAlpha          float64 `mapstructure:"prior_alpha"`
	PriorBeta           float64 `mapstructure:"prior_beta"`
}

// APIConfig contains REST API server settings.
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// MonitoringConfig contains Prometheus exposition settings.
type MonitoringConfig struct {
	EnableMetrics bool `mapstructure:"enable_metrics"`
	MetricsPort   int  `mapstructure:"metrics_port"`
}

// Load loads configuration from file and ALLOCATOR_-prefixed environment
// variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("ALLOCATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "trafficbandit")
	v.SetDefault("app.version", Version)
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "allocator")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)
	v.SetDefault("database.circuit_breaker.min_requests", 10)
	v.SetDefault("database.circuit_breaker.failure_ratio", 0.6)
	v.SetDefault("database.circuit_breaker.open_timeout", 15*time.Second)
	v.SetDefault("database.circuit_breaker.half_open_max_requests", 5)
	v.SetDefault("database.circuit_breaker.count_interval", 10*time.Second)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("ratelimit.backend", "memory")

	v.SetDefault("algorithm.version", "1.0.0")
	v.SetDefault("algorithm.default_window_days", 14)
	v.SetDefault("algorithm.max_window_days", 30)
	v.SetDefault("algorithm.min_impressions", 200)
	v.SetDefault("algorithm.thompson_samples", 10000)
	v.SetDefault("algorithm.prior_alpha", 1.0)
	v.SetDefault("algorithm.prior_beta", 99.0)

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)

	v.SetDefault("monitoring.enable_metrics", true)
	v.SetDefault("monitoring.metrics_port", 9100)
}

// GetDSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetRedisAddr returns the Redis address.
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAPIAddr returns the API server address.
func (c *APIConfig) GetAPIAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
