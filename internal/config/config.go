package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/blockstreet/blockstreet/internal/core"
)

// Storage drivers for rate limit windows.
const (
	StorageDriverStore = "store"
	StorageDriverRedis = "redis"
)

// Config represents the complete application configuration.
// Values are layered: built-in defaults, then the config file, then
// BLOCKSTREET_* environment variables, then runtime overrides.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Redis      RedisConfig      `mapstructure:"redis"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
	Feed       FeedConfig       `mapstructure:"feed"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Health     HealthConfig     `mapstructure:"health"`
	Debug      DebugConfig      `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// StorageConfig selects where rate limit windows live.
// "store" keeps them in the libsql kv table, "redis" in Redis.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

// RedisConfig configures the Redis window storage.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// RateLimitsConfig tunes the per-action sliding windows.
type RateLimitsConfig struct {
	// PolicyFile is an optional YAML file of policies; see LoadPolicyFile.
	PolicyFile string                  `mapstructure:"policy_file"`
	Policies   map[string]PolicyConfig `mapstructure:"policies"`
}

// PolicyConfig overrides one action's policy. Zero fields keep the default.
type PolicyConfig struct {
	MaxActions int           `mapstructure:"max_actions"`
	Window     time.Duration `mapstructure:"window"`
	Key        string        `mapstructure:"key"`
}

// FeedConfig holds the page sizes used by list views.
type FeedConfig struct {
	PostPageSize    int `mapstructure:"post_page_size"`
	CommentPageSize int `mapstructure:"comment_page_size"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED, ENTERPRISE
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// WARNING: Only enable in development/staging environments
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", StorageDriverStore:
	case StorageDriverRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return fmt.Errorf("redis.addr is required when storage.driver is redis")
		}
	default:
		return fmt.Errorf("unsupported storage driver: %s", c.Storage.Driver)
	}
	if c.Feed.PostPageSize <= 0 {
		return fmt.Errorf("feed.post_page_size must be positive, got %d", c.Feed.PostPageSize)
	}
	if c.Feed.CommentPageSize <= 0 {
		return fmt.Errorf("feed.comment_page_size must be positive, got %d", c.Feed.CommentPageSize)
	}
	if _, err := c.RateLimits.Resolve(); err != nil {
		return err
	}
	return nil
}

// Resolve merges the configured overrides onto the built-in policies.
func (c RateLimitsConfig) Resolve() (map[core.ActionType]core.RateLimitPolicy, error) {
	policies := core.DefaultRateLimitPolicies()
	for name, override := range c.Policies {
		action := core.ActionType(strings.ToLower(strings.TrimSpace(name)))
		if action == "" {
			continue
		}
		policy := policies[action]
		if override.MaxActions != 0 {
			policy.MaxActions = override.MaxActions
		}
		if override.Window != 0 {
			policy.Window = override.Window
		}
		if key := strings.TrimSpace(override.Key); key != "" {
			policy.KeyPrefix = key
		}
		if err := policy.Validate(); err != nil {
			return nil, fmt.Errorf("rate_limits.policies.%s: %w", action, err)
		}
		policies[action] = policy
	}
	return policies, nil
}
