// Package config loads and validates redprobe configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Robots store backends.
const (
	StoreMemory   = "memory"
	StoreLocal    = "local"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreNone     = "none"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Check     CheckConfig     `mapstructure:"check"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Robots    RobotsConfig    `mapstructure:"robots"`
	Descend   DescendConfig   `mapstructure:"descend"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// CheckConfig governs a single check.
type CheckConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	SampleBytes    int    `mapstructure:"sample_bytes"`
	MaxBodyBytes   int64  `mapstructure:"max_body_bytes"`
}

// HTTPConfig configures the transport.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// RobotsConfig configures robots.txt handling and its persistence.
type RobotsConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	UserAgent     string `mapstructure:"user_agent"`
	TTLSeconds    int    `mapstructure:"ttl_seconds"`
	Store         string `mapstructure:"store"`
	Dir           string `mapstructure:"dir"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	PostgresTable string `mapstructure:"postgres_table"`
	MaxRetries    int    `mapstructure:"max_retries"`
}

// DescendConfig bounds the checks of linked resources.
type DescendConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MaxLinks    int  `mapstructure:"max_links"`
	Concurrency int  `mapstructure:"concurrency"`
}

// RateLimitConfig spaces out requests to one origin. RPS 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("REDPROBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("check.user_agent", "redprobe/0.1 (+https://github.com/JakeFAU/redprobe)")
	v.SetDefault("check.timeout_seconds", 30)
	v.SetDefault("check.sample_bytes", 8192)
	v.SetDefault("check.max_body_bytes", 8<<20)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("robots.enabled", true)
	v.SetDefault("robots.user_agent", "RED")
	v.SetDefault("robots.ttl_seconds", 1800)
	v.SetDefault("robots.store", StoreMemory)
	v.SetDefault("robots.dir", "robots-cache")
	v.SetDefault("robots.sqlite_path", "robots.db")
	v.SetDefault("robots.postgres_dsn", "")
	v.SetDefault("robots.postgres_table", "robots")
	v.SetDefault("robots.max_retries", 2)
	v.SetDefault("descend.enabled", false)
	v.SetDefault("descend.max_links", 20)
	v.SetDefault("descend.concurrency", 4)
	v.SetDefault("ratelimit.rps", 0)
	v.SetDefault("ratelimit.burst", 1)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Check.TimeoutSeconds <= 0 {
		return fmt.Errorf("check.timeout_seconds must be > 0")
	}
	if c.Check.SampleBytes <= 0 {
		return fmt.Errorf("check.sample_bytes must be > 0")
	}
	if c.Check.MaxBodyBytes < int64(c.Check.SampleBytes) {
		return fmt.Errorf("check.max_body_bytes must be >= check.sample_bytes")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Robots.Enabled {
		if c.Robots.TTLSeconds <= 0 {
			return fmt.Errorf("robots.ttl_seconds must be > 0")
		}
		if c.Robots.MaxRetries < 0 {
			return fmt.Errorf("robots.max_retries must be >= 0")
		}
		switch c.Robots.Store {
		case StoreMemory, StoreNone:
		case StoreLocal:
			if c.Robots.Dir == "" {
				return fmt.Errorf("robots.dir must be set for the local store")
			}
		case StoreSQLite:
			if c.Robots.SQLitePath == "" {
				return fmt.Errorf("robots.sqlite_path must be set for the sqlite store")
			}
		case StorePostgres:
			if c.Robots.PostgresDSN == "" {
				return fmt.Errorf("robots.postgres_dsn must be set for the postgres store")
			}
		default:
			return fmt.Errorf("robots.store %q is not one of memory, local, sqlite, postgres, none", c.Robots.Store)
		}
	}
	if c.Descend.MaxLinks <= 0 {
		return fmt.Errorf("descend.max_links must be > 0")
	}
	if c.Descend.Concurrency <= 0 {
		return fmt.Errorf("descend.concurrency must be > 0")
	}
	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("ratelimit.rps must be >= 0")
	}
	return nil
}

// CheckTimeout is the deadline for one complete check.
func (c Config) CheckTimeout() time.Duration {
	return time.Duration(c.Check.TimeoutSeconds) * time.Second
}

// HTTPTimeout is the per exchange transport timeout.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RobotsTTL is how long a fetched robots.txt is trusted.
func (c Config) RobotsTTL() time.Duration {
	return time.Duration(c.Robots.TTLSeconds) * time.Second
}
