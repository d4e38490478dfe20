// Package config loads the orchestrator's tuning knobs from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// SchedulerConfig tunes subtask execution
type SchedulerConfig struct {
	// MaxConcurrentSubtasks caps in-flight worker calls within a wave; 0 = no cap
	MaxConcurrentSubtasks int `mapstructure:"max_concurrent_subtasks" yaml:"max_concurrent_subtasks"`
	// SubtaskTimeoutSeconds bounds one worker invocation; 0 = no deadline
	SubtaskTimeoutSeconds int `mapstructure:"subtask_timeout_seconds" yaml:"subtask_timeout_seconds"`
	// RateLimitPerSecond paces worker invocations; 0 = disabled
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second" yaml:"rate_limit_per_second"`
	// RateLimitBurst is the limiter's burst size when rate limiting is on
	RateLimitBurst int `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
}

// SessionConfig tunes session observability
type SessionConfig struct {
	// RedisAddr enables the Redis session mirror when non-empty
	RedisAddr string `mapstructure:"redis_addr" yaml:"redis_addr"`
	// MirrorTTLMinutes is how long mirrored snapshots live
	MirrorTTLMinutes int `mapstructure:"mirror_ttl_minutes" yaml:"mirror_ttl_minutes"`
}

// LoggingConfig tunes the zap logger the host builds
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Config is the full orchestrator configuration
type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			MaxConcurrentSubtasks: 0,
			SubtaskTimeoutSeconds: 0,
			RateLimitPerSecond:    0,
			RateLimitBurst:        1,
		},
		Session: SessionConfig{
			MirrorTTLMinutes: 24 * 60,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the file named by CONFIG_PATH (default
// ./orchestrator.yaml). A missing file is not an error: defaults apply,
// and ORCHESTRATOR_* environment variables override either way.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "orchestrator.yaml"
	}
	return LoadFile(path)
}

// LoadFile reads configuration from an explicit path
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ORCHESTRATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	v.SetDefault("scheduler.max_concurrent_subtasks", cfg.Scheduler.MaxConcurrentSubtasks)
	v.SetDefault("scheduler.subtask_timeout_seconds", cfg.Scheduler.SubtaskTimeoutSeconds)
	v.SetDefault("scheduler.rate_limit_per_second", cfg.Scheduler.RateLimitPerSecond)
	v.SetDefault("scheduler.rate_limit_burst", cfg.Scheduler.RateLimitBurst)
	v.SetDefault("session.redis_addr", cfg.Session.RedisAddr)
	v.SetDefault("session.mirror_ttl_minutes", cfg.Session.MirrorTTLMinutes)
	v.SetDefault("logging.level", cfg.Logging.Level)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if _, statErr := os.Stat(path); statErr == nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// SubtaskTimeout returns the scheduler timeout as a duration
func (c *Config) SubtaskTimeout() time.Duration {
	return time.Duration(c.Scheduler.SubtaskTimeoutSeconds) * time.Second
}

// MirrorTTL returns the session mirror TTL as a duration
func (c *Config) MirrorTTL() time.Duration {
	return time.Duration(c.Session.MirrorTTLMinutes) * time.Minute
}

// YAML renders the configuration for diagnostics
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
