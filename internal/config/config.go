// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Engine() EngineConfig
	Database() DatabaseConfig

	// Engine setters, used by CLI flags to override file/env values.
	SetEngineMaxConcurrentPlans(int)
	SetEngineStepTimeout(time.Duration)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	EngineCfg   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	DatabaseCfg DatabaseConfig `mapstructure:"database" yaml:"database"`
}

// --- Interface Method Implementations ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Engine() EngineConfig     { return c.EngineCfg }
func (c *Config) Database() DatabaseConfig { return c.DatabaseCfg }

func (c *Config) SetEngineMaxConcurrentPlans(n int) { c.EngineCfg.MaxConcurrentPlans = n }
func (c *Config) SetEngineStepTimeout(d time.Duration) {
	c.EngineCfg.StepTimeout = d
}

// LoggerConfig holds settings for the zap logger.
type LoggerConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`
	// Format is "console" for human-readable output or "json" for structured logs.
	Format      string `mapstructure:"format" yaml:"format"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`

	// File rotation settings, handled by lumberjack. Empty LogFile disables
	// file output entirely.
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// EngineConfig holds settings for the coordination and execution engine.
type EngineConfig struct {
	// MaxConcurrentPlans bounds the execution pool: at most this many plans
	// run their steps at the same time.
	MaxConcurrentPlans int `mapstructure:"max_concurrent_plans" yaml:"max_concurrent_plans"`

	// StepTimeout is the per-step deadline handed to the step executor.
	StepTimeout time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`

	// ExecutorRate throttles outbound effector calls (calls per second);
	// ExecutorBurst is the token bucket size. Zero rate disables throttling.
	ExecutorRate  float64 `mapstructure:"executor_rate" yaml:"executor_rate"`
	ExecutorBurst int     `mapstructure:"executor_burst" yaml:"executor_burst"`
}

// DatabaseConfig holds settings for the optional PostgreSQL audit store.
// When disabled, audit events go to the structured log only.
type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"url"`
}

// SetDefaults registers the default value for every key so that a missing or
// partial config file still yields a runnable configuration.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "optiinfra")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 28)

	v.SetDefault("engine.max_concurrent_plans", 4)
	v.SetDefault("engine.step_timeout", 5*time.Minute)
	v.SetDefault("engine.executor_rate", 10.0)
	v.SetDefault("engine.executor_burst", 5)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.url", "")
}

// Load reads configuration from the given viper instance and validates it.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.EngineCfg.MaxConcurrentPlans <= 0 {
		return fmt.Errorf("engine.max_concurrent_plans must be positive, got %d", c.EngineCfg.MaxConcurrentPlans)
	}
	if c.EngineCfg.StepTimeout <= 0 {
		return fmt.Errorf("engine.step_timeout must be positive, got %s", c.EngineCfg.StepTimeout)
	}
	if c.EngineCfg.ExecutorRate < 0 {
		return fmt.Errorf("engine.executor_rate must not be negative, got %f", c.EngineCfg.ExecutorRate)
	}
	if c.DatabaseCfg.Enabled && c.DatabaseCfg.URL == "" {
		return fmt.Errorf("database.url is required when database.enabled is true")
	}
	return nil
}
