// Package config defines the daemon configuration and its viper-backed
// YAML loader. Values resolve in order: defaults, file, ${ENV}
// interpolation.
package config

import (
	"time"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Cache     CacheConfig     `mapstructure:"cache" yaml:"cache"`
	Executor  ExecutorConfig  `mapstructure:"executor" yaml:"executor"`
	Profiler  ProfilerConfig  `mapstructure:"profiler" yaml:"profiler"`
	Catalog   CatalogConfig   `mapstructure:"catalog" yaml:"catalog"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Selection SelectionConfig `mapstructure:"selection" yaml:"selection"`
}

// ServerConfig controls the HTTP API listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	// Backend selects the store: "memory" or "sqlite".
	Backend    string        `mapstructure:"backend" yaml:"backend"`
	Path       string        `mapstructure:"path" yaml:"path"`
	MaxEntries int           `mapstructure:"max_entries" yaml:"max_entries"`
	DefaultTTL time.Duration `mapstructure:"default_ttl" yaml:"default_ttl"`
}

// ExecutorConfig controls the process orchestrator.
type ExecutorConfig struct {
	MaxConcurrent     int           `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	BaseTimeout       time.Duration `mapstructure:"base_timeout" yaml:"base_timeout"`
	OutputLimitBytes  int           `mapstructure:"output_limit_bytes" yaml:"output_limit_bytes"`
	LaunchesPerSecond float64       `mapstructure:"launches_per_second" yaml:"launches_per_second"`
}

// ProfilerConfig controls target analysis.
type ProfilerConfig struct {
	ResolveTimeout time.Duration `mapstructure:"resolve_timeout" yaml:"resolve_timeout"`
}

// CatalogConfig controls the tool catalog source.
type CatalogConfig struct {
	// Path points at a YAML catalog file; empty uses the built-in
	// arsenal.
	Path string `mapstructure:"path" yaml:"path"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`
	// Format is text or json.
	Format string `mapstructure:"format" yaml:"format"`
}

// SelectionConfig tunes the decision engine's scoring blend.
type SelectionConfig struct {
	KeywordWeight float64 `mapstructure:"keyword_weight" yaml:"keyword_weight"`
	CostWeight    float64 `mapstructure:"cost_weight" yaml:"cost_weight"`
	SuccessWeight float64 `mapstructure:"success_weight" yaml:"success_weight"`
}
