package config

import (
	"time"
)

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8888",
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			Path:       "hexstrike-cache.db",
			MaxEntries: 4096,
			DefaultTTL: time.Hour,
		},
		Executor: ExecutorConfig{
			MaxConcurrent:     8,
			BaseTimeout:       30 * time.Second,
			OutputLimitBytes:  1 << 20,
			LaunchesPerSecond: 0,
		},
		Profiler: ProfilerConfig{
			ResolveTimeout: 2 * time.Second,
		},
		Catalog: CatalogConfig{
			Path: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Selection: SelectionConfig{
			KeywordWeight: 0.5,
			CostWeight:    0.3,
			SuccessWeight: 0.2,
		},
	}
}
