package config

import (
	"fmt"

	"github.com/hexstrike/hexstrike/internal/types"
)

var validLogLevels = map[string]struct{}{
	"debug": {}, "info": {}, "warn": {}, "error": {},
}

var validLogFormats = map[string]struct{}{
	"text": {}, "json": {},
}

var validCacheBackends = map[string]struct{}{
	"memory": {}, "sqlite": {},
}

// Validate checks cross-field constraints. It returns
// CONFIG_VALIDATION_FAILED naming the first offending field.
func Validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return invalid("server.addr cannot be empty")
	}

	if _, ok := validCacheBackends[cfg.Cache.Backend]; !ok {
		return invalid(fmt.Sprintf("cache.backend %q is not one of memory, sqlite", cfg.Cache.Backend))
	}
	if cfg.Cache.Backend == "sqlite" && cfg.Cache.Path == "" {
		return invalid("cache.path is required for the sqlite backend")
	}
	if cfg.Cache.MaxEntries <= 0 {
		return invalid("cache.max_entries must be positive")
	}
	if cfg.Cache.DefaultTTL <= 0 {
		return invalid("cache.default_ttl must be positive")
	}

	if cfg.Executor.MaxConcurrent <= 0 {
		return invalid("executor.max_concurrent must be positive")
	}
	if cfg.Executor.BaseTimeout <= 0 {
		return invalid("executor.base_timeout must be positive")
	}
	if cfg.Executor.OutputLimitBytes <= 0 {
		return invalid("executor.output_limit_bytes must be positive")
	}
	if cfg.Executor.LaunchesPerSecond < 0 {
		return invalid("executor.launches_per_second cannot be negative")
	}

	if cfg.Profiler.ResolveTimeout <= 0 {
		return invalid("profiler.resolve_timeout must be positive")
	}

	if _, ok := validLogLevels[cfg.Logging.Level]; !ok {
		return invalid(fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", cfg.Logging.Level))
	}
	if _, ok := validLogFormats[cfg.Logging.Format]; !ok {
		return invalid(fmt.Sprintf("logging.format %q is not one of text, json", cfg.Logging.Format))
	}

	for name, w := range map[string]float64{
		"selection.keyword_weight": cfg.Selection.KeywordWeight,
		"selection.cost_weight":    cfg.Selection.CostWeight,
		"selection.success_weight": cfg.Selection.SuccessWeight,
	} {
		if w < 0 || w > 1 {
			return invalid(fmt.Sprintf("%s must be within [0, 1]", name))
		}
	}

	return nil
}

func invalid(msg string) error {
	return types.NewError(types.CONFIG_VALIDATION_FAILED, msg)
}
