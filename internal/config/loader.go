package config

import (
	"os"
	"regexp"

	"github.com/spf13/viper"

	"github.com/hexstrike/hexstrike/internal/types"
)

var envVarRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads the YAML file at path over the defaults, interpolates
// ${ENV_VAR} references, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to read config file", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to unmarshal config", err)
	}

	interpolate(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadWithDefaults behaves like Load but falls back to DefaultConfig
// when the file does not exist.
func LoadWithDefaults(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return Load(path)
}

// setDefaults seeds viper so a partial file inherits the rest.
func setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("server.read_timeout", def.Server.ReadTimeout)
	v.SetDefault("server.shutdown_timeout", def.Server.ShutdownTimeout)

	v.SetDefault("cache.backend", def.Cache.Backend)
	v.SetDefault("cache.path", def.Cache.Path)
	v.SetDefault("cache.max_entries", def.Cache.MaxEntries)
	v.SetDefault("cache.default_ttl", def.Cache.DefaultTTL)

	v.SetDefault("executor.max_concurrent", def.Executor.MaxConcurrent)
	v.SetDefault("executor.base_timeout", def.Executor.BaseTimeout)
	v.SetDefault("executor.output_limit_bytes", def.Executor.OutputLimitBytes)
	v.SetDefault("executor.launches_per_second", def.Executor.LaunchesPerSecond)

	v.SetDefault("profiler.resolve_timeout", def.Profiler.ResolveTimeout)
	v.SetDefault("catalog.path", def.Catalog.Path)

	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)

	v.SetDefault("selection.keyword_weight", def.Selection.KeywordWeight)
	v.SetDefault("selection.cost_weight", def.Selection.CostWeight)
	v.SetDefault("selection.success_weight", def.Selection.SuccessWeight)
}

// interpolate expands ${ENV_VAR} in the string fields that plausibly
// carry secrets or per-host paths.
func interpolate(cfg *Config) {
	cfg.Server.Addr = expandEnv(cfg.Server.Addr)
	cfg.Cache.Path = expandEnv(cfg.Cache.Path)
	cfg.Catalog.Path = expandEnv(cfg.Catalog.Path)
}

// expandEnv replaces ${VAR} with the environment value; unset variables
// leave the reference untouched so validation can flag it.
func expandEnv(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}
