package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hexstrike/hexstrike/internal/cache"
	"github.com/hexstrike/hexstrike/internal/catalog"
	"github.com/hexstrike/hexstrike/internal/config"
	"github.com/hexstrike/hexstrike/internal/coordinator"
	"github.com/hexstrike/hexstrike/internal/decision"
	"github.com/hexstrike/hexstrike/internal/orchestrator"
	"github.com/hexstrike/hexstrike/internal/profiler"
)

var (
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hexstrike",
	Short: "Security tool orchestration core",
	Long: `HexStrike profiles targets, selects the right security tools for an
objective, and executes them as managed subprocesses with caching,
timeouts, and fallback retries.`,
	PersistentPreRunE: setup,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command with signal-aware context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// setup loads configuration and initializes logging before any command.
func setup(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.LoadWithDefaults(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
		if err := config.Validate(cfg); err != nil {
			return err
		}
	}
	logger = newLogger(cfg.Logging)
	return nil
}

func newLogger(lc config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// core bundles the assembled component stack for one command invocation.
type core struct {
	catalog *catalog.Catalog
	prof    *profiler.Profiler
	engine  *decision.Engine
	cache   *cache.Cache
	orch    *orchestrator.Orchestrator
	coord   *coordinator.Coordinator
}

// buildCore assembles the full pipeline from the loaded config.
func buildCore() (*core, error) {
	cat := catalog.Builtin()
	if cfg.Catalog.Path != "" {
		loaded, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return nil, err
		}
		cat = loaded
	}

	var store cache.Store
	if cfg.Cache.Backend == "sqlite" {
		s, err := cache.NewSQLiteStore(cfg.Cache.Path, cfg.Cache.MaxEntries)
		if err != nil {
			return nil, err
		}
		store = s
	} else {
		store = cache.NewMemoryStore(cfg.Cache.MaxEntries)
	}
	resultCache := cache.New(store, cfg.Cache.DefaultTTL, logger)

	prof := profiler.New(logger, profiler.WithResolveTimeout(cfg.Profiler.ResolveTimeout))

	// The engine and orchestrator reference each other: the engine reads
	// execution stats, the orchestrator asks for fallback parameters.
	orch := orchestrator.New(orchestrator.Config{
		MaxConcurrent:     cfg.Executor.MaxConcurrent,
		BaseTimeout:       cfg.Executor.BaseTimeout,
		OutputLimit:       cfg.Executor.OutputLimitBytes,
		LaunchesPerSecond: cfg.Executor.LaunchesPerSecond,
	}, nil, logger)
	engine := decision.NewEngine(cat, logger,
		decision.WithStats(orch.Stats()),
		decision.WithWeights(decision.ScoringWeights{
			KeywordMatch: cfg.Selection.KeywordWeight,
			InverseCost:  cfg.Selection.CostWeight,
			SuccessRate:  cfg.Selection.SuccessWeight,
		}),
	)
	orch.SetFallback(engine)

	return &core{
		catalog: cat,
		prof:    prof,
		engine:  engine,
		cache:   resultCache,
		orch:    orch,
		coord:   coordinator.New(prof, engine, cat, resultCache, orch, logger),
	}, nil
}

// close tears the stack down: orchestrator first so no subprocess writes
// into a closed cache.
func (c *core) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.orch.Shutdown(ctx); err != nil {
		logger.Warn("orchestrator shutdown incomplete", "error", err)
	}
	if err := c.cache.Close(); err != nil {
		logger.Warn("cache close failed", "error", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(psCmd)
	rootCmd.AddCommand(cacheCmd)
}
