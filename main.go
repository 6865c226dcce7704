package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tidemark-ai/coxswain/internal/adapter/bandit"
	"github.com/tidemark-ai/coxswain/internal/adapter/leaderboard"
	"github.com/tidemark-ai/coxswain/internal/adapter/scoring"
	"github.com/tidemark-ai/coxswain/internal/adapter/store"
	"github.com/tidemark-ai/coxswain/internal/adapter/telemetry"
	"github.com/tidemark-ai/coxswain/internal/config"
	"github.com/tidemark-ai/coxswain/internal/engine"
	"github.com/tidemark-ai/coxswain/internal/logger"
	"github.com/tidemark-ai/coxswain/internal/version"
)

func main() {
	vlog := log.New(log.Writer(), "", 0)
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.PrintVersionInfo(true, vlog)
		os.Exit(0)
	}
	version.PrintVersionInfo(false, vlog)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logInstance, styledLogger, cleanup, err := logger.NewStyled(buildLoggerConfig(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()
	slog.SetDefault(logInstance)

	styledLogger.Info("Initialising", "version", version.Version, "pid", os.Getpid())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		styledLogger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	perfStore, err := store.New(cfg.Persistence.Path, styledLogger)
	if err != nil {
		logger.FatalWithLogger(logInstance, "Failed to open persistence store", "error", err)
	}

	selector, err := bandit.NewFactory().Create(cfg.Bandit.Strategy, bandit.Options{
		Exploration: cfg.Bandit.Exploration,
		Seed:        cfg.Bandit.Seed,
	})
	if err != nil {
		logger.FatalWithLogger(logInstance, "Failed to create selector", "error", err)
	}

	client := leaderboard.NewHTTPLeaderboardClient(leaderboard.Config{
		Enabled:  cfg.ExternalData.Enabled,
		ArenaURL: cfg.ExternalData.ArenaURL,
		MTEBURL:  cfg.ExternalData.MTEBURL,
		Timeout:  cfg.ExternalData.Timeout,
	}, nil, styledLogger)

	emitter := telemetry.NewAsyncEmitter(telemetry.NewLogEmitter(styledLogger), styledLogger)

	eng := engine.New(cfg, perfStore, client, scoring.NewScorer(), selector, emitter, styledLogger)
	if err := eng.BootstrapPersistence(ctx); err != nil {
		logger.FatalWithLogger(logInstance, "Failed to bootstrap persistence", "error", err)
	}

	scheduler := engine.NewScheduler(eng, cfg, styledLogger)
	if err := scheduler.Start(ctx); err != nil {
		logger.FatalWithLogger(logInstance, "Failed to start scheduler", "error", err)
	}

	<-ctx.Done()

	scheduler.Stop()
	if err := eng.Close(); err != nil {
		styledLogger.Error("Error during shutdown", "error", err)
	}

	styledLogger.Info("Coxswain has shutdown")
}

func buildLoggerConfig(cfg *config.Config) *logger.Config {
	return &logger.Config{
		Level:      cfg.Logging.Level,
		LogDir:     cfg.Logging.Directory,
		FileOutput: cfg.Logging.FileOutput,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
	}
}
