package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ireland-samantha/stormstack-sub008/internal/config"
	"github.com/ireland-samantha/stormstack-sub008/internal/container"
	"github.com/ireland-samantha/stormstack-sub008/internal/history"
	"github.com/ireland-samantha/stormstack-sub008/internal/module"
	"github.com/ireland-samantha/stormstack-sub008/internal/persist"
	"github.com/ireland-samantha/stormstack-sub008/internal/scripting"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config
	cfgPath := os.Getenv("STORMSTACK_CONFIG")
	var cfg *config.Config
	var err error
	if cfgPath != "" {
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = config.Default()
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting",
		zap.String("name", cfg.Container.Name),
		zap.Duration("tick_interval", cfg.Container.TickInterval))

	// 3. Optional PostgreSQL archive. An empty DSN runs in-memory only.
	var sinks []history.Sink
	var archiver *history.Archiver
	if cfg.Database.DSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()

		if err := persist.RunMigrations(ctx, db.Pool); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}

		repo := persist.NewSnapshotRepo(db.Pool)
		// The manager hands id 1 to the first container it creates.
		archiver = history.NewArchiver(1, repo, cfg.History.ArchiveBuffer, log)
		defer archiver.Close()
		sinks = append(sinks, archiver)
		log.Info("snapshot archive enabled")
	}

	// 4. Build the container and install modules
	mgr := container.NewManager(cfg, log)
	defer mgr.CloseAll()

	c := mgr.Create(cfg.Container.Name, sinks...)
	if err := c.InstallModule(module.Spawn()); err != nil {
		return fmt.Errorf("install spawn module: %w", err)
	}

	loader := scripting.NewLoader(log)
	scripted, err := loader.LoadDir(cfg.Modules.ScriptsDir)
	if err != nil {
		return fmt.Errorf("load script modules: %w", err)
	}
	defer func() {
		for _, sm := range scripted {
			sm.Close()
		}
	}()
	for _, sm := range scripted {
		if err := c.InstallModule(sm.Module()); err != nil {
			return fmt.Errorf("install script module: %w", err)
		}
	}

	// 5. Run the loop until a shutdown signal
	c.Play(cfg.Container.TickInterval)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	statusTicker := time.NewTicker(time.Minute)
	defer statusTicker.Stop()

	for {
		select {
		case <-statusTicker.C:
			tm := c.TickMetrics()
			cm := c.CacheMetrics()
			log.Info("status",
				zap.Uint64("tick", c.CurrentTick()),
				zap.Int("entities", c.EntityCount()),
				zap.Duration("tick_avg", tm.Avg()),
				zap.Duration("tick_max", tm.Max),
				zap.Float64("cache_hit_rate", cm.HitRate()))
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			c.Stop()
			log.Info("stopped", zap.Uint64("tick", c.CurrentTick()))
			return nil
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
