package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Container ContainerConfig `toml:"container"`
	Snapshot  SnapshotConfig  `toml:"snapshot"`
	History   HistoryConfig   `toml:"history"`
	Database  DatabaseConfig  `toml:"database"`
	Modules   ModulesConfig   `toml:"modules"`
	Logging   LoggingConfig   `toml:"logging"`
}

type ContainerConfig struct {
	Name               string        `toml:"name"`
	TickInterval       time.Duration `toml:"tick_interval"`
	MaxCommandsPerTick int           `toml:"max_commands_per_tick"`
}

type SnapshotConfig struct {
	// RebuildThreshold is the dirty-entity ratio above which an
	// incremental patch is abandoned for a full rebuild (0.0-1.0).
	RebuildThreshold float64 `toml:"rebuild_threshold"`
	MaxCacheAgeTicks uint64  `toml:"max_cache_age_ticks"`
}

type HistoryConfig struct {
	RetentionTicks int `toml:"retention_ticks"`
	ArchiveBuffer  int `toml:"archive_buffer"`
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn"` // empty disables persistence
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type ModulesConfig struct {
	ScriptsDir string `toml:"scripts_dir"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the built-in configuration, used when no config file
// is given.
func Default() *Config {
	return defaults()
}

func defaults() *Config {
	return &Config{
		Container: ContainerConfig{
			Name:               "stormstack",
			TickInterval:       50 * time.Millisecond,
			MaxCommandsPerTick: 256,
		},
		Snapshot: SnapshotConfig{
			RebuildThreshold: 0.5,
			MaxCacheAgeTicks: 60,
		},
		History: HistoryConfig{
			RetentionTicks: 120,
			ArchiveBuffer:  64,
		},
		Database: DatabaseConfig{
			DSN:             "",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Modules: ModulesConfig{
			ScriptsDir: "scripts",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
