package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"vecbt/internal/analytics"
	"vecbt/internal/broker"
	"vecbt/internal/engine"
	"vecbt/internal/sweep"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for vecbt.
type Config struct {
	Storage  Storage          `yaml:"storage"`
	Logging  Logging          `yaml:"logging"`
	Data     Data             `yaml:"data"`
	Backtest engine.RunConfig `yaml:"backtest"`
	Sweep    Sweep            `yaml:"sweep"`
	Metrics  Metrics          `yaml:"metrics"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
	// Persist saves every completed run summary to SQLite and its trade log
	// and equity curve to Parquet.
	Persist bool `yaml:"persist"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File, when set, also writes logs to a size-rotated file.
	File string `yaml:"file"`
}

// Data selects the bars a run replays. Path takes precedence over Dataset,
// which takes precedence over Synthetic.
type Data struct {
	// Path is a CSV file, or a Parquet file when it ends in .parquet.
	Path string `yaml:"path"`
	// Dataset names a dataset in the Parquet store under storage.data_dir.
	Dataset   string    `yaml:"dataset"`
	Mmap      bool      `yaml:"mmap"`
	Strict    bool      `yaml:"strict"`
	Synthetic Synthetic `yaml:"synthetic"`
}

// Synthetic configures generated bars.
type Synthetic struct {
	Bars int    `yaml:"bars"`
	Seed uint64 `yaml:"seed"`
}

// Sweep configures parameter sweeps.
type Sweep struct {
	Workers    int        `yaml:"workers"`
	Objective  string     `yaml:"objective"`
	KeepCurves bool       `yaml:"keep_curves"`
	Grid       sweep.Grid `yaml:"grid"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	// Addr is the listen address for /metrics; empty disables it.
	Addr string `yaml:"addr"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg
}

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides and then fills
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// Validate checks the backtest and sweep sections.
func (c *Config) Validate() error {
	if err := c.Backtest.Validate(); err != nil {
		return err
	}
	if _, err := sweep.ParseObjective(c.Sweep.Objective); err != nil {
		return err
	}
	if _, err := sweep.CountCombinations(c.Sweep.Grid); err != nil {
		return fmt.Errorf("sweep grid: %w", err)
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("VECBT_DATA"); v != "" {
		cfg.Data.Path = v
	}
}

// applyDefaults fills fields left empty by the file and the environment.
func applyDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = filepath.Join(cfg.Storage.DataDir, "vecbt.db")
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Data.Synthetic.Bars == 0 {
		cfg.Data.Synthetic.Bars = 100_000
	}

	// An omitted execution section means the default cost model, not a free
	// one.
	if cfg.Backtest.Execution == (broker.Config{}) {
		cfg.Backtest.Execution = broker.DefaultConfig()
	}
	cfg.Backtest.Execution = cfg.Backtest.Execution.WithDefaults()
	if cfg.Backtest.Analytics.PeriodsPerYear == 0 {
		cfg.Backtest.Analytics.PeriodsPerYear = analytics.DefaultPeriodsPerYear
	}

	if cfg.Sweep.Objective == "" {
		cfg.Sweep.Objective = string(sweep.ObjectiveSharpe)
	}
}
