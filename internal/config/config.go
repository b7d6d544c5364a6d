// Package config provides configuration management for optionlab.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	apperrors "optionlab/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Engine     EngineConfig     `mapstructure:"engine"`
	Calendar   CalendarConfig   `mapstructure:"calendar"`
	Store      StoreConfig      `mapstructure:"store"`
	MarketData MarketDataConfig `mapstructure:"marketdata"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// EngineConfig holds the call-time parameters of the analytics engine.
type EngineConfig struct {
	RangeFraction       float64 `mapstructure:"range_fraction"`
	Step                float64 `mapstructure:"step"`
	RiskFreeRate        float64 `mapstructure:"risk_free_rate"`
	VolatilityGuess     float64 `mapstructure:"volatility_guess"`
	SolverTolerance     float64 `mapstructure:"solver_tolerance"`
	SolverMaxIterations int     `mapstructure:"solver_max_iterations"`
}

// CalendarConfig holds the trading calendar configuration.
type CalendarConfig struct {
	Timezone      string   `mapstructure:"timezone"`
	ExtraHolidays []string `mapstructure:"extra_holidays"` // YYYY-MM-DD
	Open          string   `mapstructure:"open"`           // HH:MM
	Close         string   `mapstructure:"close"`          // HH:MM
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// MarketDataConfig holds quote provider configuration.
type MarketDataConfig struct {
	DataDir           string        `mapstructure:"data_dir"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	RetryAttempts     int           `mapstructure:"retry_attempts"`
	RefreshInterval   time.Duration `mapstructure:"refresh_interval"`
	Concurrency       int           `mapstructure:"concurrency"`
	BreakerThreshold  int           `mapstructure:"breaker_threshold"`
	BreakerCooldown   time.Duration `mapstructure:"breaker_cooldown"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
}

// MetricsConfig holds the Prometheus endpoint configuration.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the endpoint
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/optionlab"
	}
	return filepath.Join(home, ".config", "optionlab")
}

// Default returns the built-in configuration rooted at configDir.
func Default(configDir string) *Config {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return &Config{
		Engine: EngineConfig{
			RangeFraction:       0.25,
			Step:                0.1,
			RiskFreeRate:        0.05,
			VolatilityGuess:     0.2,
			SolverTolerance:     1e-6,
			SolverMaxIterations: 100,
		},
		Calendar: CalendarConfig{
			Timezone: "America/New_York",
			Open:     "09:30",
			Close:    "16:00",
		},
		Store: StoreConfig{
			Path: filepath.Join(configDir, "data", "optionlab.db"),
		},
		MarketData: MarketDataConfig{
			DataDir:           filepath.Join(configDir, "marketdata"),
			RequestsPerSecond: 1,
			Burst:             1,
			RetryAttempts:     3,
			RefreshInterval:   time.Minute,
			Concurrency:       4,
			BreakerThreshold:  5,
			BreakerCooldown:   30 * time.Second,
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
			File:    true,
		},
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is created from the template and the defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default(configDir)

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		if err := createTemplateConfig(configDir, name); err != nil {
			return err
		}
	}

	return v.Unmarshal(cfg)
}

// setDefaults registers every key so that partial files keep the defaults.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("engine.range_fraction", cfg.Engine.RangeFraction)
	v.SetDefault("engine.step", cfg.Engine.Step)
	v.SetDefault("engine.risk_free_rate", cfg.Engine.RiskFreeRate)
	v.SetDefault("engine.volatility_guess", cfg.Engine.VolatilityGuess)
	v.SetDefault("engine.solver_tolerance", cfg.Engine.SolverTolerance)
	v.SetDefault("engine.solver_max_iterations", cfg.Engine.SolverMaxIterations)

	v.SetDefault("calendar.timezone", cfg.Calendar.Timezone)
	v.SetDefault("calendar.extra_holidays", cfg.Calendar.ExtraHolidays)
	v.SetDefault("calendar.open", cfg.Calendar.Open)
	v.SetDefault("calendar.close", cfg.Calendar.Close)

	v.SetDefault("store.path", cfg.Store.Path)

	v.SetDefault("marketdata.data_dir", cfg.MarketData.DataDir)
	v.SetDefault("marketdata.requests_per_second", cfg.MarketData.RequestsPerSecond)
	v.SetDefault("marketdata.burst", cfg.MarketData.Burst)
	v.SetDefault("marketdata.retry_attempts", cfg.MarketData.RetryAttempts)
	v.SetDefault("marketdata.refresh_interval", cfg.MarketData.RefreshInterval)
	v.SetDefault("marketdata.concurrency", cfg.MarketData.Concurrency)
	v.SetDefault("marketdata.breaker_threshold", cfg.MarketData.BreakerThreshold)
	v.SetDefault("marketdata.breaker_cooldown", cfg.MarketData.BreakerCooldown)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.console", cfg.Log.Console)
	v.SetDefault("log.file", cfg.Log.File)

	v.SetDefault("metrics.addr", cfg.Metrics.Addr)

}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPTIONLAB_DB_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("OPTIONLAB_DATA_DIR"); v != "" {
		cfg.MarketData.DataDir = v
	}
	if v := os.Getenv("OPTIONLAB_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}

	if _, err := time.LoadLocation(c.Calendar.Timezone); err != nil {
		return invalid("calendar.timezone %q: %v", c.Calendar.Timezone, err)
	}
	for _, d := range c.Calendar.ExtraHolidays {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return invalid("calendar.extra_holidays entry %q is not YYYY-MM-DD", d)
		}
	}
	for _, hm := range []string{c.Calendar.Open, c.Calendar.Close} {
		if _, err := time.Parse("15:04", hm); err != nil {
			return invalid("calendar session time %q is not HH:MM", hm)
		}
	}

	if c.Store.Path == "" {
		return invalid("store.path must be set")
	}
	if c.MarketData.RequestsPerSecond <= 0 {
		return invalid("marketdata.requests_per_second must be positive")
	}
	if c.MarketData.Burst < 1 {
		return invalid("marketdata.burst must be at least 1")
	}
	if c.MarketData.RetryAttempts < 1 {
		return invalid("marketdata.retry_attempts must be at least 1")
	}
	if c.MarketData.Concurrency < 1 {
		return invalid("marketdata.concurrency must be at least 1")
	}
	if c.MarketData.BreakerThreshold < 1 {
		return invalid("marketdata.breaker_threshold must be at least 1")
	}

	return nil
}

// Validate rejects out-of-domain engine parameters.
func (e EngineConfig) Validate() error {
	if e.RangeFraction <= 0 || e.RangeFraction >= 1 {
		return invalid("engine.range_fraction must be in (0, 1), got %g", e.RangeFraction)
	}
	if e.Step <= 0 {
		return invalid("engine.step must be positive, got %g", e.Step)
	}
	if e.VolatilityGuess <= 0 {
		return invalid("engine.volatility_guess must be positive, got %g", e.VolatilityGuess)
	}
	if e.SolverTolerance <= 0 {
		return invalid("engine.solver_tolerance must be positive, got %g", e.SolverTolerance)
	}
	if e.SolverMaxIterations < 1 {
		return invalid("engine.solver_max_iterations must be at least 1, got %d", e.SolverMaxIterations)
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return apperrors.Wrapf(apperrors.ErrConfigInvalid, format, args...)
}
