package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "optionlab/internal/errors"
)

func TestLoadCreatesTemplate(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "config.toml"))
	require.NoError(t, err, "template should be written on first run")

	assert.Equal(t, 0.25, cfg.Engine.RangeFraction)
	assert.Equal(t, 0.1, cfg.Engine.Step)
	assert.Equal(t, 100, cfg.Engine.SolverMaxIterations)
	assert.Equal(t, "America/New_York", cfg.Calendar.Timezone)
	assert.Equal(t, filepath.Join(dir, "data", "optionlab.db"), cfg.Store.Path)
	assert.Equal(t, time.Minute, cfg.MarketData.RefreshInterval)
}

func TestLoadReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[engine]
range_fraction = 0.5
step = 0.5

[calendar]
extra_holidays = ["2025-01-09"]

[marketdata]
refresh_interval = "30s"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Engine.RangeFraction)
	assert.Equal(t, 0.5, cfg.Engine.Step)
	assert.Equal(t, 0.05, cfg.Engine.RiskFreeRate, "unset keys keep their defaults")
	assert.Equal(t, []string{"2025-01-09"}, cfg.Calendar.ExtraHolidays)
	assert.Equal(t, 30*time.Second, cfg.MarketData.RefreshInterval)
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OPTIONLAB_DB_PATH", "/tmp/other.db")
	t.Setenv("OPTIONLAB_LOG_LEVEL", "debug")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestEngineValidate(t *testing.T) {
	base := Default(t.TempDir()).Engine

	tests := []struct {
		name   string
		mutate func(*EngineConfig)
	}{
		{"range fraction zero", func(e *EngineConfig) { e.RangeFraction = 0 }},
		{"range fraction one", func(e *EngineConfig) { e.RangeFraction = 1 }},
		{"negative step", func(e *EngineConfig) { e.Step = -0.1 }},
		{"zero vol guess", func(e *EngineConfig) { e.VolatilityGuess = 0 }},
		{"zero tolerance", func(e *EngineConfig) { e.SolverTolerance = 0 }},
		{"no iterations", func(e *EngineConfig) { e.SolverMaxIterations = 0 }},
	}

	require.NoError(t, base.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := base
			tt.mutate(&e)
			err := e.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrConfigInvalid))
		})
	}
}

func TestValidateCalendar(t *testing.T) {
	cfg := Default(t.TempDir())
	cfg.Calendar.ExtraHolidays = []string{"09/01/2025"}
	assert.Error(t, cfg.Validate())

	cfg = Default(t.TempDir())
	cfg.Calendar.Open = "9.30"
	assert.Error(t, cfg.Validate())
}
