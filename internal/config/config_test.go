package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "paystub.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 0.01, cfg.Analysis.ToleranceDollars, 0.0001)
	assert.InDelta(t, 1000.00, cfg.Analysis.LargeDeviationDollars, 0.0001)
	assert.InDelta(t, 1_000_000.00, cfg.Analysis.MaxPlausibleDollars, 0.0001)
	assert.Equal(t, 45, cfg.Analysis.MaxGapDays)
	assert.Equal(t, 4, cfg.Analysis.OutlierMultiplier)
	assert.Equal(t, 4, cfg.Analysis.MaxConcurrentFilers)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/paystub
log:
  level: debug
  format: console
server:
  port: 9090
analysis:
  tolerance_dollars: 0.05
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 0.05, cfg.Analysis.ToleranceDollars, 0.0001)
	// Defaults still apply for unset values
	assert.Equal(t, 45, cfg.Analysis.MaxGapDays)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PAYSTUB_STORE_DRIVER", "sqlite")
	t.Setenv("PAYSTUB_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("PAYSTUB_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	return &Config{
		Store: StoreConfig{Driver: "sqlite", DatabaseURL: "paystub.db"},
		Analysis: AnalysisConfig{
			ToleranceDollars:      0.01,
			LargeDeviationDollars: 1000,
			MaxPlausibleDollars:   1_000_000,
			MaxGapDays:            45,
			OutlierMultiplier:     4,
			MaxConcurrentFilers:   4,
		},
		Server: ServerConfig{Port: 8080, RatePerSecond: 10, RateBurst: 20},
		Log:    LogConfig{Level: "info", Format: "json"},
	}
}

func TestValidateAnalyze(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("analyze"))
}

func TestValidateAnalyzeMissingDB(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""
	err := cfg.Validate("analyze")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateServeInvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Analysis.MaxConcurrentFilers = 0
	err := cfg.Validate("analyze")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrent_filers must be between 1 and 50")

	cfg.Analysis.MaxConcurrentFilers = 51
	err = cfg.Validate("analyze")
	assert.Error(t, err)

	cfg.Analysis.MaxConcurrentFilers = 50
	assert.NoError(t, cfg.Validate("analyze"))
}

func TestValidateThresholds(t *testing.T) {
	cfg := validDefaults()

	cfg.Analysis.ToleranceDollars = -0.01
	err := cfg.Validate("analyze")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "tolerance_dollars")

	cfg.Analysis.ToleranceDollars = 0.01
	cfg.Analysis.OutlierMultiplier = 1
	err = cfg.Validate("analyze")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "outlier_multiplier")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
