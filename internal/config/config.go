// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnalysisConfig tunes reconciliation thresholds. Amounts are dollars.
type AnalysisConfig struct {
	ToleranceDollars      float64 `yaml:"tolerance_dollars" mapstructure:"tolerance_dollars"`
	LargeDeviationDollars float64 `yaml:"large_deviation_dollars" mapstructure:"large_deviation_dollars"`
	MaxPlausibleDollars   float64 `yaml:"max_plausible_dollars" mapstructure:"max_plausible_dollars"`
	MaxGapDays            int     `yaml:"max_gap_days" mapstructure:"max_gap_days"`
	OutlierMultiplier     int     `yaml:"outlier_multiplier" mapstructure:"outlier_multiplier"`
	MaxConcurrentFilers   int     `yaml:"max_concurrent_filers" mapstructure:"max_concurrent_filers"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port          int     `yaml:"port" mapstructure:"port"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PAYSTUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "paystub.db")
	v.SetDefault("analysis.tolerance_dollars", 0.01)
	v.SetDefault("analysis.large_deviation_dollars", 1000.00)
	v.SetDefault("analysis.max_plausible_dollars", 1_000_000.00)
	v.SetDefault("analysis.max_gap_days", 45)
	v.SetDefault("analysis.outlier_multiplier", 4)
	v.SetDefault("analysis.max_concurrent_filers", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_second", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields the given mode depends on. Modes: "analyze"
// for reconciliation commands, "serve" for the HTTP API.
func (c *Config) Validate(mode string) error {
	var missing []string

	check := func(ok bool, msg string) {
		if !ok {
			missing = append(missing, msg)
		}
	}

	check(c.Analysis.ToleranceDollars >= 0, "analysis.tolerance_dollars must be >= 0")
	check(c.Analysis.LargeDeviationDollars >= 0, "analysis.large_deviation_dollars must be >= 0")
	check(c.Analysis.MaxPlausibleDollars > 0, "analysis.max_plausible_dollars must be > 0")
	check(c.Analysis.MaxGapDays > 0, "analysis.max_gap_days must be > 0")
	check(c.Analysis.OutlierMultiplier >= 2, "analysis.outlier_multiplier must be >= 2")
	check(c.Analysis.MaxConcurrentFilers >= 1 && c.Analysis.MaxConcurrentFilers <= 50,
		"analysis.max_concurrent_filers must be between 1 and 50")

	switch mode {
	case "analyze":
		check(c.Store.DatabaseURL != "", "store.database_url is required")
	case "serve":
		check(c.Store.DatabaseURL != "", "store.database_url is required")
		check(c.Server.Port > 0, "server.port must be > 0")
		check(c.Server.RatePerSecond > 0, "server.rate_per_second must be > 0")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
