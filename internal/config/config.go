// Package config loads application configuration and initializes logging.
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
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Import ImportConfig `yaml:"import" mapstructure:"import"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// FetchConfig configures dump archive downloads.
type FetchConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	OutDir  string `yaml:"out_dir" mapstructure:"out_dir"`
}

// StoreConfig configures the output store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ImportConfig configures the import pipeline.
type ImportConfig struct {
	PlacesPath string `yaml:"places_path" mapstructure:"places_path"`
	NamesPath  string `yaml:"names_path" mapstructure:"names_path"`
	BatchSize  int    `yaml:"batch_size" mapstructure:"batch_size"`
	SkipNames  bool   `yaml:"skip_names" mapstructure:"skip_names"`
	Progress   bool   `yaml:"progress" mapstructure:"progress"`
	// NearestCandidates is how many R-tree candidates are re-ranked by
	// great-circle distance during spatial fallback.
	NearestCandidates int `yaml:"nearest_candidates" mapstructure:"nearest_candidates"`
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
	v.SetEnvPrefix("GEONAMES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "data/geonames.sqlite3")
	v.SetDefault("store.database_url", "")
	v.SetDefault("fetch.base_url", "https://download.geonames.org/export/dump")
	v.SetDefault("fetch.out_dir", "data")
	v.SetDefault("import.places_path", "data/allCountries.zip")
	v.SetDefault("import.names_path", "data/alternateNamesV2.zip")
	v.SetDefault("import.batch_size", 1000)
	v.SetDefault("import.skip_names", false)
	v.SetDefault("import.progress", false)
	v.SetDefault("import.nearest_candidates", 8)
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
