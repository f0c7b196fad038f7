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
	Geocoder GeocoderConfig `yaml:"geocoder" mapstructure:"geocoder"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	DQ       DQConfig       `yaml:"dq" mapstructure:"dq"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// GeocoderConfig configures the geocoding provider chain.
type GeocoderConfig struct {
	Provider     string  `yaml:"provider" mapstructure:"provider"` // nominatim, google, hybrid
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	GoogleAPIKey string  `yaml:"google_api_key" mapstructure:"google_api_key"`
	MaxRetries   int     `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// PipelineConfig configures orchestrator behavior.
type PipelineConfig struct {
	Workers        int      `yaml:"workers" mapstructure:"workers"`
	BatchSize      int      `yaml:"batch_size" mapstructure:"batch_size"`
	SourcePriority []string `yaml:"source_priority" mapstructure:"source_priority"`
	DefaultRegion  string   `yaml:"default_region" mapstructure:"default_region"`
}

// DQConfig configures data-quality evaluation.
type DQConfig struct {
	StalenessDays int    `yaml:"staleness_days" mapstructure:"staleness_days"`
	RegionsFile   string `yaml:"regions_file" mapstructure:"regions_file"`
}

// ServerConfig configures the run-status server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("BAYANLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("geocoder.provider", "nominatim")
	v.SetDefault("geocoder.user_agent", "BayanLab/1.0")
	v.SetDefault("geocoder.rate_limit_rps", 1.0)
	v.SetDefault("geocoder.max_retries", 3)
	v.SetDefault("geocoder.timeout_secs", 10)
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.batch_size", 500)
	v.SetDefault("pipeline.source_priority", []string{"claim", "certifier", "csv", "ics", "osm"})
	v.SetDefault("pipeline.default_region", "CO")
	v.SetDefault("dq.staleness_days", 30)
	v.SetDefault("dq.regions_file", "configs/regions.yaml")

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
