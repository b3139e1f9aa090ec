// Package config loads watershed-cli settings and initialises logging.
package config

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Resolve    ResolveConfig    `yaml:"resolve" mapstructure:"resolve"`
	Snap       SnapConfig       `yaml:"snap" mapstructure:"snap"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	HydroSHEDS HydroSHEDSConfig `yaml:"hydrosheds" mapstructure:"hydrosheds"`
	Download   DownloadConfig   `yaml:"download" mapstructure:"download"`
	Export     ExportConfig     `yaml:"export" mapstructure:"export"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ResolveConfig selects the upstream resolution strategy.
type ResolveConfig struct {
	Method string `yaml:"method" mapstructure:"method"`
}

// SnapConfig tunes river snapping.
type SnapConfig struct {
	SearchRadiusM   float64 `yaml:"search_radius_m" mapstructure:"search_radius_m"`
	SampleIntervalM float64 `yaml:"sample_interval_m" mapstructure:"sample_interval_m"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// HydroSHEDSConfig locates the basin and river products.
type HydroSHEDSConfig struct {
	Region       string `yaml:"region" mapstructure:"region"`
	DataDir      string `yaml:"data_dir" mapstructure:"data_dir"`
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	CheckNesting bool   `yaml:"check_nesting" mapstructure:"check_nesting"`
}

// DownloadConfig tunes HTTP/FTP fetching.
type DownloadConfig struct {
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts      int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int    `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int    `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	UserAgent        string `yaml:"user_agent" mapstructure:"user_agent"`
	FTPUser          string `yaml:"ftp_user" mapstructure:"ftp_user"`
	FTPPassword      string `yaml:"ftp_password" mapstructure:"ftp_password"`
}

// ExportConfig selects where batch records go.
type ExportConfig struct {
	Format      string `yaml:"format" mapstructure:"format"`
	Dir         string `yaml:"dir" mapstructure:"dir"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Schema      string `yaml:"schema" mapstructure:"schema"`
}

// StoreConfig configures the run store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("resolve.method", "pfaf_trail")
	v.SetDefault("snap.search_radius_m", 500.0)
	v.SetDefault("snap.sample_interval_m", 10.0)
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("hydrosheds.region", "eu")
	v.SetDefault("hydrosheds.data_dir", "./data/hydrosheds")
	v.SetDefault("hydrosheds.base_url", "https://data.hydrosheds.org/file")
	v.SetDefault("hydrosheds.check_nesting", false)
	v.SetDefault("download.timeout_secs", 1800)
	v.SetDefault("download.max_attempts", 3)
	v.SetDefault("download.initial_backoff_ms", 1000)
	v.SetDefault("download.max_backoff_ms", 30000)
	v.SetDefault("download.user_agent", "watershed-cli/1.0")
	v.SetDefault("download.ftp_user", "")
	v.SetDefault("download.ftp_password", "")
	v.SetDefault("export.format", "jsonl")
	v.SetDefault("export.dir", "./out")
	v.SetDefault("export.database_url", "")
	v.SetDefault("export.schema", "watershed")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "watershed.db")
	v.SetDefault("store.max_conns", 8)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration from ./config.yaml (optional) and WATERSHED_*
// environment variables.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path. An empty path searches
// the working directory for config.yaml.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("WATERSHED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

var (
	validMethods = []string{"ancestor_trace", "full_aggregate", "pfaf_trail"}
	validFormats = []string{"jsonl", "csv", "xlsx", "sqlite", "postgis"}
	validDrivers = []string{"sqlite", "postgres"}
)

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if !slices.Contains(validMethods, c.Resolve.Method) {
		return eris.Errorf("config: resolve.method %q must be one of %s", c.Resolve.Method, strings.Join(validMethods, ", "))
	}
	if c.Snap.SearchRadiusM <= 0 {
		return eris.Errorf("config: snap.search_radius_m must be > 0, got %v", c.Snap.SearchRadiusM)
	}
	if c.Snap.SampleIntervalM <= 0 {
		return eris.Errorf("config: snap.sample_interval_m must be > 0, got %v", c.Snap.SampleIntervalM)
	}
	if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 256 {
		return eris.Errorf("config: batch.concurrency must be in [1,256], got %d", c.Batch.Concurrency)
	}
	if !slices.Contains(validFormats, c.Export.Format) {
		return eris.Errorf("config: export.format %q must be one of %s", c.Export.Format, strings.Join(validFormats, ", "))
	}
	if c.Export.Format == "postgis" && c.Export.DatabaseURL == "" && c.Store.Driver != "postgres" {
		return eris.New("config: export.format postgis needs export.database_url or a postgres store")
	}
	if !slices.Contains(validDrivers, c.Store.Driver) {
		return eris.Errorf("config: store.driver %q must be one of %s", c.Store.Driver, strings.Join(validDrivers, ", "))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return eris.Errorf("config: server.port must be in [1,65535], got %d", c.Server.Port)
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
