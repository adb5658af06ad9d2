package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/ingest"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/quality"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/sched"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig   `yaml:"store" mapstructure:"store"`
	Fetch     FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Ingest    ingest.Config `yaml:"ingest" mapstructure:"ingest"`
	Scheduler sched.Config  `yaml:"scheduler" mapstructure:"scheduler"`
	Quality   QualityConfig `yaml:"quality" mapstructure:"quality"`
	Alert     AlertConfig   `yaml:"alert" mapstructure:"alert"`
	Sources   SourcesConfig `yaml:"sources" mapstructure:"sources"`
	Server    ServerConfig  `yaml:"server" mapstructure:"server"`
	Log       LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FetchConfig configures outbound HTTP behavior for all providers.
type FetchConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// QualityConfig holds per-dataset DQ rule parameters.
type QualityConfig struct {
	Datasets map[string]quality.DatasetRules `yaml:"datasets" mapstructure:"datasets"`
}

// AlertConfig configures alert delivery.
type AlertConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// SourcesConfig points at the source priority seed file.
type SourcesConfig struct {
	SeedPath string `yaml:"seed_path" mapstructure:"seed_path"`
}

// ServerConfig configures the HTTP API server.
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
	v.SetEnvPrefix("RATEFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "ratefeed.db")
	v.SetDefault("fetch.user_agent", "ratefeed/1.0")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("ingest.anomaly_threshold", ingest.DefaultAnomalyThreshold)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.run_at", "01:00")
	v.SetDefault("scheduler.alert_lookback_days", 1)
	v.SetDefault("sources.seed_path", "sources.yaml")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)

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
