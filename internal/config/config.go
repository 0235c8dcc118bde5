package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Engine  EngineConfig  `yaml:"engine" mapstructure:"engine"`
	Volume  VolumeConfig  `yaml:"volume" mapstructure:"volume"`
	Notify  NotifyConfig  `yaml:"notify" mapstructure:"notify"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP trigger server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// EngineConfig configures run execution.
type EngineConfig struct {
	Concurrency      int    `yaml:"concurrency" mapstructure:"concurrency"`
	KeywordWorkers   int    `yaml:"keyword_workers" mapstructure:"keyword_workers"`
	WeightsSource    string `yaml:"weights_source" mapstructure:"weights_source"` // file or store
	WeightsPath      string `yaml:"weights_path" mapstructure:"weights_path"`
	MonthlyReportDay int    `yaml:"monthly_report_day" mapstructure:"monthly_report_day"`
}

// VolumeConfig configures the live search-volume client.
type VolumeConfig struct {
	Enabled          bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL          string `yaml:"base_url" mapstructure:"base_url"`
	APIKey           string `yaml:"api_key" mapstructure:"api_key"`
	MinIntervalMs    int    `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
	MaxAttempts      int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	FailureThreshold int    `yaml:"failure_threshold" mapstructure:"failure_threshold"`
}

// NotifyConfig configures where run summaries are delivered.
type NotifyConfig struct {
	WebhookURL      string `yaml:"webhook_url" mapstructure:"webhook_url"`
	NotionToken     string `yaml:"notion_token" mapstructure:"notion_token"`
	NotionSummaryDB string `yaml:"notion_summary_db" mapstructure:"notion_summary_db"`
	NotionReportDB  string `yaml:"notion_report_db" mapstructure:"notion_report_db"`
}

// MetricsConfig toggles the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RANKWISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "rankwise.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("engine.concurrency", 1)
	v.SetDefault("engine.keyword_workers", 4)
	v.SetDefault("engine.weights_source", "file")
	v.SetDefault("engine.weights_path", "weights.yaml")
	v.SetDefault("engine.monthly_report_day", 1)
	v.SetDefault("volume.enabled", false)
	v.SetDefault("volume.min_interval_ms", 200)
	v.SetDefault("volume.max_attempts", 3)
	v.SetDefault("volume.timeout_secs", 15)
	v.SetDefault("volume.failure_threshold", 5)
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.notion_token", "")
	v.SetDefault("notify.notion_summary_db", "")
	v.SetDefault("notify.notion_report_db", "")
	v.SetDefault("metrics.enabled", true)

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

// Validate checks the keys a command needs. Modes: run, serve, report,
// weights, store.
func (c *Config) Validate(mode string) error {
	var errs []string
	require := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, msg)
		}
	}

	storeChecks := func() {
		require(c.Store.Driver == "sqlite" || c.Store.Driver == "postgres",
			fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
		require(c.Store.DatabaseURL != "", "store.database_url is required")
	}
	weightsChecks := func() {
		switch c.Engine.WeightsSource {
		case "file":
			require(c.Engine.WeightsPath != "", "engine.weights_path is required when engine.weights_source is file")
		case "store":
			storeChecks()
		default:
			errs = append(errs, fmt.Sprintf("engine.weights_source must be file or store, got %q", c.Engine.WeightsSource))
		}
	}
	engineChecks := func() {
		storeChecks()
		weightsChecks()
		require(c.Engine.Concurrency >= 1 && c.Engine.Concurrency <= 64, "engine.concurrency must be between 1 and 64")
		require(c.Engine.KeywordWorkers >= 1 && c.Engine.KeywordWorkers <= 64, "engine.keyword_workers must be between 1 and 64")
		require(c.Engine.MonthlyReportDay >= 1 && c.Engine.MonthlyReportDay <= 28, "engine.monthly_report_day must be between 1 and 28")
		if c.Volume.Enabled {
			require(c.Volume.BaseURL != "", "volume.base_url is required when volume.enabled")
			require(c.Volume.APIKey != "", "volume.api_key is required when volume.enabled")
			require(c.Volume.MaxAttempts >= 1, "volume.max_attempts must be >= 1")
		}
		if c.Notify.NotionSummaryDB != "" || c.Notify.NotionReportDB != "" {
			require(c.Notify.NotionToken != "", "notify.notion_token is required when a notion database is set")
		}
	}

	switch mode {
	case "run":
		engineChecks()
	case "serve":
		engineChecks()
		require(c.Server.Port > 0, "server.port must be > 0")
	case "report", "store":
		storeChecks()
	case "weights":
		weightsChecks()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
