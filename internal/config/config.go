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
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Input  InputConfig  `yaml:"input" mapstructure:"input"`
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the output database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// InputConfig configures where flat input tables are read from.
type InputConfig struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	AliasesFile string `yaml:"aliases_file" mapstructure:"aliases_file"`
}

// EngineConfig holds the analytics parameters.
type EngineConfig struct {
	TrialDays        int     `yaml:"trial_days" mapstructure:"trial_days"`
	ProjectionMonths int     `yaml:"projection_months" mapstructure:"projection_months"`
	SeatCredit       float64 `yaml:"seat_credit" mapstructure:"seat_credit"`
	LockTimeoutSecs  int     `yaml:"lock_timeout_secs" mapstructure:"lock_timeout_secs"`
}

// ServerConfig configures the read-only API server.
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
	v.SetEnvPrefix("REVENUE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "revenue.db")
	v.SetDefault("input.dir", "./data")
	v.SetDefault("input.aliases_file", "")
	v.SetDefault("engine.trial_days", 14)
	v.SetDefault("engine.projection_months", 12)
	v.SetDefault("engine.seat_credit", 10.0)
	v.SetDefault("engine.lock_timeout_secs", 30)
	v.SetDefault("server.port", 8080)
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

// Validate checks the configuration needed for the given mode:
// "run" covers the pipeline commands, "serve" the API server.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required for the postgres driver")
	}

	switch mode {
	case "run":
		if c.Input.Dir == "" {
			problems = append(problems, "input.dir is required")
		}
		if c.Engine.TrialDays <= 0 {
			problems = append(problems, "engine.trial_days must be > 0")
		}
		if c.Engine.ProjectionMonths < 0 {
			problems = append(problems, "engine.projection_months must be >= 0")
		}
		if c.Engine.SeatCredit < 0 {
			problems = append(problems, "engine.seat_credit must be >= 0")
		}
		if c.Engine.LockTimeoutSecs <= 0 {
			problems = append(problems, "engine.lock_timeout_secs must be > 0")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
