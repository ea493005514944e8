package config

import (
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Config is the process configuration, loaded from environment variables
// with CHESS_ prefix (CHESS_SERVER_PORT, CHESS_ENGINE_PATH, ...) over a
// config.yaml when one is present.
type Config struct {
	ServerPort     int      `mapstructure:"server_port"`
	DatabasePath   string   `mapstructure:"database_path"`
	EnginePath     string   `mapstructure:"engine_path"`
	EngineWorkers  int      `mapstructure:"engine_workers"`
	EngineThreads  int      `mapstructure:"engine_threads"`
	EngineHash     int      `mapstructure:"engine_hash"`
	DefaultDepth   int      `mapstructure:"default_depth"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
}

// Load reads configuration with sane defaults for local development.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server_port", 8080)
	v.SetDefault("database_path", "data/chesscoach.db")
	v.SetDefault("engine_path", "stockfish")
	v.SetDefault("engine_workers", runtime.NumCPU())
	v.SetDefault("engine_threads", 1)
	v.SetDefault("engine_hash", 128)
	v.SetDefault("default_depth", 14)
	v.SetDefault("allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("rate_limit_rps", 20.0)
	v.SetDefault("rate_limit_burst", 40)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("chess")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.EngineWorkers < 1 {
		cfg.EngineWorkers = 1
	}
	return &cfg, nil
}
