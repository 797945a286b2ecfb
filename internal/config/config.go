// internal/config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	custom_errors "github-trend-analytics/internal/errors"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	DBURL             string        `mapstructure:"DB_URL"`
	GithubToken       string        `mapstructure:"GITHUB_TOKEN"`
	TargetLanguages   []string      `mapstructure:"TARGET_LANGUAGES"`
	EcosystemTopic    string        `mapstructure:"ECOSYSTEM_TOPIC"`
	PipelineInterval  time.Duration `mapstructure:"PIPELINE_INTERVAL"`
	FetchTimeout      time.Duration `mapstructure:"FETCH_TIMEOUT"`
	HTTPAddr          string        `mapstructure:"HTTP_ADDR"`
	SearchWindowDays  int           `mapstructure:"SEARCH_WINDOW_DAYS"`
	TopNPerLanguage   int           `mapstructure:"TOP_N_PER_LANGUAGE"`
	OverallLimit      int           `mapstructure:"OVERALL_LIMIT"`
	QualityThreshold  float64       `mapstructure:"QUALITY_THRESHOLD"`
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	// Set default values
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("TARGET_LANGUAGES", []string{"Python", "TypeScript", "Go"})
	viper.SetDefault("ECOSYSTEM_TOPIC", "render")
	viper.SetDefault("PIPELINE_INTERVAL", "1h")
	viper.SetDefault("FETCH_TIMEOUT", "2m")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("SEARCH_WINDOW_DAYS", 30)
	viper.SetDefault("TOP_N_PER_LANGUAGE", 50)
	viper.SetDefault("OVERALL_LIMIT", 100)
	viper.SetDefault("QUALITY_THRESHOLD", 0.70)

	// Load from .env file if it exists
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.DBURL == "" {
		return nil, errors.New("DB_URL is a required configuration field")
	}
	if cfg.GithubToken == "" {
		return nil, errors.New("GITHUB_TOKEN is a required configuration field")
	}
	if len(cfg.TargetLanguages) == 0 {
		return nil, errors.New("TARGET_LANGUAGES must contain at least one language")
	}
	for _, lang := range cfg.TargetLanguages {
		if strings.TrimSpace(lang) == "" {
			return nil, &custom_errors.ErrInvalidCategory{Category: lang}
		}
	}
	if cfg.QualityThreshold < 0 || cfg.QualityThreshold > 1 {
		return nil, errors.New("QUALITY_THRESHOLD must be between 0 and 1")
	}

	return &cfg, nil
}
