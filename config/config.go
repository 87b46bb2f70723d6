// Package config reads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"safewatch/oracle"
	"safewatch/settings"
)

const MinCaptureInterval = 500 * time.Millisecond

type Config struct {
	Oracle   OracleConfig
	Capture  CaptureConfig
	Settings SettingsConfig
	DB       DatabaseConfig
	API      APIConfig
	Logging  LoggingConfig
}

type OracleConfig struct {
	APIKey string
	Model  string
	URL    string
	// Fake replaces the network oracle with a scripted one.
	Fake bool
}

type CaptureConfig struct {
	Dir      string
	Interval time.Duration
}

type SettingsConfig struct {
	Path string
}

type DatabaseConfig struct {
	// Path is empty when events are kept in memory only.
	Path string
}

type APIConfig struct {
	// Addr is empty when the HTTP API is disabled.
	Addr      string
	RateLimit int
}

type LoggingConfig struct {
	Level string
}

// Load reads the environment, applies overrides (command-line flags) and
// validates the result.
func Load(overrides ...func(*Config)) (*Config, error) {
	settingsPath := getEnv("SETTINGS_PATH", "")
	if settingsPath == "" {
		p, err := settings.DefaultPath()
		if err != nil {
			p = filepath.Join(".", "settings.yaml")
		}
		settingsPath = p
	}

	cfg := &Config{
		Oracle: OracleConfig{
			APIKey: getEnv("ORACLE_API_KEY", os.Getenv("GEMINI_API_KEY")),
			Model:  getEnv("ORACLE_MODEL", oracle.DefaultModel),
			URL:    getEnv("ORACLE_URL", oracle.DefaultURL),
		},
		Capture: CaptureConfig{
			Dir:      getEnv("CAPTURE_DIR", ""),
			Interval: getEnvDuration("CAPTURE_INTERVAL", 5*time.Second),
		},
		Settings: SettingsConfig{
			Path: settingsPath,
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", ""),
		},
		API: APIConfig{
			Addr:      getEnv("API_ADDR", ""),
			RateLimit: getEnvInt("API_RATE_LIMIT", 5),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	for _, o := range overrides {
		o(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Capture.Interval < MinCaptureInterval {
		return fmt.Errorf("capture interval must be at least %v", MinCaptureInterval)
	}

	if c.API.Addr != "" && c.API.RateLimit < 1 {
		return fmt.Errorf("invalid API rate limit: %d", c.API.RateLimit)
	}

	if !c.Oracle.Fake && c.Oracle.APIKey == "" {
		return fmt.Errorf("set ORACLE_API_KEY (or GEMINI_API_KEY), or run with -fake-oracle")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
