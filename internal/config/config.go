// Package config loads the server configuration from a YAML file with
// environment variable overrides for credentials.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/quantrail/barfetch/pkg/errors"
)

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	BindAddr string `yaml:"bind_addr" validate:"required"`
}

// KiteConfig holds the Kite Connect credentials. The redirect URL must
// match the one registered with the Kite developer console; the login
// handshake lands on it with the request token.
type KiteConfig struct {
	APIKey      string `yaml:"api_key"`
	APISecret   string `yaml:"api_secret"`
	RedirectURL string `yaml:"redirect_url"`
	Exchange    string `yaml:"exchange"`
}

// PolygonConfig holds the Polygon.io credentials.
type PolygonConfig struct {
	APIKey string `yaml:"api_key"`
}

// AutosaveConfig holds the incremental persistence thresholds.
type AutosaveConfig struct {
	IntervalSeconds int `yaml:"interval_seconds" validate:"min=0"`
	MaxRows         int `yaml:"max_rows" validate:"min=0"`
}

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Provider string         `yaml:"provider" validate:"required,oneof=kite polygon binance"`
	Writer   string         `yaml:"writer" validate:"required,oneof=csv duckdb"`
	DataDir  string         `yaml:"data_dir" validate:"required"`
	Kite     KiteConfig     `yaml:"kite"`
	Polygon  PolygonConfig  `yaml:"polygon"`
	Autosave AutosaveConfig `yaml:"autosave"`
	LogLevel string         `yaml:"log_level" validate:"required,oneof=debug info warn error"`
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		Server:   ServerConfig{BindAddr: "127.0.0.1:8990"},
		Provider: "kite",
		Writer:   "csv",
		DataDir:  "data",
		Kite:     KiteConfig{Exchange: "NSE"},
		Autosave: AutosaveConfig{IntervalSeconds: 30, MaxRows: 5000},
		LogLevel: "info",
	}
}

// Load reads the YAML config at path (optional; empty path skips the
// file) and applies environment overrides on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to read config file", err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config file", err)
		}
	}

	applyEnv(&cfg)

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	return cfg, nil
}

// AutosaveInterval returns the flush interval as a duration.
func (c Config) AutosaveInterval() time.Duration {
	return time.Duration(c.Autosave.IntervalSeconds) * time.Second
}

// applyEnv overrides credentials and selected settings from the
// environment so secrets can stay out of the config file.
func applyEnv(cfg *Config) {
	setString(&cfg.Kite.APIKey, "KITE_API_KEY")
	setString(&cfg.Kite.APISecret, "KITE_API_SECRET")
	setString(&cfg.Kite.RedirectURL, "KITE_REDIRECT_URL")
	setString(&cfg.Kite.Exchange, "KITE_EXCHANGE")
	setString(&cfg.Polygon.APIKey, "POLYGON_API_KEY")
	setString(&cfg.Server.BindAddr, "BARFETCH_BIND_ADDR")
	setString(&cfg.Provider, "BARFETCH_PROVIDER")
	setString(&cfg.Writer, "BARFETCH_WRITER")
	setString(&cfg.DataDir, "BARFETCH_DATA_DIR")
	setString(&cfg.LogLevel, "BARFETCH_LOG_LEVEL")
	setInt(&cfg.Autosave.IntervalSeconds, "BARFETCH_AUTOSAVE_INTERVAL_SECONDS")
	setInt(&cfg.Autosave.MaxRows, "BARFETCH_AUTOSAVE_MAX_ROWS")
}

func setString(target *string, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}

func setInt(target *int, key string) {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}
