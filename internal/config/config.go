// Package config loads service configuration from a TOML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"basey-transport/internal/fare"
	"basey-transport/internal/penalty"

	"github.com/BurntSushi/toml"
)

// Config is the full service configuration
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	History   HistoryConfig   `toml:"history"`
	Auth      AuthConfig      `toml:"auth"`
	Fare      fare.Rates      `toml:"fare"`
	Penalty   PenaltyConfig   `toml:"penalty"`
	Locations LocationsConfig `toml:"locations"`
	Log       LogConfig       `toml:"log"`
}

type ServerConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	ReadTimeout     string `toml:"read_timeout"`
	WriteTimeout    string `toml:"write_timeout"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// HistoryConfig selects the violation history source. An empty URL uses the
// local records store.
type HistoryConfig struct {
	URL     string `toml:"url"`
	Timeout string `toml:"timeout"`
}

// AuthConfig configures operator tokens. An empty secret leaves operator
// routes open.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
	Issuer    string `toml:"issuer"`
	TokenTTL  string `toml:"token_ttl"`
}

type PenaltyConfig struct {
	Tiers []float64 `toml:"tiers"`
}

// LocationsConfig optionally replaces the built-in place table
type LocationsConfig struct {
	File string `toml:"file"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultConfig returns the development defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     "10s",
			WriteTimeout:    "15s",
			ShutdownTimeout: "10s",
		},
		Database: DatabaseConfig{Path: "basey_transport.db"},
		History:  HistoryConfig{Timeout: "2s"},
		Auth: AuthConfig{
			Issuer:   "basey-transport",
			TokenTTL: "12h",
		},
		Fare:    fare.DefaultRates(),
		Penalty: PenaltyConfig{Tiers: append([]float64(nil), penalty.DefaultTiers...)},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("BASEY_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BASEY_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("BASEY_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("BASEY_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("BASEY_HISTORY_URL"); v != "" {
		c.History.URL = v
	}
	return nil
}

// Validate checks every section
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	for name, d := range map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"history.timeout":         c.History.Timeout,
		"auth.token_ttl":          c.Auth.TokenTTL,
	} {
		if _, err := parseDuration(d); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if err := c.Fare.Validate(); err != nil {
		return fmt.Errorf("fare: %w", err)
	}
	if err := penalty.ValidateTiers(c.Penalty.Tiers); err != nil {
		return fmt.Errorf("penalty: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

// Addr returns host:port for the HTTP listener
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ReadTimeoutDuration and the helpers below return validated durations;
// Validate must have succeeded.
func (s ServerConfig) ReadTimeoutDuration() time.Duration {
	d, _ := parseDuration(s.ReadTimeout)
	return d
}

func (s ServerConfig) WriteTimeoutDuration() time.Duration {
	d, _ := parseDuration(s.WriteTimeout)
	return d
}

func (s ServerConfig) ShutdownTimeoutDuration() time.Duration {
	d, _ := parseDuration(s.ShutdownTimeout)
	return d
}

func (h HistoryConfig) TimeoutDuration() time.Duration {
	d, _ := parseDuration(h.Timeout)
	return d
}

func (a AuthConfig) TokenTTLDuration() time.Duration {
	d, _ := parseDuration(a.TokenTTL)
	return d
}
