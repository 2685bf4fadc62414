// Package config loads application settings from a .env file, an optional
// config file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/poshstock/poshstock/pricing"
)

// Config holds all configuration for the application. It is built once at
// startup and passed to the components that need it.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Uploads   UploadsConfig
	Pricing   PricingConfig
	Labels    LabelsConfig
	Log       LogConfig
	SecretKey string
}

type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     int
	WriteTimeout    int
	ShutdownTimeout int
	AllowedOrigins  []string
	SecureCookies   bool
}

type DatabaseConfig struct {
	URL             string
	ConnMaxLifetime int
}

type UploadsConfig struct {
	Dir               string
	MaxBytes          int64
	AllowedExtensions []string
	MaxEdge           int
}

// PricingConfig keeps the fee schedule as strings so it stays exact.
type PricingConfig struct {
	FlatFee   string
	Percent   string
	Threshold string
}

type LabelsConfig struct {
	DPI    int
	Width  string
	Height string
}

type LogConfig struct {
	Level  string
	Format string
}

// env bindings that do not follow the section_key naming.
var envAliases = map[string]string{
	"server.host":                "HOST",
	"server.port":                "PORT",
	"secret_key":                 "SECRET_KEY,FLASK_SECRET",
	"database.url":               "DATABASE_URL",
	"uploads.dir":                "UPLOAD_DIR",
	"uploads.max_bytes":          "MAX_CONTENT_LENGTH",
	"uploads.allowed_extensions": "ALLOWED_EXTENSIONS",
	"log.level":                  "LOG_LEVEL",
	"log.format":                 "LOG_FORMAT",
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)
	v.SetDefault("server.shutdown_timeout", 30)
	v.SetDefault("server.allowed_origins", "*")
	v.SetDefault("server.secure_cookies", false)
	v.SetDefault("secret_key", "dev-secret")
	v.SetDefault("database.url", "sqlite:posh.db")
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("uploads.dir", "static/uploads")
	v.SetDefault("uploads.max_bytes", 8000000)
	v.SetDefault("uploads.allowed_extensions", "jpg,jpeg,png,webp")
	v.SetDefault("uploads.max_edge", 1600)
	v.SetDefault("pricing.flat_fee", pricing.Poshmark.FlatFee.String())
	v.SetDefault("pricing.percent", pricing.Poshmark.Percent.String())
	v.SetDefault("pricing.threshold", pricing.Poshmark.Threshold.StringFixed(2))
	v.SetDefault("labels.dpi", 300)
	v.SetDefault("labels.width", "2.625in")
	v.SetDefault("labels.height", "1in")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// BindEnv wires the environment into v. Keys without an alias are read
// from POSHSTOCK_<SECTION>_<KEY>.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix("POSHSTOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range envAliases {
		args := append([]string{key}, strings.Split(envs, ",")...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files. Missing files are
// ignored and variables already in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds a Config from v after registering defaults and env bindings.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	if err := BindEnv(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetString("server.port"),
			ReadTimeout:     v.GetInt("server.read_timeout"),
			WriteTimeout:    v.GetInt("server.write_timeout"),
			ShutdownTimeout: v.GetInt("server.shutdown_timeout"),
			AllowedOrigins:  splitList(v.GetString("server.allowed_origins")),
			SecureCookies:   v.GetBool("server.secure_cookies"),
		},
		Database: DatabaseConfig{
			URL:             v.GetString("database.url"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
		},
		Uploads: UploadsConfig{
			Dir:               v.GetString("uploads.dir"),
			MaxBytes:          v.GetInt64("uploads.max_bytes"),
			AllowedExtensions: splitList(strings.ToLower(v.GetString("uploads.allowed_extensions"))),
			MaxEdge:           v.GetInt("uploads.max_edge"),
		},
		Pricing: PricingConfig{
			FlatFee:   v.GetString("pricing.flat_fee"),
			Percent:   v.GetString("pricing.percent"),
			Threshold: v.GetString("pricing.threshold"),
		},
		Labels: LabelsConfig{
			DPI:    v.GetInt("labels.dpi"),
			Width:  v.GetString("labels.width"),
			Height: v.GetString("labels.height"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
		SecretKey: v.GetString("secret_key"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database url is required")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("secret key is required")
	}
	if c.Uploads.MaxBytes <= 0 {
		return fmt.Errorf("uploads max bytes must be positive, got %d", c.Uploads.MaxBytes)
	}
	if len(c.Uploads.AllowedExtensions) == 0 {
		return fmt.Errorf("at least one upload extension must be allowed")
	}
	if c.Labels.DPI <= 0 {
		return fmt.Errorf("labels dpi must be positive, got %d", c.Labels.DPI)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be console or json)", c.Log.Format)
	}

	if _, err := c.Schedule(); err != nil {
		return err
	}
	return nil
}

// Schedule returns the configured fee schedule.
func (c *Config) Schedule() (pricing.Schedule, error) {
	var s pricing.Schedule
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"pricing.flat_fee", c.Pricing.FlatFee, &s.FlatFee},
		{"pricing.percent", c.Pricing.Percent, &s.Percent},
		{"pricing.threshold", c.Pricing.Threshold, &s.Threshold},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(strings.TrimSpace(f.raw))
		if err != nil {
			return pricing.Schedule{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = d
	}
	if err := s.Validate(); err != nil {
		return pricing.Schedule{}, err
	}
	return s, nil
}

// Addr is the host:port the HTTP server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.TrimPrefix(part, "."))
		}
	}
	return out
}
