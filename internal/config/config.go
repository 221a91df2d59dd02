// Package config loads platform configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	ReadTimeout  int    `yaml:"read_timeout"`  // seconds
	WriteTimeout int    `yaml:"write_timeout"` // seconds
}

// DatabaseConfig controls the relational store connection.
type DatabaseConfig struct {
	Driver          string `yaml:"driver"`
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // seconds
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	FilePrefix string `yaml:"file_prefix"`
}

// AuthConfig controls token issuance and verification.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	TokenTTL  int    `yaml:"token_ttl"` // seconds
}

// RateLimitConfig controls the per-caller request budget.
type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	Burst             int `yaml:"burst"`
}

// AuditConfig controls the audit trail.
type AuditConfig struct {
	File       string `yaml:"file"`
	MaxEntries int    `yaml:"max_entries"`
}

// JobsConfig controls background runners.
type JobsConfig struct {
	GapRecomputeSchedule string `yaml:"gap_recompute_schedule"`
	AnalyticsInterval    int    `yaml:"analytics_interval"` // seconds
}

// CORSConfig lists origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Config is the root configuration document.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Auth      AuthConfig      `yaml:"auth"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Audit     AuditConfig     `yaml:"audit"`
	Jobs      JobsConfig      `yaml:"jobs"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{
		Server:    ServerConfig{Host: "0.0.0.0", Port: 8080, ReadTimeout: 15, WriteTimeout: 30},
		Database:  DatabaseConfig{MaxOpenConns: 25, MaxIdleConns: 5, ConnMaxLifetime: 300},
		Logging:   LoggingConfig{Level: "info", Format: "json", Output: "stderr"},
		Auth:      AuthConfig{TokenTTL: 86400},
		RateLimit: RateLimitConfig{RequestsPerSecond: 20, Burst: 40},
		Audit:     AuditConfig{MaxEntries: 500},
		Jobs:      JobsConfig{GapRecomputeSchedule: "@every 5m", AnalyticsInterval: 300},
	}
	cfg.CORS.AllowedOrigins = []string{"*"}
	return cfg
}

// Load reads CONFIG_PATH (default config/config.yaml) if it exists and then
// applies environment overrides.
func Load() (*Config, error) {
	cfg := Default()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required (or set JWT_SECRET)")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AUDIT_FILE"); v != "" {
		cfg.Audit.File = v
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		origins := parts[:0]
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
		cfg.CORS.AllowedOrigins = origins
	}
}

// TokenTTL returns the configured token lifetime as a duration.
func (a AuthConfig) TokenTTLDuration() time.Duration {
	if a.TokenTTL <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(a.TokenTTL) * time.Second
}
