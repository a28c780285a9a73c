// Package config loads settings for the authsession command and the stub
// backend from the environment and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/MrEthical07/authsession"
)

// Storage backends accepted in AUTHSESSION_STORAGE.
const (
	StorageFile   = "file"
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// Config holds process configuration loaded from the environment.
type Config struct {
	// BaseURL is the authentication service root (e.g. http://127.0.0.1:8080).
	BaseURL string `mapstructure:"AUTHSESSION_BASE_URL"`
	// Storage selects the session record adapter: file, memory or redis.
	Storage string `mapstructure:"AUTHSESSION_STORAGE"`
	// StateDir is where the file adapter keeps the record. Empty means the
	// user config directory.
	StateDir string `mapstructure:"AUTHSESSION_STATE_DIR"`
	// StorageKey names the persisted record.
	StorageKey string `mapstructure:"AUTHSESSION_STORAGE_KEY"`
	// RedisAddr is required when Storage is redis.
	RedisAddr   string `mapstructure:"AUTHSESSION_REDIS_ADDR"`
	RedisPrefix string `mapstructure:"AUTHSESSION_REDIS_PREFIX"`

	RefreshThreshold time.Duration `mapstructure:"AUTHSESSION_REFRESH_THRESHOLD"`
	FallbackTokenTTL time.Duration `mapstructure:"AUTHSESSION_FALLBACK_TOKEN_TTL"`
	BackendTimeout   time.Duration `mapstructure:"AUTHSESSION_BACKEND_TIMEOUT"`

	// AuditLog writes audit events as JSON lines to stderr when true.
	AuditLog bool `mapstructure:"AUTHSESSION_AUDIT_LOG"`
	// MetricsAddr, when set, serves Prometheus metrics while the command runs.
	MetricsAddr string `mapstructure:"AUTHSESSION_METRICS_ADDR"`

	// Stub backend settings.
	StubAddr      string        `mapstructure:"STUB_ADDR"`
	StubJWTSecret string        `mapstructure:"STUB_JWT_SECRET"`
	StubAccessTTL time.Duration `mapstructure:"STUB_ACCESS_TTL"`
}

// Load reads .env from the working directory (if present), then the
// environment. Env vars override .env.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit env file path. A missing file is ignored.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		}
	}

	v.AutomaticEnv()

	v.SetDefault("AUTHSESSION_BASE_URL", "http://127.0.0.1:8080")
	v.SetDefault("AUTHSESSION_STORAGE", StorageFile)
	v.SetDefault("AUTHSESSION_STATE_DIR", "")
	v.SetDefault("AUTHSESSION_STORAGE_KEY", "auth-storage")
	v.SetDefault("AUTHSESSION_REDIS_ADDR", "")
	v.SetDefault("AUTHSESSION_REDIS_PREFIX", "authsession")
	v.SetDefault("AUTHSESSION_REFRESH_THRESHOLD", "2m")
	v.SetDefault("AUTHSESSION_FALLBACK_TOKEN_TTL", "15m")
	v.SetDefault("AUTHSESSION_BACKEND_TIMEOUT", "30s")
	v.SetDefault("AUTHSESSION_AUDIT_LOG", false)
	v.SetDefault("AUTHSESSION_METRICS_ADDR", "")
	v.SetDefault("STUB_ADDR", "127.0.0.1:8080")
	v.SetDefault("STUB_JWT_SECRET", "")
	v.SetDefault("STUB_ACCESS_TTL", "15m")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))
	switch cfg.Storage {
	case StorageFile, StorageMemory:
	case StorageRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, errors.New("config: AUTHSESSION_REDIS_ADDR must be set when AUTHSESSION_STORAGE=redis")
		}
	default:
		return nil, fmt.Errorf("config: unknown AUTHSESSION_STORAGE %q", cfg.Storage)
	}

	if cfg.Storage == StorageFile && cfg.StateDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("config: AUTHSESSION_STATE_DIR unset and no user config dir: %w", err)
		}
		cfg.StateDir = filepath.Join(dir, "authsession")
	}

	if cfg.StubAccessTTL <= 0 {
		return nil, errors.New("config: STUB_ACCESS_TTL must be positive")
	}

	if _, err := cfg.ManagerConfig(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ManagerConfig maps the loaded settings onto a validated authsession.Config.
func (c *Config) ManagerConfig() (authsession.Config, error) {
	mc := authsession.DefaultConfig()
	mc.Refresh.Threshold = c.RefreshThreshold
	mc.Refresh.FallbackTokenTTL = c.FallbackTokenTTL
	if mc.Refresh.MinInterval > mc.Refresh.Threshold {
		mc.Refresh.MinInterval = mc.Refresh.Threshold
	}
	mc.Backend.Timeout = c.BackendTimeout
	mc.Storage.Key = c.StorageKey
	mc.Audit.Enabled = c.AuditLog
	mc.Metrics.Enabled = c.MetricsAddr != ""
	mc.Metrics.EnableLatencyHistograms = mc.Metrics.Enabled

	if err := mc.Validate(); err != nil {
		return authsession.Config{}, fmt.Errorf("config: %w", err)
	}
	return mc, nil
}
