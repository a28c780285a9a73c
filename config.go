package authsession

import (
	"errors"
	"strings"
	"time"
)

// Config defines the tunables of a session Manager.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Refresh RefreshConfig
	Backend BackendConfig
	Storage StorageConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

// RefreshConfig controls the proactive refresh timer.
type RefreshConfig struct {
	// Threshold is how long before access-token expiry the refresh fires.
	Threshold time.Duration
	// FallbackTokenTTL is the assumed lifetime of an access token whose response
	// carries no expires_in and whose claims carry no exp.
	FallbackTokenTTL time.Duration
	// MinInterval is the floor for the delay between issuance and refresh when
	// the token lives no longer than Threshold.
	MinInterval time.Duration
}

// BackendConfig bounds calls to the authentication backend.
type BackendConfig struct {
	Timeout time.Duration
}

// StorageConfig selects where the session record is persisted.
type StorageConfig struct {
	Key      string
	Disabled bool
}

// AuditConfig defines the audit dispatch settings.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines the in-process metrics settings.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

const (
	defaultRefreshThreshold = 2 * time.Minute
	defaultFallbackTokenTTL = 15 * time.Minute
	defaultMinInterval      = 5 * time.Second
	defaultBackendTimeout   = 30 * time.Second
	defaultStorageKey       = "auth-storage"
)

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Refresh: RefreshConfig{
			Threshold:        defaultRefreshThreshold,
			FallbackTokenTTL: defaultFallbackTokenTTL,
			MinInterval:      defaultMinInterval,
		},
		Backend: BackendConfig{
			Timeout: defaultBackendTimeout,
		},
		Storage: StorageConfig{
			Key:      defaultStorageKey,
			Disabled: false,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	// All fields are values; the copy is already deep.
	return cfg
}

// Validate checks the configuration for values the Manager cannot run with.
//
// Validate returns the first problem found.
func (c *Config) Validate() error {
	// Refresh
	if c.Refresh.Threshold <= 0 {
		return errors.New("Refresh Threshold must be > 0")
	}
	if c.Refresh.FallbackTokenTTL <= 0 {
		return errors.New("Refresh FallbackTokenTTL must be > 0")
	}
	if c.Refresh.Threshold >= c.Refresh.FallbackTokenTTL {
		return errors.New("Refresh Threshold must be < FallbackTokenTTL")
	}
	if c.Refresh.MinInterval <= 0 {
		return errors.New("Refresh MinInterval must be > 0")
	}
	if c.Refresh.MinInterval > c.Refresh.Threshold {
		return errors.New("Refresh MinInterval must be <= Threshold")
	}

	// Backend
	if c.Backend.Timeout <= 0 {
		return errors.New("Backend Timeout must be > 0")
	}

	// Storage
	if !c.Storage.Disabled && strings.TrimSpace(c.Storage.Key) == "" {
		return errors.New("Storage Key must not be empty")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
