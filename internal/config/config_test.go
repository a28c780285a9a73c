package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"AUTHSESSION_BASE_URL", "AUTHSESSION_STORAGE", "AUTHSESSION_STATE_DIR",
		"AUTHSESSION_STORAGE_KEY", "AUTHSESSION_REDIS_ADDR", "AUTHSESSION_REDIS_PREFIX",
		"AUTHSESSION_REFRESH_THRESHOLD", "AUTHSESSION_FALLBACK_TOKEN_TTL", "AUTHSESSION_BACKEND_TIMEOUT",
		"AUTHSESSION_AUDIT_LOG", "AUTHSESSION_METRICS_ADDR", "STUB_ADDR", "STUB_JWT_SECRET", "STUB_ACCESS_TTL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTHSESSION_STATE_DIR", t.TempDir())

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "http://127.0.0.1:8080" {
		t.Errorf("BaseURL = %q, want default", cfg.BaseURL)
	}
	if cfg.Storage != StorageFile {
		t.Errorf("Storage = %q, want %q", cfg.Storage, StorageFile)
	}
	if cfg.StorageKey != "auth-storage" {
		t.Errorf("StorageKey = %q, want auth-storage", cfg.StorageKey)
	}
	if cfg.RefreshThreshold != 2*time.Minute {
		t.Errorf("RefreshThreshold = %v, want 2m", cfg.RefreshThreshold)
	}
	if cfg.BackendTimeout != 30*time.Second {
		t.Errorf("BackendTimeout = %v, want 30s", cfg.BackendTimeout)
	}
	if cfg.AuditLog {
		t.Error("AuditLog should default to false")
	}
	if cfg.StubAccessTTL != 15*time.Minute {
		t.Errorf("StubAccessTTL = %v, want 15m", cfg.StubAccessTTL)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTHSESSION_BASE_URL", "https://auth.example.com")
	t.Setenv("AUTHSESSION_STORAGE", "MEMORY")
	t.Setenv("AUTHSESSION_REFRESH_THRESHOLD", "90s")
	t.Setenv("AUTHSESSION_AUDIT_LOG", "true")

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "https://auth.example.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Storage != StorageMemory {
		t.Errorf("Storage = %q, want memory", cfg.Storage)
	}
	if cfg.RefreshThreshold != 90*time.Second {
		t.Errorf("RefreshThreshold = %v, want 90s", cfg.RefreshThreshold)
	}

	mc, err := cfg.ManagerConfig()
	if err != nil {
		t.Fatalf("ManagerConfig: %v", err)
	}
	if mc.Refresh.Threshold != 90*time.Second || !mc.Audit.Enabled {
		t.Errorf("manager config not mapped: %+v", mc)
	}
}

func TestLoad_WithEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	content := "AUTHSESSION_STORAGE=memory\nAUTHSESSION_BASE_URL=http://from-file:9000\nAUTHSESSION_BACKEND_TIMEOUT=5s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("AUTHSESSION_BACKEND_TIMEOUT", "7s")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "http://from-file:9000" {
		t.Errorf("BaseURL = %q, want value from file", cfg.BaseURL)
	}
	if cfg.BackendTimeout != 7*time.Second {
		t.Errorf("BackendTimeout = %v, env must override file", cfg.BackendTimeout)
	}
}

func TestLoad_MissingEnvFileIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTHSESSION_STORAGE", "memory")

	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing env file must be ignored: %v", err)
	}
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown storage", env: map[string]string{"AUTHSESSION_STORAGE": "sqlite"}},
		{name: "redis without addr", env: map[string]string{"AUTHSESSION_STORAGE": "redis"}},
		{name: "threshold above fallback", env: map[string]string{
			"AUTHSESSION_STORAGE":            "memory",
			"AUTHSESSION_REFRESH_THRESHOLD":  "20m",
			"AUTHSESSION_FALLBACK_TOKEN_TTL": "15m",
		}},
		{name: "zero timeout", env: map[string]string{
			"AUTHSESSION_STORAGE":         "memory",
			"AUTHSESSION_BACKEND_TIMEOUT": "0s",
		}},
		{name: "bad duration", env: map[string]string{
			"AUTHSESSION_STORAGE":           "memory",
			"AUTHSESSION_REFRESH_THRESHOLD": "soon",
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := LoadFile(""); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
