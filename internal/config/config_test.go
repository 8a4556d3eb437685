package config

import (
	"log/slog"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.ListenAddr != ":6188" {
		t.Errorf("ListenAddr = %q, want :6188", cfg.ListenAddr)
	}
	if cfg.TLSListenAddr != ":6143" {
		t.Errorf("TLSListenAddr = %q, want :6143", cfg.TLSListenAddr)
	}
	if cfg.RuntimeDir != "/tmp/edge-cdn-store" {
		t.Errorf("RuntimeDir = %q, want /tmp/edge-cdn-store", cfg.RuntimeDir)
	}
	if want := filepath.Join(cfg.RuntimeDir, "cache"); cfg.CacheRoot != want {
		t.Errorf("CacheRoot = %q, want %q", cfg.CacheRoot, want)
	}
	if cfg.MaxCacheSize != 2147483648 {
		t.Errorf("MaxCacheSize = %d, want 2 GiB", cfg.MaxCacheSize)
	}
	if cfg.SecondaryEnabled {
		t.Errorf("expected SecondaryEnabled to default to false")
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
}

func TestLoadHonorsEnvOverrides(t *testing.T) {
	t.Setenv("PROXY_HTTP_PORT", "9090")
	t.Setenv("EDGE_RUNTIME_DIR", "/var/run/edge")
	t.Setenv("CACHE_SIZE_BYTES", "1000")
	t.Setenv("SECONDARY_ENABLED", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()

	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want :9090", cfg.ListenAddr)
	}
	if cfg.RuntimeDir != "/var/run/edge" {
		t.Errorf("RuntimeDir = %q, want /var/run/edge", cfg.RuntimeDir)
	}
	if want := filepath.Join("/var/run/edge", "cache"); cfg.CacheRoot != want {
		t.Errorf("CacheRoot = %q, want %q", cfg.CacheRoot, want)
	}
	if cfg.MaxCacheSize != 1000 {
		t.Errorf("MaxCacheSize = %d, want 1000", cfg.MaxCacheSize)
	}
	if !cfg.SecondaryEnabled {
		t.Errorf("expected SecondaryEnabled to be true")
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
}

func TestLoadCacheDirOverridesRuntimeDirComposition(t *testing.T) {
	t.Setenv("EDGE_RUNTIME_DIR", "/var/run/edge")
	t.Setenv("CACHE_DIR", "/mnt/cache")

	cfg := Load()

	if cfg.CacheRoot != "/mnt/cache" {
		t.Errorf("CacheRoot = %q, want /mnt/cache (explicit CACHE_DIR wins)", cfg.CacheRoot)
	}
}

func TestParseLogLevelUnknownDefaultsToInfo(t *testing.T) {
	if got := parseLogLevel("nonsense"); got != slog.LevelInfo {
		t.Errorf("parseLogLevel(nonsense) = %v, want info", got)
	}
	if got := parseLogLevel("WARN"); got != slog.LevelWarn {
		t.Errorf("parseLogLevel(WARN) = %v, want warn (case-insensitive)", got)
	}
}
