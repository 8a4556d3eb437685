// Package config loads daemon configuration from the environment,
// following the teacher daemon's env-var-with-fallback style exactly.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AWS SDK environment variables (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY,
// AWS_REGION, AWS_ENDPOINT_URL) are read directly by the SDK's default
// credential chain and do not appear in this struct.

// Config is the full set of daemon settings resolved at startup.
type Config struct {
	ListenAddr      string // plaintext proxy listener, derived from PROXY_HTTP_PORT
	TLSListenAddr   string // TLS proxy listener, derived from PROXY_HTTPS_PORT
	AdminListenAddr string

	RuntimeDir   string // EDGE_RUNTIME_DIR: base directory for cache, keys, logs
	CacheRoot    string // CACHE_DIR
	MaxCacheSize int64  // CACHE_SIZE_BYTES: tracked bytes before eviction kicks in; 0 disables eviction

	SecondaryEnabled bool
	S3Bucket         string
	S3Prefix         string
	S3ForcePathStyle bool
	WriteThroughBoth bool

	GenerateSelfSignedTLS bool
	LogLevel              slog.Level
}

// Load resolves Config from the environment, applying the teacher's
// envOr-fallback pattern to every field.
func Load() Config {
	runtimeDir := envOr("EDGE_RUNTIME_DIR", "/tmp/edge-cdn-store")
	cacheRoot := envOr("CACHE_DIR", filepath.Join(runtimeDir, "cache"))
	maxSize, _ := strconv.ParseInt(envOr("CACHE_SIZE_BYTES", "2147483648"), 10, 64) // 2 GiB
	httpPort := envOr("PROXY_HTTP_PORT", "6188")
	httpsPort := envOr("PROXY_HTTPS_PORT", "6143")

	return Config{
		ListenAddr:            ":" + httpPort,
		TLSListenAddr:         ":" + httpsPort,
		AdminListenAddr:       envOr("ADMIN_LISTEN_ADDR", ":8090"),
		RuntimeDir:            runtimeDir,
		CacheRoot:             cacheRoot,
		MaxCacheSize:          maxSize,
		SecondaryEnabled:      envOr("SECONDARY_ENABLED", "false") == "true",
		S3Bucket:              envOr("S3_BUCKET", "edge-cdn-cache"),
		S3Prefix:              os.Getenv("S3_PREFIX"),
		S3ForcePathStyle:      envOr("S3_FORCE_PATH_STYLE", "true") == "true",
		WriteThroughBoth:      envOr("SECONDARY_WRITE_THROUGH", "false") == "true",
		GenerateSelfSignedTLS: envOr("GENERATE_SELF_SIGNED_TLS", "true") == "true",
		LogLevel:              parseLogLevel(envOr("LOG_LEVEL", "info")),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
