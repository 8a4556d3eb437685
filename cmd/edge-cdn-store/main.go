package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/ChrisWhealy/edge-cdn-store/internal/admin"
	"github.com/ChrisWhealy/edge-cdn-store/internal/cachestats"
	"github.com/ChrisWhealy/edge-cdn-store/internal/config"
	"github.com/ChrisWhealy/edge-cdn-store/internal/diskstore"
	"github.com/ChrisWhealy/edge-cdn-store/internal/eviction"
	"github.com/ChrisWhealy/edge-cdn-store/internal/proxy"
	"github.com/ChrisWhealy/edge-cdn-store/internal/s3store"
	"github.com/ChrisWhealy/edge-cdn-store/internal/storage"
	"github.com/ChrisWhealy/edge-cdn-store/internal/tiered"
	"github.com/ChrisWhealy/edge-cdn-store/internal/tlsgen"
	"github.com/ChrisWhealy/edge-cdn-store/internal/upstream"
)

func main() {
	// Self-contained healthcheck for scratch containers (no curl/wget available).
	// Usage: edge-cdn-store -healthcheck
	if len(os.Args) > 1 && os.Args[1] == "-healthcheck" {
		resp, err := http.Get("http://127.0.0.1:8090/health")
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	statsPath := filepath.Join(cfg.CacheRoot, "_cache_state.json")

	prevStats, err := cachestats.Load(statsPath)
	if err != nil {
		slog.Warn("failed to load persisted statistics, starting cold", "error", err)
	}
	if cfg.MaxCacheSize > 0 && prevStats.SizeBytesCurrent > cfg.MaxCacheSize {
		slog.Warn("persisted cache size exceeds configured capacity",
			"persisted", prevStats.SizeBytesCurrent, "max", cfg.MaxCacheSize)
	}

	disk, err := diskstore.New(cfg.CacheRoot, prevStats.SizeBytesCurrent)
	if err != nil {
		slog.Error("failed to open disk cache", "error", err)
		os.Exit(1)
	}

	var store storage.Storage = disk
	if cfg.SecondaryEnabled {
		secondary, err := s3store.New(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.S3ForcePathStyle, disk.Metrics())
		if err != nil {
			slog.Error("failed to configure secondary storage tier", "error", err)
			os.Exit(1)
		}
		policy := tiered.PrimaryOnly
		if cfg.WriteThroughBoth {
			policy = tiered.WriteThroughBoth
		}
		store = tiered.New(disk, secondary, policy)
		slog.Info("secondary storage tier enabled", "bucket", cfg.S3Bucket, "write_through", cfg.WriteThroughBoth)
	}

	lru := eviction.New(store, cfg.MaxCacheSize)

	ownListeners := []string{cfg.ListenAddr, cfg.TLSListenAddr}

	plaintextHandler := &proxy.Handler{
		Store:         store,
		Upstream:      upstream.New(),
		Eviction:      lru,
		OwnListeners:  ownListeners,
		ListenerIsTLS: false,
	}
	tlsProxyHandler := &proxy.Handler{
		Store:         store,
		Upstream:      upstream.New(),
		Eviction:      lru,
		OwnListeners:  ownListeners,
		ListenerIsTLS: true,
	}

	h2s := &http2.Server{}
	plaintextServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: h2c.NewHandler(proxy.LoggingMiddleware(plaintextHandler), h2s),
	}

	var tlsServer *http.Server
	if cfg.GenerateSelfSignedTLS {
		cert, err := tlsgen.SelfSignedCert()
		if err != nil {
			slog.Error("failed to generate self-signed certificate", "error", err)
			os.Exit(1)
		}
		slog.Info("generated self-signed TLS certificate")

		tlsServer = &http.Server{
			Addr:      cfg.TLSListenAddr,
			Handler:   proxy.LoggingMiddleware(tlsProxyHandler),
			TLSConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
		}
	}

	adminHandler := admin.New(cfg.CacheRoot, disk, cfg.MaxCacheSize,
		func() int64 { return prevStats.SizeBytesCurrent + lru.Size() },
	)
	adminServer := &http.Server{Addr: cfg.AdminListenAddr, Handler: adminHandler}

	go func() {
		slog.Info("starting plaintext listener", "addr", cfg.ListenAddr)
		if err := plaintextServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("plaintext server error", "error", err)
			os.Exit(1)
		}
	}()

	if tlsServer != nil {
		go func() {
			slog.Info("starting TLS listener", "addr", cfg.TLSListenAddr)
			if err := tlsServer.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("TLS server error", "error", err)
				os.Exit(1)
			}
		}()
	}

	go func() {
		slog.Info("starting admin listener", "addr", cfg.AdminListenAddr)
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("admin server error", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := plaintextServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("plaintext shutdown error", "error", err)
	}
	if tlsServer != nil {
		if err := tlsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("TLS shutdown error", "error", err)
		}
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("admin shutdown error", "error", err)
	}

	if err := cachestats.Save(statsPath, cachestats.Snapshot{
		Root:             cfg.CacheRoot,
		StartTime:        disk.StartedAt(),
		Uptime:           cachestats.DurationToUptime(disk.Uptime()),
		SizeBytesCurrent: prevStats.SizeBytesCurrent + lru.Size(),
		SizeBytesMax:     cfg.MaxCacheSize,
	}); err != nil {
		slog.Error("failed to persist statistics", "error", err)
	}

	slog.Info("shutdown complete")
}
