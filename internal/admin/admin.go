// Package admin is the introspection HTTP surface: version, health,
// statistics, Prometheus metrics, and a browsable view of the disk
// cache contents. Ported from the original daemon's
// inspector/routes.rs and inspector/display_disk_cache.rs (a warp
// filter tree run on its own background thread) into an
// http.ServeMux-based handler run on its own *http.Server goroutine,
// matching the house style observed across the example pack: no router
// library is used anywhere in it for comparable admin surfaces.
package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ChrisWhealy/edge-cdn-store/internal/cachestats"
)

const version = "0.1.0"

// StatsSource is implemented by whatever tracks the numbers /stats
// reports; diskstore.DiskCache satisfies it without needing a
// dedicated adapter type.
type StatsSource interface {
	StartedAt() time.Time
	Uptime() time.Duration
}

// New builds the admin mux. root is the cache root directory browsable
// at /cache; sizeBytesMax is the configured eviction capacity (0 if
// unbounded); sizeBytesCurrent is read on every request so /stats
// always reflects the live cache.
func New(root string, store StatsSource, sizeBytesMax int64, sizeBytesCurrent func() int64) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(indexHTML))
	})

	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"version": version})
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, cachestats.Snapshot{
			Root:             root,
			StartTime:        store.StartedAt(),
			Uptime:           cachestats.DurationToUptime(store.Uptime()),
			SizeBytesCurrent: sizeBytesCurrent(),
			SizeBytesMax:     sizeBytesMax,
		})
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.Handle("/cache/", http.StripPrefix("/cache", cacheBrowser(root)))
	mux.HandleFunc("/cache", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/cache/", http.StatusMovedPermanently)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

const indexHTML = `<html>
  <head><title>edge-cdn-store cache inspector</title></head>
  <body>
    <h1>edge-cdn-store cache inspector</h1>
    <ul>
      <li><a href="/version">Version</a></li>
      <li><a href="/health">Health</a></li>
      <li><a href="/stats">Statistics</a></li>
      <li><a href="/metrics">Metrics</a></li>
      <li><a href="/cache/">Contents</a></li>
    </ul>
  </body>
</html>`
