// Package metrics holds the process-wide Prometheus registry for the
// cache core, grounded on the original daemon's metrics.rs
// (register_int_counter!/register_int_gauge!) and on the pack's
// bazel-remote disk cache, which registers its hit/miss counters with
// promauto. Here the collectors are created per Cache, through
// promauto.With on the given registerer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache holds every counter and gauge the disk cache and the S3 tier
// update. It is shared by every handler a Storage spawns.
type Cache struct {
	LookupHits    prometheus.Counter
	ServedHits    prometheus.Counter
	Misses        prometheus.Counter
	Inserts       prometheus.Counter
	PurgeAttempts prometheus.Counter
	Evictions     prometheus.Counter
	EvictedBytes  prometheus.Counter
	SizeBytes     prometheus.Gauge
}

// New registers a fresh set of cache metrics against the default
// Prometheus registerer and seeds SizeBytes from prevSizeBytes (the value
// recovered from the persisted statistics sidecar at startup, or 0 on a
// cold start).
func New(prevSizeBytes int64) *Cache {
	return NewWithRegisterer(prometheus.DefaultRegisterer, prevSizeBytes)
}

// NewWithRegisterer is New against an explicit registerer, so tests (and
// any process wiring up more than one cache instance) can use a scratch
// prometheus.NewRegistry() instead of colliding on the global default.
func NewWithRegisterer(reg prometheus.Registerer, prevSizeBytes int64) *Cache {
	factory := promauto.With(reg)
	c := &Cache{
		LookupHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "cache_lookup_hits",
			Help: "Cache lookup hits.",
		}),
		ServedHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "cache_served_hits",
			Help: "Cache hits fully served to a client.",
		}),
		Misses: factory.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses",
			Help: "Cache misses.",
		}),
		Inserts: factory.NewCounter(prometheus.CounterOpts{
			Name: "cache_inserts",
			Help: "Cache insertions.",
		}),
		PurgeAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "cache_purge_attempts",
			Help: "Purge attempts, successful or not.",
		}),
		Evictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "cache_evictions",
			Help: "Successful cache evictions.",
		}),
		EvictedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "cache_evicted_bytes",
			Help: "Total bytes evicted.",
		}),
		SizeBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cache_size_bytes",
			Help: "Current cache size in bytes.",
		}),
	}
	c.SizeBytes.Set(float64(prevSizeBytes))
	return c
}
