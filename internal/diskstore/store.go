// Package diskstore is the primary, authoritative cache tier: a
// content-addressable store rooted at a directory on local disk, laid
// out in two-level hash-prefix shards to keep any one directory's entry
// count manageable.
package diskstore

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ChrisWhealy/edge-cdn-store/internal/cacheerr"
	"github.com/ChrisWhealy/edge-cdn-store/internal/cachekey"
	"github.com/ChrisWhealy/edge-cdn-store/internal/cachemeta"
	"github.com/ChrisWhealy/edge-cdn-store/internal/metrics"
	"github.com/ChrisWhealy/edge-cdn-store/internal/storage"
)

// DiskCache implements storage.Storage against a local directory tree.
type DiskCache struct {
	root      string
	metrics   *metrics.Cache
	startedAt time.Time
}

// New opens a disk cache rooted at root. prevSizeBytes seeds the size
// gauge from a previously persisted statistics sidecar (0 on cold start).
func New(root string, prevSizeBytes int64) (*DiskCache, error) {
	return NewWithRegisterer(prometheus.DefaultRegisterer, root, prevSizeBytes)
}

// NewWithRegisterer is New against an explicit metrics registerer, for
// tests and for any process that opens more than one disk cache.
func NewWithRegisterer(reg prometheus.Registerer, root string, prevSizeBytes int64) (*DiskCache, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, cacheerr.Internal("create cache root", err)
	}
	return &DiskCache{
		root:      root,
		metrics:   metrics.NewWithRegisterer(reg, prevSizeBytes),
		startedAt: time.Now(),
	}, nil
}

// Metrics exposes the store's Prometheus collectors, e.g. so the S3
// secondary tier can update the same counters.
func (d *DiskCache) Metrics() *metrics.Cache { return d.metrics }

// Uptime reports how long this store has been serving.
func (d *DiskCache) Uptime() time.Duration { return time.Since(d.startedAt) }

// StartedAt reports the wall-clock time this store began serving.
func (d *DiskCache) StartedAt() time.Time { return d.startedAt }

type readResult struct {
	data []byte
	err  error
}

// Lookup reads an object's meta, hdr and body concurrently. If any of
// the three cannot be read (a missing file, or any other I/O failure),
// the object is treated as a miss, not an error.
func (d *DiskCache) Lookup(ctx context.Context, key *cachekey.Key) (*cachemeta.Meta, storage.HitHandler, error) {
	hash := key.Combined()
	_, bodyPath, metaPath, hdrPath := paths(d.root, hash)

	var wg sync.WaitGroup
	metaCh := make(chan readResult, 1)
	hdrCh := make(chan readResult, 1)

	wg.Add(2)
	go func() {
		defer wg.Done()
		b, err := os.ReadFile(metaPath)
		metaCh <- readResult{b, err}
	}()
	go func() {
		defer wg.Done()
		b, err := os.ReadFile(hdrPath)
		hdrCh <- readResult{b, err}
	}()

	file, openErr := os.Open(bodyPath)

	wg.Wait()
	metaRes, hdrRes := <-metaCh, <-hdrCh

	if openErr != nil || metaRes.err != nil || hdrRes.err != nil {
		if file != nil {
			file.Close()
		}
		if err := firstNonNil(openErr, metaRes.err, hdrRes.err); !os.IsNotExist(err) {
			slog.Debug("cache object unreadable, treating as a miss", "error", err)
		}
		d.metrics.Misses.Inc()
		return nil, nil, nil
	}

	meta, err := cachemeta.Deserialize(metaRes.data, hdrRes.data)
	if err != nil {
		file.Close()
		return nil, nil, cacheerr.Internal("decode cache meta", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, cacheerr.Internal("stat cache body", err)
	}

	d.metrics.LookupHits.Inc()
	return meta, newHitHandler(file, info.Size(), d.metrics), nil
}

// GetMissHandler serializes meta up front so that publication can never
// fail midway through due to a meta encoding problem, then hands back a
// handler writing to a fresh temporary file beside the object's shard.
func (d *DiskCache) GetMissHandler(_ context.Context, key *cachekey.Key, meta *cachemeta.Meta) (storage.MissHandler, error) {
	hash := key.Combined()
	dir, bodyPath, metaPath, hdrPath := paths(d.root, hash)

	metaInternal, metaHeader, err := cachemeta.Serialize(meta)
	if err != nil {
		return nil, cacheerr.Internal("encode cache meta", err)
	}

	tmpPath, err := createTmp(dir, hash)
	if err != nil {
		return nil, err
	}

	d.metrics.Misses.Inc()

	return &missHandler{
		tmpPath:      tmpPath,
		dir:          dir,
		body:         bodyPath,
		meta:         metaPath,
		hdr:          hdrPath,
		metaInternal: metaInternal,
		metaHeader:   metaHeader,
		metrics:      d.metrics,
	}, nil
}

// Purge removes an object's three files. existed reports whether the
// body was present beforehand; an already-absent object is not an error.
// purgeType (eviction vs invalidation) is transparent at this layer: it
// propagates to the tier above but every successful purge here counts
// the same against the eviction/evicted-bytes counters.
func (d *DiskCache) Purge(_ context.Context, key *cachekey.CompactKey, _ storage.PurgeType) (bool, error) {
	d.metrics.PurgeAttempts.Inc()

	hash := key.Combined()
	dir, bodyPath, metaPath, hdrPath := paths(d.root, hash)

	info, statErr := os.Stat(bodyPath)
	existed := statErr == nil

	_ = os.Remove(bodyPath)
	_ = os.Remove(metaPath)
	_ = os.Remove(hdrPath)
	_ = os.Remove(dir)

	if existed {
		d.metrics.Evictions.Inc()
		d.metrics.EvictedBytes.Add(float64(info.Size()))
		d.metrics.SizeBytes.Sub(float64(info.Size()))
	}

	return existed, nil
}

// UpdateMeta rewrites an object's meta/hdr sidecars in place, leaving its
// body untouched. It reports false, not an error, if the body is absent.
func (d *DiskCache) UpdateMeta(_ context.Context, key *cachekey.Key, meta *cachemeta.Meta) (bool, error) {
	hash := key.Combined()
	_, bodyPath, metaPath, hdrPath := paths(d.root, hash)

	if _, err := os.Stat(bodyPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, cacheerr.Internal("stat cache body", err)
	}

	metaInternal, metaHeader, err := cachemeta.Serialize(meta)
	if err != nil {
		return false, cacheerr.Internal("encode cache meta", err)
	}

	if err := os.WriteFile(metaPath, metaInternal, 0o644); err != nil {
		return false, cacheerr.Internal("write cache meta", err)
	}
	if err := os.WriteFile(hdrPath, metaHeader, 0o644); err != nil {
		return false, cacheerr.Internal("write cache hdr", err)
	}
	return true, nil
}

func firstNonNil(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
