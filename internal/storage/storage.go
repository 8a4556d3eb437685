// Package storage defines the capability set every cache backend in this
// daemon implements: lookup, admit (via a miss handler), purge and
// meta-only update. DiskCache (internal/diskstore), tiered.Storage
// (internal/tiered) and S3Store (internal/s3store) implement it;
// tiered.Storage composes S3Store beneath the disk cache as the
// secondary tier.
package storage

import (
	"context"

	"github.com/ChrisWhealy/edge-cdn-store/internal/cachekey"
	"github.com/ChrisWhealy/edge-cdn-store/internal/cachemeta"
)

// Storage is the capability set a cache backend provides. Held behind an
// interface value rather than a concrete type so tiered.Storage can compose
// two of them polymorphically.
type Storage interface {
	// Lookup returns the meta and a HitHandler for key, or (nil, nil, nil)
	// on a miss. Read-side I/O failures degrade to a miss rather than
	// propagating an error — the affected object is simply treated as
	// absent.
	Lookup(ctx context.Context, key *cachekey.Key) (*cachemeta.Meta, HitHandler, error)

	// GetMissHandler returns a handler the caller drives with WriteBody
	// calls followed by Finish. meta is serialized up front so Finish
	// cannot fail due to a meta problem after the body has already been
	// written.
	GetMissHandler(ctx context.Context, key *cachekey.Key, meta *cachemeta.Meta) (MissHandler, error)

	// Purge removes the object addressed by key. existed reports whether
	// the body file was present before removal.
	Purge(ctx context.Context, key *cachekey.CompactKey, purgeType PurgeType) (existed bool, err error)

	// UpdateMeta rewrites only the meta/hdr sidecars for key, leaving the
	// body untouched. Returns false without error if the body does not
	// exist (there is nothing to attach updated meta to).
	UpdateMeta(ctx context.Context, key *cachekey.Key, meta *cachemeta.Meta) (updated bool, err error)
}

// PurgeType distinguishes eviction (capacity pressure, primary tier only)
// from invalidation (an explicit external command, fanned out to every
// tier).
type PurgeType int

const (
	// Eviction is admission-reversal driven by capacity pressure.
	Eviction PurgeType = iota
	// Invalidation is admission-reversal driven by an external command.
	Invalidation
)

func (t PurgeType) String() string {
	if t == Invalidation {
		return "invalidation"
	}
	return "eviction"
}

// HitHandler streams a cached body to a client, with support for a
// deferred range seek: Seek only records intent, and the repositioning
// I/O happens lazily on the next ReadBody call, because the surrounding
// proxy framework expects Seek to be non-blocking.
type HitHandler interface {
	// ReadBody returns the next chunk of the body, or (nil, nil) at
	// end-of-stream.
	ReadBody(ctx context.Context) ([]byte, error)
	// CanSeek reports whether Seek is supported. The disk tier's handler
	// always returns true; the S3 tier's returns false.
	CanSeek() bool
	// Seek validates and records a new range; the actual file seek is
	// deferred to the next ReadBody call. Handlers whose CanSeek is false
	// reject it.
	Seek(start int64, end *int64) error
	// Finish releases the handler's resources and accounts the hit as
	// served.
	Finish(ctx context.Context) error
	// Weight estimates the handler's footprint for eviction accounting.
	Weight() int64
}

// MissFinishKind reports what Finish actually did.
type MissFinishKind int

const (
	// Created means a new object was admitted; CreatedBytes is its size.
	Created MissFinishKind = iota
)

// MissResult is returned by MissHandler.Finish.
type MissResult struct {
	Kind         MissFinishKind
	CreatedBytes int64
}

// MissHandler accepts body bytes during an origin fetch and publishes
// them as a new cache object on Finish. No partial object becomes
// visible without a successful Finish; the temporary file backing the
// handler is removed only when Abort is called.
type MissHandler interface {
	// WriteBody appends data to the handler's temporary storage. On
	// isEOF it flushes but does not publish.
	WriteBody(ctx context.Context, data []byte, isEOF bool) error
	// Finish atomically publishes the object and returns its size.
	Finish(ctx context.Context) (MissResult, error)
	// Abort discards everything written so far. It is a no-op once
	// Finish has succeeded. Callers must call Abort in every exit path
	// that does not reach a successful Finish (cancellation, origin
	// error, panic recovery) — this is the explicit Go analogue of the
	// original implementation's Drop-triggered temp file cleanup.
	Abort()
}
