// Package tiered composes a primary, authoritative storage.Storage with
// an optional secondary, best-effort one. Grounded on the original
// daemon's tiered/fan_out.rs, which the distilled spec marks
// not-implemented in the reference build but whose design this daemon
// carries through in full.
package tiered

import (
	"context"
	"log/slog"

	"github.com/ChrisWhealy/edge-cdn-store/internal/cachekey"
	"github.com/ChrisWhealy/edge-cdn-store/internal/cachemeta"
	"github.com/ChrisWhealy/edge-cdn-store/internal/storage"
)

// WritePolicy controls whether a miss is admitted to the primary tier
// only, or fanned out to both.
type WritePolicy int

const (
	// PrimaryOnly admits new objects to the primary tier only.
	PrimaryOnly WritePolicy = iota
	// WriteThroughBoth admits to both tiers; secondary failures are
	// logged and otherwise ignored.
	WriteThroughBoth
)

// Storage composes a primary store with an optional secondary one.
// Lookups try the primary first, then the secondary as a fallback;
// writes follow policy. A nil secondary makes this behave exactly like
// the primary alone.
type Storage struct {
	primary   storage.Storage
	secondary storage.Storage
	policy    WritePolicy
}

// New builds a tiered store. secondary may be nil, in which case every
// operation is a direct passthrough to primary.
func New(primary, secondary storage.Storage, policy WritePolicy) *Storage {
	return &Storage{primary: primary, secondary: secondary, policy: policy}
}

// Lookup tries the primary tier, then falls back to the secondary. A
// secondary hit is returned to the caller as is and is not copied into
// the primary tier.
func (s *Storage) Lookup(ctx context.Context, key *cachekey.Key) (*cachemeta.Meta, storage.HitHandler, error) {
	meta, hit, err := s.primary.Lookup(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	if hit != nil {
		return meta, hit, nil
	}
	if s.secondary == nil {
		return nil, nil, nil
	}
	meta, hit, err = s.secondary.Lookup(ctx, key)
	if err != nil {
		slog.Warn("secondary tier lookup failed", "error", err)
		return nil, nil, nil
	}
	return meta, hit, nil
}

// GetMissHandler returns a handler for the primary tier, or a fan-out
// handler writing to both tiers when policy is WriteThroughBoth and a
// secondary is configured.
func (s *Storage) GetMissHandler(ctx context.Context, key *cachekey.Key, meta *cachemeta.Meta) (storage.MissHandler, error) {
	primaryHandler, err := s.primary.GetMissHandler(ctx, key, meta)
	if err != nil {
		return nil, err
	}

	if s.policy != WriteThroughBoth || s.secondary == nil {
		return primaryHandler, nil
	}

	secondaryHandler, err := s.secondary.GetMissHandler(ctx, key, meta)
	if err != nil {
		slog.Warn("secondary tier miss handler unavailable, writing primary only", "error", err)
		return primaryHandler, nil
	}

	return &fanOutHandler{primary: primaryHandler, secondary: secondaryHandler}, nil
}

// Purge distinguishes Eviction from Invalidation. Eviction happens
// because the primary is under capacity pressure, so it touches the
// primary tier only: the secondary is a larger, independent tier under
// its own pressure. Invalidation is an explicit external command and
// must be synchronised across every tier, so it fans out to both and
// ORs the existed flags; neither tier's failure short-circuits the
// other.
func (s *Storage) Purge(ctx context.Context, key *cachekey.CompactKey, purgeType storage.PurgeType) (bool, error) {
	if purgeType == storage.Eviction {
		return s.primary.Purge(ctx, key, purgeType)
	}

	var existed bool
	if x, err := s.primary.Purge(ctx, key, purgeType); err != nil {
		slog.Warn("primary tier purge failed during invalidation", "error", err)
	} else {
		existed = existed || x
	}
	if s.secondary != nil {
		if x, err := s.secondary.Purge(ctx, key, purgeType); err != nil {
			slog.Warn("secondary tier purge failed during invalidation", "error", err)
		} else {
			existed = existed || x
		}
	}
	return existed, nil
}

// UpdateMeta updates the primary tier, and best-effort mirrors the
// change to the secondary tier when one is configured.
func (s *Storage) UpdateMeta(ctx context.Context, key *cachekey.Key, meta *cachemeta.Meta) (bool, error) {
	updated, err := s.primary.UpdateMeta(ctx, key, meta)
	if err != nil {
		return false, err
	}
	if s.secondary != nil {
		if _, err := s.secondary.UpdateMeta(ctx, key, meta); err != nil {
			slog.Warn("secondary tier meta update failed", "error", err)
		}
	}
	return updated, nil
}
