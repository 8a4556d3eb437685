// Package cachestats persists a small JSON snapshot of cache size across
// restarts, so the size gauge starts from the persisted value instead of
// zero after a restart. The eviction tracker is not seeded from it: it
// starts empty and counts only objects admitted by the running process.
// The sidecar shape
// is also what the admin /stats endpoint serves, so the two must stay
// in lockstep.
package cachestats

import (
	"encoding/json"
	"os"
	"time"

	"github.com/ChrisWhealy/edge-cdn-store/internal/cacheerr"
)

// Uptime mirrors the two-field duration shape of the sidecar file:
// whole seconds plus the sub-second remainder in nanoseconds.
type Uptime struct {
	Secs  int64 `json:"secs"`
	Nanos int32 `json:"nanos"`
}

// DurationToUptime converts a time.Duration to the sidecar's Uptime shape.
func DurationToUptime(d time.Duration) Uptime {
	return Uptime{Secs: int64(d / time.Second), Nanos: int32(d % time.Second)}
}

// Duration converts back to a time.Duration.
func (u Uptime) Duration() time.Duration {
	return time.Duration(u.Secs)*time.Second + time.Duration(u.Nanos)
}

// Snapshot is the sidecar file's shape: $ROOT/_cache_state.json.
type Snapshot struct {
	Root             string    `json:"root"`
	StartTime        time.Time `json:"start_time"`
	Uptime           Uptime    `json:"uptime"`
	SizeBytesCurrent int64     `json:"size_bytes_current"`
	SizeBytesMax     int64     `json:"size_bytes_max"`
}

// Load reads the snapshot at path. A missing file is not an error: it
// returns a zero Snapshot, the correct starting point for a cold cache.
func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, nil
		}
		return Snapshot{}, cacheerr.Internal("read stats sidecar", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, cacheerr.Internal("decode stats sidecar", err)
	}
	return snap, nil
}

// Save writes snap to path, overwriting any previous snapshot.
func Save(path string, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return cacheerr.Internal("encode stats sidecar", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return cacheerr.Internal("write stats sidecar", err)
	}
	return nil
}
