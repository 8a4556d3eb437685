package diskstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ChrisWhealy/edge-cdn-store/internal/cacheerr"
	"github.com/ChrisWhealy/edge-cdn-store/internal/metrics"
	"github.com/ChrisWhealy/edge-cdn-store/internal/storage"
)

// missHandler accepts body bytes during an origin fetch and atomically
// publishes them as a new object on Finish. Its temporary file name
// embeds pid, a nanosecond timestamp and a random UUID, so two concurrent
// refills for the same key never collide: each writes to a distinct
// temporary, and the final rename is last-writer-wins.
type missHandler struct {
	tmpPath string
	dir     string
	body    string
	meta    string
	hdr     string

	tmpBytesWritten int64

	metaInternal []byte
	metaHeader   []byte

	metrics *metrics.Cache

	finished bool
	aborted  bool
}

// createTmp creates (or truncates) the temporary file a new miss handler
// will write to, best-effort creating its parent directory first.
func createTmp(dir, hash string) (string, error) {
	_ = os.MkdirAll(dir, 0o755)

	name := fmt.Sprintf("%s.tmp-%d-%d-%s", hash, os.Getpid(), time.Now().UnixNano(), uuid.NewString())
	tmpPath := filepath.Join(dir, name)

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", cacheerr.Internal("create tmp cache file", err)
	}
	if err := f.Close(); err != nil {
		return "", cacheerr.Internal("close tmp cache file", err)
	}
	return tmpPath, nil
}

func (m *missHandler) WriteBody(_ context.Context, data []byte, isEOF bool) error {
	f, err := os.OpenFile(m.tmpPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return cacheerr.Internal("open tmp cache file for append", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return cacheerr.Internal("write tmp cache file", err)
	}
	m.tmpBytesWritten += int64(len(data))

	if isEOF {
		if err := f.Sync(); err != nil {
			return cacheerr.Internal("flush tmp cache file", err)
		}
	}
	return nil
}

func (m *missHandler) Finish(_ context.Context) (storage.MissResult, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return storage.MissResult{}, cacheerr.Internal("create cache directory", err)
	}

	if err := os.Rename(m.tmpPath, m.body); err != nil {
		if copyErr := copyAcrossDevices(m.tmpPath, m.body); copyErr != nil {
			return storage.MissResult{}, cacheerr.Internal("publish cache body", copyErr)
		}
	}

	if err := os.WriteFile(m.meta, m.metaInternal, 0o644); err != nil {
		return storage.MissResult{}, cacheerr.Internal("write cache meta", err)
	}
	if err := os.WriteFile(m.hdr, m.metaHeader, 0o644); err != nil {
		return storage.MissResult{}, cacheerr.Internal("write cache hdr", err)
	}

	m.metrics.Inserts.Inc()
	m.metrics.SizeBytes.Add(float64(m.tmpBytesWritten))
	m.finished = true

	return storage.MissResult{Kind: storage.Created, CreatedBytes: m.tmpBytesWritten}, nil
}

// Abort discards the temporary file. It is safe to call unconditionally
// in a defer: a no-op once Finish has succeeded, and idempotent.
func (m *missHandler) Abort() {
	if m.finished || m.aborted {
		return
	}
	m.aborted = true
	_ = os.Remove(m.tmpPath)
}

// copyAcrossDevices is the fallback publication path when rename fails,
// typically EXDEV when the cache root spans a filesystem boundary
// different from the shard directory (common under container overlays).
func copyAcrossDevices(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
