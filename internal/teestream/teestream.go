// Package teestream drives an origin response body to both the client
// and a storage.MissHandler concurrently, without buffering the full
// body in memory. It is the adaptation of the teacher daemon's
// internal/stream/tee.go pipe-based tee to the MissHandler contract,
// which accepts discrete WriteBody(data, isEOF) calls rather than an
// io.Writer: the pipe-plus-TeeReader plumbing is no longer needed, since
// there is no io.Writer to tee into. Caching is still best-effort: a
// WriteBody failure aborts the miss handler but never interrupts the
// bytes already flowing to the client.
package teestream

import (
	"context"
	"io"
	"log/slog"

	"github.com/ChrisWhealy/edge-cdn-store/internal/storage"
)

const chunkSize = 256 * 1024

// ToMissHandler copies src to dst, calling mh.WriteBody with every chunk
// read. If any WriteBody call fails, mh is aborted and no further
// WriteBody calls are attempted, but the copy to dst continues
// uninterrupted. On a full, error-free copy, mh.Finish is called and its
// result returned; on a short copy (client disconnect, origin error), a
// WriteBody failure or a failed Finish, mh is aborted and a zero result
// is returned.
func ToMissHandler(ctx context.Context, dst io.Writer, src io.Reader, mh storage.MissHandler) (storage.MissResult, int64, error) {
	buf := make([]byte, chunkSize)
	var written int64
	cacheFailed := false

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				mh.Abort()
				return storage.MissResult{}, written, err
			}
			written += int64(n)

			if !cacheFailed {
				isEOF := readErr == io.EOF
				if err := mh.WriteBody(ctx, buf[:n], isEOF); err != nil {
					slog.Debug("cache write failed, continuing client-only", "error", err)
					cacheFailed = true
					mh.Abort()
				}
			}
		}

		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			if !cacheFailed {
				mh.Abort()
			}
			return storage.MissResult{}, written, readErr
		}
	}

	if cacheFailed {
		return storage.MissResult{}, written, nil
	}

	result, err := mh.Finish(ctx)
	if err != nil {
		slog.Debug("cache publish failed", "error", err)
		mh.Abort()
		return storage.MissResult{}, written, nil
	}
	return result, written, nil
}
