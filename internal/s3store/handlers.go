package s3store

import (
	"bytes"
	"context"
	"io"

	"github.com/ChrisWhealy/edge-cdn-store/internal/cacheerr"
	"github.com/ChrisWhealy/edge-cdn-store/internal/metrics"
	"github.com/ChrisWhealy/edge-cdn-store/internal/storage"
)

// hitHandler streams an S3 GetObject body. Unlike diskstore's handler, a
// range Seek cannot be satisfied by repositioning an already-open
// reader, so CanSeek reports false and Seek is rejected: a range request
// served from this tier gets the full body.
type hitHandler struct {
	body    io.ReadCloser
	size    int64
	pos     int64
	metrics *metrics.Cache
}

func newHitHandler(body io.ReadCloser, size int64, m *metrics.Cache) *hitHandler {
	return &hitHandler{body: body, size: size, metrics: m}
}

func (h *hitHandler) ReadBody(_ context.Context) ([]byte, error) {
	buf := make([]byte, 256*1024)
	n, err := h.body.Read(buf)
	if n > 0 {
		h.pos += int64(n)
		return buf[:n], nil
	}
	if err != nil && err != io.EOF {
		return nil, cacheerr.Internal("read s3 body", err)
	}
	return nil, nil
}

func (h *hitHandler) CanSeek() bool { return false }

func (h *hitHandler) Seek(int64, *int64) error {
	return cacheerr.Internal("s3 tier does not support range seeks", nil)
}

func (h *hitHandler) Finish(_ context.Context) error {
	h.metrics.ServedHits.Inc()
	return h.body.Close()
}

func (h *hitHandler) Weight() int64 { return h.size }

// missHandler buffers the full body in memory, then uploads all three
// objects in Finish. See GetMissHandler's doc comment for why buffering,
// not streaming, is the chosen strategy for this tier.
type missHandler struct {
	store *S3Store
	hash  string

	buf bytes.Buffer

	metaInternal []byte
	metaHeader   []byte

	finished bool
}

func (m *missHandler) WriteBody(_ context.Context, data []byte, _ bool) error {
	m.buf.Write(data)
	return nil
}

func (m *missHandler) Finish(ctx context.Context) (storage.MissResult, error) {
	body := m.buf.Bytes()
	if err := m.store.upload(ctx, m.hash, body, m.metaInternal, m.metaHeader); err != nil {
		return storage.MissResult{}, cacheerr.Internal("publish s3 object", err)
	}
	m.finished = true
	return storage.MissResult{Kind: storage.Created, CreatedBytes: int64(len(body))}, nil
}

// Abort only drops the buffer; it deletes nothing from S3. Finish uploads
// the body before the meta sidecars, so a Finish that fails partway can
// leave a body object without its meta, which Lookup treats as a miss.
func (m *missHandler) Abort() {
	m.buf.Reset()
}
