package diskstore

import (
	"context"
	"io"
	"os"

	"github.com/ChrisWhealy/edge-cdn-store/internal/cacheerr"
	"github.com/ChrisWhealy/edge-cdn-store/internal/metrics"
)

// defaultChunkSize bounds how much a single ReadBody call pulls off disk.
const defaultChunkSize = 256 * 1024

// hitHandler streams a cached body from an open file descriptor. Seek
// only records intent; the actual file repositioning happens lazily on
// the next ReadBody, because the surrounding proxy framework expects Seek
// itself to never block.
type hitHandler struct {
	file        *os.File
	totalLen    int64
	rangeStart  int64
	rangeEnd    int64
	pos         int64
	pendingSeek bool
	chunkSize   int64
	metrics     *metrics.Cache
}

func newHitHandler(file *os.File, totalLen int64, m *metrics.Cache) *hitHandler {
	return &hitHandler{
		file:      file,
		totalLen:  totalLen,
		rangeEnd:  totalLen,
		chunkSize: defaultChunkSize,
		metrics:   m,
	}
}

func (h *hitHandler) ReadBody(_ context.Context) ([]byte, error) {
	if h.pendingSeek {
		if _, err := h.file.Seek(h.pos, io.SeekStart); err != nil {
			return nil, cacheerr.Internal("seek cached body", err)
		}
		h.pendingSeek = false
	}

	if h.pos >= h.rangeEnd {
		return nil, nil
	}

	want := h.rangeEnd - h.pos
	if want > h.chunkSize {
		want = h.chunkSize
	}

	buf := make([]byte, want)
	n, err := h.file.Read(buf)
	if err != nil && err != io.EOF {
		return nil, cacheerr.Internal("read cached body", err)
	}
	if n == 0 {
		h.pos = h.rangeEnd
		return nil, nil
	}

	h.pos += int64(n)
	return buf[:n], nil
}

func (h *hitHandler) CanSeek() bool { return true }

func (h *hitHandler) Seek(start int64, end *int64) error {
	e := h.totalLen
	if end != nil {
		e = *end
	}
	if start > e || e > h.totalLen {
		return cacheerr.Internal("invalid seek range", nil)
	}
	h.rangeStart = start
	h.rangeEnd = e
	h.pos = start
	h.pendingSeek = true
	return nil
}

func (h *hitHandler) Finish(_ context.Context) error {
	h.metrics.ServedHits.Inc()
	return h.file.Close()
}

func (h *hitHandler) Weight() int64 { return h.totalLen }
