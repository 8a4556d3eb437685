package tiered

import (
	"context"
	"log/slog"

	"github.com/ChrisWhealy/edge-cdn-store/internal/storage"
)

// fanOutHandler writes every chunk to both tiers' handlers. The primary
// tier's result is authoritative; a secondary failure is logged and the
// secondary handler is aborted, but the write as a whole still succeeds
// through the primary.
type fanOutHandler struct {
	primary   storage.MissHandler
	secondary storage.MissHandler

	secondaryFailed bool
}

func (f *fanOutHandler) WriteBody(ctx context.Context, data []byte, isEOF bool) error {
	if err := f.primary.WriteBody(ctx, data, isEOF); err != nil {
		return err
	}
	if !f.secondaryFailed {
		if err := f.secondary.WriteBody(ctx, data, isEOF); err != nil {
			slog.Warn("secondary tier write failed, continuing primary-only", "error", err)
			f.secondaryFailed = true
			f.secondary.Abort()
		}
	}
	return nil
}

func (f *fanOutHandler) Finish(ctx context.Context) (storage.MissResult, error) {
	result, err := f.primary.Finish(ctx)
	if err != nil {
		if !f.secondaryFailed {
			f.secondary.Abort()
		}
		return storage.MissResult{}, err
	}

	if !f.secondaryFailed {
		if _, err := f.secondary.Finish(ctx); err != nil {
			slog.Warn("secondary tier publish failed", "error", err)
		}
	}

	return result, nil
}

func (f *fanOutHandler) Abort() {
	f.primary.Abort()
	if !f.secondaryFailed {
		f.secondary.Abort()
	}
}
