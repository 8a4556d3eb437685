// Package cachemeta defines the opaque (meta_internal, meta_header) pair
// the storage layer persists alongside a cached body. The storage layer
// never interprets these bytes; only the proxy cache policy that produces
// and consumes a Meta cares about their shape.
package cachemeta

import (
	"encoding/json"
	"net/http"
	"time"
)

// Meta is the proxy's view of a cached response: its status line, its
// headers, and the freshness window that governs whether it is still
// servable without contacting the origin.
type Meta struct {
	StatusCode           int           `json:"status_code"`
	CreatedAt            time.Time     `json:"created_at"`
	ExpiresAt            time.Time     `json:"expires_at"`
	StaleWhileRevalidate time.Duration `json:"stale_while_revalidate"`
	StaleIfError         time.Duration `json:"stale_if_error"`
	Header               http.Header   `json:"-"`
}

// internalFields is everything except the header map, stored in the
// sidecar "meta" file. The header map is stored separately in "hdr" so
// that storage-layer code that only needs freshness metadata (none does
// today, but the split mirrors the Storage contract's meta/hdr split)
// never has to parse the (potentially large) header block.
type internalFields struct {
	StatusCode           int           `json:"status_code"`
	CreatedAt            time.Time     `json:"created_at"`
	ExpiresAt            time.Time     `json:"expires_at"`
	StaleWhileRevalidate time.Duration `json:"stale_while_revalidate"`
	StaleIfError         time.Duration `json:"stale_if_error"`
}

// Serialize splits m into the (meta_internal, meta_header) byte pair the
// Storage contract persists as "meta" and "hdr".
func Serialize(m *Meta) (metaInternal, metaHeader []byte, err error) {
	metaInternal, err = json.Marshal(internalFields{
		StatusCode:           m.StatusCode,
		CreatedAt:            m.CreatedAt,
		ExpiresAt:            m.ExpiresAt,
		StaleWhileRevalidate: m.StaleWhileRevalidate,
		StaleIfError:         m.StaleIfError,
	})
	if err != nil {
		return nil, nil, err
	}
	metaHeader, err = json.Marshal(m.Header)
	if err != nil {
		return nil, nil, err
	}
	return metaInternal, metaHeader, nil
}

// Deserialize reconstructs a Meta from the (meta_internal, meta_header)
// byte pair produced by Serialize.
func Deserialize(metaInternal, metaHeader []byte) (*Meta, error) {
	var fields internalFields
	if err := json.Unmarshal(metaInternal, &fields); err != nil {
		return nil, err
	}
	var hdr http.Header
	if err := json.Unmarshal(metaHeader, &hdr); err != nil {
		return nil, err
	}
	return &Meta{
		StatusCode:           fields.StatusCode,
		CreatedAt:            fields.CreatedAt,
		ExpiresAt:            fields.ExpiresAt,
		StaleWhileRevalidate: fields.StaleWhileRevalidate,
		StaleIfError:         fields.StaleIfError,
		Header:               hdr,
	}, nil
}

// Fresh reports whether m is still within its freshness window at t.
func (m *Meta) Fresh(t time.Time) bool {
	return t.Before(m.ExpiresAt)
}
