package cachemeta

import (
	"net/http"
	"testing"
	"time"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	m := &Meta{
		StatusCode:           200,
		CreatedAt:            now,
		ExpiresAt:            now.Add(time.Hour),
		StaleWhileRevalidate: 30 * time.Second,
		StaleIfError:         time.Minute,
		Header: http.Header{
			"Content-Type":   []string{"text/plain"},
			"Content-Length": []string{"42"},
		},
	}

	metaInternal, metaHeader, err := Serialize(m)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	got, err := Deserialize(metaInternal, metaHeader)
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}

	if got.StatusCode != m.StatusCode {
		t.Errorf("StatusCode = %d, want %d", got.StatusCode, m.StatusCode)
	}
	if !got.CreatedAt.Equal(m.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, m.CreatedAt)
	}
	if !got.ExpiresAt.Equal(m.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, m.ExpiresAt)
	}
	if got.StaleWhileRevalidate != m.StaleWhileRevalidate {
		t.Errorf("StaleWhileRevalidate = %v, want %v", got.StaleWhileRevalidate, m.StaleWhileRevalidate)
	}
	if got.Header.Get("Content-Type") != "text/plain" {
		t.Errorf("Header Content-Type = %q, want %q", got.Header.Get("Content-Type"), "text/plain")
	}
}

func TestFresh(t *testing.T) {
	now := time.Now()
	m := &Meta{ExpiresAt: now.Add(time.Minute)}

	if !m.Fresh(now) {
		t.Errorf("expected Fresh at now, object expires in a minute")
	}
	if m.Fresh(now.Add(2 * time.Minute)) {
		t.Errorf("expected stale after expiry")
	}
}
