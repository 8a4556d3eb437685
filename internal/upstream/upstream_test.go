package upstream

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

func TestDoForwardsMethodAndHeadersStripsHopByHop(t *testing.T) {
	var gotPath, gotAuth, gotConnection string
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotConnection = r.Header.Get("Connection")
		w.Write([]byte("ok"))
	}))
	defer origin.Close()

	host, portStr, err := net.SplitHostPort(origin.Listener.Addr().String())
	if err != nil {
		t.Fatalf("SplitHostPort() error = %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("Atoi() error = %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "http://client.example/resource", nil)
	r.Header.Set("Authorization", "Bearer token")
	r.Header.Set("Connection", "keep-alive")

	c := New()
	resp, err := c.Do(r, "http", host, port)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer resp.Body.Close()

	if gotPath != "/resource" {
		t.Errorf("path = %q, want /resource", gotPath)
	}
	if gotAuth != "Bearer token" {
		t.Errorf("Authorization header not forwarded, got %q", gotAuth)
	}
	if gotConnection != "" {
		t.Errorf("expected hop-by-hop Connection header to be stripped, got %q", gotConnection)
	}
}

func TestCopyHeadersStripsHopByHop(t *testing.T) {
	resp := &http.Response{Header: http.Header{
		"Content-Type": {"text/plain"},
		"Connection":   {"keep-alive"},
		"Upgrade":      {"h2c"},
	}}
	rec := httptest.NewRecorder()

	CopyHeaders(rec, resp)

	if rec.Header().Get("Content-Type") != "text/plain" {
		t.Errorf("expected Content-Type to be forwarded")
	}
	if rec.Header().Get("Connection") != "" {
		t.Errorf("expected Connection to be stripped")
	}
	if rec.Header().Get("Upgrade") != "" {
		t.Errorf("expected Upgrade to be stripped")
	}
}
