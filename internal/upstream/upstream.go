// Package upstream forwards a client request to the origin selected by
// the proxy cache policy. Adapted from the teacher daemon's
// internal/proxy/upstream.go, generalized from a single fixed registry
// host to an arbitrary per-request scheme+host+port.
package upstream

import (
	"fmt"
	"net"
	"net/http"
	"time"
)

// Client forwards requests to whatever origin the caller resolves per
// request; it carries no notion of a fixed upstream host.
type Client struct {
	HTTP *http.Client
}

// New builds a Client with the teacher's connection-pooling transport
// settings, generalized to dial arbitrary origins rather than a single
// registry host.
func New() *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
	}
	return &Client{HTTP: &http.Client{
		Transport: transport,
		// The proxy, not net/http, decides whether a redirect response is
		// cacheable and how it is relayed, so redirects are never followed
		// automatically here.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

// hopByHop lists headers that must not be forwarded across a proxy hop
// in either direction.
var hopByHop = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

// Do builds and sends an upstream request for the resolved origin,
// forwarding the client's method, body and headers except hop-by-hop
// ones, plus Range/If-Range so partial-content requests reach the origin
// unchanged.
func (c *Client) Do(r *http.Request, scheme, host string, port int) (*http.Response, error) {
	url := fmt.Sprintf("%s://%s:%d%s", scheme, host, port, r.URL.RequestURI())

	req, err := http.NewRequestWithContext(r.Context(), r.Method, url, r.Body)
	if err != nil {
		return nil, fmt.Errorf("creating upstream request: %w", err)
	}
	req.Host = host

	for key, values := range r.Header {
		if _, hop := hopByHop[http.CanonicalHeaderKey(key)]; hop {
			continue
		}
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	return c.HTTP.Do(req)
}

// CopyHeaders forwards resp's headers onto w, excluding hop-by-hop ones.
func CopyHeaders(w http.ResponseWriter, resp *http.Response) {
	for key, values := range resp.Header {
		if _, hop := hopByHop[http.CanonicalHeaderKey(key)]; hop {
			continue
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
}
