// Package proxy implements the forward-reverse proxy's request handler:
// per request it resolves the origin from the Host header, applies the
// proxy cache policy, and either serves a cache hit or streams an
// origin fetch to the client while teeing it into the cache. Adapted
// from the teacher daemon's internal/proxy/proxy.go, which does the
// same dispatch for a single fixed OCI registry origin; generalized
// here to an arbitrary per-request origin chosen by the Host header.
package proxy

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ChrisWhealy/edge-cdn-store/internal/cacheerr"
	"github.com/ChrisWhealy/edge-cdn-store/internal/cachekey"
	"github.com/ChrisWhealy/edge-cdn-store/internal/cachemeta"
	"github.com/ChrisWhealy/edge-cdn-store/internal/eviction"
	"github.com/ChrisWhealy/edge-cdn-store/internal/proxycache"
	"github.com/ChrisWhealy/edge-cdn-store/internal/storage"
	"github.com/ChrisWhealy/edge-cdn-store/internal/teestream"
	"github.com/ChrisWhealy/edge-cdn-store/internal/upstream"
)

// Handler is the main entry point for both the plaintext and TLS
// listeners; ListenerIsTLS distinguishes which one a given instance
// backs, feeding the scheme-resolution heuristic.
type Handler struct {
	Store         storage.Storage
	Upstream      *upstream.Client
	Eviction      *eviction.LRU
	OwnListeners  []string
	ListenerIsTLS bool
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	authority, err := proxycache.ParseAuthority(r.Host)
	if err != nil {
		http.Error(w, err.Error(), cacheerr.StatusCode(err))
		return
	}

	scheme := proxycache.ResolveScheme(r.Header.Get(":scheme"), r.Header.Get("X-Forwarded-Proto"), h.ListenerIsTLS, authority)
	port := authority.PortInt(scheme)

	if proxycache.SelfReference(authority, scheme, h.OwnListeners) {
		h.fetchAndForward(w, r, scheme, authority.Host, port, nil)
		return
	}

	key := proxycache.DeriveKey(scheme, authority.Host, r.URL.RequestURI())

	meta, hit, err := h.Store.Lookup(r.Context(), key)
	if err != nil {
		slog.Error("cache lookup failed", "error", err)
	}
	if hit != nil {
		h.Eviction.Touch(key.Compact())
		h.serveHit(w, r, meta, hit)
		return
	}

	h.fetchAndForward(w, r, scheme, authority.Host, port, key)
}

// serveHit streams a cached object to the client, honoring a
// single-range Range header via the handler's deferred-seek contract.
func (h *Handler) serveHit(w http.ResponseWriter, r *http.Request, meta *cachemeta.Meta, hit storage.HitHandler) {
	for k, vs := range meta.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}

	total := hit.Weight()
	status := http.StatusOK

	if rng, ok := parseRangeHeader(r.Header.Get("Range")); ok && hit.CanSeek() {
		end := total
		if rng.end != nil {
			end = *rng.end
		}
		if err := hit.Seek(rng.start, &end); err == nil {
			status = http.StatusPartialContent
			w.Header().Set("Content-Range", "bytes "+strconv.FormatInt(rng.start, 10)+"-"+strconv.FormatInt(end-1, 10)+"/"+strconv.FormatInt(total, 10))
			w.Header().Set("Content-Length", strconv.FormatInt(end-rng.start, 10))
		}
	} else {
		w.Header().Set("Content-Length", strconv.FormatInt(total, 10))
	}

	proxycache.StampHit(w.Header())
	w.WriteHeader(status)

	for {
		chunk, err := hit.ReadBody(r.Context())
		if err != nil {
			slog.Debug("error reading cached body", "error", err)
			break
		}
		if chunk == nil {
			break
		}
		if _, err := w.Write(chunk); err != nil {
			slog.Debug("client disconnected during hit", "error", err)
			break
		}
	}

	if err := hit.Finish(r.Context()); err != nil {
		slog.Debug("error finishing hit handler", "error", err)
	}
}

// fetchAndForward fetches from the resolved origin and relays the
// response to the client. key is nil when caching is disabled for this
// request (the self-reference guard tripped); otherwise a cacheable
// response is teed into the store via the miss handler while streaming
// to the client.
func (h *Handler) fetchAndForward(w http.ResponseWriter, r *http.Request, scheme, host string, port int, key *cachekey.Key) {
	resp, err := h.Upstream.Do(r, scheme, host, port)
	if err != nil {
		slog.Error("upstream fetch failed", "host", host, "error", err)
		http.Error(w, "upstream error", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	upstream.CopyHeaders(w, resp)

	if key == nil {
		proxycache.StampMiss(w.Header())
		w.WriteHeader(resp.StatusCode)
		h.copyToClient(w, resp)
		return
	}

	decision := proxycache.Evaluate(resp.StatusCode, resp.Header)
	if !decision.Cacheable {
		slog.Debug("response not cacheable", "host", host, "path", r.URL.Path, "reason", decision.Reason)
		proxycache.StampMiss(w.Header())
		w.WriteHeader(resp.StatusCode)
		h.copyToClient(w, resp)
		return
	}

	mh, err := h.Store.GetMissHandler(r.Context(), key, decision.Meta)
	if err != nil {
		slog.Warn("miss handler unavailable, serving without caching", "error", err)
		proxycache.StampMiss(w.Header())
		w.WriteHeader(resp.StatusCode)
		h.copyToClient(w, resp)
		return
	}

	proxycache.StampMiss(w.Header())
	w.WriteHeader(resp.StatusCode)

	result, _, err := teestream.ToMissHandler(r.Context(), w, resp.Body, mh)
	if err != nil {
		slog.Debug("error streaming origin response", "error", err)
		return
	}
	if result.Kind == storage.Created {
		h.Eviction.Admit(r.Context(), key.Compact(), result.CreatedBytes)
	}
}

func (h *Handler) copyToClient(w http.ResponseWriter, resp *http.Response) {
	buf := make([]byte, 256*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}
