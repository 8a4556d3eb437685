package proxycache

import (
	"net/http"
	"strings"
	"time"

	"github.com/ChrisWhealy/edge-cdn-store/internal/cachekey"
	"github.com/ChrisWhealy/edge-cdn-store/internal/cachemeta"
)

// fixedTTL is the single admitted-response freshness window the core
// uses in place of full RFC 9111 freshness negotiation.
const fixedTTL = time.Hour

// SelfReference reports whether authority matches one of this process's
// own listener addresses, in which case caching must be disabled for the
// request to avoid infinite recursion when the proxy is its own origin.
func SelfReference(authority Authority, scheme string, ownListeners []string) bool {
	candidate := authority.Host + ":" + authority.PortOrDefault(scheme)
	for _, l := range ownListeners {
		if strings.EqualFold(l, candidate) || strings.EqualFold(l, authority.Host) {
			return true
		}
	}
	return false
}

// DeriveKey builds the cache key for a request: namespace and user tag
// are always empty for this policy, and primary is the lowercased
// scheme+host+path tuple.
func DeriveKey(scheme, host, pathAndQuery string) *cachekey.Key {
	if pathAndQuery == "" {
		pathAndQuery = "/"
	}
	primary := cachekey.Primary(strings.ToLower(scheme), strings.ToLower(host), pathAndQuery)
	return cachekey.New(nil, primary, "")
}

// Decision is the outcome of evaluating a response against the
// cacheability policy.
type Decision struct {
	Cacheable bool
	Reason    string // set when !Cacheable
	Meta      *cachemeta.Meta
}

// Evaluate implements the cacheability decision: non-2xx responses and
// responses carrying Cache-Control: no-store are uncacheable; everything
// else is admitted with a fixed one-hour TTL and no stale-serving grace.
func Evaluate(statusCode int, header http.Header) Decision {
	if statusCode < 200 || statusCode >= 300 {
		return Decision{Cacheable: false, Reason: "non-2xx response"}
	}
	if hasNoStore(header.Get("Cache-Control")) {
		return Decision{Cacheable: false, Reason: "origin marked not cacheable"}
	}

	now := time.Now()
	return Decision{
		Cacheable: true,
		Meta: &cachemeta.Meta{
			StatusCode:           statusCode,
			CreatedAt:            now,
			ExpiresAt:            now.Add(fixedTTL),
			StaleWhileRevalidate: 0,
			StaleIfError:         0,
			Header:               header.Clone(),
		},
	}
}

func hasNoStore(cacheControl string) bool {
	for _, directive := range strings.Split(cacheControl, ",") {
		if strings.EqualFold(strings.TrimSpace(directive), "no-store") {
			return true
		}
	}
	return false
}
