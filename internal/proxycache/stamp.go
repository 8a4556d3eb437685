package proxycache

import "net/http"

// CacheStatusHeader is the response header every downstream response
// carries to report whether it was served from cache.
const CacheStatusHeader = "x-cdn-cache"

// StampMiss marks header as having required an origin fetch.
func StampMiss(header http.Header) {
	header.Set(CacheStatusHeader, "MISS")
}

// StampHit marks header as having been served entirely from cache.
func StampHit(header http.Header) {
	header.Set(CacheStatusHeader, "HIT")
}
