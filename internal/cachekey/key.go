// Package cachekey builds and renders the cache key used throughout the
// storage layer: a (namespace, primary, user tag, variance, extensions)
// tuple plus its 16-byte "combined hash" digest, rendered as 32 uppercase
// hex characters and used verbatim as the on-disk object name.
package cachekey

import (
	"crypto/md5" //nolint:gosec // content-addressing digest, not a security boundary
	"encoding/hex"
	"strings"
)

// Key is the full cache key attached to a request by the proxy cache
// policy. Namespace and Extensions are rarely used by this daemon (it
// derives a single primary string per request) but are carried so the
// storage contract can support callers that need them.
type Key struct {
	Namespace  []byte
	Primary    []byte
	UserTag    string
	Variance   []byte // nil when the response does not vary
	Extensions map[string]string
}

// New builds a Key from the proxy's namespace/primary/user-tag triple.
func New(namespace []byte, primary []byte, userTag string) *Key {
	return &Key{Namespace: namespace, Primary: primary, UserTag: userTag}
}

// Combined returns the 32-character uppercase hex digest that is the
// canonical filesystem name for the object this key addresses.
func (k *Key) Combined() string {
	return combinedHash(k.Primary, k.UserTag, k.Variance)
}

// Compact projects Key down to the narrower form eviction and purge use,
// which need neither namespace nor extensions.
func (k *Key) Compact() *CompactKey {
	return &CompactKey{Primary: k.Primary, UserTag: k.UserTag, Variance: k.Variance}
}

// CompactKey is the narrower projection of Key used by eviction and purge.
type CompactKey struct {
	Primary  []byte
	UserTag  string
	Variance []byte
}

// Combined returns the same 32-character hex digest Key.Combined would
// produce for the equivalent full key.
func (c *CompactKey) Combined() string {
	return combinedHash(c.Primary, c.UserTag, c.Variance)
}

func combinedHash(primary []byte, userTag string, variance []byte) string {
	h := md5.New() //nolint:gosec
	h.Write(primary)
	if userTag != "" {
		h.Write([]byte{0})
		h.Write([]byte(userTag))
	}
	if len(variance) > 0 {
		h.Write([]byte{0})
		h.Write(variance)
	}
	sum := h.Sum(nil)
	return strings.ToUpper(hex.EncodeToString(sum))
}

// Primary builds the canonical "{scheme}://{host}{path_and_query}" byte
// string that the proxy cache policy uses as a cache key's primary bytes.
// host is lower-cased by the caller before this is invoked.
func Primary(scheme, hostLower, pathAndQuery string) []byte {
	if pathAndQuery == "" {
		pathAndQuery = "/"
	}
	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(hostLower)
	b.WriteString(pathAndQuery)
	return []byte(b.String())
}
