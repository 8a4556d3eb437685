// Package proxycache implements the proxy-level cache policy: authority
// parsing, scheme resolution, the self-reference guard, cache key
// derivation, the cacheability decision and response stamping. Adapted
// from the teacher daemon's internal/proxy/proxy.go and upstream.go,
// which parse Host and build the upstream request for a single fixed
// registry origin; generalized here to an arbitrary per-request origin.
package proxycache

import (
	"strconv"
	"strings"

	"github.com/ChrisWhealy/edge-cdn-store/internal/cacheerr"
)

// Authority is a parsed Host header: host[:port], with IPv6 literals
// unbracketed for storage and matching.
type Authority struct {
	Host string
	Port string // empty if not explicit in the header
}

// ParseAuthority parses a Host header value. A single trailing "/" is
// stripped. Empty input, an embedded "/", unbalanced IPv6 brackets, or
// embedded whitespace are rejected as malformed.
func ParseAuthority(host string) (Authority, error) {
	if host == "" {
		return Authority{}, cacheerr.BadRequest("empty Host header")
	}
	if strings.ContainsAny(host, " \t\r\n") {
		return Authority{}, cacheerr.BadRequest("whitespace in Host header")
	}
	host = strings.TrimSuffix(host, "/")
	if host == "" {
		return Authority{}, cacheerr.BadRequest("empty Host header")
	}

	if strings.HasPrefix(host, "[") {
		end := strings.IndexByte(host, ']')
		if end < 0 {
			return Authority{}, cacheerr.BadRequest("unterminated IPv6 literal in Host header")
		}
		ipLiteral := host[1:end]
		rest := host[end+1:]

		if rest == "" {
			return Authority{Host: ipLiteral}, nil
		}
		if !strings.HasPrefix(rest, ":") {
			return Authority{}, cacheerr.BadRequest("malformed Host header after IPv6 literal")
		}
		port := rest[1:]
		if !isDigits(port) {
			return Authority{}, cacheerr.BadRequest("non-numeric port in Host header")
		}
		return Authority{Host: ipLiteral, Port: port}, nil
	}

	if strings.ContainsAny(host, "[]") {
		return Authority{}, cacheerr.BadRequest("unbalanced brackets in Host header")
	}
	if strings.Contains(host, "/") {
		return Authority{}, cacheerr.BadRequest("slash in Host header authority")
	}

	if idx := strings.LastIndexByte(host, ':'); idx >= 0 && !strings.Contains(host[:idx], ":") {
		port := host[idx+1:]
		if !isDigits(port) {
			return Authority{}, cacheerr.BadRequest("non-numeric port in Host header")
		}
		return Authority{Host: host[:idx], Port: port}, nil
	}

	// Bare IPv6 (no brackets, no port) or a plain hostname: accept as-is.
	return Authority{Host: host}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// PortOrDefault resolves the authority's explicit port, or the scheme's
// default (80/443) when none was given.
func (a Authority) PortOrDefault(scheme string) string {
	if a.Port != "" {
		return a.Port
	}
	if scheme == "https" {
		return "443"
	}
	return "80"
}

// PortInt parses PortOrDefault as an integer; it cannot fail for a
// validated Authority produced by ParseAuthority.
func (a Authority) PortInt(scheme string) int {
	p, err := strconv.Atoi(a.PortOrDefault(scheme))
	if err != nil {
		return 80
	}
	return p
}
