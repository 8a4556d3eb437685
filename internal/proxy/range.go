package proxy

import (
	"strconv"
	"strings"
)

// byteRange is a parsed single-range "bytes=start-end" request. end is
// nil for an open-ended range ("bytes=5-").
type byteRange struct {
	start int64
	end   *int64
}

// parseRangeHeader parses the single-range form of a Range header. Multi-
// range requests ("bytes=0-10,20-30") and suffix ranges ("bytes=-500")
// are not supported by the cache hit path and are treated as absent,
// falling back to serving the full object.
func parseRangeHeader(header string) (byteRange, bool) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return byteRange{}, false
	}
	spec := header[len(prefix):]
	if strings.Contains(spec, ",") {
		return byteRange{}, false
	}

	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 || parts[0] == "" {
		return byteRange{}, false
	}

	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || start < 0 {
		return byteRange{}, false
	}

	if parts[1] == "" {
		return byteRange{start: start}, true
	}

	end, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || end < start {
		return byteRange{}, false
	}
	// Range headers are inclusive; the HitHandler contract is exclusive on
	// the end, so the seek target is end+1.
	inclusiveEnd := end + 1
	return byteRange{start: start, end: &inclusiveEnd}, true
}
