// Package cacheerr defines the error kinds the cache core surfaces to its
// callers, matching the taxonomy of the original pingora-based daemon:
// BadRequest, ConnectError and InternalError propagate to the client as
// HTTP status codes; Custom/OriginNotCache are soft "do not admit" signals,
// never surfaced as errors.
package cacheerr

import (
	"errors"
	"fmt"
)

// Kind classifies a cache-layer failure.
type Kind int

const (
	// KindInternal covers disk I/O failures: directory creation, tmp file
	// creation, body writes, publication, hit-handler seek/read, meta
	// update writes. Surfaced as 5xx; never poisons later requests.
	KindInternal Kind = iota
	// KindBadRequest covers a malformed Host header. Surfaced as 400.
	KindBadRequest
	// KindConnect covers a missing Host header or unreachable upstream.
	KindConnect
)

// Error wraps an underlying cause with a Kind so HTTP edges can map it to a
// status code via errors.As, the way the teacher's s3.go uses errors.As
// against a typed smithy response error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Internal wraps err as a KindInternal Error.
func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// BadRequest builds a KindBadRequest Error.
func BadRequest(msg string) error {
	return &Error{Kind: KindBadRequest, Msg: msg}
}

// Connect builds a KindConnect Error.
func Connect(msg string) error {
	return &Error{Kind: KindConnect, Msg: msg}
}

// StatusCode maps err to the HTTP status code it should produce at the
// proxy edge. Errors that aren't *Error default to 500.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindBadRequest:
			return 400
		case KindConnect:
			return 502
		default:
			return 500
		}
	}
	return 500
}
