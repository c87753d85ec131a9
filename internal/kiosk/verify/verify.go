// Package verify submits captured frames to the verification server and
// returns its decision. Clients never retry and never cache.
package verify

import (
	"fmt"
)

// Decision is the server's answer for one frame.
type Decision struct {
	Granted bool
}

// TransportError covers network and protocol failures, including non-2xx
// HTTP statuses. StatusCode is zero when no HTTP response was received.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		if e.Err != nil {
			return fmt.Sprintf("verify %s: status %d: %v", e.Op, e.StatusCode, e.Err)
		}
		return fmt.Sprintf("verify %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("verify %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError means the server answered but "granted" was
// missing or not a boolean.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return "verify: malformed response: " + e.Reason
}
