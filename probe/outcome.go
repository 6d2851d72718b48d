// Package probe drives single DHCP request/reply exchanges over a
// datagram socket and composes them into the DORA sequence.
package probe

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when the retry budget is exhausted without
	// a correlated reply.
	ErrTimeout = errors.New("timed out waiting for a reply")

	// ErrCanceled is returned when an external interrupt ends a wait.
	// Distinct from ErrTimeout so callers can tell a silent server from
	// an impatient operator.
	ErrCanceled = errors.New("canceled")

	// ErrNak is returned by the DORA sequence when the server answers
	// the REQUEST with a NAK.
	ErrNak = errors.New("server answered with NAK")
)

// TransportError wraps socket level failures: bind, send, multicast
// join. These are not retried; Hint carries actionable context such as
// the capability required for privileged ports.
type TransportError struct {
	Op   string
	Err  error
	Hint string
}

func (e *TransportError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Hint)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
