package ami

import "errors"

// Sentinel errors surfaced by the client. Callers should match against
// these with errors.Is rather than comparing error strings.
var (
	// ErrConfig is returned for an empty hostname or a zero/out-of-range port.
	ErrConfig = errors.New("ami: invalid configuration")

	// ErrConnect is returned when DNS resolution or the connect syscall fails.
	ErrConnect = errors.New("ami: connect failed")

	// ErrIO is returned for a read/write/poll failure on an otherwise
	// healthy connection.
	ErrIO = errors.New("ami: socket io error")

	// ErrTimeout is returned by InvokeWithTimeout when no response arrives
	// in time. It is delivered to the waiter itself, not raised directly,
	// so exactly one path ever resolves a given Invoke call.
	ErrTimeout = errors.New("ami: response timeout")

	// ErrClosed is delivered to any outstanding Invoke/InvokeWithTimeout
	// call when the Connection is closed with requests still in flight.
	ErrClosed = errors.New("ami: connection closed")
)
