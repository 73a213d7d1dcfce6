package client

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectFailed means the handshake frame was not a ready status.
	ErrConnectFailed = errors.New("client: connect failed")
	// ErrConnectTimedOut means no handshake completed within ConnectTimeout.
	ErrConnectTimedOut = errors.New("client: connect timed out")
	// ErrNotConnected is returned for requests issued outside the Ready state.
	ErrNotConnected = errors.New("client: not connected")
	// ErrRequestTimedOut means the response did not arrive in time. The
	// connection stays usable.
	ErrRequestTimedOut = errors.New("client: request timed out")
	// ErrDesynchronized means consecutive requests timed out with no
	// response in between, so replies can no longer be matched by order. The
	// connection is closed.
	ErrDesynchronized = errors.New("client: stream desynchronized")
	// ErrClosed is returned to requests cut short by Close.
	ErrClosed = errors.New("client: connection closed")
)

// TransportError wraps a socket-level failure.
type TransportError struct {
	Op  string // dial, handshake, read or write
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("client: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
