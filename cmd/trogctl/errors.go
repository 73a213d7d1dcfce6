package main

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/d2verb/trogctl/internal/client"
	"github.com/d2verb/trogctl/internal/protocol"
)

// Exit codes for CLI commands.
const (
	exitSuccess        = 0
	exitError          = 1
	exitUnreachable    = 2
	exitNotFound       = 3
	exitTimedOut       = 4
	exitNotReady       = 5
	exitConnectionLost = 6
)

// ExitError represents an error that should cause the process to exit with a specific code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

func errUnreachable(addr string) *ExitError {
	return &ExitError{
		Code:    exitUnreachable,
		Message: fmt.Sprintf("Cannot reach trogdord at %s.\nIs the daemon running?", addr),
	}
}

// errDialFailed is for dial failures that are not a refusal, such as a
// host name that does not resolve.
func errDialFailed(addr string, err error) *ExitError {
	return &ExitError{
		Code:    exitUnreachable,
		Message: fmt.Sprintf("Cannot reach trogdord at %s: %v", addr, err),
	}
}

func errNotReady(addr string) *ExitError {
	return &ExitError{
		Code:    exitNotReady,
		Message: fmt.Sprintf("trogdord at %s is not ready.\nIt answered the connection without a ready status.", addr),
	}
}

func errConnectionLost(addr string) *ExitError {
	return &ExitError{
		Code:    exitConnectionLost,
		Message: fmt.Sprintf("Connection to trogdord at %s was lost.\nThe request may or may not have been applied.", addr),
	}
}

func errNotFound(msg string) *ExitError {
	if msg == "" {
		msg = "not found"
	}
	return &ExitError{
		Code:    exitNotFound,
		Message: "Not found: " + msg,
	}
}

func errTimedOut() *ExitError {
	return &ExitError{
		Code:    exitTimedOut,
		Message: "Request timed out.\nRetry with a longer --timeout.",
	}
}

// noDaemon reports whether err means nothing is listening at the address.
func noDaemon(err error) bool {
	return errors.Is(err, unix.ECONNREFUSED) ||
		errors.Is(err, unix.EHOSTUNREACH) ||
		errors.Is(err, unix.ENETUNREACH) ||
		errors.Is(err, client.ErrConnectTimedOut)
}

// connectionLost reports whether an established connection went away.
func connectionLost(err error) bool {
	return errors.Is(err, unix.ECONNRESET) ||
		errors.Is(err, unix.EPIPE) ||
		errors.Is(err, client.ErrDesynchronized) ||
		errors.Is(err, client.ErrNotConnected)
}

// mapError converts client and daemon errors to exit errors. addr is the
// daemon address used in messages.
func mapError(err error, addr string) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	var (
		statusErr    *protocol.StatusError
		transportErr *client.TransportError
	)
	isTransport := errors.As(err, &transportErr)
	switch {
	case errors.Is(err, client.ErrRequestTimedOut):
		return errTimedOut()
	case noDaemon(err):
		return errUnreachable(addr)
	case errors.Is(err, client.ErrConnectFailed), isTransport && transportErr.Op == "handshake":
		return errNotReady(addr)
	case connectionLost(err):
		return errConnectionLost(addr)
	case isTransport && transportErr.Op == "dial":
		return errDialFailed(addr, transportErr.Err)
	case isTransport:
		return errConnectionLost(addr)
	case protocol.IsNotFound(err) && errors.As(err, &statusErr):
		return errNotFound(statusErr.Message)
	}
	return err
}
