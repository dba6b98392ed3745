package link

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionLost fails calls that were pending when the connection left
	// ONLINE, and calls issued while it was not ONLINE.
	ErrConnectionLost = errors.New("connection lost")
	// ErrTimeout fails calls that received no response within their timeout.
	ErrTimeout = errors.New("request timed out")
	// ErrMalformedFrame marks inbound frames that could not be parsed. They are
	// recorded in diagnostics and dropped; the connection stays up.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrClosed is returned, together with ErrConnectionLost, by calls and sends
	// issued once the client is OFFLINE for good.
	ErrClosed = errors.New("client closed")
)

// ApplicationError is an error payload returned by Moonraker for a call. It is
// never retried.
type ApplicationError struct {
	Method  string
	Code    int
	Message string
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

func wrapMethod(method string, err error) error {
	return fmt.Errorf("%s: %w", method, err)
}
