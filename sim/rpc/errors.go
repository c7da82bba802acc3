// Package rpc is a request/response layer over the simulated transport.
//
// Channels compose: a client usually talks through
// Retries -> History -> Random -> [transport channel per peer].
package rpc

import (
	"errors"
	"fmt"
)

// Code classifies a failed call.
type Code int

const (
	// TransportError: the request or the response may have been lost.
	TransportError Code = iota + 1
	// ExecutionError: the handler ran and returned an error.
	ExecutionError
	Timeout
	Cancelled
	Unavailable
)

func (c Code) String() string {
	switch c {
	case TransportError:
		return "TransportError"
	case ExecutionError:
		return "ExecutionError"
	case Timeout:
		return "Timeout"
	case Cancelled:
		return "Cancelled"
	case Unavailable:
		return "Unavailable"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Error is the error type of every failed call.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return "rpc: " + e.Code.String()
	}
	return fmt.Sprintf("rpc: %s: %s", e.Code, e.Message)
}

// Is matches any *Error with the same code, so errors.Is(err, ErrTimeout) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrTransport   = &Error{Code: TransportError}
	ErrExecution   = &Error{Code: ExecutionError}
	ErrTimeout     = &Error{Code: Timeout}
	ErrCancelled   = &Error{Code: Cancelled}
	ErrUnavailable = &Error{Code: Unavailable}
)

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the code of err. The second result is false for nil and
// for errors that did not come from this package.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return 0, false
	}
	return e.Code, true
}
