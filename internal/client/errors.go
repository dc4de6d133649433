package client

import (
	"errors"
	"fmt"
)

var (
	ErrProtocolDisabled    = errors.New("protocol disabled")
	ErrUnsupportedProtocol = errors.New("unsupported protocol")
	ErrTooManyRedirects    = errors.New("too many redirects")
	ErrRequestFailed       = errors.New("request failed")
)

// TransportError wraps any failure of the HTTP engine to produce a
// response: DNS, connect, TLS, timeouts and rejected redirects.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%v: %v", ErrRequestFailed, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrRequestFailed, e.Err}
}
