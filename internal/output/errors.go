package output

import (
	"errors"
	"fmt"
)

var (
	ErrBadStatus   = errors.New("bad http status")
	ErrRelayRead   = errors.New("failed to read file")
	ErrRelayWrite  = errors.New("failed to write output")
	ErrHeaderWrite = errors.New("failed to write headers")
)

// StatusError reports a non-2xx final response. Quiet is set when the
// failure should not be reported above info level.
type StatusError struct {
	StatusCode int
	Status     string
	Quiet      bool
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: %s", ErrBadStatus, e.Status)
}

func (e *StatusError) Unwrap() error {
	return ErrBadStatus
}
