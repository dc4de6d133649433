package download

import (
	"errors"
	"fmt"
)

var (
	ErrCreateFailed     = errors.New("failed to create file")
	ErrWriteFailed      = errors.New("failed to write file")
	ErrReadFailed       = errors.New("failed to read response data")
	ErrContentTooLarge  = errors.New("content length too large")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Reason classifies why a transfer was aborted.
type Reason int

const (
	CreateFailed Reason = iota + 1
	WriteFailed
	ReadFailed
	SizeExceeded
	AnnouncedSizeExceeded
	ChecksumMismatch
)

func (r Reason) String() string {
	switch r {
	case CreateFailed:
		return "create failed"
	case WriteFailed:
		return "write failed"
	case ReadFailed:
		return "read failed"
	case SizeExceeded:
		return "size exceeded"
	case AnnouncedSizeExceeded:
		return "announced size exceeded"
	case ChecksumMismatch:
		return "checksum mismatch"
	default:
		return "unknown"
	}
}

// Error is returned by Stream for every aborted transfer.
type Error struct {
	Reason Reason
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ChecksumError reports a digest that did not match its expectation.
type ChecksumError struct {
	Algorithm string
	Expected  string
	Actual    string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s %v: expected %s but was %s", e.Algorithm, ErrChecksumMismatch, e.Expected, e.Actual)
}

func (e *ChecksumError) Unwrap() error {
	return ErrChecksumMismatch
}

func abort(reason Reason, err error, detail string) *Error {
	return &Error{Reason: reason, Err: err, Detail: detail}
}
