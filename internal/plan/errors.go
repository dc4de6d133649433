package plan

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMethod = errors.New("invalid request method")
	ErrTrustAnchors  = errors.New("failed to load CA certificates")
	ErrInvalidValue  = errors.New("invalid option value")
)

// ConfigError is returned when the option set cannot be turned into a
// plan. It is always fatal and raised before any network activity.
type ConfigError struct {
	Option string
	Detail string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
