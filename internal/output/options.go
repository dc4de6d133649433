package output

import "log/slog"

// Option defines optional settings for a [Router].
type Option func(*options)

type options struct {
	policy  Policy
	include bool
	logger  *slog.Logger
}

// WithPolicy sets the failure status policy, FailFast by default.
func WithPolicy(p Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithInclude enables echoing the status line and headers.
func WithInclude() Option {
	return func(o *options) {
		o.include = true
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
