package download

import (
	"errors"

	"go.opentelemetry.io/otel/trace"
)

// Option defines optional settings for a transfer.
//
// WithMaxSize aborts the transfer once more than n bytes arrive, or before
// it starts when the announced length is larger.
// WithMD5 and WithSHA256 verify the finished body against a hex digest.
// WithProgress logs transfer progress at info level.
// WithTempDir overrides the directory for temporary targets.
// WithTracer records the transfer as a span.
type Option func(*options) error

type options struct {
	maxSize  uint64
	md5      checksumVerifier
	sha256   checksumVerifier
	progress bool
	tempDir  string
	tracer   trace.Tracer
}

func WithMaxSize(n uint64) Option {
	return func(opts *options) error {
		opts.maxSize = n
		return nil
	}
}

func WithMD5(expected string) Option {
	return func(opts *options) error {
		if expected == "" {
			return errors.New("expected checksum must not be empty")
		}
		opts.md5 = checksumVerifier{algorithm: "MD5", expected: expected}
		return nil
	}
}

func WithSHA256(expected string) Option {
	return func(opts *options) error {
		if expected == "" {
			return errors.New("expected checksum must not be empty")
		}
		opts.sha256 = checksumVerifier{algorithm: "SHA256", expected: expected}
		return nil
	}
}

func WithProgress() Option {
	return func(opts *options) error {
		opts.progress = true
		return nil
	}
}

func WithTempDir(dir string) Option {
	return func(opts *options) error {
		if dir == "" {
			return errors.New("temp dir must not be empty")
		}
		opts.tempDir = dir
		return nil
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(opts *options) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}
		opts.tracer = tracer
		return nil
	}
}
