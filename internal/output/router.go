// Package output decides what happens to a response once it arrives:
// whether its status lets the body through, whether headers are echoed,
// and how a staged body reaches its destination.
package output

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/adamwoolhether/fetch/internal/download"
)

// relayChunk is the buffer size used to copy a staged body to stdout.
const relayChunk = 10 * 1024

// Policy selects how a non-2xx final status is handled.
type Policy int

const (
	// FailFast aborts before reading the body.
	FailFast Policy = iota
	// FailSilent drains and discards the body and fails without an
	// error-level diagnostic.
	FailSilent
	// FailWithBody delivers the body as usual and fails afterwards.
	FailWithBody
)

func (p Policy) String() string {
	switch p {
	case FailSilent:
		return "fail-silent"
	case FailWithBody:
		return "fail-with-body"
	default:
		return "fail-fast"
	}
}

// PolicyFor maps the fail flags to a Policy. fail and withBody are
// mutually exclusive; withBody wins if both are set.
func PolicyFor(fail, withBody bool) Policy {
	switch {
	case withBody:
		return FailWithBody
	case fail:
		return FailSilent
	default:
		return FailFast
	}
}

// Router sends response metadata and staged bodies to their destination.
type Router struct {
	stdout  io.Writer
	policy  Policy
	include bool
	logger  *slog.Logger
}

// New constructs a Router writing to stdout.
func New(stdout io.Writer, optFns ...Option) *Router {
	var opts options
	for _, opt := range optFns {
		opt(&opts)
	}
	if opts.logger == nil {
		opts.logger = slog.Default()
	}

	return &Router{
		stdout:  stdout,
		policy:  opts.policy,
		include: opts.include,
		logger:  opts.logger,
	}
}

// EchoHeaders writes the status line and headers of resp followed by a
// blank line, when header echo is enabled.
func (r *Router) EchoHeaders(resp *http.Response) error {
	if !r.include {
		return nil
	}

	if _, err := fmt.Fprintf(r.stdout, "%s %s\r\n", resp.Proto, resp.Status); err != nil {
		return fmt.Errorf("%w: %w", ErrHeaderWrite, err)
	}
	if err := resp.Header.Write(r.stdout); err != nil {
		return fmt.Errorf("%w: %w", ErrHeaderWrite, err)
	}
	if _, err := io.WriteString(r.stdout, "\r\n"); err != nil {
		return fmt.Errorf("%w: %w", ErrHeaderWrite, err)
	}

	return nil
}

// Admit applies the status policy to resp. proceed reports whether the
// body should be downloaded. A non-nil err with proceed set must be
// returned once the body has been delivered.
func (r *Router) Admit(resp *http.Response) (proceed bool, err error) {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true, nil
	}

	statusErr := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}

	switch r.policy {
	case FailSilent:
		statusErr.Quiet = true
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			r.logger.Info("failed to drain response body", "error", err)
		}
		return false, statusErr

	case FailWithBody:
		return true, statusErr

	default:
		return false, statusErr
	}
}

// Deliver hands a verified staging file to its destination. A named file
// stays where it is. A temporary file is relayed to stdout and removed,
// also when the relay fails.
func (r *Router) Deliver(staging *download.Staging) error {
	if !staging.Temporary() {
		if err := staging.Release(); err != nil {
			return fmt.Errorf("%w: %w", ErrRelayWrite, err)
		}
		return nil
	}

	defer func() {
		if err := staging.Release(); err != nil {
			r.logger.Warn("failed to remove staging file", "path", staging.Path(), "error", err)
		}
	}()

	src, err := staging.Reader()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRelayRead, err)
	}

	return r.relay(src)
}

func (r *Router) relay(src io.Reader) error {
	buf := make([]byte, relayChunk)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := r.stdout.Write(buf[:n]); werr != nil {
				return fmt.Errorf("%w: %w", ErrRelayWrite, werr)
			}
		}

		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("%w: %w", ErrRelayRead, rerr)
		}
	}
}
