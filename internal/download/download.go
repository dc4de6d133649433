package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace/noop"
)

// State is a step of the transfer state machine.
type State int

const (
	Idle State = iota
	Creating
	Streaming
	Finalizing
	Verified
	Aborted
)

func (s State) String() string {
	switch s {
	case Creating:
		return "creating"
	case Streaming:
		return "streaming"
	case Finalizing:
		return "finalizing"
	case Verified:
		return "verified"
	case Aborted:
		return "aborted"
	default:
		return "idle"
	}
}

// Outcome summarizes a transfer. Digests are only set once Verified.
type Outcome struct {
	BytesWritten uint64
	MD5          string
	SHA256       string
	State        State
}

const chunkSize = 32 * 1024

// Stream copies body into target. contentLength is the announced length,
// negative when unknown. On success the returned *Staging is owned by the
// caller: a temporary file is open for reading, a named file is already
// synced and closed. On abort the staging file has been removed and err
// is a *Error.
func Stream(ctx context.Context, body io.Reader, contentLength int64, target Target, logger *slog.Logger, optFns ...Option) (Outcome, *Staging, error) {
	t, err := newTransfer(logger, optFns...)
	if err != nil {
		return Outcome{State: Aborted}, nil, err
	}

	return t.stream(ctx, body, contentLength, target)
}

func newTransfer(logger *slog.Logger, optFns ...Option) (*transfer, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}
	if opts.tracer == nil {
		opts.tracer = noop.NewTracerProvider().Tracer("no-op tracer")
	}

	return &transfer{opts: opts, logger: logger, open: Target.open}, nil
}

func (t *transfer) stream(ctx context.Context, body io.Reader, contentLength int64, target Target) (Outcome, *Staging, error) {
	ctx, span := t.opts.tracer.Start(ctx, "download.stream")
	span.SetAttributes(
		attribute.Int64("content_length", contentLength),
		attribute.Bool("temporary", target.Temporary()),
	)
	defer span.End()

	staging, err := t.run(ctx, body, contentLength, target)
	span.SetAttributes(attribute.Int64("bytes_written", int64(t.outcome.BytesWritten)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return t.outcome, nil, err
	}

	return t.outcome, staging, nil
}

type transfer struct {
	opts    options
	logger  *slog.Logger
	open    func(Target, string) (*Staging, error)
	outcome Outcome
}

func (t *transfer) run(ctx context.Context, body io.Reader, contentLength int64, target Target) (*Staging, error) {
	ceiling := t.opts.maxSize
	if ceiling > 0 && contentLength > 0 && uint64(contentLength) > ceiling {
		t.outcome.State = Aborted
		return nil, abort(AnnouncedSizeExceeded, ErrContentTooLarge,
			fmt.Sprintf("%d bytes max. expected, but %d bytes content length", ceiling, contentLength))
	}

	t.outcome.State = Creating
	staging, err := t.open(target, t.opts.tempDir)
	if err != nil {
		t.outcome.State = Aborted
		return nil, abort(CreateFailed, fmt.Errorf("%w: %w", ErrCreateFailed, err), "")
	}

	var successful bool
	defer func() {
		if successful {
			return
		}
		t.outcome.State = Aborted
		if err := staging.Discard(); err != nil {
			t.logger.Warn("failed to remove staging file", "path", staging.Path(), "error", err)
		}
	}()

	t.outcome.State = Streaming
	sums := newDigests()

	if err := t.copy(ctx, staging, sums, body, contentLength); err != nil {
		return nil, err
	}

	t.outcome.State = Finalizing
	md5Sum, sha256Sum := sums.sums()

	if err := t.opts.md5.Verify(md5Sum); err != nil {
		return nil, abort(ChecksumMismatch, err, "")
	}
	if err := t.opts.sha256.Verify(sha256Sum); err != nil {
		return nil, abort(ChecksumMismatch, err, "")
	}

	if err := staging.commit(); err != nil {
		return nil, abort(WriteFailed, fmt.Errorf("%w: %w", ErrWriteFailed, err), "")
	}

	t.outcome.MD5 = md5Sum
	t.outcome.SHA256 = sha256Sum
	t.outcome.State = Verified
	successful = true

	return staging, nil
}

// copy folds the body chunk by chunk: count, ceiling check, then one write
// that reaches the file and both digests.
func (t *transfer) copy(ctx context.Context, staging *Staging, sums *digests, body io.Reader, contentLength int64) error {
	var w io.Writer = io.MultiWriter(staging.file, sums)

	var progress *progressWriter
	if t.opts.progress {
		progress = &progressWriter{
			w:         w,
			logger:    t.logger,
			total:     contentLength,
			startTime: time.Now(),
		}
		w = progress
	}

	body = &contextReader{ctx: ctx, r: body}
	buf := make([]byte, chunkSize)
	var received uint64

	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			received += uint64(n)
			if ceiling := t.opts.maxSize; ceiling > 0 && received > ceiling {
				return abort(SizeExceeded, ErrContentTooLarge,
					fmt.Sprintf("expected max. %d bytes, but %d bytes received", ceiling, received))
			}

			written, werr := w.Write(buf[:n])
			t.outcome.BytesWritten += uint64(written)
			if werr != nil {
				return abort(WriteFailed, fmt.Errorf("%w: %w", ErrWriteFailed, werr), "")
			}
		}

		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return abort(ReadFailed, fmt.Errorf("%w: %w", ErrReadFailed, rerr), "")
		}
	}

	if progress != nil {
		progress.done()
	}

	return nil
}

// contextReader stops a transfer once ctx is done, even when the
// underlying reader would block or keep returning data.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
