// Package fetch runs one complete invocation: validate options, resolve
// the plan, send the request, stage and verify the body, and route it to
// its destination.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/fetch/internal/client"
	"github.com/adamwoolhether/fetch/internal/config"
	"github.com/adamwoolhether/fetch/internal/download"
	"github.com/adamwoolhether/fetch/internal/output"
	"github.com/adamwoolhether/fetch/internal/plan"
	"github.com/adamwoolhether/fetch/internal/throttle"
)

// Exit codes of the fetch command.
const (
	ExitOK      = 0
	ExitFailure = 1
)

const tracerName = "github.com/adamwoolhether/fetch"

// Option defines optional settings for [Run].
type Option func(*options)

type options struct {
	tempDir string
}

// WithTempDir stages unnamed downloads in dir instead of the system
// temp directory.
func WithTempDir(dir string) Option {
	return func(o *options) {
		o.tempDir = dir
	}
}

// Run performs the fetch described by opts, writing artifact bytes and
// echoed headers to stdout. Any returned error is fatal; pass it to
// [Report] for the diagnostic and exit code.
func Run(ctx context.Context, opts config.Options, stdout io.Writer, logger *slog.Logger, optFns ...Option) error {
	var o options
	for _, fn := range optFns {
		fn(&o)
	}

	if err := config.Validate(opts); err != nil {
		return err
	}

	p, err := plan.Resolve(opts, plan.WithLogger(logger))
	if err != nil {
		return err
	}

	tracer := otel.Tracer(tracerName)

	c, err := client.Build(p, client.WithLogger(logger), client.WithTracer(tracer))
	if err != nil {
		return fmt.Errorf("building client: %w", err)
	}

	routerOpts := []output.Option{
		output.WithPolicy(output.PolicyFor(opts.Fail, opts.FailWithBody)),
		output.WithLogger(logger),
	}
	if opts.Include {
		routerOpts = append(routerOpts, output.WithInclude())
	}
	router := output.New(stdout, routerOpts...)

	resp, err := c.Send(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warn("failed to close response body", "error", err)
		}
	}()

	logger.Info("response received", "status", resp.Status, "content_length", resp.ContentLength)

	if err := router.EchoHeaders(resp); err != nil {
		return err
	}

	proceed, statusErr := router.Admit(resp)
	if !proceed {
		return statusErr
	}

	var body io.Reader = resp.Body
	if p.RateLimit > 0 {
		body, err = throttle.NewReader(ctx, body, p.RateLimit, logger)
		if err != nil {
			return fmt.Errorf("configuring rate limit: %w", err)
		}
	}

	target := download.TempTarget()
	if opts.Output != "" {
		target = download.NamedTarget(opts.Output)
	}

	outcome, staging, err := download.Stream(ctx, body, resp.ContentLength, target, logger, downloadOptions(p, opts, o, tracer)...)
	if err != nil {
		return err
	}

	logger.Info("download verified",
		"size", humanize.Bytes(outcome.BytesWritten),
		"md5", outcome.MD5,
		"sha256", outcome.SHA256,
	)

	if err := router.Deliver(staging); err != nil {
		return err
	}

	return statusErr
}

func downloadOptions(p *plan.Plan, opts config.Options, o options, tracer trace.Tracer) []download.Option {
	dlOpts := []download.Option{download.WithTracer(tracer)}

	if p.MaxFilesize > 0 {
		dlOpts = append(dlOpts, download.WithMaxSize(p.MaxFilesize))
	}
	if opts.MD5 != "" {
		dlOpts = append(dlOpts, download.WithMD5(opts.MD5))
	}
	if opts.SHA256 != "" {
		dlOpts = append(dlOpts, download.WithSHA256(opts.SHA256))
	}
	if opts.Verbose {
		dlOpts = append(dlOpts, download.WithProgress())
	}
	if o.tempDir != "" {
		dlOpts = append(dlOpts, download.WithTempDir(o.tempDir))
	}

	return dlOpts
}

// Report writes the single diagnostic line for err and returns the
// process exit code.
func Report(err error, logger *slog.Logger) int {
	if err == nil {
		return ExitOK
	}

	var statusErr *output.StatusError
	if errors.As(err, &statusErr) && statusErr.Quiet {
		logger.Info(err.Error())
		return ExitFailure
	}

	logger.Error(err.Error())

	return ExitFailure
}
