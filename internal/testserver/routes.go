package testserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// DefaultSlowDelay is how long /slow_answer waits before answering.
const DefaultSlowDelay = 30 * time.Second

// maxPayload bounds the size served by the payload routes.
const maxPayload = 1 << 30

// Option defines optional settings for the fixture handler.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	tracer    trace.Tracer
	slowDelay time.Duration
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithSlowDelay overrides DefaultSlowDelay.
func WithSlowDelay(d time.Duration) Option {
	return func(o *options) {
		o.slowDelay = d
	}
}

// New returns the fixture handler with every route registered.
func New(optFns ...Option) http.Handler {
	opts := options{
		logger:    slog.Default(),
		slowDelay: DefaultSlowDelay,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	app := newApp(opts.logger, opts.tracer, logRequests(opts.logger), recoverPanics())

	h := handlers{slowDelay: opts.slowDelay}

	app.Get("/{$}", h.welcome)
	app.Get("/slow_answer", h.slowAnswer)
	app.Post("/echo_post", h.echo)
	app.Put("/echo_put", h.echo)
	app.Patch("/echo_patch", h.echo)
	app.Post("/echo_form", h.echoForm)
	app.Delete("/delete", h.remove)
	app.Get("/user_agent", h.userAgent)
	app.Get("/error", h.fail)
	app.Get("/redirect/{n}", h.redirect)
	app.Get("/payload/{size}", h.payload)
	app.Get("/stream/{size}", h.stream)
	app.Get("/headers", h.headers)

	return app
}

type handlers struct {
	slowDelay time.Duration
}

func (h handlers) welcome(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return respond(ctx, w, http.StatusOK, "Welcome!")
}

func (h handlers) slowAnswer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	t := time.NewTimer(h.slowDelay)
	defer t.Stop()

	select {
	case <-t.C:
		return respond(ctx, w, http.StatusOK, "42")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h handlers) echo(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}

	return respond(ctx, w, http.StatusOK, string(body))
}

// echoForm answers with "name = value;" for every multipart field in order.
func (h handlers) echoForm(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	mr, err := r.MultipartReader()
	if err != nil {
		return respond(ctx, w, http.StatusBadRequest, err.Error())
	}

	var sb strings.Builder
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading part: %w", err)
		}

		data, err := io.ReadAll(part)
		if err != nil {
			return fmt.Errorf("reading part %s: %w", part.FormName(), err)
		}
		fmt.Fprintf(&sb, "%s = %s;", part.FormName(), data)
	}

	return respond(ctx, w, http.StatusOK, sb.String())
}

func (h handlers) remove(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return respond(ctx, w, http.StatusOK, "Removed")
}

func (h handlers) userAgent(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	ua := r.Header.Get("User-Agent")
	if ua == "" {
		ua = "unknown"
	}

	return respond(ctx, w, http.StatusOK, ua)
}

func (h handlers) fail(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return respond(ctx, w, http.StatusInternalServerError, "Something went wrong.")
}

// redirect sends /redirect/N to /redirect/N-1 and answers at zero.
func (h handlers) redirect(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 0 {
		return respond(ctx, w, http.StatusBadRequest, "invalid hop count")
	}

	if n == 0 {
		return respond(ctx, w, http.StatusOK, "Welcome!")
	}

	getValues(ctx).StatusCode = http.StatusFound
	http.Redirect(w, r, fmt.Sprintf("/redirect/%d", n-1), http.StatusFound)

	return nil
}

// payload serves size deterministic bytes with a Content-Length.
func (h handlers) payload(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	size, ok := parseSize(r.PathValue("size"))
	if !ok {
		return respond(ctx, w, http.StatusBadRequest, "invalid size")
	}

	getValues(ctx).StatusCode = http.StatusOK
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)

	_, err := io.CopyN(w, Pattern(), size)
	return err
}

// stream serves the same bytes as payload but without announcing the
// length.
func (h handlers) stream(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	size, ok := parseSize(r.PathValue("size"))
	if !ok {
		return respond(ctx, w, http.StatusBadRequest, "invalid size")
	}

	getValues(ctx).StatusCode = http.StatusOK
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	src := io.LimitReader(Pattern(), size)
	buf := make([]byte, 8*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			if ferr := rc.Flush(); ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// headers echoes the request headers, one "Name: value" line each.
func (h handlers) headers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	names := make([]string, 0, len(r.Header))
	for name := range r.Header {
		names = append(names, name)
	}
	slices.Sort(names)

	var sb strings.Builder
	for _, name := range names {
		for _, v := range r.Header[name] {
			fmt.Fprintf(&sb, "%s: %s\n", name, v)
		}
	}

	return respond(ctx, w, http.StatusOK, sb.String())
}

func parseSize(raw string) (int64, bool) {
	size, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || size < 0 || size > maxPayload {
		return 0, false
	}
	return size, true
}

// Pattern returns an endless reader of the bytes served by the payload
// routes: the sequence 0..250 repeated.
func Pattern() io.Reader {
	return &pattern{}
}

type pattern struct {
	next byte
}

func (p *pattern) Read(b []byte) (int, error) {
	for i := range b {
		b[i] = p.next
		p.next = (p.next + 1) % 251
	}
	return len(b), nil
}
