// Package testserver is the HTTPS fixture fetch is exercised against. It
// serves a fixed set of echo, delay, error, redirect and payload routes.
package testserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Handler is a http.Handler that returns an error.
type Handler func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

// Middleware defines a signature to chain Handler together.
type Middleware func(handler Handler) Handler

// App routes fixture requests through a shared middleware stack.
type App struct {
	mux    *http.ServeMux
	mw     []Middleware
	logger *slog.Logger
	tracer trace.Tracer
}

func newApp(logger *slog.Logger, tracer trace.Tracer, mw ...Middleware) *App {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("no-op tracer")
	}

	return &App{
		mux:    http.NewServeMux(),
		mw:     mw,
		logger: logger,
		tracer: tracer,
	}
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func (a *App) Get(path string, fn Handler)    { a.Handle(http.MethodGet, path, fn) }
func (a *App) Post(path string, fn Handler)   { a.Handle(http.MethodPost, path, fn) }
func (a *App) Put(path string, fn Handler)    { a.Handle(http.MethodPut, path, fn) }
func (a *App) Patch(path string, fn Handler)  { a.Handle(http.MethodPatch, path, fn) }
func (a *App) Delete(path string, fn Handler) { a.Handle(http.MethodDelete, path, fn) }

// Handle registers handler for method and path behind the middleware stack.
func (a *App) Handle(method, path string, handler Handler) {
	handler = wrap(a.mw, handler)

	h := func(w http.ResponseWriter, r *http.Request) {
		ctx, span := a.startSpan(w, r)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		if !span.SpanContext().TraceID().IsValid() {
			traceID = uuid.New().String()
		}

		v := values{
			TraceID: traceID,
			Now:     time.Now().UTC(),
		}

		if err := handler(setValues(ctx, &v), w, r.WithContext(ctx)); err != nil {
			a.logger.Error("handle", "path", r.URL.Path, "trace_id", traceID, "error", err)
		}
	}

	a.mux.HandleFunc(fmt.Sprintf("%s %s", method, path), h)
}

func (a *App) startSpan(w http.ResponseWriter, r *http.Request) (context.Context, trace.Span) {
	ctx, span := a.tracer.Start(r.Context(), "testserver.handler")
	span.SetAttributes(attribute.String("path", r.RequestURI))

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(w.Header()))

	return ctx, span
}

// wrap middleware around the handler and execute in order given.
func wrap(mw []Middleware, handler Handler) Handler {
	for _, mwFn := range slices.Backward(mw) {
		if mwFn != nil {
			handler = mwFn(handler)
		}
	}

	return handler
}

type ctxKey int

const valuesKey ctxKey = 1

// values is the per-request state shared with middleware.
type values struct {
	TraceID    string
	Now        time.Time
	StatusCode int
}

func setValues(ctx context.Context, v *values) context.Context {
	return context.WithValue(ctx, valuesKey, v)
}

func getValues(ctx context.Context) *values {
	v, ok := ctx.Value(valuesKey).(*values)
	if !ok {
		return &values{TraceID: uuid.Nil.String(), Now: time.Now()}
	}
	return v
}

// respond writes a plain text body with the given status and records the
// status for the request logger.
func respond(ctx context.Context, w http.ResponseWriter, status int, body string) error {
	getValues(ctx).StatusCode = status

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)

	if _, err := w.Write([]byte(body)); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}

	return nil
}
