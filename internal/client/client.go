// Package client adapts a resolved [plan.Plan] to net/http: it builds the
// transport, redirect policy and request, and issues exactly one request
// per Send.
package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/fetch/internal/plan"
)

// Client wraps the std-lib *http.Client configured for a single plan.
type Client struct {
	c      *http.Client
	plan   *plan.Plan
	logger *slog.Logger
	tracer trace.Tracer
}

// Build derives an *http.Client from p. It performs no network I/O.
func Build(p *plan.Plan, optFns ...Option) (*Client, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}
	if opts.logger == nil {
		opts.logger = slog.Default()
	}
	if opts.tracer == nil {
		opts.tracer = noop.NewTracerProvider().Tracer("no-op tracer")
	}

	transport := opts.rt
	if transport == nil {
		t, err := newTransport(p)
		if err != nil {
			return nil, err
		}
		transport = t
	}

	client := &Client{
		c: &http.Client{
			Transport:     userAgent{value: p.UserAgent, base: transport},
			CheckRedirect: checkRedirect(p),
			Timeout:       p.TotalTimeout,
		},
		plan:   p,
		logger: opts.logger,
		tracer: opts.tracer,
	}

	return client, nil
}

func newTransport(p *plan.Plan) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	tlsConf := &tls.Config{
		MinVersion:         uint16(p.TLSFloor),
		InsecureSkipVerify: p.Insecure,
	}
	if len(p.TrustAnchors) > 0 {
		pool, err := x509.SystemCertPool()
		if err != nil {
			pool = x509.NewCertPool()
		}
		for _, cert := range p.TrustAnchors {
			pool.AddCert(cert)
		}
		tlsConf.RootCAs = pool
	}
	transport.TLSClientConfig = tlsConf

	if p.ConnectTimeout > 0 {
		dialer := &net.Dialer{
			Timeout:   p.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}
		transport.DialContext = dialer.DialContext
		transport.TLSHandshakeTimeout = p.ConnectTimeout
	}

	if p.Proxy != nil {
		transport.Proxy = http.ProxyURL(p.Proxy)
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return transport, nil
}

// checkRedirect never lets net/http evaluate a redirect when following is
// disabled, and re-applies the protocol allow-list on every hop.
func checkRedirect(p *plan.Plan) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if !p.Redirect.Follow {
			return http.ErrUseLastResponse
		}
		if len(via) > p.Redirect.Max {
			return fmt.Errorf("%w: maximum of %d", ErrTooManyRedirects, p.Redirect.Max)
		}
		return checkScheme(p.Protocols, req.URL)
	}
}

func checkScheme(protocols plan.Protocols, u *url.URL) error {
	switch u.Scheme {
	case "http", "https":
		if !protocols.Allows(u.Scheme) {
			return fmt.Errorf("%w: %s", ErrProtocolDisabled, u.Scheme)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedProtocol, u.Scheme)
	}
}

// Send issues the planned request. The caller owns the response body.
// Every failure to obtain a response is a *TransportError.
func (c *Client) Send(ctx context.Context) (*http.Response, error) {
	p := c.plan

	ctx, span := c.tracer.Start(ctx, "client.send")
	span.SetAttributes(
		attribute.String("method", p.Method),
		attribute.String("url", p.URL),
	)
	defer span.End()

	fail := func(err error) (*http.Response, error) {
		err = &TransportError{Method: p.Method, URL: p.URL, Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	u, err := url.Parse(p.URL)
	if err != nil {
		return fail(err)
	}
	if err := checkScheme(p.Protocols, u); err != nil {
		return fail(err)
	}

	body := c.encodeBody(p.Body)

	req, err := http.NewRequestWithContext(ctx, p.Method, p.URL, body.r)
	if err != nil {
		if closer, ok := body.r.(io.Closer); ok {
			closer.Close()
		}
		return fail(err)
	}
	if body.contentLength >= 0 && body.r != nil {
		req.ContentLength = body.contentLength
	}
	if body.contentType != "" {
		req.Header.Set("Content-Type", body.contentType)
	}
	for _, h := range p.Headers {
		// net/http writes Host from the request, never from the header map.
		if strings.EqualFold(h.Name, "Host") {
			req.Host = h.Value
			continue
		}
		req.Header.Add(h.Name, h.Value)
	}

	c.logger.Info("sending request", "method", p.Method, "url", p.URL)

	resp, err := c.c.Do(req)
	if err != nil {
		return fail(err)
	}

	span.SetAttributes(attribute.Int("status_code", resp.StatusCode))

	return resp, nil
}
