package plan

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/adamwoolhether/fetch/internal/config"
)

// Option customizes a single [Resolve] call.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	readFile func(string) ([]byte, error)
}

// WithLogger sets the logger receiving resolver warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithReadFile replaces [os.ReadFile] for loading the CA bundle.
func WithReadFile(fn func(string) ([]byte, error)) Option {
	return func(o *options) {
		o.readFile = fn
	}
}

var methods = map[string]string{
	"get":     http.MethodGet,
	"put":     http.MethodPut,
	"post":    http.MethodPost,
	"delete":  http.MethodDelete,
	"head":    http.MethodHead,
	"options": http.MethodOptions,
	"connect": http.MethodConnect,
	"patch":   http.MethodPatch,
	"trace":   http.MethodTrace,
}

// fileSigil marks a data argument that names a file to stream as body.
const fileSigil = "@"

// Resolve turns opts into a complete [Plan] or returns a [*ConfigError].
// It never touches the network; the CA bundle named by opts is the only
// file it reads.
func Resolve(opts config.Options, optFns ...Option) (*Plan, error) {
	o := options{
		logger:   slog.Default(),
		readFile: os.ReadFile,
	}
	for _, fn := range optFns {
		fn(&o)
	}

	body := resolveBody(opts)

	method, err := resolveMethod(opts.Request, body)
	if err != nil {
		return nil, err
	}

	maxFilesize, err := parseSize("max-filesize", opts.MaxFilesize)
	if err != nil {
		return nil, err
	}

	rateLimit, err := parseSize("limit-rate", opts.LimitRate)
	if err != nil {
		return nil, err
	}

	proxy, err := resolveProxy(opts.Proxy)
	if err != nil {
		return nil, err
	}

	anchors, err := loadTrustAnchors(opts.CACert, o.readFile)
	if err != nil {
		return nil, err
	}

	userAgent := DefaultUserAgent
	if opts.UserAgent != "" {
		userAgent = opts.UserAgent
	}

	p := Plan{
		Method:         method,
		URL:            opts.URL,
		Headers:        resolveHeaders(opts.Headers),
		Body:           body,
		Redirect:       resolveRedirect(opts.Location, opts.MaxRedirs),
		TLSFloor:       resolveTLSFloor(opts),
		Protocols:      ParseProtocols(opts.Proto, o.logger),
		Insecure:       opts.Insecure,
		Proxy:          proxy,
		TrustAnchors:   anchors,
		ConnectTimeout: seconds(opts.ConnectTimeout),
		TotalTimeout:   seconds(opts.MaxTime),
		MaxFilesize:    maxFilesize,
		RateLimit:      rateLimit,
		UserAgent:      userAgent,
	}

	return &p, nil
}

func resolveMethod(request string, body Body) (string, error) {
	if request != "" {
		m, ok := methods[strings.ToLower(request)]
		if !ok {
			return "", &ConfigError{Option: "request", Detail: request, Err: ErrInvalidMethod}
		}
		return m, nil
	}

	if body.Kind != BodyNone {
		return http.MethodPost, nil
	}

	return http.MethodGet, nil
}

// resolveBody picks the first body source present: inline data, a data
// file reference, raw data, then multipart fields.
func resolveBody(opts config.Options) Body {
	switch {
	case opts.Data.Valid && !strings.HasPrefix(opts.Data.Value, fileSigil):
		return Body{Kind: BodyInline, Data: []byte(opts.Data.Value)}

	case opts.Data.Valid:
		return Body{Kind: BodyFile, Path: strings.TrimPrefix(opts.Data.Value, fileSigil)}

	case opts.DataRaw.Valid:
		return Body{Kind: BodyInline, Data: []byte(opts.DataRaw.Value)}

	case len(opts.Form) > 0:
		fields := make([]Field, 0, len(opts.Form))
		for _, kv := range opts.Form {
			name, value, ok := strings.Cut(kv, "=")
			if !ok {
				continue
			}
			fields = append(fields, Field{Name: strings.TrimSpace(name), Value: value})
		}
		return Body{Kind: BodyMultipart, Fields: fields}
	}

	return Body{Kind: BodyNone}
}

func resolveHeaders(raw []string) []Header {
	var headers []Header
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			continue
		}
		headers = append(headers, Header{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)})
	}

	return headers
}

func resolveRedirect(follow bool, max int) Redirect {
	if !follow {
		return Redirect{}
	}

	return Redirect{Follow: true, Max: max}
}

// resolveTLSFloor applies the highest requested minimum version.
func resolveTLSFloor(opts config.Options) TLSFloor {
	switch {
	case opts.TLSv13:
		return TLS13
	case opts.TLSv12:
		return TLS12
	case opts.TLSv11:
		return TLS11
	case opts.TLSv10, opts.TLSv1:
		return TLS10
	default:
		return TLSDefault
	}
}

func resolveProxy(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, nil
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, &ConfigError{Option: "proxy", Detail: err.Error(), Err: ErrInvalidValue}
	}

	return u, nil
}

// parseSize accepts plain byte counts as well as humanized sizes such
// as "10M" or "512KiB". An empty value means unlimited.
func parseSize(option, raw string) (uint64, error) {
	if raw == "" {
		return 0, nil
	}

	n, err := humanize.ParseBytes(raw)
	if err != nil {
		return 0, &ConfigError{Option: option, Detail: fmt.Sprintf("%s %q", option, raw), Err: ErrInvalidValue}
	}

	return n, nil
}

func seconds(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
