// Package plan resolves the flat user option set into an immutable,
// non-contradictory request plan. Each field of [Plan] is computed once
// from the full option snapshot by a small dedicated resolver.
package plan

import (
	"crypto/tls"
	"crypto/x509"
	"net/url"
	"time"
)

// DefaultUserAgent is sent unless the user provides one.
const DefaultUserAgent = "fetch/1.0"

// Plan is the fully resolved description of the request to issue.
type Plan struct {
	Method  string
	URL     string
	Headers []Header
	Body    Body

	Redirect  Redirect
	TLSFloor  TLSFloor
	Protocols Protocols
	Insecure  bool
	Proxy     *url.URL

	TrustAnchors []*x509.Certificate

	ConnectTimeout time.Duration
	TotalTimeout   time.Duration

	// MaxFilesize is the body size ceiling in bytes, zero disables it.
	MaxFilesize uint64
	// RateLimit caps body consumption in bytes per second, zero disables it.
	RateLimit uint64

	UserAgent string
}

// Header is a single request header; a plan keeps them in order and
// allows duplicates.
type Header struct {
	Name  string
	Value string
}

// Field is a single multipart form field.
type Field struct {
	Name  string
	Value string
}

// BodyKind tags the active request body source.
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyInline
	BodyFile
	BodyMultipart
)

func (k BodyKind) String() string {
	switch k {
	case BodyInline:
		return "inline"
	case BodyFile:
		return "file"
	case BodyMultipart:
		return "multipart"
	default:
		return "none"
	}
}

// Body describes the request body. Only the members matching Kind are set.
type Body struct {
	Kind   BodyKind
	Data   []byte
	Path   string
	Fields []Field
}

// Redirect is the redirect policy. When Follow is false redirects are
// never evaluated; the 3xx response is the final response.
type Redirect struct {
	Follow bool
	Max    int
}

// TLSFloor is the minimum accepted TLS version, using the crypto/tls
// version numbers. TLSDefault leaves the engine default in place.
type TLSFloor uint16

const (
	TLSDefault TLSFloor = 0
	TLS10      TLSFloor = tls.VersionTLS10
	TLS11      TLSFloor = tls.VersionTLS11
	TLS12      TLSFloor = tls.VersionTLS12
	TLS13      TLSFloor = tls.VersionTLS13
)

func (f TLSFloor) String() string {
	if f == TLSDefault {
		return "default"
	}
	return tls.VersionName(uint16(f))
}

// Protocols is the allow-list of transport schemes.
type Protocols struct {
	HTTP  bool
	HTTPS bool
}

// Allows reports whether requests with the given URL scheme may be sent.
func (p Protocols) Allows(scheme string) bool {
	switch scheme {
	case "http":
		return p.HTTP
	case "https":
		return p.HTTPS
	default:
		return false
	}
}
