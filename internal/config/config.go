// Package config holds the flat set of user options accepted by fetch,
// loads them from YAML files and validates them before any request is
// planned.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultMaxRedirs is the redirect limit applied when following redirects.
const DefaultMaxRedirs = 5

// Options is the snapshot of every user option. Field names in YAML match
// the long command-line flag names.
type Options struct {
	URL    string `yaml:"url" validate:"required,url"`
	Output string `yaml:"output"`

	Request string   `yaml:"request"`
	Headers []string `yaml:"header"`
	Data    Optional `yaml:"data"`
	DataRaw Optional `yaml:"data-raw"`
	Form    []string `yaml:"form"`

	UserAgent string `yaml:"user-agent"`
	Insecure  bool   `yaml:"insecure"`
	Location  bool   `yaml:"location"`
	MaxRedirs int    `yaml:"max-redirs" validate:"gte=0"`

	MaxFilesize    string  `yaml:"max-filesize"`
	LimitRate      string  `yaml:"limit-rate"`
	ConnectTimeout float64 `yaml:"connect-timeout" validate:"gte=0"`
	MaxTime        float64 `yaml:"max-time" validate:"gte=0"`

	TLSv1  bool `yaml:"tlsv1"`
	TLSv10 bool `yaml:"tlsv1.0"`
	TLSv11 bool `yaml:"tlsv1.1"`
	TLSv12 bool `yaml:"tlsv1.2"`
	TLSv13 bool `yaml:"tlsv1.3"`

	Proto  string `yaml:"proto"`
	Proxy  string `yaml:"proxy" validate:"omitempty,url"`
	CACert string `yaml:"cacert"`

	Include      bool `yaml:"include"`
	Fail         bool `yaml:"fail"`
	FailWithBody bool `yaml:"fail-with-body" validate:"excluded_with=Fail"`

	Silent    bool `yaml:"silent"`
	ShowError bool `yaml:"show-error"`
	Verbose   bool `yaml:"verbose"`

	SHA256 string `yaml:"sha256" validate:"omitempty,hexdigits,len=64"`
	MD5    string `yaml:"md5" validate:"omitempty,hexdigits,len=32"`
}

// Default returns Options populated with the documented defaults.
func Default() Options {
	return Options{
		MaxRedirs: DefaultMaxRedirs,
	}
}

// LoadFile decodes the YAML file at path on top of opts. Keys absent
// from the file leave the corresponding field untouched.
func LoadFile(path string, opts *Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := Load(data, opts); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	return nil
}

// Load decodes YAML bytes on top of opts. Unknown keys are rejected.
func Load(data []byte, opts *Options) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(opts); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	return nil
}

// Optional is a string option that records whether it was given at all,
// so an explicitly empty value can be told apart from an absent one.
// It satisfies [github.com/spf13/pflag.Value].
type Optional struct {
	Value string
	Valid bool
}

// Some returns a set Optional holding s.
func Some(s string) Optional {
	return Optional{Value: s, Valid: true}
}

func (o *Optional) Set(s string) error {
	o.Value = s
	o.Valid = true
	return nil
}

func (o *Optional) String() string { return o.Value }

func (o *Optional) Type() string { return "string" }

func (o *Optional) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	return o.Set(s)
}
