package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/adamwoolhether/fetch/internal/config"
	"github.com/adamwoolhether/fetch/internal/fetch"
	"github.com/adamwoolhether/fetch/internal/logger"
)

var version = "1.0.0"

// run executes the command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	code := fetch.ExitOK

	cmd := newRootCmd(stdout, stderr, &code)
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return fetch.ExitFailure
	}

	return code
}

func newRootCmd(stdout, stderr io.Writer, code *int) *cobra.Command {
	opts := config.Default()
	var configFile string

	cmd := &cobra.Command{
		Use:           "fetch [flags] <url>",
		Short:         "Download an artifact and verify its checksum",
		Long:          "fetch performs a single HTTP(S) request, streams the body to a file or stdout and optionally verifies MD5 and SHA-256 digests.",
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				if err := overlayConfigFile(cmd.Flags(), configFile, &opts); err != nil {
					return err
				}
			}
			if len(args) == 1 {
				opts.URL = args[0]
			}

			log := logger.New(stderr, logger.Level(opts.Verbose, opts.Silent, opts.ShowError))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err := fetch.Run(ctx, opts, stdout, log)
			*code = fetch.Report(err, log)

			return nil
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetContext(context.Background())

	bindFlags(cmd.Flags(), &opts)
	cmd.Flags().StringVar(&configFile, "config", "", "read options from a YAML `file`; command-line flags take precedence")

	return cmd
}

func bindFlags(f *pflag.FlagSet, opts *config.Options) {
	f.SortFlags = false

	f.StringVarP(&opts.Output, "output", "o", "", "write the body to `file` instead of stdout")
	f.StringVarP(&opts.Request, "request", "X", "", "request `method` to use")
	f.StringArrayVarP(&opts.Headers, "header", "H", nil, "add a request header, `name: value`")
	f.VarP(&opts.Data, "data", "d", "send `data` as request body, @file reads it from a file")
	f.Var(&opts.DataRaw, "data-raw", "send `data` as request body without @ handling")
	f.StringArrayVarP(&opts.Form, "form", "F", nil, "add a multipart form field, `name=value`")
	f.StringVarP(&opts.UserAgent, "user-agent", "A", "", "send `name` as User-Agent")

	f.BoolVarP(&opts.Insecure, "insecure", "k", false, "skip TLS certificate and host name verification")
	f.BoolVarP(&opts.Insecure, "insecure-legacy", "K", false, "same as --insecure")
	_ = f.MarkHidden("insecure-legacy")

	f.BoolVarP(&opts.Location, "location", "L", false, "follow redirects")
	f.IntVar(&opts.MaxRedirs, "max-redirs", config.DefaultMaxRedirs, "maximum number of redirects to follow")
	f.StringVar(&opts.MaxFilesize, "max-filesize", "", "maximum body `size`, e.g. 10M")
	f.StringVar(&opts.LimitRate, "limit-rate", "", "maximum transfer `rate` per second, e.g. 512K")
	f.Float64Var(&opts.ConnectTimeout, "connect-timeout", 0, "maximum `seconds` to establish a connection")
	f.Float64VarP(&opts.MaxTime, "max-time", "m", 0, "maximum `seconds` for the whole transfer")

	f.BoolVarP(&opts.TLSv1, "tlsv1", "1", false, "require TLS 1.0 or later")
	f.BoolVar(&opts.TLSv10, "tlsv1.0", false, "require TLS 1.0 or later")
	f.BoolVar(&opts.TLSv11, "tlsv1.1", false, "require TLS 1.1 or later")
	f.BoolVar(&opts.TLSv12, "tlsv1.2", false, "require TLS 1.2 or later")
	f.BoolVar(&opts.TLSv13, "tlsv1.3", false, "require TLS 1.3")
	f.StringVar(&opts.Proto, "proto", "", "enable or disable `protocols`, e.g. =https or -all,+http")
	f.StringVarP(&opts.Proxy, "proxy", "x", "", "use `host[:port]` as HTTP proxy")
	f.StringVar(&opts.CACert, "cacert", "", "trust the CA certificates in `file` (PEM, or DER with .der suffix)")

	f.BoolVarP(&opts.Include, "include", "i", false, "write the response status line and headers before the body")
	f.BoolVarP(&opts.Fail, "fail", "f", false, "fail silently on HTTP errors")
	f.BoolVar(&opts.FailWithBody, "fail-with-body", false, "fail on HTTP errors but keep the body")

	f.BoolVarP(&opts.Silent, "silent", "s", false, "do not print diagnostics")
	f.BoolVarP(&opts.ShowError, "show-error", "S", false, "print errors even when silent")
	f.BoolVarP(&opts.Verbose, "verbose", "v", false, "print informational messages")

	f.StringVar(&opts.SHA256, "sha256", "", "verify the body against a SHA-256 `hex` digest")
	f.StringVar(&opts.MD5, "md5", "", "verify the body against an MD5 `hex` digest")
}

// overlayConfigFile loads path into opts while keeping every flag that was
// set explicitly on the command line.
func overlayConfigFile(f *pflag.FlagSet, path string, opts *config.Options) error {
	type saved struct {
		flag  *pflag.Flag
		value string
		slice []string
	}

	var explicit []saved
	f.Visit(func(fl *pflag.Flag) {
		if fl.Name == "config" {
			return
		}
		s := saved{flag: fl, value: fl.Value.String()}
		if sv, ok := fl.Value.(pflag.SliceValue); ok {
			s.slice = sv.GetSlice()
		}
		explicit = append(explicit, s)
	})

	if err := config.LoadFile(path, opts); err != nil {
		return err
	}

	for _, s := range explicit {
		var err error
		if sv, ok := s.flag.Value.(pflag.SliceValue); ok {
			err = sv.Replace(s.slice)
		} else {
			err = s.flag.Value.Set(s.value)
		}
		if err != nil {
			return fmt.Errorf("reapplying --%s: %w", s.flag.Name, err)
		}
	}

	return nil
}
