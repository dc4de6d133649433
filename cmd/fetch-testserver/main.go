// Command fetch-testserver runs the HTTPS fixture server used to exercise
// fetch by hand or from scripts.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamwoolhether/fetch/internal/testserver"
)

func main() {
	if err := newCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	var (
		addr      string
		certFile  string
		keyFile   string
		caOut     string
		slowDelay time.Duration
	)

	cmd := &cobra.Command{
		Use:          "fetch-testserver",
		Short:        "Serve the fetch HTTPS fixture routes",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := slog.New(slog.NewTextHandler(os.Stderr, nil))

			cert, err := loadCertificate(certFile, keyFile, caOut, log)
			if err != nil {
				return err
			}

			handler := testserver.New(
				testserver.WithLogger(log),
				testserver.WithSlowDelay(slowDelay),
			)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return testserver.NewServer(handler, addr, cert, log).Run(ctx)
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", testserver.DefaultAddr, "listen `address`")
	f.StringVar(&certFile, "cert", "", "PEM certificate `file`; a self-signed one is generated when empty")
	f.StringVar(&keyFile, "key", "", "PEM private key `file` matching --cert")
	f.StringVar(&caOut, "write-ca", "", "write the generated certificate to `file` for use with fetch --cacert")
	f.DurationVar(&slowDelay, "slow-delay", testserver.DefaultSlowDelay, "delay of the /slow_answer route")
	cmd.MarkFlagsRequiredTogether("cert", "key")

	return cmd
}

func loadCertificate(certFile, keyFile, caOut string, log *slog.Logger) (tls.Certificate, error) {
	if certFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("loading key pair: %w", err)
		}
		return cert, nil
	}

	cert, certPEM, err := testserver.SelfSigned()
	if err != nil {
		return tls.Certificate{}, err
	}

	if caOut != "" {
		if err := os.WriteFile(caOut, certPEM, 0o644); err != nil {
			return tls.Certificate{}, fmt.Errorf("writing certificate: %w", err)
		}
		log.Info("certificate written", "path", caOut)
	}

	return cert, nil
}
