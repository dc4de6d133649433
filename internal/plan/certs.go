package plan

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"path/filepath"
	"strings"
)

// loadTrustAnchors reads the CA file at path. A ".der" file holds exactly
// one DER certificate, anything else is a PEM bundle of zero or more
// certificates.
func loadTrustAnchors(path string, readFile func(string) ([]byte, error)) ([]*x509.Certificate, error) {
	if path == "" {
		return nil, nil
	}

	data, err := readFile(path)
	if err != nil {
		return nil, &ConfigError{Option: "cacert", Err: fmt.Errorf("%w: %w", ErrTrustAnchors, err)}
	}

	if strings.EqualFold(filepath.Ext(path), ".der") {
		cert, err := x509.ParseCertificate(data)
		if err != nil {
			return nil, &ConfigError{Option: "cacert", Detail: path, Err: fmt.Errorf("%w: %w", ErrTrustAnchors, err)}
		}
		return []*x509.Certificate{cert}, nil
	}

	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, &ConfigError{Option: "cacert", Detail: path, Err: fmt.Errorf("%w: %w", ErrTrustAnchors, err)}
		}
		certs = append(certs, cert)
	}

	return certs, nil
}
