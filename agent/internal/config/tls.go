package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// ClientTLS builds the client TLS settings for a. In mtls mode the client
// certificate is loaded and CAFile, when set, replaces the system roots.
// Other modes get an empty config carrying only insecureSkipVerify.
func (a AuthConfig) ClientTLS(insecureSkipVerify bool) (*tls.Config, error) {
	cfg := &tls.Config{
		InsecureSkipVerify: insecureSkipVerify, //nolint:gosec // user-configured
	}
	if a.Mode != "mtls" {
		return cfg, nil
	}

	cert, err := tls.LoadX509KeyPair(a.CertFile, a.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}
	cfg.Certificates = []tls.Certificate{cert}

	if a.CAFile != "" {
		caPEM, err := os.ReadFile(a.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no valid certs found in ca file %q", a.CAFile)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}
