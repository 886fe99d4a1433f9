package security

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// ClientTLSConfig builds the TLS configuration used to reach the server.
// Only certificates chaining to the PEM bundle at caPath are trusted; the
// server name is filled in per connection.
func ClientTLSConfig(caPath string) (*tls.Config, error) {
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("read certificate: %w", err)
	}
	return ClientTLSConfigFromPEM(pem)
}

// ClientTLSConfigFromPEM is ClientTLSConfig for an in-memory PEM bundle.
func ClientTLSConfigFromPEM(pem []byte) (*tls.Config, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("no certificates found in PEM data")
	}
	return &tls.Config{
		RootCAs:    pool,
		MinVersion: tls.VersionTLS12,
	}, nil
}
