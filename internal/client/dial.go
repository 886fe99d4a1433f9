package client

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strconv"

	"github.com/example/rkvm-client/internal/protocol"
)

// Dial connects to host:port and completes the TLS handshake within
// protocol.TransportTimeout. host may be a DNS name or a literal address;
// it is also the name the server certificate must match.
func Dial(ctx context.Context, host string, port uint16, config *tls.Config) (net.Conn, error) {
	if config == nil {
		return nil, networkError(errors.New("missing TLS configuration"))
	}
	tlsConfig := config.Clone()
	if tlsConfig.ServerName == "" {
		tlsConfig.ServerName = host
	}

	ctx, cancel := context.WithTimeout(ctx, protocol.TransportTimeout)
	defer cancel()

	dialer := &tls.Dialer{NetDialer: &net.Dialer{}, Config: tlsConfig}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		return nil, networkError(err)
	}
	return conn, nil
}
