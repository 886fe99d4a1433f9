package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultSocketPath is where the active-state socket lives unless overridden.
const DefaultSocketPath = "/run/rkvm/active.sock"

// Endpoint describes the local socket that publishes the active state to
// other processes on this host.
type Endpoint struct {
	Network string
	Address string
}

// DefaultEndpoint resolves the socket path using environment overrides.
func DefaultEndpoint() Endpoint {
	if path := strings.TrimSpace(os.Getenv("RKVM_ACTIVE_SOCKET")); path != "" {
		return UnixEndpoint(path)
	}
	return UnixEndpoint(DefaultSocketPath)
}

// UnixEndpoint returns an endpoint for the UNIX stream socket at path.
func UnixEndpoint(path string) Endpoint {
	return Endpoint{Network: "unix", Address: path}
}

// Listen binds to the configured endpoint. For UNIX sockets the parent
// directory is created and a stale socket from a previous run is removed
// first.
func (e Endpoint) Listen() (net.Listener, error) {
	if e.Network == "unix" {
		if err := os.MkdirAll(filepath.Dir(e.Address), 0o755); err != nil {
			return nil, fmt.Errorf("ensure socket directory: %w", err)
		}
		if err := os.Remove(e.Address); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}
	return net.Listen(e.Network, e.Address)
}

// Cleanup removes the socket file left behind by Listen.
func (e Endpoint) Cleanup() {
	if e.Network == "unix" {
		_ = os.Remove(e.Address)
	}
}

// DialContext establishes a client connection with sensible timeouts.
func (e Endpoint) DialContext(ctx context.Context) (net.Conn, error) {
	d := &net.Dialer{Timeout: 5 * time.Second}
	return d.DialContext(ctx, e.Network, e.Address)
}

// String provides a readable representation for logs.
func (e Endpoint) String() string {
	return fmt.Sprintf("%s://%s", e.Network, e.Address)
}
