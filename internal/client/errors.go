package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/rkvm-client/internal/protocol"
)

var (
	// ErrNetwork wraps every transport failure, including the keepalive
	// timeout and protocol violations by the server.
	ErrNetwork = errors.New("network error")

	// ErrInput wraps failures to create or write to an emulated device.
	ErrInput = errors.New("input error")

	// ErrAuth reports a rejected authentication attempt. It does not say
	// why the server refused.
	ErrAuth = errors.New("invalid password")

	// ErrPingTimeout is the network error raised when no Ping arrives
	// within one keepalive interval.
	ErrPingTimeout = errors.New("ping timed out")

	// ErrUnknownDevice is the network error raised when the server sends
	// an event for a device id that is not registered.
	ErrUnknownDevice = errors.New("server sent an event to a nonexistent device")
)

// VersionError reports a server speaking a different protocol version.
type VersionError struct {
	Server protocol.Version
	Client protocol.Version
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("incompatible server version (got %s, expected %s)", e.Server, e.Client)
}

func networkError(err error) error {
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

func inputError(err error) error {
	return fmt.Errorf("%w: %w", ErrInput, err)
}

// Reason classifies err for logs and metrics.
func Reason(err error) string {
	var versionErr *VersionError
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &versionErr):
		return "version"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrPingTimeout):
		return "timeout"
	case errors.Is(err, ErrUnknownDevice):
		return "protocol"
	case errors.Is(err, ErrInput):
		return "input"
	case errors.Is(err, ErrNetwork):
		return "network"
	default:
		return "other"
	}
}
