// Package client drives one connection to an rkvm server: TLS dial,
// version check, authentication, then the update loop that maps server
// updates onto emulated devices and the shared active state.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/example/rkvm-client/internal/active"
	"github.com/example/rkvm-client/internal/clock"
	"github.com/example/rkvm-client/internal/input"
	"github.com/example/rkvm-client/internal/logging"
	"github.com/example/rkvm-client/internal/metrics"
	"github.com/example/rkvm-client/internal/protocol"
)

// Options configures a connection attempt.
type Options struct {
	Host      string
	Port      uint16
	TLSConfig *tls.Config
	Password  string

	// State receives Control updates. A private State is used when nil.
	State *active.State
	// Backend emulates devices. Defaults to uinput.
	Backend input.Backend
	Metrics *metrics.Metrics
	Clock   clock.Clock

	// KeepaliveInterval defaults to protocol.KeepaliveInterval.
	KeepaliveInterval time.Duration
	// SessionID tags log lines; a random id is generated when empty.
	SessionID string
}

func (o Options) withDefaults() Options {
	if o.State == nil {
		o.State = active.NewState()
	}
	if o.Backend == nil {
		o.Backend = input.NewUinput()
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.KeepaliveInterval <= 0 {
		o.KeepaliveInterval = protocol.KeepaliveInterval
	}
	if o.SessionID == "" {
		o.SessionID = uuid.NewString()
	}
	return o
}

// Run connects to the server described by opts and services the
// connection. It only returns with an error; every device created during
// the session is released first.
func Run(ctx context.Context, opts Options) error {
	opts = opts.withDefaults()
	conn, err := Dial(ctx, opts.Host, opts.Port, opts.TLSConfig)
	if err != nil {
		opts.Metrics.CountSessionEnd(Reason(err))
		return err
	}
	logging.Info("Connected", "session", opts.SessionID, "server", conn.RemoteAddr())
	return Serve(ctx, conn, opts)
}

// Serve runs the handshake and the update loop on an established stream.
// Each update is fully handled, including flushing the Pong for a Ping,
// before the next one is decoded. It takes ownership of conn and closes it
// on return. Cancelling ctx closes the stream, which ends the loop with a
// network error.
func Serve(ctx context.Context, conn net.Conn, opts Options) (err error) {
	opts = opts.withDefaults()
	defer conn.Close()
	defer func() { opts.Metrics.CountSessionEnd(Reason(err)) }()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	s := &session{
		id:        opts.SessionID,
		conn:      protocol.NewConn(conn),
		password:  opts.Password,
		state:     opts.State,
		backend:   opts.Backend,
		metrics:   opts.Metrics,
		clock:     opts.Clock,
		keepalive: opts.KeepaliveInterval,
	}
	if err := s.handshake(); err != nil {
		return contextError(ctx, err)
	}
	return contextError(ctx, s.serve(ctx))
}

// contextError reports ctx's error alongside err when the stream failed
// because ctx was cancelled.
func contextError(ctx context.Context, err error) error {
	if ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
		return fmt.Errorf("%w (%w)", err, ctx.Err())
	}
	return err
}
