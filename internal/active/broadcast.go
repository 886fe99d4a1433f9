package active

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/example/rkvm-client/internal/clock"
	"github.com/example/rkvm-client/internal/ipc"
	"github.com/example/rkvm-client/internal/logging"
	"github.com/example/rkvm-client/internal/metrics"
)

const (
	// TickInterval is how often the active state is pushed to observers.
	TickInterval = 100 * time.Millisecond

	// AcceptRetryDelay is the pause after a failed accept, such as
	// running out of file descriptors.
	AcceptRetryDelay = 50 * time.Millisecond
)

// Message renders the line sent to observers for value.
func Message(value bool) string {
	return fmt.Sprintf("active_rkvm=%t\n", value)
}

type observer struct {
	id   string
	conn net.Conn
}

// Broadcaster pushes the State to every connected observer on each tick.
// Observers whose write fails are closed and forgotten.
type Broadcaster struct {
	listener net.Listener
	state    *State
	clock    clock.Clock
	interval time.Duration
	metrics  *metrics.Metrics

	observers []observer
}

// Option customises a Broadcaster.
type Option func(*Broadcaster)

// WithClock replaces the real clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(b *Broadcaster) { b.clock = c }
}

// WithMetrics reports the observer count to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Broadcaster) { b.metrics = m }
}

// NewBroadcaster serves state on an already bound listener.
func NewBroadcaster(listener net.Listener, state *State, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		listener: listener,
		state:    state,
		clock:    clock.Real(),
		interval: TickInterval,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start binds endpoint, creates the shared State (initially active) and
// runs a Broadcaster for it in the background until ctx is cancelled. The
// returned channel receives the result of Run once the socket file has been
// removed.
func Start(ctx context.Context, endpoint ipc.Endpoint, opts ...Option) (*State, <-chan error, error) {
	listener, err := endpoint.Listen()
	if err != nil {
		return nil, nil, fmt.Errorf("listen on %s: %w", endpoint.String(), err)
	}
	log.Printf("active state published on %s", endpoint.String())

	state := NewState()
	b := NewBroadcaster(listener, state, opts...)
	done := make(chan error, 1)
	go func() {
		err := b.Run(ctx)
		endpoint.Cleanup()
		done <- err
	}()
	return state, done, nil
}

// Run accepts observers and broadcasts on every tick until ctx is
// cancelled or the listener is closed. Other accept failures are retried
// after AcceptRetryDelay. The listener and all observers are closed on
// return.
func (b *Broadcaster) Run(ctx context.Context) error {
	conns := make(chan net.Conn)
	acceptErr := make(chan error, 1)
	go b.acceptLoop(ctx, conns, acceptErr)

	ticker := b.clock.NewTicker(b.interval)
	defer ticker.Stop()
	defer b.closeAll()

	go func() {
		<-ctx.Done()
		_ = b.listener.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-acceptErr:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("accept observer: %w", err)
		case conn := <-conns:
			o := observer{id: uuid.NewString(), conn: conn}
			b.observers = append(b.observers, o)
			b.metrics.SetObservers(len(b.observers))
			logging.Debug("observer connected", "observer", o.id, "observers", len(b.observers))
		case <-ticker.C:
			b.broadcast()
		}
	}
}

func (b *Broadcaster) acceptLoop(ctx context.Context, conns chan<- net.Conn, errs chan<- error) {
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				errs <- err
				return
			}
			logging.Debug("accept observer failed", "error", err, "retry", AcceptRetryDelay)
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case <-b.clock.After(AcceptRetryDelay):
			}
			continue
		}
		select {
		case conns <- conn:
		case <-ctx.Done():
			conn.Close()
			return
		}
	}
}

// broadcast writes one snapshot of the state to every observer and keeps
// only those that accepted it. A write may take at most one tick.
func (b *Broadcaster) broadcast() {
	msg := []byte(Message(b.state.Get()))

	alive := b.observers[:0]
	for _, o := range b.observers {
		// Socket deadlines are wall-clock regardless of the injected clock.
		_ = o.conn.SetWriteDeadline(time.Now().Add(b.interval))
		if _, err := o.conn.Write(msg); err != nil {
			logging.Debug("observer dropped", "observer", o.id, "error", err)
			o.conn.Close()
			continue
		}
		alive = append(alive, o)
	}
	for i := len(alive); i < len(b.observers); i++ {
		b.observers[i] = observer{}
	}
	b.observers = alive
	b.metrics.SetObservers(len(b.observers))
}

func (b *Broadcaster) closeAll() {
	for _, o := range b.observers {
		o.conn.Close()
	}
	b.observers = nil
	b.metrics.SetObservers(0)
}
