package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/example/rkvm-client/internal/client"
	"github.com/example/rkvm-client/internal/clock"
	"github.com/example/rkvm-client/internal/logging"
)

type runFunc func(context.Context, client.Options) error

// supervisor reconnects to the server after every session failure until
// its context is cancelled.
type supervisor struct {
	opts         client.Options
	run          runFunc
	clock        clock.Clock
	restartDelay time.Duration
}

func newSupervisor(opts client.Options, run runFunc, clk clock.Clock, restartDelay time.Duration) *supervisor {
	if clk == nil {
		clk = clock.Real()
	}
	if restartDelay <= 0 {
		restartDelay = 5 * time.Second
	}
	return &supervisor{
		opts:         opts,
		run:          run,
		clock:        clk,
		restartDelay: restartDelay,
	}
}

// loop returns ctx.Err() once ctx is cancelled.
func (s *supervisor) loop(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		opts := s.opts
		opts.SessionID = uuid.NewString()
		logging.Debug("starting session", "session", opts.SessionID, "attempt", attempt)

		err := s.run(ctx, opts)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		report(opts.SessionID, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(s.restartDelay):
		}
	}
}

func report(session string, err error) {
	var versionErr *client.VersionError
	switch {
	case errors.As(err, &versionErr):
		log.Printf("service: server protocol mismatch (session %s): %v", session, err)
	case errors.Is(err, client.ErrAuth):
		log.Printf("service: authentication rejected (session %s); check the configured password", session)
	case errors.Is(err, client.ErrInput):
		log.Printf("service: input backend failed (session %s): %v", session, err)
	default:
		log.Printf("service: session %s ended (%s): %v", session, client.Reason(err), err)
	}
}
