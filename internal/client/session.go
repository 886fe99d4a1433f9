package client

import (
	"context"
	"fmt"
	"time"

	"github.com/example/rkvm-client/internal/active"
	"github.com/example/rkvm-client/internal/clock"
	"github.com/example/rkvm-client/internal/input"
	"github.com/example/rkvm-client/internal/logging"
	"github.com/example/rkvm-client/internal/metrics"
	"github.com/example/rkvm-client/internal/protocol"
)

type session struct {
	id        string
	conn      *protocol.Conn
	password  string
	state     *active.State
	backend   input.Backend
	metrics   *metrics.Metrics
	clock     clock.Clock
	keepalive time.Duration

	devices  *registry
	lastPing time.Time
	// expired records a keepalive tick consumed while an update won the
	// race; the next wait without a ready update times out immediately.
	expired bool
}

func (s *session) handshake() error {
	if err := s.conn.WriteVersion(protocol.CurrentVersion); err != nil {
		return networkError(err)
	}
	if err := s.conn.Flush(); err != nil {
		return networkError(err)
	}
	version, err := s.conn.ReadVersion()
	if err != nil {
		return networkError(err)
	}
	if version != protocol.CurrentVersion {
		return &VersionError{Server: version, Client: protocol.CurrentVersion}
	}

	challenge, err := s.conn.ReadChallenge()
	if err != nil {
		return networkError(err)
	}
	response, err := challenge.Respond(s.password)
	if err != nil {
		return fmt.Errorf("compute auth response: %w", err)
	}
	if err := s.conn.WriteResponse(response); err != nil {
		return networkError(err)
	}
	if err := s.conn.Flush(); err != nil {
		return networkError(err)
	}
	status, err := s.conn.ReadStatus()
	if err != nil {
		return networkError(err)
	}
	if status != protocol.AuthPassed {
		return ErrAuth
	}

	logging.Info("Authenticated successfully", "session", s.id)
	return nil
}

// serve runs the steady-state loop. Updates are decoded and handled one
// at a time on this goroutine, so a Pong is flushed before the next update
// is decoded. Bytes keep arriving in the background meanwhile, which lets
// a fully received update win over an expired keepalive tick.
func (s *session) serve(ctx context.Context) error {
	s.devices = newRegistry(s.metrics)
	defer s.devices.closeAll()

	s.conn.StartReceiving()
	defer s.conn.StopReceiving()

	ticker := s.clock.NewTicker(s.keepalive)
	defer ticker.Stop()
	s.lastPing = s.clock.Now()

	for {
		update, err := s.next(ticker)
		if err != nil {
			return err
		}
		if err := s.handle(ctx, update, ticker); err != nil {
			return err
		}
	}
}

// next waits for the next update or the keepalive deadline. An update that
// has been received completely always wins over an expired tick.
func (s *session) next(ticker *clock.Ticker) (protocol.Update, error) {
	for {
		if update, ok, err := s.poll(); ok {
			return update, err
		}
		if s.expired {
			return nil, networkError(ErrPingTimeout)
		}

		select {
		case <-s.conn.Arrived():
		case <-ticker.C:
			if update, ok, err := s.poll(); ok {
				s.expired = true
				return update, err
			}
			return nil, networkError(ErrPingTimeout)
		}
	}
}

func (s *session) poll() (protocol.Update, bool, error) {
	update, ok, err := s.conn.PollUpdate()
	if err != nil {
		return nil, true, networkError(err)
	}
	return update, ok, nil
}

func (s *session) handle(ctx context.Context, update protocol.Update, ticker *clock.Ticker) error {
	s.metrics.CountUpdate(update.Kind().String())

	switch u := update.(type) {
	case protocol.Control:
		s.state.Set(u.Active)
		s.metrics.SetActive(u.Active)
		logging.Info("Active state set", "session", s.id, "active", u.Active)

	case protocol.CreateDevice:
		writer, err := s.backend.Create(ctx, u.Spec())
		if err != nil {
			return inputError(fmt.Errorf("create device %d: %w", u.ID, err))
		}
		s.devices.insert(u.ID, writer)
		logging.Info("Created new device", "session", s.id, "id", u.ID, "name", u.Name)

	case protocol.DestroyDevice:
		s.devices.remove(u.ID)
		logging.Info("Destroyed device", "session", s.id, "id", u.ID)

	case protocol.Event:
		writer, ok := s.devices.get(u.ID)
		if !ok {
			return networkError(fmt.Errorf("%w (id %d)", ErrUnknownDevice, u.ID))
		}
		if err := writer.Write(u.Event); err != nil {
			return inputError(fmt.Errorf("device %d: %w", u.ID, err))
		}

	case protocol.Ping:
		now := s.clock.Now()
		elapsed := now.Sub(s.lastPing)
		s.lastPing = now
		s.metrics.ObservePing(elapsed)
		logging.Debug("Received ping", "session", s.id, "duration", elapsed)

		ticker.Reset(s.keepalive)
		s.expired = false

		if err := s.conn.WritePong(); err != nil {
			return networkError(err)
		}
		if err := s.conn.Flush(); err != nil {
			return networkError(err)
		}

	default:
		return networkError(fmt.Errorf("%w: unhandled update %T", protocol.ErrMalformed, update))
	}
	return nil
}
