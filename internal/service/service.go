// Package service wires the rkvm client process together: the active
// state broadcaster, the optional metrics endpoint and the reconnecting
// session supervisor.
package service

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/example/rkvm-client/internal/active"
	"github.com/example/rkvm-client/internal/client"
	"github.com/example/rkvm-client/internal/clock"
	"github.com/example/rkvm-client/internal/config"
	"github.com/example/rkvm-client/internal/input"
	"github.com/example/rkvm-client/internal/ipc"
	"github.com/example/rkvm-client/internal/metrics"
	"github.com/example/rkvm-client/internal/security"
)

// Service runs the client until its context is cancelled.
type Service struct {
	cfg      *config.Config
	host     string
	port     uint16
	tls      *tls.Config
	endpoint ipc.Endpoint

	registry *prometheus.Registry
	metrics  *metrics.Metrics
	backend  input.Backend
	clock    clock.Clock
	run      runFunc
}

// New validates cfg and prepares a Service that drives uinput devices.
func New(cfg *config.Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	tlsConfig, err := security.ClientTLSConfig(cfg.Certificate)
	if err != nil {
		return nil, err
	}
	return newService(cfg, tlsConfig, input.NewUinput(), clock.Real(), client.Run)
}

func newService(cfg *config.Config, tlsConfig *tls.Config, backend input.Backend, clk clock.Clock, run runFunc) (*Service, error) {
	host, port, err := cfg.Target()
	if err != nil {
		return nil, err
	}
	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:      cfg,
		host:     host,
		port:     port,
		tls:      tlsConfig,
		endpoint: cfg.ActiveEndpoint(),
		registry: registry,
		metrics:  m,
		backend:  backend,
		clock:    clk,
		run:      run,
	}, nil
}

// Endpoint exposes the active state socket for logging and diagnostics.
func (s *Service) Endpoint() string {
	return s.endpoint.String()
}

// Run publishes the active state, serves metrics when configured and
// keeps a session to the server alive. It returns nil after a clean
// shutdown.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	state, broadcastDone, err := active.Start(ctx, s.endpoint,
		active.WithClock(s.clock), active.WithMetrics(s.metrics))
	if err != nil {
		return err
	}
	g.Go(func() error {
		return ignoreCanceled(<-broadcastDone)
	})
	if s.cfg.MetricsAddress != "" {
		g.Go(func() error {
			return metrics.Serve(ctx, s.cfg.MetricsAddress, s.registry)
		})
	}
	g.Go(func() error {
		opts := client.Options{
			Host:      s.host,
			Port:      s.port,
			TLSConfig: s.tls,
			Password:  s.cfg.Password,
			State:     state,
			Backend:   s.backend,
			Metrics:   s.metrics,
			Clock:     s.clock,
		}
		sup := newSupervisor(opts, s.run, s.clock, s.cfg.ReconnectDelay)
		return ignoreCanceled(sup.loop(ctx))
	})

	err = g.Wait()
	log.Println("rkvm client shutting down")
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
