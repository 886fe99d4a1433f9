// Package metrics exports client instrumentation to Prometheus. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rkvm_client"

// Metrics groups the collectors updated by the session loop and the
// broadcast service.
type Metrics struct {
	pingInterval prometheus.Histogram
	updates      *prometheus.CounterVec
	devices      prometheus.Gauge
	observers    prometheus.Gauge
	active       prometheus.Gauge
	sessionEnds  *prometheus.CounterVec
}

// New registers the client collectors with reg, reusing collectors that are
// already registered under the same name.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		pingInterval: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ping_interval_seconds",
			Help:      "Time between consecutive server pings.",
			Buckets:   []float64{0.25, 0.5, 0.75, 1, 1.25, 1.5, 2, 3, 5},
		}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Updates received from the server by kind.",
		}, []string{"kind"}),
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "devices",
			Help:      "Emulated devices currently registered.",
		}),
		observers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_observers",
			Help:      "Local processes connected to the active-state socket.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active",
			Help:      "1 when this client owns input focus.",
		}),
		sessionEnds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_ends_total",
			Help:      "Sessions terminated by error class.",
		}, []string{"reason"}),
	}

	var err error
	if m.pingInterval, err = registerOrReuse(reg, m.pingInterval); err != nil {
		return nil, fmt.Errorf("register ping histogram: %w", err)
	}
	if m.updates, err = registerOrReuse(reg, m.updates); err != nil {
		return nil, fmt.Errorf("register updates counter: %w", err)
	}
	if m.devices, err = registerOrReuse(reg, m.devices); err != nil {
		return nil, fmt.Errorf("register devices gauge: %w", err)
	}
	if m.observers, err = registerOrReuse(reg, m.observers); err != nil {
		return nil, fmt.Errorf("register observers gauge: %w", err)
	}
	if m.active, err = registerOrReuse(reg, m.active); err != nil {
		return nil, fmt.Errorf("register active gauge: %w", err)
	}
	if m.sessionEnds, err = registerOrReuse(reg, m.sessionEnds); err != nil {
		return nil, fmt.Errorf("register session counter: %w", err)
	}
	return m, nil
}

func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// ObservePing records the time elapsed since the previous ping.
func (m *Metrics) ObservePing(d time.Duration) {
	if m == nil {
		return
	}
	m.pingInterval.Observe(d.Seconds())
}

// CountUpdate increments the counter for an update kind.
func (m *Metrics) CountUpdate(kind string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(kind).Inc()
}

// SetDevices records the number of registered devices.
func (m *Metrics) SetDevices(n int) {
	if m == nil {
		return
	}
	m.devices.Set(float64(n))
}

// SetObservers records the number of retained observers.
func (m *Metrics) SetObservers(n int) {
	if m == nil {
		return
	}
	m.observers.Set(float64(n))
}

// SetActive records the active state.
func (m *Metrics) SetActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.active.Set(1)
	} else {
		m.active.Set(0)
	}
}

// CountSessionEnd increments the counter for a session termination reason.
func (m *Metrics) CountSessionEnd(reason string) {
	if m == nil {
		return
	}
	m.sessionEnds.WithLabelValues(reason).Inc()
}

// Serve exposes gatherer on addr under /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("metrics listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
