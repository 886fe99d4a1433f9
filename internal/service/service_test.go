package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/example/rkvm-client/internal/client"
	"github.com/example/rkvm-client/internal/clock"
	"github.com/example/rkvm-client/internal/config"
	"github.com/example/rkvm-client/internal/ipc"
)

type recorder struct {
	mu    sync.Mutex
	calls []client.Options
}

func (r *recorder) record(opts client.Options) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, opts)
	return len(r.calls)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recorder) call(i int) client.Options {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[i]
}

func newFakeClock() *clock.FakeClock {
	return clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestSupervisorRestartsAfterDelay(t *testing.T) {
	clk := newFakeClock()
	rec := &recorder{}
	run := func(ctx context.Context, opts client.Options) error {
		if rec.record(opts) >= 3 {
			<-ctx.Done()
			return ctx.Err()
		}
		return fmt.Errorf("%w: connection refused", client.ErrNetwork)
	}

	sup := newSupervisor(client.Options{Host: "kvm"}, run, clk, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.loop(ctx) }()

	for attempt := 1; attempt < 3; attempt++ {
		clk.WaitForTimers(1)
		if got := rec.count(); got != attempt {
			t.Fatalf("attempts before delay = %d, want %d", got, attempt)
		}
		clk.Advance(time.Second)
	}
	waitFor(t, func() bool { return rec.count() == 3 })

	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		opts := rec.call(i)
		if opts.Host != "kvm" {
			t.Fatalf("options not forwarded: %+v", opts)
		}
		if opts.SessionID == "" || seen[opts.SessionID] {
			t.Fatalf("attempt %d reused or lacks a session id: %q", i, opts.SessionID)
		}
		seen[opts.SessionID] = true
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("loop returned %v", err)
	}
}

func TestSupervisorStopsDuringDelay(t *testing.T) {
	clk := newFakeClock()
	rec := &recorder{}
	run := func(ctx context.Context, opts client.Options) error {
		rec.record(opts)
		return client.ErrAuth
	}

	sup := newSupervisor(client.Options{}, run, clk, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.loop(ctx) }()

	clk.WaitForTimers(1)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("loop returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor ignored cancellation")
	}
	if rec.count() != 1 {
		t.Fatalf("unexpected reconnect: %d attempts", rec.count())
	}
}

func TestSupervisorDefaults(t *testing.T) {
	sup := newSupervisor(client.Options{}, nil, nil, 0)
	if sup.restartDelay != 5*time.Second || sup.clock == nil {
		t.Fatalf("defaults not applied: %+v", sup)
	}
}

func TestServicePublishesSessionState(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "active.sock")
	cfg := &config.Config{
		Server:         "kvm.local:5258",
		Password:       "pw",
		ActiveSocket:   socket,
		ReconnectDelay: time.Second,
	}
	clk := newFakeClock()
	rec := &recorder{}
	run := func(ctx context.Context, opts client.Options) error {
		rec.record(opts)
		opts.State.Set(false)
		<-ctx.Done()
		return ctx.Err()
	}

	svc, err := newService(cfg, nil, nil, clk, run)
	if err != nil {
		t.Fatalf("newService: %v", err)
	}
	if svc.Endpoint() != "unix://"+socket {
		t.Fatalf("Endpoint() = %q", svc.Endpoint())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	waitFor(t, func() bool { return rec.count() == 1 })
	opts := rec.call(0)
	if opts.Host != "kvm.local" || opts.Port != 5258 || opts.Password != "pw" || opts.Metrics == nil {
		t.Fatalf("unexpected session options: %+v", opts)
	}

	conn, err := ipc.UnixEndpoint(socket).DialContext(ctx)
	if err != nil {
		t.Fatalf("dial active socket: %v", err)
	}
	defer conn.Close()
	reader := bufio.NewReader(conn)

	clk.WaitForTimers(1)
	// The observer may be registered after the first tick; keep ticking
	// until a line arrives.
	lines := make(chan string, 1)
	go func() {
		line, _ := reader.ReadString('\n')
		lines <- line
	}()
	deadline := time.After(2 * time.Second)
	for {
		clk.Advance(100 * time.Millisecond)
		select {
		case line := <-lines:
			if line != "active_rkvm=false\n" {
				t.Fatalf("unexpected line %q", line)
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Run returned %v", err)
			}
			if _, err := os.Stat(socket); !os.IsNotExist(err) {
				t.Fatalf("socket not cleaned up: %v", err)
			}
			return
		case <-deadline:
			t.Fatal("no broadcast received")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	if _, err := New(&config.Config{}); err == nil {
		t.Fatal("expected validation error")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
