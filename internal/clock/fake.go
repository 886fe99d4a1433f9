package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock starting at initial. Time only moves when
// Advance is called.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{current: initial}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// FakeClock is a deterministic Clock for tests. It is safe for concurrent
// use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*fakeWaiter
	changed *sync.Cond
}

type fakeWaiter struct {
	deadline time.Time
	channel  chan time.Time
	// interval is non-zero for tickers, which are rescheduled after firing.
	interval time.Duration
	stopped  bool
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that fires once the clock has advanced by d.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.current
		return ch
	}
	c.waiters = append(c.waiters, &fakeWaiter{deadline: c.current.Add(d), channel: ch})
	c.changed.Broadcast()
	return ch
}

// NewTicker registers a ticker firing every d of fake time.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	w := &fakeWaiter{deadline: c.current.Add(d), channel: ch, interval: d}
	c.waiters = append(c.waiters, w)
	c.changed.Broadcast()

	return &Ticker{
		C: ch,
		stopFunc: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			w.stopped = true
			c.changed.Broadcast()
		},
		resetFunc: func(d time.Duration) {
			c.mu.Lock()
			defer c.mu.Unlock()
			w.interval = d
			w.deadline = c.current.Add(d)
			w.stopped = false
			// Match time.Ticker.Reset: no stale tick is delivered after
			// Reset returns.
			select {
			case <-ch:
			default:
			}
			c.changed.Broadcast()
		},
	}
}

// Advance moves the clock forward by d and fires every waiter whose
// deadline has been reached, in deadline order. Sends never block; a full
// ticker channel drops the tick like time.Ticker does.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	target := c.current
	c.mu.Unlock()

	for {
		due := c.collectExpired(target)
		if len(due) == 0 {
			return
		}
		sort.Slice(due, func(i, j int) bool {
			return due[i].deadline.Before(due[j].deadline)
		})
		for _, w := range due {
			select {
			case w.channel <- target:
			default:
			}
		}
	}
}

func (c *FakeClock) collectExpired(target time.Time) []*fakeWaiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due, remaining []*fakeWaiter
	for _, w := range c.waiters {
		if w.stopped {
			remaining = append(remaining, w)
			continue
		}
		if !w.deadline.After(target) {
			due = append(due, w)
		} else {
			remaining = append(remaining, w)
		}
	}
	for _, w := range due {
		if w.interval > 0 {
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining

	// Tickers are rescheduled after the caller sorted them by their old
	// deadline, so the copy returned keeps that deadline.
	out := make([]*fakeWaiter, len(due))
	for i, w := range due {
		snapshot := *w
		out[i] = &snapshot
		if w.interval > 0 {
			w.deadline = w.deadline.Add(w.interval)
		}
	}
	return out
}

// WaitForTimers blocks until at least n tickers or After channels are
// pending. It closes the race between a goroutine registering its ticker
// and the test advancing the clock.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingLocked() < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of active waiters.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

func (c *FakeClock) pendingLocked() int {
	count := 0
	for _, w := range c.waiters {
		if !w.stopped {
			count++
		}
	}
	return count
}
