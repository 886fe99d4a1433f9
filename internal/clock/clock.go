// Package clock abstracts the time operations used by the session loop,
// the broadcast service and the reconnect supervisor so tests can drive
// tickers deterministically.
package clock

import "time"

// Clock is the subset of the time package used by this module.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives once d has elapsed. If
	// d <= 0 the channel is ready immediately.
	After(d time.Duration) <-chan time.Time

	// NewTicker returns a Ticker delivering ticks every d. Panics if
	// d <= 0, like time.NewTicker.
	NewTicker(d time.Duration) *Ticker
}

// Ticker wraps a periodic timer. C has capacity 1; ticks are dropped
// when the consumer falls behind.
type Ticker struct {
	C <-chan time.Time

	stopFunc  func()
	resetFunc func(time.Duration)
}

// Stop turns off the ticker. C is not closed.
func (t *Ticker) Stop() { t.stopFunc() }

// Reset restarts the tick cycle so the next tick arrives d from now.
func (t *Ticker) Reset(d time.Duration) { t.resetFunc(d) }
