// Package active tracks whether this client owns input focus and publishes
// that flag to local processes over a UNIX socket.
package active

import "sync"

// State is the process-wide "this client is the active input target" flag.
// Writes are exclusive; reads never observe a partial write.
type State struct {
	mu    sync.RWMutex
	value bool
}

// NewState returns a State initialised to active.
func NewState() *State {
	return &State{value: true}
}

// Get returns the current value.
func (s *State) Get() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set overwrites the value.
func (s *State) Set(active bool) {
	s.mu.Lock()
	s.value = active
	s.mu.Unlock()
}
