package client

import (
	"github.com/example/rkvm-client/internal/input"
	"github.com/example/rkvm-client/internal/logging"
	"github.com/example/rkvm-client/internal/metrics"
	"github.com/example/rkvm-client/internal/protocol"
)

// registry maps server-assigned ids to the writers of live devices. It is
// owned by a single session goroutine and needs no locking.
type registry struct {
	writers map[protocol.DeviceID]input.Writer
	metrics *metrics.Metrics
}

func newRegistry(m *metrics.Metrics) *registry {
	return &registry{
		writers: make(map[protocol.DeviceID]input.Writer),
		metrics: m,
	}
}

// insert registers w under id. A device already registered under id is
// released and replaced.
func (r *registry) insert(id protocol.DeviceID, w input.Writer) {
	if old, ok := r.writers[id]; ok {
		release(id, old)
	}
	r.writers[id] = w
	r.metrics.SetDevices(len(r.writers))
}

// remove releases the device under id. Unknown ids are ignored.
func (r *registry) remove(id protocol.DeviceID) {
	w, ok := r.writers[id]
	if !ok {
		return
	}
	delete(r.writers, id)
	release(id, w)
	r.metrics.SetDevices(len(r.writers))
}

func (r *registry) get(id protocol.DeviceID) (input.Writer, bool) {
	w, ok := r.writers[id]
	return w, ok
}

// closeAll releases every device.
func (r *registry) closeAll() {
	for id, w := range r.writers {
		release(id, w)
	}
	clear(r.writers)
	r.metrics.SetDevices(0)
}

func release(id protocol.DeviceID, w input.Writer) {
	if err := w.Close(); err != nil {
		logging.Debug("release device failed", "id", id, "error", err)
	}
}
