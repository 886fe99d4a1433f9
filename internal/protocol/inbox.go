package protocol

import (
	"errors"
	"io"
	"sync"
)

// inboxLimit bounds the bytes a background receiver holds before the
// owner decodes them.
const inboxLimit = 64 * bufferSize

// inbox accumulates bytes from the peer and decodes complete CBOR items
// from them. Until receive is called it reads from r only when a decode
// needs more data; afterwards a goroutine keeps it filled so poll can tell
// whether a whole item has already arrived.
type inbox struct {
	r     io.Reader
	chunk []byte

	mu        sync.Mutex
	space     *sync.Cond
	buf       []byte
	err       error
	receiving bool
	stopped   bool
	arrived   chan struct{}
}

func newInbox(r io.Reader) *inbox {
	in := &inbox{
		r:       r,
		chunk:   make([]byte, bufferSize),
		arrived: make(chan struct{}, 1),
	}
	in.space = sync.NewCond(&in.mu)
	return in
}

// decodeLocked decodes the first buffered item into v. done is false when
// the buffer holds no complete item and the stream is still open.
func (in *inbox) decodeLocked(v any) (done bool, err error) {
	if len(in.buf) > 0 {
		rest, err := decMode.UnmarshalFirst(in.buf, v)
		switch {
		case err == nil:
			n := copy(in.buf, rest)
			in.buf = in.buf[:n]
			in.space.Broadcast()
			return true, nil
		case !errors.Is(err, io.ErrUnexpectedEOF):
			return true, err
		}
	}
	if in.err != nil {
		if len(in.buf) > 0 && errors.Is(in.err, io.EOF) {
			return true, io.ErrUnexpectedEOF
		}
		return true, in.err
	}
	return false, nil
}

// next blocks until v holds the next item or the stream fails. A clean end
// of stream between items is reported as io.EOF.
func (in *inbox) next(v any) error {
	for {
		in.mu.Lock()
		done, err := in.decodeLocked(v)
		receiving := in.receiving
		in.mu.Unlock()
		if done {
			return err
		}
		if receiving {
			<-in.arrived
			continue
		}
		in.fill()
	}
}

// poll decodes the next item only if it is already buffered.
func (in *inbox) poll(v any) (bool, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.decodeLocked(v)
}

// fill performs one read from the peer.
func (in *inbox) fill() {
	n, err := in.r.Read(in.chunk)
	in.mu.Lock()
	in.buf = append(in.buf, in.chunk[:n]...)
	if err != nil {
		in.err = err
	}
	in.mu.Unlock()

	select {
	case in.arrived <- struct{}{}:
	default:
	}
}

// receive starts the background reader. It returns once the peer fails or
// stop is called.
func (in *inbox) receive() {
	in.mu.Lock()
	if in.receiving {
		in.mu.Unlock()
		return
	}
	in.receiving = true
	in.mu.Unlock()

	go func() {
		for {
			in.mu.Lock()
			for len(in.buf) >= inboxLimit && !in.stopped {
				in.space.Wait()
			}
			quit := in.stopped || in.err != nil
			in.mu.Unlock()
			if quit {
				return
			}
			in.fill()
		}
	}()
}

func (in *inbox) stop() {
	in.mu.Lock()
	in.stopped = true
	in.space.Broadcast()
	in.mu.Unlock()
}
