package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// ErrMalformed marks a well-formed CBOR item that is not a valid message.
var ErrMalformed = errors.New("malformed message")

// Conn frames protocol messages on a byte stream. Writes are buffered
// until Flush. A Conn may be read by one goroutine while another writes,
// but neither side is safe for concurrent use on its own.
type Conn struct {
	w   *bufio.Writer
	enc *cbor.Encoder
	in  *inbox
}

// NewConn wraps rw, which is usually a *tls.Conn.
func NewConn(rw io.ReadWriter) *Conn {
	w := bufio.NewWriterSize(rw, bufferSize)
	return &Conn{
		w:   w,
		enc: encMode.NewEncoder(w),
		in:  newInbox(rw),
	}
}

// Flush sends any buffered messages.
func (c *Conn) Flush() error {
	return c.w.Flush()
}

func (c *Conn) send(v any) error {
	return c.enc.Encode(v)
}

// receive decodes the next item into v. io.EOF is returned unwrapped when
// the stream ends cleanly between items.
func (c *Conn) receive(v any) error {
	return c.in.next(v)
}

// StartReceiving keeps reading from the peer in the background so that
// PollUpdate sees every item that has arrived. It must be called from the
// goroutine that reads from c. The background reader ends when the
// underlying stream fails or StopReceiving is called.
func (c *Conn) StartReceiving() {
	c.in.receive()
}

// StopReceiving stops the background reader once its current read returns.
func (c *Conn) StopReceiving() {
	c.in.stop()
}

// Arrived signals that new bytes were received since the last signal.
func (c *Conn) Arrived() <-chan struct{} {
	return c.in.arrived
}

// WriteVersion queues v.
func (c *Conn) WriteVersion(v Version) error {
	return c.send(v)
}

// ReadVersion reads the peer's Version.
func (c *Conn) ReadVersion() (Version, error) {
	var v Version
	if err := c.receive(&v); err != nil {
		return 0, err
	}
	return v, nil
}

// WriteChallenge queues ch.
func (c *Conn) WriteChallenge(ch AuthChallenge) error {
	return c.send(ch)
}

// ReadChallenge reads an AuthChallenge.
func (c *Conn) ReadChallenge() (AuthChallenge, error) {
	var ch AuthChallenge
	if err := c.receive(&ch); err != nil {
		return AuthChallenge{}, err
	}
	return ch, nil
}

// WriteResponse queues r.
func (c *Conn) WriteResponse(r AuthResponse) error {
	return c.send(r)
}

// ReadResponse reads an AuthResponse.
func (c *Conn) ReadResponse() (AuthResponse, error) {
	var r AuthResponse
	if err := c.receive(&r); err != nil {
		return AuthResponse{}, err
	}
	return r, nil
}

// WriteStatus queues s.
func (c *Conn) WriteStatus(s AuthStatus) error {
	return c.send(s)
}

// ReadStatus reads an AuthStatus.
func (c *Conn) ReadStatus() (AuthStatus, error) {
	var s AuthStatus
	if err := c.receive(&s); err != nil {
		return 0, err
	}
	return s, nil
}

// WriteUpdate queues u inside an update envelope.
func (c *Conn) WriteUpdate(u Update) error {
	env, err := wrapUpdate(u)
	if err != nil {
		return err
	}
	return c.send(env)
}

// ReadUpdate reads the next Update. Envelopes with an unknown kind or a
// malformed body are reported as errors.
func (c *Conn) ReadUpdate() (Update, error) {
	var env envelope
	if err := c.receive(&env); err != nil {
		return nil, err
	}
	return openEnvelope(env)
}

// PollUpdate returns the next Update if it has been received completely.
// ok is false when nothing is ready yet; a failed stream is ready with
// its error.
func (c *Conn) PollUpdate() (u Update, ok bool, err error) {
	var env envelope
	ok, err = c.in.poll(&env)
	if !ok || err != nil {
		return nil, ok, err
	}
	u, err = openEnvelope(env)
	return u, true, err
}

func openEnvelope(env envelope) (Update, error) {
	u, err := unwrapUpdate(env)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return u, nil
}

// WritePong queues a Pong.
func (c *Conn) WritePong() error {
	return c.send(Pong{})
}

// ReadPong reads a Pong.
func (c *Conn) ReadPong() error {
	var p Pong
	return c.receive(&p)
}
