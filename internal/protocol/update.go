package protocol

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/example/rkvm-client/internal/input"
)

// DeviceID is the server-assigned identifier of an emulated device. It is
// unique among the live devices of one connection.
type DeviceID uint64

// UpdateKind tags the variant carried by an update envelope.
type UpdateKind uint8

const (
	KindControl UpdateKind = iota + 1
	KindCreateDevice
	KindDestroyDevice
	KindEvent
	KindPing
)

func (k UpdateKind) String() string {
	switch k {
	case KindControl:
		return "control"
	case KindCreateDevice:
		return "create_device"
	case KindDestroyDevice:
		return "destroy_device"
	case KindEvent:
		return "event"
	case KindPing:
		return "ping"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Update is a server-to-client steady-state message. The set of variants
// is closed: Control, CreateDevice, DestroyDevice, Event and Ping.
type Update interface {
	Kind() UpdateKind
	isUpdate()
}

// Control tells the client whether it currently owns input focus.
type Control struct {
	Active bool `cbor:"active"`
}

// CreateDevice asks the client to emulate a new device under ID.
type CreateDevice struct {
	ID      DeviceID                 `cbor:"id"`
	Name    string                   `cbor:"name"`
	Vendor  uint16                   `cbor:"vendor"`
	Product uint16                   `cbor:"product"`
	Version uint16                   `cbor:"version"`
	Rel     []uint16                 `cbor:"rel,omitempty"`
	Abs     map[uint16]input.AbsInfo `cbor:"abs,omitempty"`
	Keys    []uint16                 `cbor:"keys,omitempty"`
	Delay   *int32                   `cbor:"delay,omitempty"`
	Period  *int32                   `cbor:"period,omitempty"`
}

// Spec converts the update into a backend device description.
func (c CreateDevice) Spec() input.DeviceSpec {
	return input.DeviceSpec{
		Name:    c.Name,
		Vendor:  c.Vendor,
		Product: c.Product,
		Version: c.Version,
		Rel:     c.Rel,
		Abs:     c.Abs,
		Keys:    c.Keys,
		Delay:   c.Delay,
		Period:  c.Period,
	}
}

// DestroyDevice releases the device registered under ID.
type DestroyDevice struct {
	ID DeviceID `cbor:"id"`
}

// Event carries one input event for the device registered under ID.
type Event struct {
	ID    DeviceID    `cbor:"id"`
	Event input.Event `cbor:"event"`
}

// Ping is the server's liveness check; the client answers with Pong.
type Ping struct{}

// Pong acknowledges a Ping.
type Pong struct{}

func (Control) Kind() UpdateKind       { return KindControl }
func (CreateDevice) Kind() UpdateKind  { return KindCreateDevice }
func (DestroyDevice) Kind() UpdateKind { return KindDestroyDevice }
func (Event) Kind() UpdateKind         { return KindEvent }
func (Ping) Kind() UpdateKind          { return KindPing }

func (Control) isUpdate()       {}
func (CreateDevice) isUpdate()  {}
func (DestroyDevice) isUpdate() {}
func (Event) isUpdate()         {}
func (Ping) isUpdate()          {}

type envelope struct {
	Kind UpdateKind      `cbor:"kind"`
	Body cbor.RawMessage `cbor:"body,omitempty"`
}

func wrapUpdate(u Update) (envelope, error) {
	env := envelope{Kind: u.Kind()}
	if _, ok := u.(Ping); ok {
		return env, nil
	}
	body, err := encMode.Marshal(u)
	if err != nil {
		return envelope{}, fmt.Errorf("encode %s: %w", u.Kind(), err)
	}
	env.Body = body
	return env, nil
}

func unwrapUpdate(env envelope) (Update, error) {
	switch env.Kind {
	case KindControl:
		var u Control
		if err := decodeBody(env, &u); err != nil {
			return nil, err
		}
		return u, nil
	case KindCreateDevice:
		var u CreateDevice
		if err := decodeBody(env, &u); err != nil {
			return nil, err
		}
		return u, nil
	case KindDestroyDevice:
		var u DestroyDevice
		if err := decodeBody(env, &u); err != nil {
			return nil, err
		}
		return u, nil
	case KindEvent:
		var u Event
		if err := decodeBody(env, &u); err != nil {
			return nil, err
		}
		return u, nil
	case KindPing:
		return Ping{}, nil
	default:
		return nil, fmt.Errorf("unknown update kind %d", uint8(env.Kind))
	}
}

func decodeBody(env envelope, v any) error {
	if len(env.Body) == 0 {
		return fmt.Errorf("%s update without body", env.Kind)
	}
	if err := decMode.Unmarshal(env.Body, v); err != nil {
		return fmt.Errorf("decode %s: %w", env.Kind, err)
	}
	return nil
}
