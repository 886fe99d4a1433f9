// Package input defines the device-emulation backend used by the client:
// a Backend builds a virtual input device from a DeviceSpec and hands back
// a Writer that injects events into it. Closing the Writer destroys the
// device.
package input

import (
	"context"
	"errors"
	"fmt"
)

// Event types and codes follow linux/input-event-codes.h.
const (
	EvSyn uint16 = 0x00
	EvKey uint16 = 0x01
	EvRel uint16 = 0x02
	EvAbs uint16 = 0x03
	EvRep uint16 = 0x14

	SynReport uint16 = 0

	RepDelay  uint16 = 0x00
	RepPeriod uint16 = 0x01
)

// MaxNameLength is the longest device name the kernel accepts
// (UINPUT_MAX_NAME_SIZE minus the terminating NUL).
const MaxNameLength = 79

// ErrUnsupported is returned by backends that cannot emulate devices on the
// running platform.
var ErrUnsupported = errors.New("input: device emulation unsupported on this platform")

// Event is one evdev event: type, code and value.
type Event struct {
	Type  uint16 `cbor:"type"`
	Code  uint16 `cbor:"code"`
	Value int32  `cbor:"value"`
}

// Sync returns the SYN_REPORT event that terminates an event batch.
func Sync() Event {
	return Event{Type: EvSyn, Code: SynReport}
}

func (e Event) String() string {
	return fmt.Sprintf("type=%d code=%d value=%d", e.Type, e.Code, e.Value)
}

// AbsInfo describes the range of one absolute axis.
type AbsInfo struct {
	Min        int32 `cbor:"min"`
	Max        int32 `cbor:"max"`
	Fuzz       int32 `cbor:"fuzz,omitempty"`
	Flat       int32 `cbor:"flat,omitempty"`
	Resolution int32 `cbor:"resolution,omitempty"`
}

// DeviceSpec is the structural description of a device to emulate.
type DeviceSpec struct {
	Name    string
	Vendor  uint16
	Product uint16
	Version uint16
	Rel     []uint16
	Abs     map[uint16]AbsInfo
	Keys    []uint16
	// Delay and Period configure key autorepeat in milliseconds. Nil
	// leaves the kernel default in place.
	Delay  *int32
	Period *int32
}

// Validate checks s against the limits imposed by the kernel.
func (s DeviceSpec) Validate() error {
	if s.Name == "" {
		return errors.New("device name is empty")
	}
	if len(s.Name) > MaxNameLength {
		return fmt.Errorf("device name %q exceeds %d bytes", s.Name, MaxNameLength)
	}
	for axis, info := range s.Abs {
		if info.Min > info.Max {
			return fmt.Errorf("abs axis %d: min %d greater than max %d", axis, info.Min, info.Max)
		}
	}
	if s.Delay != nil && *s.Delay < 0 {
		return fmt.Errorf("negative autorepeat delay %d", *s.Delay)
	}
	if s.Period != nil && *s.Period < 0 {
		return fmt.Errorf("negative autorepeat period %d", *s.Period)
	}
	return nil
}

// Writer injects events into one emulated device.
type Writer interface {
	Write(Event) error
	Close() error
}

// Backend creates emulated devices.
type Backend interface {
	Create(ctx context.Context, spec DeviceSpec) (Writer, error)
}
