package input

import (
	"encoding/binary"
	"sort"
)

const (
	// DefaultUinputPath is the uinput character device on Linux.
	DefaultUinputPath = "/dev/uinput"

	busVirtual    = 0x06
	uinputNameLen = 80

	iocWrite   = 1
	uinputType = 'U'

	setupSize    = 8 + uinputNameLen + 4
	absSetupSize = 4 + 6*4
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | typ<<8 | nr
}

func iocNone(nr uintptr) uintptr { return ioc(0, uinputType, nr, 0) }

func iow(nr, size uintptr) uintptr { return ioc(iocWrite, uinputType, nr, size) }

// uinput ioctl requests from linux/uinput.h.
var (
	uiDevCreate  = iocNone(1)
	uiDevDestroy = iocNone(2)
	uiDevSetup   = iow(3, setupSize)
	uiAbsSetup   = iow(4, absSetupSize)
	uiSetEvBit   = iow(100, 4)
	uiSetKeyBit  = iow(101, 4)
	uiSetRelBit  = iow(102, 4)
	uiSetAbsBit  = iow(103, 4)
)

// encodeSetup packs struct uinput_setup.
func encodeSetup(spec DeviceSpec) []byte {
	buf := make([]byte, setupSize)
	ne := binary.NativeEndian
	ne.PutUint16(buf[0:], busVirtual)
	ne.PutUint16(buf[2:], spec.Vendor)
	ne.PutUint16(buf[4:], spec.Product)
	ne.PutUint16(buf[6:], spec.Version)
	// The name field stays NUL terminated because Validate caps it at
	// MaxNameLength.
	copy(buf[8:8+MaxNameLength], spec.Name)
	return buf
}

// encodeAbsSetup packs struct uinput_abs_setup.
func encodeAbsSetup(axis uint16, info AbsInfo) []byte {
	buf := make([]byte, absSetupSize)
	ne := binary.NativeEndian
	ne.PutUint16(buf[0:], axis)
	// buf[4:8] is the current value, left at zero.
	ne.PutUint32(buf[8:], uint32(info.Min))
	ne.PutUint32(buf[12:], uint32(info.Max))
	ne.PutUint32(buf[16:], uint32(info.Fuzz))
	ne.PutUint32(buf[20:], uint32(info.Flat))
	ne.PutUint32(buf[24:], uint32(info.Resolution))
	return buf
}

// encodeEvent packs struct input_event with a zero timestamp; the kernel
// stamps events written through uinput. timevalSize differs between 32 and
// 64 bit platforms.
func encodeEvent(ev Event, timevalSize int) []byte {
	buf := make([]byte, timevalSize+8)
	ne := binary.NativeEndian
	ne.PutUint16(buf[timevalSize:], ev.Type)
	ne.PutUint16(buf[timevalSize+2:], ev.Code)
	ne.PutUint32(buf[timevalSize+4:], uint32(ev.Value))
	return buf
}

// capabilityPlan lists the ioctl calls needed to declare the capabilities of
// spec, in a deterministic order.
type capabilityCall struct {
	request uintptr
	value   int
}

func capabilityPlan(spec DeviceSpec) []capabilityCall {
	calls := []capabilityCall{{uiSetEvBit, int(EvSyn)}}
	if len(spec.Keys) > 0 {
		calls = append(calls, capabilityCall{uiSetEvBit, int(EvKey)})
		for _, key := range spec.Keys {
			calls = append(calls, capabilityCall{uiSetKeyBit, int(key)})
		}
	}
	if len(spec.Rel) > 0 {
		calls = append(calls, capabilityCall{uiSetEvBit, int(EvRel)})
		for _, axis := range spec.Rel {
			calls = append(calls, capabilityCall{uiSetRelBit, int(axis)})
		}
	}
	if len(spec.Abs) > 0 {
		calls = append(calls, capabilityCall{uiSetEvBit, int(EvAbs)})
		for _, axis := range sortedAxes(spec.Abs) {
			calls = append(calls, capabilityCall{uiSetAbsBit, int(axis)})
		}
	}
	if spec.Delay != nil || spec.Period != nil {
		calls = append(calls, capabilityCall{uiSetEvBit, int(EvRep)})
	}
	return calls
}

// repeatEvents returns the EV_REP events that apply the configured
// autorepeat timings once the device exists.
func repeatEvents(spec DeviceSpec) []Event {
	var events []Event
	if spec.Delay != nil {
		events = append(events, Event{Type: EvRep, Code: RepDelay, Value: *spec.Delay})
	}
	if spec.Period != nil {
		events = append(events, Event{Type: EvRep, Code: RepPeriod, Value: *spec.Period})
	}
	return events
}

func sortedAxes(abs map[uint16]AbsInfo) []uint16 {
	axes := make([]uint16, 0, len(abs))
	for axis := range abs {
		axes = append(axes, axis)
	}
	sort.Slice(axes, func(i, j int) bool { return axes[i] < axes[j] })
	return axes
}
