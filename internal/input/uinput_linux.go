//go:build linux

package input

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Uinput creates devices through the kernel uinput module.
type Uinput struct {
	// Path overrides DefaultUinputPath.
	Path string
}

// NewUinput returns a backend bound to the default uinput device.
func NewUinput() *Uinput {
	return &Uinput{Path: DefaultUinputPath}
}

// Create declares spec to the kernel and returns a Writer for the new device.
func (u *Uinput) Create(ctx context.Context, spec DeviceSpec) (Writer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid device spec: %w", err)
	}

	path := u.Path
	if path == "" {
		path = DefaultUinputPath
	}
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	w := &uinputWriter{fd: fd, timevalSize: int(unsafe.Sizeof(unix.Timeval{}))}
	if err := w.setup(spec); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return w, nil
}

type uinputWriter struct {
	fd          int
	timevalSize int

	closeOnce sync.Once
	closeErr  error
}

func (w *uinputWriter) setup(spec DeviceSpec) error {
	for _, call := range capabilityPlan(spec) {
		if err := unix.IoctlSetInt(w.fd, uint(call.request), call.value); err != nil {
			return fmt.Errorf("declare capability %#x/%d: %w", call.request, call.value, err)
		}
	}
	for _, axis := range sortedAxes(spec.Abs) {
		if err := w.ioctlBuffer(uiAbsSetup, encodeAbsSetup(axis, spec.Abs[axis])); err != nil {
			return fmt.Errorf("setup abs axis %d: %w", axis, err)
		}
	}
	if err := w.ioctlBuffer(uiDevSetup, encodeSetup(spec)); err != nil {
		return fmt.Errorf("setup device: %w", err)
	}
	if err := w.ioctl(uiDevCreate, 0); err != nil {
		return fmt.Errorf("create device: %w", err)
	}
	for _, ev := range repeatEvents(spec) {
		if err := w.Write(ev); err != nil {
			_ = w.ioctl(uiDevDestroy, 0)
			return fmt.Errorf("configure autorepeat: %w", err)
		}
	}
	return nil
}

func (w *uinputWriter) ioctlBuffer(request uintptr, buf []byte) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(w.fd), request, uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return errno
	}
	return nil
}

func (w *uinputWriter) ioctl(request, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(w.fd), request, arg)
	if errno != 0 {
		return errno
	}
	return nil
}

// Write injects ev into the device.
func (w *uinputWriter) Write(ev Event) error {
	buf := encodeEvent(ev, w.timevalSize)
	for len(buf) > 0 {
		n, err := unix.Write(w.fd, buf)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("write event %s: %w", ev, err)
		}
		buf = buf[n:]
	}
	return nil
}

// Close destroys the device and releases the descriptor.
func (w *uinputWriter) Close() error {
	w.closeOnce.Do(func() {
		destroyErr := w.ioctl(uiDevDestroy, 0)
		closeErr := unix.Close(w.fd)
		w.closeErr = errors.Join(destroyErr, closeErr)
	})
	return w.closeErr
}
