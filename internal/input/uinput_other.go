//go:build !linux

package input

import "context"

// Uinput is unavailable outside Linux; Create always fails.
type Uinput struct {
	Path string
}

// NewUinput returns a backend that reports ErrUnsupported.
func NewUinput() *Uinput {
	return &Uinput{Path: DefaultUinputPath}
}

// Create reports ErrUnsupported.
func (u *Uinput) Create(ctx context.Context, spec DeviceSpec) (Writer, error) {
	return nil, ErrUnsupported
}
