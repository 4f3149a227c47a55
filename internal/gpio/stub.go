//go:build !linux

package gpio

import "errors"

// RealButton is not available on non-Linux platforms.
type RealButton struct{}

// NewRealButton returns an error on non-Linux platforms.
func NewRealButton(cfg Config) (*RealButton, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Edges returns nil on non-Linux platforms.
func (b *RealButton) Edges() <-chan Edge {
	return nil
}

// Pressed is not implemented on non-Linux platforms.
func (b *RealButton) Pressed() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// Dropped is always zero on non-Linux platforms.
func (b *RealButton) Dropped() uint32 {
	return 0
}

// Close is not implemented on non-Linux platforms.
func (b *RealButton) Close() error {
	return nil
}
