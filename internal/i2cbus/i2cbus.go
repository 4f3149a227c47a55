// Package i2cbus opens a host I2C bus through periph.io and exposes it as a
// tinygo drivers.I2C so sensor drivers stay platform independent.
package i2cbus

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"
)

var _ drivers.I2C = (*Bus)(nil)

// Bus adapts a periph i2c.BusCloser.
type Bus struct {
	mu  sync.Mutex
	bus i2c.BusCloser
}

// Open initialises the host drivers and opens the named bus ("" selects the
// first available one). A non-zero speed is applied to the bus.
func Open(name string, speed physic.Frequency) (*Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", name, err)
	}
	if speed > 0 {
		if err := b.SetSpeed(speed); err != nil {
			b.Close()
			return nil, fmt.Errorf("set i2c speed %s: %w", speed, err)
		}
	}
	return &Bus{bus: b}, nil
}

// Wrap adapts an already opened periph bus.
func Wrap(b i2c.BusCloser) *Bus {
	return &Bus{bus: b}
}

// Tx performs a write followed by a read in one transaction.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bus.Tx(addr, w, r)
}

func (b *Bus) String() string {
	return b.bus.String()
}

// Close releases the bus.
func (b *Bus) Close() error {
	return b.bus.Close()
}
