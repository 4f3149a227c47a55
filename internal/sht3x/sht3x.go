// Package sht3x reads an SHT3x temperature/humidity sensor over I2C.
//
// One call to Acquire is one single-shot transaction: measurement command,
// fixed settle wait, 6-byte frame read, CRC check of both words. Any bus or
// checksum failure soft-resets the sensor and is returned to the caller; the
// driver never retries on its own.
package sht3x

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tinygo.org/x/drivers"

	"github.com/sweeney/envnode/internal/logic"
)

// Default I2C address (ADDR pin low).
const Address = 0x44

// Commands (MSB first).
const (
	cmdMeasureHigh   = 0x2400 // single shot, high repeatability, no clock stretching
	cmdMeasureMedium = 0x240B
	cmdMeasureLow    = 0x2416
	cmdSoftReset     = 0x30A2
	cmdStatus        = 0xF32D
)

// Errors returned by the driver.
var (
	ErrBus              = errors.New("sht3x: bus error")
	ErrChecksumMismatch = errors.New("sht3x: checksum mismatch")
)

// Repeatability selects the measurement precision and settle time.
type Repeatability int

const (
	RepeatabilityHigh Repeatability = iota
	RepeatabilityMedium
	RepeatabilityLow
)

// MeasureTime is how long the sensor needs before the frame can be read.
func (r Repeatability) MeasureTime() time.Duration {
	switch r {
	case RepeatabilityMedium:
		return 6 * time.Millisecond
	case RepeatabilityLow:
		return 4 * time.Millisecond
	default:
		return 15 * time.Millisecond
	}
}

func (r Repeatability) command() uint16 {
	switch r {
	case RepeatabilityMedium:
		return cmdMeasureMedium
	case RepeatabilityLow:
		return cmdMeasureLow
	default:
		return cmdMeasureHigh
	}
}

// Config holds optional settings. Zero values select the defaults.
type Config struct {
	Address       uint16
	Repeatability Repeatability
	// Sleep waits for the settle duration. Defaults to a context-aware timer;
	// tests inject a no-op.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Device is an SHT3x on a two-wire bus.
type Device struct {
	bus    drivers.I2C
	addr   uint16
	repeat Repeatability
	sleep  func(ctx context.Context, d time.Duration) error
	buf    [6]byte
}

// New creates a Device. It does not touch the bus.
func New(bus drivers.I2C, cfg Config) *Device {
	d := &Device{
		bus:    bus,
		addr:   cfg.Address,
		repeat: cfg.Repeatability,
		sleep:  cfg.Sleep,
	}
	if d.addr == 0 {
		d.addr = Address
	}
	if d.sleep == nil {
		d.sleep = sleepCtx
	}
	return d
}

// Acquire performs one checksum-verified measurement.
func (d *Device) Acquire(ctx context.Context) (logic.SensorReading, error) {
	r, err := d.measure(ctx)
	if err != nil {
		if errors.Is(err, ErrBus) || errors.Is(err, ErrChecksumMismatch) {
			d.Reset()
		}
		return logic.SensorReading{}, err
	}
	return r, nil
}

func (d *Device) measure(ctx context.Context) (logic.SensorReading, error) {
	if err := d.command(d.repeat.command()); err != nil {
		return logic.SensorReading{}, fmt.Errorf("%w: start measurement: %v", ErrBus, err)
	}

	if err := d.sleep(ctx, d.repeat.MeasureTime()); err != nil {
		return logic.SensorReading{}, err
	}

	frame := d.buf[:]
	if err := d.bus.Tx(d.addr, nil, frame); err != nil {
		return logic.SensorReading{}, fmt.Errorf("%w: read frame: %v", ErrBus, err)
	}

	rawT, err := checkWord(frame[0:3])
	if err != nil {
		return logic.SensorReading{}, fmt.Errorf("temperature: %w", err)
	}
	rawH, err := checkWord(frame[3:6])
	if err != nil {
		return logic.SensorReading{}, fmt.Errorf("humidity: %w", err)
	}

	return logic.SensorReading{
		Temperature: Celsius(rawT),
		Humidity:    RelHumidity(rawH),
		Valid:       true,
	}, nil
}

// Reset issues a soft reset. Errors are ignored: the sensor may be the reason
// the bus failed in the first place.
func (d *Device) Reset() {
	_ = d.command(cmdSoftReset)
}

// Status reads the 16-bit status register.
func (d *Device) Status() (uint16, error) {
	if err := d.command(cmdStatus); err != nil {
		return 0, fmt.Errorf("%w: status command: %v", ErrBus, err)
	}
	var data [3]byte
	if err := d.bus.Tx(d.addr, nil, data[:]); err != nil {
		return 0, fmt.Errorf("%w: read status: %v", ErrBus, err)
	}
	return checkWord(data[:])
}

func (d *Device) command(cmd uint16) error {
	return d.bus.Tx(d.addr, []byte{byte(cmd >> 8), byte(cmd)}, nil)
}

// checkWord verifies a [msb, lsb, crc] triple and returns the word.
func checkWord(b []byte) (uint16, error) {
	if got := CRC8(b[:2]); got != b[2] {
		return 0, fmt.Errorf("%w: sensor 0x%02X, calculated 0x%02X", ErrChecksumMismatch, b[2], got)
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

// Celsius converts a raw temperature word.
func Celsius(raw uint16) float32 {
	return 175*float32(raw)/65535 - 45
}

// RelHumidity converts a raw humidity word.
func RelHumidity(raw uint16) float32 {
	return 100 * float32(raw) / 65535
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
