package sht3x

import (
	"errors"
	"sync"

	"tinygo.org/x/drivers"
)

var _ drivers.I2C = (*FakeBus)(nil)

// FakeBus is a scripted SHT3x on a fake bus for tests.
type FakeBus struct {
	mu sync.Mutex

	// RawTemp and RawHumidity are returned in the next measurement frame.
	RawTemp     uint16
	RawHumidity uint16

	// StatusWord is returned for status reads.
	StatusWord uint16

	// CorruptTemp / CorruptHumidity flip a bit in the corresponding CRC byte.
	CorruptTemp     bool
	CorruptHumidity bool

	// WriteError / ReadError, if set, are returned by command writes / reads.
	WriteError error
	ReadError  error

	// Commands records every command word written.
	Commands []uint16

	lastCmd uint16
}

// NewFakeBus returns a bus whose sensor reports the given raw words.
func NewFakeBus(rawTemp, rawHumidity uint16) *FakeBus {
	return &FakeBus{RawTemp: rawTemp, RawHumidity: rawHumidity}
}

// Tx implements drivers.I2C.
func (f *FakeBus) Tx(addr uint16, w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(w) == 2 {
		cmd := uint16(w[0])<<8 | uint16(w[1])
		f.Commands = append(f.Commands, cmd)
		if f.WriteError != nil && cmd != cmdSoftReset {
			return f.WriteError
		}
		f.lastCmd = cmd
	} else if len(w) != 0 {
		return errors.New("fake sht3x: unexpected write length")
	}

	if len(r) == 0 {
		return nil
	}
	if f.ReadError != nil {
		return f.ReadError
	}

	switch {
	case f.lastCmd == cmdStatus && len(r) == 3:
		putWord(r, f.StatusWord, false)
	case len(r) == 6:
		putWord(r[0:3], f.RawTemp, f.CorruptTemp)
		putWord(r[3:6], f.RawHumidity, f.CorruptHumidity)
	default:
		return errors.New("fake sht3x: unexpected read length")
	}
	return nil
}

// ResetCount returns how many soft resets were issued.
func (f *FakeBus) ResetCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Commands {
		if c == cmdSoftReset {
			n++
		}
	}
	return n
}

func putWord(dst []byte, v uint16, corrupt bool) {
	dst[0] = byte(v >> 8)
	dst[1] = byte(v)
	dst[2] = CRC8(dst[:2])
	if corrupt {
		dst[2] ^= 0x01
	}
}

// RawFromCelsius is the inverse of Celsius, rounded to the nearest word.
func RawFromCelsius(c float32) uint16 {
	return uint16((c+45)*65535/175 + 0.5)
}

// RawFromRelHumidity is the inverse of RelHumidity, rounded to the nearest word.
func RawFromRelHumidity(h float32) uint16 {
	return uint16(h*65535/100 + 0.5)
}
