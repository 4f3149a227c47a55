package sht3x

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func newTestDevice(bus *FakeBus) *Device {
	return New(bus, Config{Sleep: noSleep})
}

func TestCRC8DatasheetVector(t *testing.T) {
	// Sensirion datasheet example: CRC(0xBEEF) = 0x92.
	if got := CRC8([]byte{0xBE, 0xEF}); got != 0x92 {
		t.Errorf("CRC8(0xBEEF): got 0x%02X, want 0x92", got)
	}
}

func TestCRC8DetectsSingleBitFlips(t *testing.T) {
	words := []uint16{0x0000, 0x6666, 0xBEEF, 0xFFFF, 0x1234, 0x8000}
	for _, w := range words {
		frame := []byte{byte(w >> 8), byte(w), 0}
		frame[2] = CRC8(frame[:2])

		if _, err := checkWord(frame); err != nil {
			t.Fatalf("0x%04X: valid frame rejected: %v", w, err)
		}

		for bit := 0; bit < 24; bit++ {
			bad := append([]byte(nil), frame...)
			bad[bit/8] ^= 1 << (bit % 8)
			if _, err := checkWord(bad); !errors.Is(err, ErrChecksumMismatch) {
				t.Errorf("0x%04X bit %d: flip not detected (err=%v)", w, bit, err)
			}
		}
	}
}

func TestConversions(t *testing.T) {
	tests := []struct {
		raw      uint16
		wantTemp float32
		wantHum  float32
	}{
		{0x0000, -45, 0},
		{0xFFFF, 130, 100},
		{0x6666, 25.0, 40.0},
	}
	for _, tt := range tests {
		if got := Celsius(tt.raw); math.Abs(float64(got-tt.wantTemp)) > 0.01 {
			t.Errorf("Celsius(0x%04X): got %.3f, want %.3f", tt.raw, got, tt.wantTemp)
		}
		if got := RelHumidity(tt.raw); math.Abs(float64(got-tt.wantHum)) > 0.01 {
			t.Errorf("RelHumidity(0x%04X): got %.3f, want %.3f", tt.raw, got, tt.wantHum)
		}
	}
}

func TestAcquire(t *testing.T) {
	bus := NewFakeBus(RawFromCelsius(32), RawFromRelHumidity(50))
	d := newTestDevice(bus)

	r, err := d.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Valid {
		t.Error("reading should be valid")
	}
	if math.Abs(float64(r.Temperature-32)) > 0.01 {
		t.Errorf("temperature: got %.3f, want 32", r.Temperature)
	}
	if math.Abs(float64(r.Humidity-50)) > 0.01 {
		t.Errorf("humidity: got %.3f, want 50", r.Humidity)
	}
	if len(bus.Commands) != 1 || bus.Commands[0] != cmdMeasureHigh {
		t.Errorf("commands: got %x, want [2400]", bus.Commands)
	}
	if bus.ResetCount() != 0 {
		t.Error("no reset expected on success")
	}
}

func TestAcquireChecksumMismatch(t *testing.T) {
	tests := []struct {
		name     string
		tempBad  bool
		humBad   bool
		fragment string
	}{
		{"temperature word", true, false, "temperature"},
		{"humidity word", false, true, "humidity"},
		{"both words", true, true, "temperature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := NewFakeBus(0x6666, 0x6666)
			bus.CorruptTemp = tt.tempBad
			bus.CorruptHumidity = tt.humBad
			d := newTestDevice(bus)

			r, err := d.Acquire(context.Background())
			if !errors.Is(err, ErrChecksumMismatch) {
				t.Fatalf("expected ErrChecksumMismatch, got %v", err)
			}
			if r.Valid {
				t.Error("partial data must never be returned as valid")
			}
			if bus.ResetCount() != 1 {
				t.Errorf("expected 1 soft reset, got %d", bus.ResetCount())
			}
		})
	}
}

func TestAcquireBusErrors(t *testing.T) {
	t.Run("write", func(t *testing.T) {
		bus := NewFakeBus(0x6666, 0x6666)
		bus.WriteError = errors.New("nack")
		d := newTestDevice(bus)

		_, err := d.Acquire(context.Background())
		if !errors.Is(err, ErrBus) {
			t.Fatalf("expected ErrBus, got %v", err)
		}
		if bus.ResetCount() != 1 {
			t.Errorf("expected soft reset, got %d", bus.ResetCount())
		}
	})

	t.Run("read", func(t *testing.T) {
		bus := NewFakeBus(0x6666, 0x6666)
		bus.ReadError = errors.New("arbitration lost")
		d := newTestDevice(bus)

		_, err := d.Acquire(context.Background())
		if !errors.Is(err, ErrBus) {
			t.Fatalf("expected ErrBus, got %v", err)
		}
		if bus.ResetCount() != 1 {
			t.Errorf("expected soft reset, got %d", bus.ResetCount())
		}
	})
}

func TestAcquireDoesNotRetry(t *testing.T) {
	bus := NewFakeBus(0x6666, 0x6666)
	bus.CorruptHumidity = true
	d := newTestDevice(bus)

	d.Acquire(context.Background())

	measures := 0
	for _, c := range bus.Commands {
		if c == cmdMeasureHigh {
			measures++
		}
	}
	if measures != 1 {
		t.Errorf("expected exactly 1 measurement command, got %d", measures)
	}
}

func TestAcquireWaitsSettleTime(t *testing.T) {
	var waited []time.Duration
	bus := NewFakeBus(0x6666, 0x6666)
	for _, rep := range []Repeatability{RepeatabilityHigh, RepeatabilityMedium, RepeatabilityLow} {
		d := New(bus, Config{
			Repeatability: rep,
			Sleep: func(ctx context.Context, d time.Duration) error {
				waited = append(waited, d)
				return nil
			},
		})
		if _, err := d.Acquire(context.Background()); err != nil {
			t.Fatalf("%v: %v", rep, err)
		}
	}
	want := []time.Duration{15 * time.Millisecond, 6 * time.Millisecond, 4 * time.Millisecond}
	for i := range want {
		if waited[i] != want[i] {
			t.Errorf("wait %d: got %v, want %v", i, waited[i], want[i])
		}
	}
	wantCmds := []uint16{cmdMeasureHigh, cmdMeasureMedium, cmdMeasureLow}
	for i, c := range wantCmds {
		if bus.Commands[i] != c {
			t.Errorf("command %d: got 0x%04X, want 0x%04X", i, bus.Commands[i], c)
		}
	}
}

func TestAcquireCancelled(t *testing.T) {
	bus := NewFakeBus(0x6666, 0x6666)
	d := New(bus, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Acquire(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if bus.ResetCount() != 0 {
		t.Error("cancellation is not a sensor fault and should not reset")
	}
}

func TestStatus(t *testing.T) {
	bus := NewFakeBus(0, 0)
	bus.StatusWord = 0x8010
	d := newTestDevice(bus)

	st, err := d.Status()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st != 0x8010 {
		t.Errorf("status: got 0x%04X, want 0x8010", st)
	}
}
