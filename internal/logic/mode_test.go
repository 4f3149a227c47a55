package logic

import (
	"testing"
	"time"
)

func TestClassifyBoundaries(t *testing.T) {
	b := ModeBounds{MinPress: 3 * time.Second, MaxProvisioning: 6 * time.Second}

	tests := []struct {
		d    time.Duration
		want ModeAction
	}{
		{0, ModeNone},
		{100 * time.Millisecond, ModeNone},
		{3*time.Second - time.Millisecond, ModeNone},
		{3 * time.Second, ModeStartProvisioning},
		{4500 * time.Millisecond, ModeStartProvisioning},
		{6 * time.Second, ModeStartProvisioning},
		{6*time.Second + time.Millisecond, ModeStartFirmwareUpdate},
		{6*time.Second + time.Nanosecond, ModeStartFirmwareUpdate},
		{30 * time.Second, ModeStartFirmwareUpdate},
	}
	for _, tt := range tests {
		if got := b.Classify(tt.d); got != tt.want {
			t.Errorf("Classify(%v): got %s, want %s", tt.d, got, tt.want)
		}
	}
}

func TestModeBoundsValidate(t *testing.T) {
	if err := DefaultModeBounds.Validate(); err != nil {
		t.Errorf("default bounds: %v", err)
	}
	if err := (ModeBounds{MinPress: 5 * time.Second, MaxProvisioning: time.Second}).Validate(); err == nil {
		t.Error("expected error for inverted bounds")
	}
	if err := (ModeBounds{}).Validate(); err == nil {
		t.Error("expected error for zero bounds")
	}
}

func TestColdState(t *testing.T) {
	s := ColdState()
	if s.CycleCount != 0 {
		t.Errorf("cycle count: got %d, want 0", s.CycleCount)
	}
	if s.LastWarningMask != NoWarning {
		t.Errorf("mask: got 0x%02x, want 0xFF", uint8(s.LastWarningMask))
	}
}

func TestWakeCauseString(t *testing.T) {
	if got := ExternalWake(17).String(); got != "EXTERNAL(17)" {
		t.Errorf("got %q", got)
	}
	if got := TimerWake().String(); got != "TIMER" {
		t.Errorf("got %q", got)
	}
}
