// Package logic contains the pure decision logic of the sensor node: warning
// evaluation, telemetry cadence and long-press classification.
// This package has NO external dependencies (no bus, GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time / time.Duration parameters.
package logic

import (
	"fmt"
	"strings"
	"time"
)

// WakeKind identifies why the node resumed.
type WakeKind int

const (
	WakeCold WakeKind = iota
	WakeTimer
	WakeExternal
)

func (k WakeKind) String() string {
	switch k {
	case WakeCold:
		return "COLD"
	case WakeTimer:
		return "TIMER"
	case WakeExternal:
		return "EXTERNAL"
	default:
		return "UNKNOWN"
	}
}

// WakeCause is the platform-reported reason for the current wake cycle.
// Line is only meaningful for WakeExternal.
type WakeCause struct {
	Kind WakeKind
	Line int
}

// ColdBoot, TimerWake and ExternalWake are convenience constructors.
func ColdBoot() WakeCause             { return WakeCause{Kind: WakeCold} }
func TimerWake() WakeCause            { return WakeCause{Kind: WakeTimer} }
func ExternalWake(line int) WakeCause { return WakeCause{Kind: WakeExternal, Line: line} }

func (c WakeCause) String() string {
	if c.Kind == WakeExternal {
		return fmt.Sprintf("EXTERNAL(%d)", c.Line)
	}
	return c.Kind.String()
}

// NoWarning is the mask value stored after a cold boot. No real evaluation can
// produce it, so the first reading after a cold boot is always reported.
const NoWarning WarningMask = 0xFF

// WakeCycleState survives low-power resets and is zeroed only on a cold boot.
type WakeCycleState struct {
	// Timer wakes elapsed since the last full-cadence action.
	CycleCount uint8
	// Last mask that was reported.
	LastWarningMask WarningMask
}

// ColdState returns the state a cold boot starts from.
func ColdState() WakeCycleState {
	return WakeCycleState{CycleCount: 0, LastWarningMask: NoWarning}
}

// SensorReading is one acquisition result. It is never persisted.
type SensorReading struct {
	Temperature float32 // °C
	Humidity    float32 // %RH
	Valid       bool
}

// WarningMask packs the warning conditions into a byte.
// Bit positions are consumed by systems outside this node and must not change.
type WarningMask uint8

const (
	WarnLowHumidity  WarningMask = 1 << 0
	WarnHighHumidity WarningMask = 1 << 1
	WarnLowTemp      WarningMask = 1 << 2
	WarnHighTemp     WarningMask = 1 << 3
	WarnSensorFault  WarningMask = 1 << 4
)

// Has reports whether every bit of flag is set in m.
func (m WarningMask) Has(flag WarningMask) bool {
	return m&flag == flag
}

func (m WarningMask) String() string {
	if m == NoWarning {
		return "NONE_REPORTED"
	}
	if m == 0 {
		return "OK"
	}
	var parts []string
	names := []struct {
		bit  WarningMask
		name string
	}{
		{WarnSensorFault, "SENSOR_FAULT"},
		{WarnHighTemp, "HIGH_TEMP"},
		{WarnLowTemp, "LOW_TEMP"},
		{WarnHighHumidity, "HIGH_HUMIDITY"},
		{WarnLowHumidity, "LOW_HUMIDITY"},
	}
	for _, n := range names {
		if m.Has(n.bit) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// CadenceAction is what the current wake should do.
type CadenceAction int

const (
	ActionSkip CadenceAction = iota
	ActionSampleOnly
	ActionSampleAndPublish
	ActionPublishKeepAlive
)

func (a CadenceAction) String() string {
	switch a {
	case ActionSkip:
		return "SKIP"
	case ActionSampleOnly:
		return "SAMPLE_ONLY"
	case ActionSampleAndPublish:
		return "SAMPLE_AND_PUBLISH"
	case ActionPublishKeepAlive:
		return "PUBLISH_KEEP_ALIVE"
	default:
		return "UNKNOWN"
	}
}

// NeedsReading reports whether the action requires a sensor acquisition.
func (a CadenceAction) NeedsReading() bool {
	return a != ActionSkip
}

// ModeAction is the terminal outcome of a button press.
type ModeAction int

const (
	ModeNone ModeAction = iota
	ModeStartProvisioning
	ModeStartFirmwareUpdate
)

func (a ModeAction) String() string {
	switch a {
	case ModeNone:
		return "NONE"
	case ModeStartProvisioning:
		return "START_PROVISIONING"
	case ModeStartFirmwareUpdate:
		return "START_FIRMWARE_UPDATE"
	default:
		return "UNKNOWN"
	}
}

// PressEvent is a debounced press/release pair.
type PressEvent struct {
	Start    time.Time
	Duration time.Duration
}
