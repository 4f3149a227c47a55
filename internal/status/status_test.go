package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/envnode/internal/logic"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		DeviceID:       "n1",
		Version:        "1.0",
		WakeIntervalMs: 30000,
		Cadence:        logic.DefaultCadence,
		Thresholds:     logic.DefaultThresholds,
		Broker:         "tcp://localhost:1883",
		HTTPAddr:       ":8080",
	}
}

func TestNewTracker(t *testing.T) {
	tr := NewTracker(start, testConfig())

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Mask != logic.NoWarning {
		t.Errorf("Mask: got %s, want NONE_REPORTED", snap.Mask)
	}
	if snap.Config.DeviceID != "n1" {
		t.Errorf("Config.DeviceID: got %q", snap.Config.DeviceID)
	}
	if snap.MQTTConnected || snap.ProvisioningOpen {
		t.Error("expected disconnected and not provisioning initially")
	}
}

func TestRecordCycle(t *testing.T) {
	tr := NewTracker(start, testConfig())
	at := start.Add(30 * time.Second)
	st := logic.WakeCycleState{CycleCount: 2, LastWarningMask: logic.WarnHighTemp}

	tr.RecordCycle(at, logic.TimerWake(), logic.ActionSampleOnly, st, 5)
	tr.RecordCycle(at, logic.TimerWake(), logic.ActionSampleOnly, st, 5)

	snap := tr.Snapshot()
	if snap.CycleCount != 2 || snap.Mask != logic.WarnHighTemp || snap.Sequence != 5 {
		t.Errorf("got count=%d mask=%s seq=%d", snap.CycleCount, snap.Mask, snap.Sequence)
	}
	if snap.Cycles != 2 {
		t.Errorf("Cycles: got %d, want 2", snap.Cycles)
	}
	if snap.LastAction != logic.ActionSampleOnly || snap.LastCause != logic.TimerWake() {
		t.Errorf("last: %s %s", snap.LastCause, snap.LastAction)
	}
}

func TestSetReading(t *testing.T) {
	tr := NewTracker(start, testConfig())
	r := logic.SensorReading{Temperature: 24.5, Humidity: 61, Valid: true}
	tr.SetReading(r, start, 0)

	snap := tr.Snapshot()
	if snap.Reading != r || !snap.ReadingAt.Equal(start) {
		t.Errorf("got %+v at %v", snap.Reading, snap.ReadingAt)
	}
}

func TestSetFlags(t *testing.T) {
	tr := NewTracker(start, testConfig())
	tr.SetMQTTConnected(true)
	tr.SetProvisioning(true)
	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})

	snap := tr.Snapshot()
	if !snap.MQTTConnected || !snap.ProvisioningOpen {
		t.Error("flags not set")
	}
	if snap.Network == nil || snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network: %+v", snap.Network)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(start, testConfig())
	snap := tr.Snapshot()
	tr.SetMQTTConnected(true)
	if snap.MQTTConnected {
		t.Error("snapshot changed after update")
	}
}

func TestUptime(t *testing.T) {
	s := Snapshot{StartTime: start, Now: start.Add(90 * time.Second)}
	if s.Uptime() != 90*time.Second {
		t.Errorf("got %v", s.Uptime())
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(start, testConfig())
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			tr.RecordCycle(start, logic.TimerWake(), logic.ActionSampleOnly, logic.WakeCycleState{CycleCount: uint8(i)}, uint32(i))
			tr.SetMQTTConnected(i%2 == 0)
		}(i)
		go func() {
			defer wg.Done()
			FormatJSON(tr.Snapshot())
		}()
	}
	wg.Wait()
}

func TestFormatJSONBeforeFirstCycle(t *testing.T) {
	snap := NewTracker(start, testConfig()).Snapshot()
	snap.Now = start.Add(time.Minute)

	var sj StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &sj); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if sj.Status.Reading != nil {
		t.Error("no reading expected before first acquisition")
	}
	if sj.Status.Cycle.LastCause != "" || sj.Status.Cycle.LastAction != "" {
		t.Errorf("cycle: %+v", sj.Status.Cycle)
	}
	if sj.Status.Warnings.Flags != "NONE_REPORTED" || sj.Status.Warnings.Mask != 0xFF {
		t.Errorf("warnings: %+v", sj.Status.Warnings)
	}
	if sj.Status.UptimeSeconds != 60 {
		t.Errorf("uptime: %d", sj.Status.UptimeSeconds)
	}
	if sj.Status.Network != nil {
		t.Error("network should be omitted when unknown")
	}
}

func TestFormatJSON(t *testing.T) {
	tr := NewTracker(start, testConfig())
	tr.SetReading(logic.SensorReading{Temperature: 32, Humidity: 70, Valid: true}, start, 1)
	tr.RecordCycle(start, logic.ColdBoot(), logic.ActionSampleAndPublish, logic.WakeCycleState{LastWarningMask: logic.WarnHighTemp}, 3)
	tr.SetMQTTConnected(true)
	tr.SetNetwork(&NetworkInfo{Type: "wifi", SSID: "greenhouse"})

	var sj StatusJSON
	if err := json.Unmarshal(FormatJSON(tr.Snapshot()), &sj); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := sj.Status
	if s.Device != "n1" || s.Version != "1.0" {
		t.Errorf("identity: %s %s", s.Device, s.Version)
	}
	if s.Reading == nil || s.Reading.Temperature != 32 || s.Reading.At != "2026-01-01T00:00:00Z" {
		t.Errorf("reading: %+v", s.Reading)
	}
	if s.Warnings.Flags != "HIGH_TEMP" || s.Warnings.Mask != 8 {
		t.Errorf("warnings: %+v", s.Warnings)
	}
	if s.Cycle.LastCause != "COLD" || s.Cycle.LastAction != "SAMPLE_AND_PUBLISH" || s.Cycle.Sequence != 3 {
		t.Errorf("cycle: %+v", s.Cycle)
	}
	if s.Cycle.SensorFailures != 1 {
		t.Errorf("failures: %d", s.Cycle.SensorFailures)
	}
	if !s.MQTT.Connected || s.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("mqtt: %+v", s.MQTT)
	}
	if s.Network == nil || s.Network.SSID != "greenhouse" {
		t.Errorf("network: %+v", s.Network)
	}
	if s.Config.PublishEvery != 4 || s.Config.KeepAliveEvery != 2 || s.Config.HighTemp != 30 {
		t.Errorf("config: %+v", s.Config)
	}
}
