// Package status provides a thread-safe view of the node's state for the
// HTTP status pages.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/envnode/internal/logic"
)

// NetworkInfo contains network state reported by the host.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains node configuration for display.
type Config struct {
	DeviceID       string
	Version        string
	WakeIntervalMs int64
	Cadence        logic.Cadence
	Thresholds     logic.Thresholds
	Broker         string
	HTTPAddr       string
}

// Snapshot is a point-in-time view of node state.
type Snapshot struct {
	StartTime time.Time
	Now       time.Time

	Reading    logic.SensorReading
	ReadingAt  time.Time
	Mask       logic.WarningMask
	CycleCount uint8

	LastCause      logic.WakeCause
	LastAction     logic.CadenceAction
	LastCycleAt    time.Time
	Cycles         int
	SensorFailures int
	Sequence       uint32

	MQTTConnected    bool
	ProvisioningOpen bool
	Network          *NetworkInfo
	Config           Config
}

// Uptime returns the duration since the node started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable node state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Mask:      logic.NoWarning,
			Config:    cfg,
		},
	}
}

// RecordCycle stores the outcome of a wake cycle.
func (t *Tracker) RecordCycle(at time.Time, cause logic.WakeCause, action logic.CadenceAction, st logic.WakeCycleState, seq uint32) {
	t.mu.Lock()
	t.snap.LastCycleAt = at
	t.snap.LastCause = cause
	t.snap.LastAction = action
	t.snap.CycleCount = st.CycleCount
	t.snap.Mask = st.LastWarningMask
	t.snap.Sequence = seq
	t.snap.Cycles++
	t.mu.Unlock()
}

// SetReading stores the most recent acquisition.
func (t *Tracker) SetReading(r logic.SensorReading, at time.Time, failures int) {
	t.mu.Lock()
	t.snap.Reading = r
	t.snap.ReadingAt = at
	t.snap.SensorFailures = failures
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetProvisioning records whether a provisioning window is open.
func (t *Tracker) SetProvisioning(open bool) {
	t.mu.Lock()
	t.snap.ProvisioningOpen = open
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a copy of the node state with Now set to the current time.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
