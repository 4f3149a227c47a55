package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Device        string       `json:"device"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Reading       *ReadingJSON `json:"reading,omitempty"`
	Warnings      WarningJSON  `json:"warnings"`
	Cycle         CycleJSON    `json:"cycle"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Provisioning  bool         `json:"provisioning"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ReadingJSON is the last successful acquisition.
type ReadingJSON struct {
	Temperature float32 `json:"temperature"`
	Humidity    float32 `json:"humidity"`
	At          string  `json:"at"`
}

// WarningJSON is the last reported warning mask.
type WarningJSON struct {
	Mask  uint8  `json:"mask"`
	Flags string `json:"flags"`
}

// CycleJSON describes the wake cycle counters.
type CycleJSON struct {
	Count          uint8  `json:"count"`
	Cycles         int    `json:"cycles"`
	LastCause      string `json:"last_cause,omitempty"`
	LastAction     string `json:"last_action,omitempty"`
	SensorFailures int    `json:"sensor_failures"`
	Sequence       uint32 `json:"sequence"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of node config.
type ConfigJSON struct {
	WakeIntervalMs int64   `json:"wake_interval_ms"`
	PublishEvery   uint8   `json:"publish_every"`
	KeepAliveEvery uint8   `json:"keepalive_every"`
	HighTemp       float32 `json:"high_temp"`
	LowTemp        float32 `json:"low_temp"`
	HighHumidity   float32 `json:"high_humidity"`
	LowHumidity    float32 `json:"low_humidity"`
	HTTPAddr       string  `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Device:        snap.Config.DeviceID,
		Version:       snap.Config.Version,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Warnings:      WarningJSON{Mask: uint8(snap.Mask), Flags: snap.Mask.String()},
		Cycle: CycleJSON{
			Count:          snap.CycleCount,
			Cycles:         snap.Cycles,
			SensorFailures: snap.SensorFailures,
			Sequence:       snap.Sequence,
		},
		MQTT:         MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Provisioning: snap.ProvisioningOpen,
		Config: ConfigJSON{
			WakeIntervalMs: snap.Config.WakeIntervalMs,
			PublishEvery:   snap.Config.Cadence.PublishEvery,
			KeepAliveEvery: snap.Config.Cadence.KeepAliveEvery,
			HighTemp:       snap.Config.Thresholds.HighTemp,
			LowTemp:        snap.Config.Thresholds.LowTemp,
			HighHumidity:   snap.Config.Thresholds.HighHumidity,
			LowHumidity:    snap.Config.Thresholds.LowHumidity,
			HTTPAddr:       snap.Config.HTTPAddr,
		},
	}
	if snap.Cycles > 0 {
		inner.Cycle.LastCause = snap.LastCause.String()
		inner.Cycle.LastAction = snap.LastAction.String()
	}
	if snap.Reading.Valid {
		inner.Reading = &ReadingJSON{
			Temperature: snap.Reading.Temperature,
			Humidity:    snap.Reading.Humidity,
			At:          snap.ReadingAt.UTC().Format(time.RFC3339),
		}
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the indented JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}
