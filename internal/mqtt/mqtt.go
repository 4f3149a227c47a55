// Package mqtt publishes node messages to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/sweeney/envnode/internal/logic"
)

// TopicRoot prefixes every device topic.
const TopicRoot = "envnode"

// Status payloads on the status topic.
const (
	StatusOnline  = "ONLINE"
	StatusOffline = "OFFLINE"
)

// ErrTransportUnavailable means the broker is not reachable. Messages
// published while it is returned are buffered for replay.
var ErrTransportUnavailable = errors.New("transport unavailable")

// TopicTelemetry returns the topic that carries the device's messages.
func TopicTelemetry(device string) string { return TopicRoot + "/" + device + "/telemetry" }

// TopicCommand returns the topic the device listens on.
func TopicCommand(device string) string { return TopicRoot + "/" + device + "/command" }

// TopicStatus returns the retained ONLINE/OFFLINE topic.
func TopicStatus(device string) string { return TopicRoot + "/" + device + "/status" }

// Class is a message class.
type Class int

const (
	ClassTelemetry Class = iota
	ClassWarning
	ClassKeepAlive
	ClassOtaStatus
)

func (c Class) String() string {
	switch c {
	case ClassTelemetry:
		return "telemetry"
	case ClassWarning:
		return "warning"
	case ClassKeepAlive:
		return "keepalive"
	case ClassOtaStatus:
		return "ota_status"
	default:
		return "unknown"
	}
}

// QoS returns the delivery level for the class. Warnings and update status
// are at-least-once; periodic data is at-most-once.
func (c Class) QoS() byte {
	switch c {
	case ClassWarning, ClassOtaStatus:
		return 1
	default:
		return 0
	}
}

// Message is an outbound message. Seq and Timestamp are stamped by the
// controller just before publishing.
type Message struct {
	Class     Class
	Seq       uint32
	Timestamp time.Time

	Temperature float32
	Humidity    float32
	Mask        logic.WarningMask
	Status      string
}

// Telemetry builds a telemetry message.
func Telemetry(r logic.SensorReading) Message {
	return Message{Class: ClassTelemetry, Temperature: r.Temperature, Humidity: r.Humidity}
}

// Warning builds a warning message. The reading may be invalid when the mask
// carries a sensor fault.
func Warning(mask logic.WarningMask, r logic.SensorReading) Message {
	m := Message{Class: ClassWarning, Mask: mask}
	if r.Valid {
		m.Temperature = r.Temperature
		m.Humidity = r.Humidity
	}
	return m
}

// KeepAlive builds a keep-alive message.
func KeepAlive() Message {
	return Message{Class: ClassKeepAlive}
}

// OtaStatus builds a firmware update status message.
func OtaStatus(status string) Message {
	return Message{Class: ClassOtaStatus, Status: status}
}

// Publisher publishes messages to the broker.
type Publisher interface {
	// Publish sends a message. Errors are reported, never fatal.
	Publish(m Message) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Commander delivers raw command payloads received on the command topic.
type Commander interface {
	Commands() <-chan []byte
}

// Payload is the JSON body of every message.
type Payload struct {
	Device    string `json:"device"`
	Type      string `json:"type"`
	Seq       uint32 `json:"seq"`
	Timestamp string `json:"timestamp"`
	Values    Values `json:"values"`
}

// Values holds the class-specific fields.
type Values struct {
	Temperature *float32 `json:"temperature,omitempty"`
	Humidity    *float32 `json:"humidity,omitempty"`
	Mask        *uint8   `json:"mask,omitempty"`
	Flags       string   `json:"flags,omitempty"`
	Status      string   `json:"status,omitempty"`
}

// FormatPayload creates the JSON payload for a message.
func FormatPayload(device string, m Message) ([]byte, error) {
	p := Payload{
		Device:    device,
		Type:      m.Class.String(),
		Seq:       m.Seq,
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
	}

	switch m.Class {
	case ClassTelemetry:
		t, h := m.Temperature, m.Humidity
		p.Values.Temperature = &t
		p.Values.Humidity = &h
	case ClassWarning:
		mask := uint8(m.Mask)
		p.Values.Mask = &mask
		p.Values.Flags = m.Mask.String()
		if !m.Mask.Has(logic.WarnSensorFault) {
			t, h := m.Temperature, m.Humidity
			p.Values.Temperature = &t
			p.Values.Humidity = &h
		}
	case ClassKeepAlive:
		p.Values.Status = StatusOnline
	case ClassOtaStatus:
		p.Values.Status = m.Status
	}

	return json.Marshal(p)
}
