package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// DefaultBufferSize is how many messages are held while disconnected.
const DefaultBufferSize = 64

// Config configures a RealPublisher.
type Config struct {
	Broker         string
	DeviceID       string
	ConnectTimeout time.Duration
	BufferSize     int
}

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client paho.Client
	device string

	mu  sync.Mutex
	buf *ringBuffer

	commands chan []byte
}

// NewRealPublisher connects to the broker. If the broker does not answer
// within the timeout the publisher is still returned; paho keeps retrying in
// the background and messages are buffered until it connects.
func NewRealPublisher(cfg Config) (*RealPublisher, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}

	p := &RealPublisher{
		device:   cfg.DeviceID,
		buf:      newRingBuffer(cfg.BufferSize),
		commands: make(chan []byte, 4),
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID("envnode-" + cfg.DeviceID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicStatus(cfg.DeviceID), StatusOffline, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Str("component", "mqtt").Err(err).Msg("connection lost")
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		log.Warn().Str("component", "mqtt").Str("broker", cfg.Broker).
			Msg("connect timeout, retrying in background")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: connect to broker: %v", ErrTransportUnavailable, err)
	}
	return p, nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	log.Info().Str("component", "mqtt").Msg("connected")

	c.Subscribe(TopicCommand(p.device), 1, func(_ paho.Client, m paho.Message) {
		select {
		case p.commands <- m.Payload():
		default:
			log.Warn().Str("component", "mqtt").Msg("command dropped: queue full")
		}
	})
	c.Publish(TopicStatus(p.device), 1, true, StatusOnline)

	p.mu.Lock()
	pending, dropped := p.buf.drainAll()
	p.mu.Unlock()

	for _, m := range pending {
		token := c.Publish(m.topic, m.qos, false, m.payload)
		if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
			log.Warn().Str("component", "mqtt").Str("topic", m.topic).Msg("replay failed")
		}
	}
	if len(pending) > 0 {
		log.Info().Str("component", "mqtt").Int("count", len(pending)).Int("dropped", dropped).
			Msg("replayed buffered messages")
	}
}

// Publish sends a message to the device's telemetry topic.
func (p *RealPublisher) Publish(m Message) error {
	payload, err := FormatPayload(p.device, m)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	topic := TopicTelemetry(p.device)
	qos := m.Class.QoS()

	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buf.push(bufferedMsg{topic: topic, payload: payload, qos: qos})
		p.mu.Unlock()
		return fmt.Errorf("%w: %s buffered", ErrTransportUnavailable, m.Class)
	}

	token := p.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Commands implements Commander.
func (p *RealPublisher) Commands() <-chan []byte {
	return p.commands
}

// IsConnected implements ConnectionStatus.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close publishes the OFFLINE status and disconnects.
func (p *RealPublisher) Close() error {
	if p.client.IsConnectionOpen() {
		p.client.Publish(TopicStatus(p.device), 1, true, StatusOffline).WaitTimeout(time.Second)
	}
	p.client.Disconnect(1000)
	return nil
}
