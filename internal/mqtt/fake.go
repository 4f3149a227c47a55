package mqtt

import "sync"

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// Device is used when formatting payloads.
	Device string

	// Messages contains all messages that were published.
	Messages []Message

	// Payloads contains the JSON payloads that were published.
	Payloads [][]byte

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	commands chan []byte
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{Device: "test", Connected: true, commands: make(chan []byte, 4)}
}

// Publish records the message.
func (f *FakePublisher) Publish(m Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatPayload(f.Device, m)
	if err != nil {
		return err
	}
	f.Messages = append(f.Messages, m)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// Published returns a copy of the recorded messages.
func (f *FakePublisher) Published() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.Messages...)
}

// Classes returns the classes of the recorded messages in order.
func (f *FakePublisher) Classes() []Class {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Class, len(f.Messages))
	for i, m := range f.Messages {
		out[i] = m.Class
	}
	return out
}

// SendCommand queues a payload for Commands.
func (f *FakePublisher) SendCommand(payload []byte) {
	f.commands <- payload
}

// Commands implements Commander.
func (f *FakePublisher) Commands() <-chan []byte {
	return f.commands
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Messages = nil
	f.Payloads = nil
	f.Closed = false
	f.PublishError = nil
}
