// Package services holds the process-wide handle to lazily initialized
// facilities shared by the wake cycle.
package services

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/envnode/internal/mqtt"
)

// Transport is what the network handle yields.
type Transport interface {
	mqtt.Publisher
	mqtt.ConnectionStatus
	mqtt.Commander
}

// Dialer brings the network up and returns a transport.
type Dialer func(ctx context.Context) (Transport, error)

// SystemServices is created once per process and passed to the controller.
// The network is brought up on first use only, so cycles that publish nothing
// never touch it.
type SystemServices struct {
	dial Dialer

	mu          sync.Mutex
	initialized bool
	transport   Transport
	err         error
}

// New creates a SystemServices that dials with d.
func New(d Dialer) *SystemServices {
	return &SystemServices{dial: d}
}

// Network returns the transport, dialing on the first call. Later calls
// return the same transport or the same error until Reset.
func (s *SystemServices) Network(ctx context.Context) (Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return s.transport, s.err
	}
	s.initialized = true
	log.Debug().Str("component", "services").Msg("initializing network")
	s.transport, s.err = s.dial(ctx)
	if s.err != nil {
		log.Warn().Str("component", "services").Err(s.err).Msg("network init failed")
	}
	return s.transport, s.err
}

// Initialized reports whether Network has been attempted.
func (s *SystemServices) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// Connected reports whether an initialized transport is connected.
func (s *SystemServices) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport != nil && s.transport.IsConnected()
}

// Reset closes any transport and clears the latch.
func (s *SystemServices) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.transport != nil {
		err = s.transport.Close()
	}
	s.initialized = false
	s.transport = nil
	s.err = nil
	return err
}
