// Package store persists the node's small key/value state.
//
// Values are opaque bytes. The byte layout of the wake-cycle keys is internal
// to this node and not a wire contract.
package store

import (
	"encoding/binary"
	"fmt"

	"github.com/sweeney/envnode/internal/logic"
)

// Keys.
const (
	KeyCycleCount      = "cycle_count"
	KeyLastWarningMask = "last_warning_mask"
	KeySequence        = "sequence"
	KeyWifiSSID        = "wifi_ssid"
	KeyWifiPass        = "wifi_pass"
)

// Store is a persistent key/value store.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
	Close() error
}

// LoadState reads the wake-cycle state. Missing keys load as the cold-boot
// values.
func LoadState(s Store) (logic.WakeCycleState, error) {
	st := logic.ColdState()

	v, ok, err := s.Get(KeyCycleCount)
	if err != nil {
		return st, fmt.Errorf("load %s: %w", KeyCycleCount, err)
	}
	if ok && len(v) == 1 {
		st.CycleCount = v[0]
	}

	v, ok, err = s.Get(KeyLastWarningMask)
	if err != nil {
		return st, fmt.Errorf("load %s: %w", KeyLastWarningMask, err)
	}
	if ok && len(v) == 1 {
		st.LastWarningMask = logic.WarningMask(v[0])
	}

	return st, nil
}

// SaveState writes the wake-cycle state.
func SaveState(s Store, st logic.WakeCycleState) error {
	if err := s.Put(KeyCycleCount, []byte{st.CycleCount}); err != nil {
		return fmt.Errorf("save %s: %w", KeyCycleCount, err)
	}
	if err := s.Put(KeyLastWarningMask, []byte{byte(st.LastWarningMask)}); err != nil {
		return fmt.Errorf("save %s: %w", KeyLastWarningMask, err)
	}
	return nil
}

// LoadSequence reads the outbound message sequence number (0 if unset).
func LoadSequence(s Store) (uint32, error) {
	v, ok, err := s.Get(KeySequence)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", KeySequence, err)
	}
	if !ok || len(v) != 4 {
		return 0, nil
	}
	return binary.BigEndian.Uint32(v), nil
}

// SaveSequence writes the outbound message sequence number.
func SaveSequence(s Store, seq uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], seq)
	if err := s.Put(KeySequence, b[:]); err != nil {
		return fmt.Errorf("save %s: %w", KeySequence, err)
	}
	return nil
}

// Credentials are network credentials received during provisioning.
type Credentials struct {
	SSID     string
	Password string
}

// SaveCredentials stores provisioning credentials.
func SaveCredentials(s Store, c Credentials) error {
	if err := s.Put(KeyWifiSSID, []byte(c.SSID)); err != nil {
		return fmt.Errorf("save %s: %w", KeyWifiSSID, err)
	}
	if err := s.Put(KeyWifiPass, []byte(c.Password)); err != nil {
		return fmt.Errorf("save %s: %w", KeyWifiPass, err)
	}
	return nil
}

// LoadCredentials reads stored credentials; ok is false if none were saved.
func LoadCredentials(s Store) (Credentials, bool, error) {
	ssid, ok, err := s.Get(KeyWifiSSID)
	if err != nil || !ok {
		return Credentials{}, false, err
	}
	pass, _, err := s.Get(KeyWifiPass)
	if err != nil {
		return Credentials{}, false, err
	}
	return Credentials{SSID: string(ssid), Password: string(pass)}, true, nil
}
