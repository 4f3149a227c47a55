package logic

import (
	"errors"
	"time"
)

// ModeBounds classifies how long the button was held.
type ModeBounds struct {
	// MinPress is the shortest hold that counts as a command.
	MinPress time.Duration
	// MaxProvisioning is the longest hold that still selects provisioning.
	MaxProvisioning time.Duration
}

// DefaultModeBounds: 3 s to 6 s starts provisioning, longer starts an update.
var DefaultModeBounds = ModeBounds{
	MinPress:        3 * time.Second,
	MaxProvisioning: 6 * time.Second,
}

// Validate checks the bounds are ordered.
func (b ModeBounds) Validate() error {
	if b.MinPress <= 0 {
		return errors.New("mode bounds: minimum press must be positive")
	}
	if b.MaxProvisioning < b.MinPress {
		return errors.New("mode bounds: provisioning maximum is below the minimum press")
	}
	return nil
}

// Classify maps a hold duration to a mode action. Both bounds are inclusive.
func (b ModeBounds) Classify(d time.Duration) ModeAction {
	switch {
	case d < b.MinPress:
		return ModeNone
	case d <= b.MaxProvisioning:
		return ModeStartProvisioning
	default:
		return ModeStartFirmwareUpdate
	}
}
