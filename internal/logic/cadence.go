package logic

import (
	"errors"
	"fmt"
)

// Cadence controls how often routine values are published.
type Cadence struct {
	// PublishEvery is the number of timer wakes between SampleAndPublish actions.
	PublishEvery uint8
	// KeepAliveEvery must divide PublishEvery. Zero disables keep-alives.
	KeepAliveEvery uint8
}

// DefaultCadence publishes every 4th wake with a keep-alive on every 2nd.
var DefaultCadence = Cadence{PublishEvery: 4, KeepAliveEvery: 2}

// Validate checks the cadence configuration.
func (c Cadence) Validate() error {
	if c.PublishEvery == 0 {
		return errors.New("cadence: publish period must be at least 1")
	}
	if c.KeepAliveEvery != 0 && c.PublishEvery%c.KeepAliveEvery != 0 {
		return fmt.Errorf("cadence: keep-alive period %d does not divide publish period %d",
			c.KeepAliveEvery, c.PublishEvery)
	}
	return nil
}

// Decide advances the persistent counter for this wake and returns the action.
//
// Timer wakes increment CycleCount. Reaching PublishEvery returns
// SampleAndPublish and resets the counter; otherwise reaching a multiple of
// KeepAliveEvery returns PublishKeepAlive (which also samples). External wakes
// that reach the cadence policy are not button presses and are skipped.
// Callers map a cold boot to a timer wake after zeroing the state.
func (c Cadence) Decide(cause WakeCause, s *WakeCycleState) CadenceAction {
	if cause.Kind == WakeExternal {
		return ActionSkip
	}

	if s.CycleCount >= c.PublishEvery {
		s.CycleCount = 0
	}
	s.CycleCount++

	if s.CycleCount >= c.PublishEvery {
		s.CycleCount = 0
		return ActionSampleAndPublish
	}
	if c.KeepAliveEvery != 0 && s.CycleCount%c.KeepAliveEvery == 0 {
		return ActionPublishKeepAlive
	}
	return ActionSampleOnly
}
