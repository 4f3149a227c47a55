// Package platform abstracts the host's sleep/wake and restart facilities.
package platform

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/envnode/internal/logic"
)

// ErrRestart is returned by Restart. The caller unwinds and exits so the
// service supervisor starts a fresh process.
var ErrRestart = errors.New("restart requested")

// Platform is the low-power platform collaborator.
type Platform interface {
	// LastWakeCause reports why the current cycle started.
	LastWakeCause() logic.WakeCause
	// SleepUntil blocks until the deadline or an external wake.
	SleepUntil(ctx context.Context, deadline time.Time) error
	// Restart requests a full restart. It always returns an error wrapping
	// ErrRestart.
	Restart(reason string) error
}

// Host is the daemon platform. The first cause is a cold boot; later causes
// come from SleepUntil.
type Host struct {
	wake <-chan struct{}
	line int

	mu    sync.Mutex
	cause logic.WakeCause
}

// NewHost creates a Host. wake is the external wake source (may be nil) and
// line the GPIO line reported with external wakes.
func NewHost(wake <-chan struct{}, line int) *Host {
	return &Host{wake: wake, line: line, cause: logic.ColdBoot()}
}

// LastWakeCause implements Platform.
func (h *Host) LastWakeCause() logic.WakeCause {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cause
}

func (h *Host) setCause(c logic.WakeCause) {
	h.mu.Lock()
	h.cause = c
	h.mu.Unlock()
}

// SleepUntil implements Platform.
func (h *Host) SleepUntil(ctx context.Context, deadline time.Time) error {
	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		h.setCause(logic.TimerWake())
	case <-h.wake:
		h.setCause(logic.ExternalWake(h.line))
	}
	return nil
}

// Restart implements Platform.
func (h *Host) Restart(reason string) error {
	log.Warn().Str("component", "platform").Str("reason", reason).Msg("restarting")
	return restartError(reason)
}

func restartError(reason string) error {
	return &restartErr{reason: reason}
}

type restartErr struct{ reason string }

func (e *restartErr) Error() string { return "restart requested: " + e.reason }
func (e *restartErr) Unwrap() error { return ErrRestart }

// OneShot runs a single cycle with a fixed cause, e.g. when an external
// scheduler invokes the binary on each wake.
type OneShot struct {
	Cause logic.WakeCause
}

// LastWakeCause implements Platform.
func (o OneShot) LastWakeCause() logic.WakeCause { return o.Cause }

// SleepUntil implements Platform. It returns immediately.
func (o OneShot) SleepUntil(context.Context, time.Time) error { return nil }

// Restart implements Platform.
func (o OneShot) Restart(reason string) error {
	log.Warn().Str("component", "platform").Str("reason", reason).Msg("restarting")
	return restartError(reason)
}

// ParseWake parses a one-shot wake cause: "cold", "timer" or "button".
func ParseWake(s string, line int) (logic.WakeCause, error) {
	switch s {
	case "cold":
		return logic.ColdBoot(), nil
	case "timer":
		return logic.TimerWake(), nil
	case "button":
		return logic.ExternalWake(line), nil
	}
	return logic.WakeCause{}, fmt.Errorf("unknown wake cause %q", s)
}
