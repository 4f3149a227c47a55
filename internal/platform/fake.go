package platform

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sweeney/envnode/internal/logic"
)

// Fake is a scripted Platform for testing. Each SleepUntil pops the next cause
// from Causes; when none remain it returns Exhausted.
type Fake struct {
	mu sync.Mutex

	Cause     logic.WakeCause
	Causes    []logic.WakeCause
	Deadlines []time.Time
	Restarts  []string
}

// ErrExhausted is returned by Fake.SleepUntil once Causes is empty.
var ErrExhausted = errors.New("fake platform: no more wakes")

// NewFake creates a Fake starting with the given cause.
func NewFake(first logic.WakeCause, then ...logic.WakeCause) *Fake {
	return &Fake{Cause: first, Causes: then}
}

// LastWakeCause implements Platform.
func (f *Fake) LastWakeCause() logic.WakeCause {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Cause
}

// SleepUntil implements Platform.
func (f *Fake) SleepUntil(ctx context.Context, deadline time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deadlines = append(f.Deadlines, deadline)
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(f.Causes) == 0 {
		return ErrExhausted
	}
	f.Cause = f.Causes[0]
	f.Causes = f.Causes[1:]
	return nil
}

// Restart implements Platform.
func (f *Fake) Restart(reason string) error {
	f.mu.Lock()
	f.Restarts = append(f.Restarts, reason)
	f.mu.Unlock()
	return restartError(reason)
}
