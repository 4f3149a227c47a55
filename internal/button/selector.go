// Package button turns raw button edges into long-press mode actions.
//
// The edge producer (a GPIO event handler) only enqueues edges. Selector.Run
// is the single consumer: it debounces, tracks Idle/Pressed, classifies the
// hold on release and hands the result to whoever waits in Next.
package button

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/envnode/internal/gpio"
	"github.com/sweeney/envnode/internal/logic"
)

// DefaultDebounce suppresses contact bounce before a press is accepted.
const DefaultDebounce = 50 * time.Millisecond

// Config configures a Selector.
type Config struct {
	Bounds   logic.ModeBounds
	Debounce time.Duration
}

// Result is a classified press.
type Result struct {
	Press  logic.PressEvent
	Action logic.ModeAction
}

// Selector classifies button holds.
type Selector struct {
	bounds   logic.ModeBounds
	debounce time.Duration
	edges    <-chan gpio.Edge

	wake    chan struct{}
	results chan Result

	busy    atomic.Bool
	ignored atomic.Uint32

	// Owned by Run.
	pressed    bool
	pressStart time.Time
	lastEdge   time.Time
}

// NewSelector creates a Selector reading from edges.
func NewSelector(cfg Config, edges <-chan gpio.Edge) *Selector {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Bounds == (logic.ModeBounds{}) {
		cfg.Bounds = logic.DefaultModeBounds
	}
	return &Selector{
		bounds:   cfg.Bounds,
		debounce: cfg.Debounce,
		edges:    edges,
		wake:     make(chan struct{}, 1),
		results:  make(chan Result, 1),
	}
}

// Seed marks a press already in progress at the given time. It must be called
// before Run, e.g. when the process was started by the button itself.
func (s *Selector) Seed(at time.Time) {
	s.pressed = true
	s.pressStart = at
	s.lastEdge = at
}

// Run consumes edges until ctx is done or the edge channel closes.
func (s *Selector) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-s.edges:
			if !ok {
				return nil
			}
			s.handle(e)
		}
	}
}

func (s *Selector) handle(e gpio.Edge) {
	if !s.lastEdge.IsZero() && e.Time.Sub(s.lastEdge) < s.debounce {
		return
	}

	switch {
	case !s.pressed && e.Pressed:
		if s.busy.Load() {
			s.ignored.Add(1)
			log.Debug().Str("component", "button").Msg("press ignored: mode action in progress")
			return
		}
		s.lastEdge = e.Time
		s.pressed = true
		s.pressStart = e.Time
		select {
		case s.wake <- struct{}{}:
		default:
		}

	case s.pressed && !e.Pressed:
		s.lastEdge = e.Time
		s.pressed = false
		press := logic.PressEvent{Start: s.pressStart, Duration: e.Time.Sub(s.pressStart)}
		r := Result{Press: press, Action: s.bounds.Classify(press.Duration)}
		log.Debug().Str("component", "button").Dur("held", press.Duration).
			Str("action", r.Action.String()).Msg("press classified")
		s.offer(r)
	}
}

// offer keeps only the newest result.
func (s *Selector) offer(r Result) {
	for {
		select {
		case s.results <- r:
			return
		default:
		}
		select {
		case <-s.results:
		default:
		}
	}
}

// Wake is signalled when a press is accepted. It is the node's external wake
// source.
func (s *Selector) Wake() <-chan struct{} {
	return s.wake
}

// Next waits for the next classified release.
func (s *Selector) Next(ctx context.Context) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-s.results:
		return r, nil
	}
}

// SetBusy sets the mode-busy latch. Only the task that runs mode actions
// calls it; presses are ignored while it is set.
func (s *Selector) SetBusy(busy bool) {
	s.busy.Store(busy)
}

// Busy reports the mode-busy latch.
func (s *Selector) Busy() bool {
	return s.busy.Load()
}

// Ignored returns how many presses were dropped while busy.
func (s *Selector) Ignored() uint32 {
	return s.ignored.Load()
}
