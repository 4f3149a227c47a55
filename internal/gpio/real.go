//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealButton watches the button line through the Linux GPIO character device.
type RealButton struct {
	line  *gpiocdev.Line
	edges chan Edge
	drops atomic.Uint32

	closeOnce sync.Once
	closed    atomic.Bool
}

// NewRealButton requests the button line with edge detection on both edges.
func NewRealButton(cfg Config) (*RealButton, error) {
	if cfg.Chip == "" {
		cfg.Chip = DefaultChip
	}
	if cfg.QueueLen <= 0 {
		cfg.QueueLen = DefaultQueueLen
	}

	b := &RealButton{edges: make(chan Edge, cfg.QueueLen)}

	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(b.handle),
	}
	if cfg.ActiveLow {
		// Button to ground: pull the idle line high and report presses as active.
		opts = append(opts, gpiocdev.AsActiveLow, gpiocdev.WithPullUp)
	} else {
		opts = append(opts, gpiocdev.WithPullDown)
	}

	line, err := gpiocdev.RequestLine(cfg.Chip, cfg.Pin, opts...)
	if err != nil {
		return nil, fmt.Errorf("request button pin %d on %s: %w", cfg.Pin, cfg.Chip, err)
	}
	b.line = line
	return b, nil
}

// handle runs on the gpiocdev event goroutine. It must never block: it only
// converts the edge and offers it to the queue.
func (b *RealButton) handle(evt gpiocdev.LineEvent) {
	if b.closed.Load() {
		return
	}
	e := Edge{
		Pressed: evt.Type == gpiocdev.LineEventRisingEdge,
		Time:    time.Now(),
	}
	select {
	case b.edges <- e:
	default:
		b.drops.Add(1)
	}
}

// Edges implements EdgeSource.
func (b *RealButton) Edges() <-chan Edge {
	return b.edges
}

// Pressed reads the current logical level.
func (b *RealButton) Pressed() (bool, error) {
	v, err := b.line.Value()
	if err != nil {
		return false, fmt.Errorf("read button pin: %w", err)
	}
	return v == 1, nil
}

// Dropped returns how many edges were lost because the queue was full.
func (b *RealButton) Dropped() uint32 {
	return b.drops.Load()
}

// Close releases the line. Reconfigures the pin as a plain input with pull-up
// (the Pi boot default for this pin) before closing.
func (b *RealButton) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		var errs []error
		if rerr := b.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp); rerr != nil {
			errs = append(errs, fmt.Errorf("reconfigure button pin: %w", rerr))
		}
		if cerr := b.line.Close(); cerr != nil {
			errs = append(errs, fmt.Errorf("close button pin: %w", cerr))
		}
		close(b.edges)
		if len(errs) > 0 {
			err = fmt.Errorf("close errors: %v", errs)
		}
	})
	return err
}
