package gpio

import (
	"errors"
	"sync"
	"time"
)

// FakeButton is a test double that delivers scripted edges.
type FakeButton struct {
	mu    sync.Mutex
	edges chan Edge
	level bool
	drops int

	// Closed tracks if Close was called.
	Closed bool

	// ReadErr, if set, is returned by Pressed.
	ReadErr error
}

// NewFakeButton creates a FakeButton with a queue of the given length.
func NewFakeButton(queueLen int) *FakeButton {
	if queueLen <= 0 {
		queueLen = DefaultQueueLen
	}
	return &FakeButton{edges: make(chan Edge, queueLen)}
}

// Emit offers an edge without blocking, like the real event handler.
// Returns false if the edge was dropped.
func (f *FakeButton) Emit(pressed bool, at time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Closed {
		return false
	}
	f.level = pressed
	select {
	case f.edges <- Edge{Pressed: pressed, Time: at}:
		return true
	default:
		f.drops++
		return false
	}
}

// Press emits a press at start and a release after hold.
func (f *FakeButton) Press(start time.Time, hold time.Duration) {
	f.Emit(true, start)
	f.Emit(false, start.Add(hold))
}

// Edges implements EdgeSource.
func (f *FakeButton) Edges() <-chan Edge {
	return f.edges
}

// Pressed returns the level of the last emitted edge.
func (f *FakeButton) Pressed() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadErr != nil {
		return false, f.ReadErr
	}
	if f.Closed {
		return false, errors.New("fake button closed")
	}
	return f.level, nil
}

// Dropped returns how many edges did not fit the queue.
func (f *FakeButton) Dropped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.drops
}

// Close closes the edge channel.
func (f *FakeButton) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Closed {
		f.Closed = true
		close(f.edges)
	}
	return nil
}
