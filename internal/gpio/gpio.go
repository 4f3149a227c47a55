// Package gpio delivers button line edges with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// Edge is one debounced-by-hardware transition of the button line, already
// converted to logical form.
type Edge struct {
	Pressed bool
	Time    time.Time
}

// EdgeSource delivers button edges.
type EdgeSource interface {
	// Edges returns the bounded channel edges are delivered on. The producer
	// never blocks: edges are dropped when the channel is full.
	Edges() <-chan Edge

	// Pressed reports the current logical level of the line.
	Pressed() (bool, error)

	// Close releases GPIO resources and closes the edge channel.
	Close() error
}

// Defaults (BCM numbering).
const (
	DefaultChip      = "gpiochip0"
	DefaultButtonPin = 17
	DefaultQueueLen  = 8
)

// Config describes the button line.
type Config struct {
	Chip string
	Pin  int
	// ActiveLow is true when a press pulls the line to ground.
	ActiveLow bool
	// QueueLen bounds the edge channel.
	QueueLen int
}
