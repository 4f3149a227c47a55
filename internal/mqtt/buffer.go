package mqtt

import "github.com/rs/zerolog/log"

// bufferedMsg is a serialized message waiting for a connection.
type bufferedMsg struct {
	topic   string
	payload []byte
	qos     byte
}

// ringBuffer holds the newest messages published while disconnected, oldest
// first on drain. Not safe for concurrent use.
type ringBuffer struct {
	slots   []bufferedMsg
	next    int // slot the next push writes
	n       int
	dropped int // overwritten since the last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{slots: make([]bufferedMsg, capacity)}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	if r.n == len(r.slots) {
		if r.dropped == 0 {
			log.Warn().Str("component", "mqtt").Int("capacity", len(r.slots)).
				Msg("offline buffer full, dropping oldest")
		}
		r.dropped++
	} else {
		r.n++
	}
	r.slots[r.next] = msg
	r.next = (r.next + 1) % len(r.slots)
}

// drainAll empties the buffer. It returns the held messages oldest first and
// how many older ones were overwritten.
func (r *ringBuffer) drainAll() ([]bufferedMsg, int) {
	dropped := r.dropped
	if r.n == 0 {
		r.dropped = 0
		return nil, dropped
	}
	out := make([]bufferedMsg, 0, r.n)
	for i := len(r.slots) - r.n; i < len(r.slots); i++ {
		out = append(out, r.slots[(r.next+i)%len(r.slots)])
	}
	r.next, r.n, r.dropped = 0, 0, 0
	return out, dropped
}

func (r *ringBuffer) len() int {
	return r.n
}
