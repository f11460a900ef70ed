package notify

import "log"

// outMsg stores a serialized MQTT message for replay after reconnection.
type outMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a fixed-capacity FIFO holding messages while the broker
// is unreachable. Not safe for concurrent use; the caller synchronizes.
type ringBuffer struct {
	buf      []outMsg
	capacity int
	head     int // next write position
	count    int
	overflow bool // true if any message was dropped since last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{
		buf:      make([]outMsg, capacity),
		capacity: capacity,
	}
}

func (r *ringBuffer) push(msg outMsg) {
	if r.count == r.capacity {
		if !r.overflow {
			log.Printf("notify: buffer full (%d messages), dropping oldest", r.capacity)
			r.overflow = true
		}
		// Overwrite oldest: head is already pointing at it.
		r.buf[r.head] = msg
		r.head = (r.head + 1) % r.capacity
		return
	}
	r.buf[r.head] = msg
	r.head = (r.head + 1) % r.capacity
	r.count++
}

func (r *ringBuffer) drainAll() []outMsg {
	if r.count == 0 {
		return nil
	}

	result := make([]outMsg, r.count)
	start := (r.head - r.count + r.capacity) % r.capacity
	for i := 0; i < r.count; i++ {
		result[i] = r.buf[(start+i)%r.capacity]
	}

	r.count = 0
	r.head = 0
	r.overflow = false
	return result
}

func (r *ringBuffer) len() int {
	return r.count
}
