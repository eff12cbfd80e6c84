package mqtt

import "log"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox is a fixed-capacity FIFO holding messages published while the
// broker is unreachable. When full, the oldest message is dropped.
// Not safe for concurrent use; only the RealPublisher sender goroutine touches it.
type outbox struct {
	buf     []bufferedMsg
	head    int // next write position
	count   int
	dropped int // messages lost since the last drain
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{buf: make([]bufferedMsg, capacity)}
}

func (o *outbox) push(msg bufferedMsg) {
	if o.count == len(o.buf) {
		if o.dropped == 0 {
			log.Printf("mqtt: outbox full (%d messages), dropping oldest", len(o.buf))
		}
		o.dropped++
		// head already points at the oldest entry
		o.buf[o.head] = msg
		o.head = (o.head + 1) % len(o.buf)
		return
	}
	o.buf[o.head] = msg
	o.head = (o.head + 1) % len(o.buf)
	o.count++
}

// drain returns the buffered messages oldest first and how many were dropped,
// then empties the outbox.
func (o *outbox) drain() ([]bufferedMsg, int) {
	dropped := o.dropped
	o.dropped = 0
	if o.count == 0 {
		return nil, dropped
	}

	out := make([]bufferedMsg, o.count)
	start := (o.head - o.count + len(o.buf)) % len(o.buf)
	for i := range out {
		out[i] = o.buf[(start+i)%len(o.buf)]
	}

	o.count = 0
	o.head = 0
	return out, dropped
}

func (o *outbox) len() int {
	return o.count
}
