package mqtt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/bomb-prop/internal/logic"
)

// OutboxSize is how many messages are kept while the broker is unreachable.
const OutboxSize = 256

// QueueSize is how many messages may wait for the sender goroutine.
const QueueSize = 64

const ackTimeout = 5 * time.Second

// ErrQueueFull is returned when the sender goroutine has fallen behind.
var ErrQueueFull = errors.New("mqtt: publish queue full")

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("mqtt: publisher closed")

// client is the part of paho.Client the publisher uses.
type client interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// RealPublisher publishes to an actual MQTT broker without ever blocking the
// caller. Publish only queues; a single sender goroutine hands messages to
// the client. Messages sent while disconnected go to an outbox that is
// replayed, oldest first, when the connection comes back.
type RealPublisher struct {
	client client

	queue     chan bufferedMsg
	connects  chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// Owned by the sender goroutine.
	outbox    *outbox
	connected bool // at least one connection has been made

	buffered atomic.Int64
	acks     sync.WaitGroup
	now      func() time.Time
}

// NewRealPublisher creates a publisher for broker. The connection is made in
// the background and retried until it succeeds; the call does not wait for it.
func NewRealPublisher(broker, clientID string) *RealPublisher {
	p := newPublisher()

	will, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWriteTimeout(ackTimeout).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	c := paho.NewClient(opts)
	p.client = c
	go p.run()

	token := c.Connect()
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("mqtt: connect to %s: %v", broker, err)
		}
	}()

	return p
}

func newPublisher() *RealPublisher {
	return &RealPublisher{
		queue:    make(chan bufferedMsg, QueueSize),
		connects: make(chan struct{}, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		outbox:   newOutbox(OutboxSize),
		now:      time.Now,
	}
}

func newPublisherWithClient(c client) *RealPublisher {
	p := newPublisher()
	p.client = c
	go p.run()
	return p
}

// onConnect runs on the paho goroutine; the sender does the work.
func (p *RealPublisher) onConnect() {
	select {
	case p.connects <- struct{}{}:
	default:
	}
}

// run is the sender goroutine.
func (p *RealPublisher) run() {
	defer close(p.stopped)
	for {
		select {
		case <-p.done:
			p.flushQueue()
			return
		case <-p.connects:
			p.reconnected()
		case msg := <-p.queue:
			p.deliver(msg)
		}
	}
}

// reconnected announces the reconnect after the first connection and
// replays the outbox.
func (p *RealPublisher) reconnected() {
	if p.connected {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"})
		p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1})
	}
	p.connected = true
	p.replay()
}

func (p *RealPublisher) replay() {
	msgs, dropped := p.outbox.drain()
	p.buffered.Store(0)
	if len(msgs) > 0 || dropped > 0 {
		log.Printf("mqtt: replaying %d buffered messages (%d dropped)", len(msgs), dropped)
	}
	for _, m := range msgs {
		p.send(m)
	}
}

func (p *RealPublisher) deliver(msg bufferedMsg) {
	if !p.client.IsConnectionOpen() {
		p.outbox.push(msg)
		p.buffered.Store(int64(p.outbox.len()))
		return
	}
	if p.outbox.len() > 0 {
		p.replay()
	}
	p.send(msg)
}

// flushQueue delivers whatever was queued before Close.
func (p *RealPublisher) flushQueue() {
	for {
		select {
		case msg := <-p.queue:
			p.deliver(msg)
		default:
			return
		}
	}
}

// send hands msg to the client and checks the ack in the background.
func (p *RealPublisher) send(msg bufferedMsg) {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	p.acks.Add(1)
	go func() {
		defer p.acks.Done()
		if !token.WaitTimeout(ackTimeout) {
			log.Printf("mqtt: publish to %s: timeout", msg.topic)
			return
		}
		if err := token.Error(); err != nil {
			log.Printf("mqtt: publish to %s: %v", msg.topic, err)
		}
	}()
}

func (p *RealPublisher) enqueue(msg bufferedMsg) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Publish queues a game event (QoS 1, not retained).
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.enqueue(bufferedMsg{topic: Topic, payload: payload, qos: 1})
}

// PublishSystem queues a system lifecycle event.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.enqueue(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

func (p *RealPublisher) outboxLen() int {
	return int(p.buffered.Load())
}

// Close flushes queued messages, waits briefly for outstanding acks, then
// disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		<-p.stopped
		p.acks.Wait()
		p.client.Disconnect(1000) // 1 second quiesce
	})
	return nil
}
