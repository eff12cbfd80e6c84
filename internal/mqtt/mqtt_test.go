package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/bomb-prop/internal/logic"
)

var ts = time.Date(2026, 3, 7, 19, 4, 5, 0, time.UTC)

func TestFormatPayloadWireCutExactJSON(t *testing.T) {
	event := logic.Event{
		Timestamp:        ts,
		Type:             logic.EventWireCut,
		State:            logic.StateArmed,
		RoundID:          "r1",
		Channel:          3,
		Slot:             0,
		Correct:          true,
		Cuts:             2,
		Mistakes:         1,
		RemainingSeconds: 1712,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"bomb":{"timestamp":"2026-03-07T19:04:05Z","event":"WIRE_CUT","state":"ARMED","round_id":"r1","channel":3,"slot":0,"correct":true,"cuts":2,"mistakes":1,"remaining_seconds":1712}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatPayloadRoundArmed(t *testing.T) {
	event := logic.Event{
		Timestamp:        ts,
		Type:             logic.EventRoundArmed,
		State:            logic.StateArmed,
		RoundID:          "r1",
		Game:             1,
		Minutes:          30,
		RemainingSeconds: 1800,
		DisplayCode:      "550B",
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	b := parsed.Bomb
	if b.Event != "ROUND_ARMED" || b.Variant != "ordered" || b.Minutes != 30 || b.DisplayCode != "550B" {
		t.Errorf("unexpected payload: %+v", b)
	}
	if b.RemainingSeconds == nil || *b.RemainingSeconds != 1800 {
		t.Errorf("remaining_seconds: got %v", b.RemainingSeconds)
	}
	if b.Slot != nil || b.Correct != nil || b.Cuts != nil {
		t.Errorf("ROUND_ARMED should not carry cut fields: %s", payload)
	}
}

func TestFormatPayloadOutcomes(t *testing.T) {
	tests := []struct {
		eventType logic.EventType
		state     logic.State
		game      int
		wantEvent string
		variant   string
	}{
		{logic.EventRoundWon, logic.StateWon, 1, "ROUND_WON", "ordered"},
		{logic.EventRoundLost, logic.StateLost, 2, "ROUND_LOST", "any-order"},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			payload, err := FormatPayload(logic.Event{
				Timestamp: ts,
				Type:      tt.eventType,
				State:     tt.state,
				Game:      tt.game,
				Minutes:   5,
				Cuts:      5,
				Mistakes:  0,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var parsed Payload
			if err := json.Unmarshal(payload, &parsed); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if parsed.Bomb.Event != tt.wantEvent {
				t.Errorf("event: got %s, want %s", parsed.Bomb.Event, tt.wantEvent)
			}
			if parsed.Bomb.Variant != tt.variant {
				t.Errorf("variant: got %s, want %s", parsed.Bomb.Variant, tt.variant)
			}
			if parsed.Bomb.Mistakes == nil || *parsed.Bomb.Mistakes != 0 {
				t.Error("zero mistakes must still be reported")
			}
		})
	}
}

func TestFormatPayloadStateOnly(t *testing.T) {
	payload, err := FormatPayload(logic.Event{Timestamp: ts, Type: logic.EventState, State: logic.StateReady})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := `{"bomb":{"timestamp":"2026-03-07T19:04:05Z","event":"STATE","state":"READY"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	payload, _ := FormatPayload(logic.Event{
		Timestamp: time.Date(2026, 3, 7, 20, 4, 5, 0, loc),
		Type:      logic.EventState,
	})

	var parsed Payload
	json.Unmarshal(payload, &parsed)
	if parsed.Bomb.Timestamp != "2026-03-07T19:04:05Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.Bomb.Timestamp)
	}
}

func TestTopics(t *testing.T) {
	if Topic != "escape/bomb-prop/events" {
		t.Errorf("unexpected topic: %s", Topic)
	}
	if TopicSystem != "escape/bomb-prop/system" {
		t.Errorf("unexpected system topic: %s", TopicSystem)
	}
}

func TestWillPayloadFormat(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"SHUTDOWN","reason":"MQTT_DISCONNECT"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadOmitsEmptyReason(t *testing.T) {
	payload, _ := FormatSystemPayload(SystemEvent{Timestamp: ts, Event: "RECONNECTED"})
	expected := `{"system":{"timestamp":"2026-03-07T19:04:05Z","event":"RECONNECTED"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadRawPassthrough(t *testing.T) {
	raw := []byte(`{"status":{"event":"HEARTBEAT"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "HEARTBEAT", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload not passed through: %s", payload)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()
	f.Publish(logic.Event{Timestamp: ts, Type: logic.EventWireCut, Channel: 2})
	f.PublishSystem(SystemEvent{Timestamp: ts, Event: "STARTUP", Retained: true})

	if len(f.Events) != 1 || f.Events[0].Channel != 2 {
		t.Errorf("unexpected events: %+v", f.Events)
	}
	if len(f.Payloads) != 1 {
		t.Errorf("expected 1 payload, got %d", len(f.Payloads))
	}
	if len(f.SystemEvents) != 1 || !f.SystemEvents[0].Retained {
		t.Errorf("unexpected system events: %+v", f.SystemEvents)
	}

	f.Reset()
	if len(f.Events) != 0 || len(f.SystemEvents) != 0 {
		t.Error("reset should clear recorded events")
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker down")
	f.PublishSystemError = errors.New("broker down")

	if err := f.Publish(logic.Event{}); err == nil {
		t.Error("expected publish error")
	}
	if err := f.PublishSystem(SystemEvent{}); err == nil {
		t.Error("expected publish system error")
	}
	if len(f.Events) != 0 || len(f.SystemEvents) != 0 {
		t.Error("failed publishes must not be recorded")
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	if err := p.Publish(logic.Event{}); err != nil {
		t.Error(err)
	}
	if p.(ConnectionStatus).IsConnected() {
		t.Error("nop publisher is never connected")
	}
}

// --- RealPublisher against a fake client ---

type fakeToken struct {
	err  error
	done chan struct{}
}

func newDoneToken(err error) *fakeToken {
	tok := &fakeToken{err: err, done: make(chan struct{})}
	close(tok.done)
	return tok
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { <-t.done; return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type sentMsg struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu           sync.Mutex
	open         bool
	sent         []sentMsg
	err          error
	disconnected bool
	block        chan struct{} // when set, Publish waits for it to close
}

func (c *fakeClient) IsConnectionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeClient) setOpen(open bool) {
	c.mu.Lock()
	c.open = open
	c.mu.Unlock()
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentMsg{topic, qos, retained, payload.([]byte)})
	return newDoneToken(c.err)
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	c.disconnected = true
	c.mu.Unlock()
}

func (c *fakeClient) messages() []sentMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentMsg(nil), c.sent...)
}

func (c *fakeClient) isDisconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

// waitFor polls cond until it holds or a second has passed.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRealPublisherSendsWhenConnected(t *testing.T) {
	c := &fakeClient{open: true}
	p := newPublisherWithClient(c)
	defer p.Close()

	if err := p.Publish(logic.Event{Timestamp: ts, Type: logic.EventState, State: logic.StateReady}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.PublishSystem(SystemEvent{Timestamp: ts, Event: "STARTUP", Retained: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitFor(t, "2 messages", func() bool { return len(c.messages()) == 2 })
	sent := c.messages()
	if sent[0].topic != Topic || sent[0].qos != 1 || sent[0].retained {
		t.Errorf("unexpected game message: %+v", sent[0])
	}
	if sent[1].topic != TopicSystem || !sent[1].retained {
		t.Errorf("unexpected system message: %+v", sent[1])
	}
	if !p.IsConnected() {
		t.Error("expected connected")
	}
}

func TestRealPublisherBuffersWhileDisconnected(t *testing.T) {
	c := &fakeClient{}
	p := newPublisherWithClient(c)
	defer p.Close()

	for i := 1; i <= 3; i++ {
		p.Publish(logic.Event{Timestamp: ts, Type: logic.EventWireCut, Channel: i})
	}
	waitFor(t, "3 buffered", func() bool { return p.outboxLen() == 3 })
	if len(c.messages()) != 0 {
		t.Fatal("nothing should be sent while disconnected")
	}

	// First connection: replay only, no RECONNECTED.
	c.setOpen(true)
	p.onConnect()

	waitFor(t, "3 replayed messages", func() bool { return len(c.messages()) == 3 })
	for i, m := range c.messages() {
		var parsed Payload
		json.Unmarshal(m.payload, &parsed)
		if parsed.Bomb.Channel != i+1 {
			t.Errorf("replay order: message %d has channel %d", i, parsed.Bomb.Channel)
		}
	}
	if p.outboxLen() != 0 {
		t.Errorf("outbox should be empty, has %d", p.outboxLen())
	}
}

func TestRealPublisherReplaysBeforeNewMessages(t *testing.T) {
	c := &fakeClient{}
	p := newPublisherWithClient(c)
	defer p.Close()

	p.Publish(logic.Event{Timestamp: ts, Type: logic.EventWireCut, Channel: 1})
	waitFor(t, "1 buffered", func() bool { return p.outboxLen() == 1 })

	// The connection is up before the connect handler has run.
	c.setOpen(true)
	p.Publish(logic.Event{Timestamp: ts, Type: logic.EventWireCut, Channel: 2})

	waitFor(t, "2 messages", func() bool { return len(c.messages()) == 2 })
	for i, m := range c.messages() {
		var parsed Payload
		json.Unmarshal(m.payload, &parsed)
		if parsed.Bomb.Channel != i+1 {
			t.Errorf("message %d has channel %d", i, parsed.Bomb.Channel)
		}
	}
}

func TestRealPublisherAnnouncesReconnect(t *testing.T) {
	c := &fakeClient{open: true}
	p := newPublisherWithClient(c)
	defer p.Close()
	p.now = func() time.Time { return ts }
	p.onConnect()
	waitFor(t, "first connect handled", func() bool { return len(p.connects) == 0 })

	c.setOpen(false)
	p.PublishSystem(SystemEvent{Timestamp: ts, Event: "HEARTBEAT"})
	waitFor(t, "heartbeat buffered", func() bool { return p.outboxLen() == 1 })
	c.setOpen(true)
	p.onConnect()

	waitFor(t, "RECONNECTED and the heartbeat", func() bool { return len(c.messages()) == 2 })
	sent := c.messages()
	want := `{"system":{"timestamp":"2026-03-07T19:04:05Z","event":"RECONNECTED"}}`
	if string(sent[0].payload) != want {
		t.Errorf("first message: got %s, want %s", sent[0].payload, want)
	}
}

func TestRealPublisherAckErrorIsNotReturned(t *testing.T) {
	c := &fakeClient{open: true, err: errors.New("not authorized")}
	p := newPublisherWithClient(c)

	if err := p.Publish(logic.Event{Timestamp: ts, Type: logic.EventState}); err != nil {
		t.Errorf("ack failures are logged, not returned: %v", err)
	}
	p.Close()
}

func TestRealPublisherStalledClientDoesNotBlock(t *testing.T) {
	c := &fakeClient{open: true, block: make(chan struct{})}
	p := newPublisherWithClient(c)

	begin := time.Now()
	var full int
	for i := 0; i < QueueSize+10; i++ {
		err := p.Publish(logic.Event{Timestamp: ts, Type: logic.EventWireCut, Channel: 1})
		if errors.Is(err, ErrQueueFull) {
			full++
		} else if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if elapsed := time.Since(begin); elapsed > 100*time.Millisecond {
		t.Errorf("Publish blocked for %v on a stalled client", elapsed)
	}
	if full == 0 {
		t.Error("expected ErrQueueFull once the queue filled")
	}

	close(c.block)
	p.Close()
}

func TestRealPublisherClose(t *testing.T) {
	c := &fakeClient{open: true}
	p := newPublisherWithClient(c)
	p.Publish(logic.Event{Timestamp: ts, Type: logic.EventState})

	if err := p.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.messages()) != 1 {
		t.Errorf("queued message should be flushed on close, sent %d", len(c.messages()))
	}
	if !c.isDisconnected() {
		t.Error("expected disconnect")
	}
	if err := p.Publish(logic.Event{}); !errors.Is(err, ErrClosed) {
		t.Errorf("publish after close: got %v, want ErrClosed", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
