// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/bomb-prop/internal/logic"
)

// Topic is the MQTT topic for game events.
const Topic = "escape/bomb-prop/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "escape/bomb-prop/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a game event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "RECONNECTED"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Bomb BombPayload `json:"bomb"`
}

// BombPayload contains the game event details. Fields that do not apply to
// the event type are omitted.
type BombPayload struct {
	Timestamp        string `json:"timestamp"`
	Event            string `json:"event"`
	State            string `json:"state"`
	RoundID          string `json:"round_id,omitempty"`
	Game             int    `json:"game,omitempty"`
	Variant          string `json:"variant,omitempty"`
	Minutes          int    `json:"minutes,omitempty"`
	Channel          int    `json:"channel,omitempty"`
	Slot             *int   `json:"slot,omitempty"`
	Correct          *bool  `json:"correct,omitempty"`
	Cuts             *int   `json:"cuts,omitempty"`
	Mistakes         *int   `json:"mistakes,omitempty"`
	RemainingSeconds *int   `json:"remaining_seconds,omitempty"`
	DisplayCode      string `json:"display_code,omitempty"`
}

// FormatPayload creates the JSON payload for a game event.
func FormatPayload(event logic.Event) ([]byte, error) {
	p := BombPayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     string(event.Type),
		State:     string(event.State),
		RoundID:   event.RoundID,
	}

	switch event.Type {
	case logic.EventRoundArmed:
		p.Game = event.Game
		p.Variant = logic.Variant(event.Game).String()
		p.Minutes = event.Minutes
		p.RemainingSeconds = intPtr(event.RemainingSeconds)
		p.DisplayCode = event.DisplayCode
	case logic.EventWireCut:
		p.Channel = event.Channel
		p.Slot = intPtr(event.Slot)
		p.Correct = &event.Correct
		p.Cuts = intPtr(event.Cuts)
		p.Mistakes = intPtr(event.Mistakes)
		p.RemainingSeconds = intPtr(event.RemainingSeconds)
	case logic.EventRoundWon, logic.EventRoundLost:
		p.Game = event.Game
		p.Variant = logic.Variant(event.Game).String()
		p.Minutes = event.Minutes
		p.Cuts = intPtr(event.Cuts)
		p.Mistakes = intPtr(event.Mistakes)
		p.RemainingSeconds = intPtr(event.RemainingSeconds)
		p.DisplayCode = event.DisplayCode
	}

	return json.Marshal(Payload{Bomb: p})
}

func intPtr(v int) *int { return &v }

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
