// Package logic contains the pure control logic of the bomb prop: input
// debouncing, press classification, the wire cut-order puzzle, the countdown
// and the game state machine that ties them together.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// State is the outer game state.
type State string

const (
	StateSelectGame State = "SELECT_GAME"
	StateSelectTime State = "SELECT_TIME"
	StateReady      State = "READY"
	StateArmed      State = "ARMED"
	StateWon        State = "WON"
	StateLost       State = "LOST"
	StateFinished   State = "FINISHED"
)

// EventType identifies something the game wants the outside world to know.
type EventType string

const (
	EventState      EventType = "STATE"
	EventRoundArmed EventType = "ROUND_ARMED"
	EventWireCut    EventType = "WIRE_CUT"
	EventRoundWon   EventType = "ROUND_WON"
	EventRoundLost  EventType = "ROUND_LOST"
	EventAudioMuted EventType = "AUDIO_MUTED"
)

// Event is emitted by Game.Tick. Fields that do not apply to the event type
// are left at their zero value.
type Event struct {
	Timestamp        time.Time
	Type             EventType
	State            State
	RoundID          string
	RoundStarted     time.Time
	Game             int
	Minutes          int
	Channel          int  // WIRE_CUT only, 1-based
	Slot             int  // WIRE_CUT only, 0-based slot the wire was filed in
	Correct          bool // WIRE_CUT only
	Cuts             int
	Mistakes         int
	RemainingSeconds int
	DisplayCode      string // ROUND_ARMED, ROUND_WON, ROUND_LOST
}

// Input is one sample of the physical inputs, taken once per tick.
type Input struct {
	Button bool   // true = pressed (already inverted from raw GPIO)
	Wires  []bool // true = cut, index 0 is channel 1
	Time   time.Time
}

// Variant selects how a round is scored.
type Variant int

const (
	// VariantOrdered is the cut-order puzzle: wires must follow the secret order.
	VariantOrdered Variant = 1
	// VariantAnyOrder defuses once every wire is cut; only the clock can lose.
	VariantAnyOrder Variant = 2
)

func (v Variant) String() string {
	switch v {
	case VariantOrdered:
		return "ordered"
	case VariantAnyOrder:
		return "any-order"
	}
	return "unknown"
}

// TieBreak decides which outcome wins when both the win and the lose
// predicate hold in the same tick.
type TieBreak string

const (
	WinFirst  TieBreak = "win-first"
	LoseFirst TieBreak = "lose-first"
)

// RoundCounts tracks round outcomes since startup.
type RoundCounts struct {
	Armed int
	Won   int
	Lost  int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    RoundCounts
}

// RoundStatus is a read-only view of the current round for admin surfaces.
type RoundStatus struct {
	State            State
	Game             int
	Minutes          int
	RoundID          string
	RemainingSeconds int
	Cuts             int
	Mistakes         int
	DisplayCode      string
	Slots            []int  // channel filed in each slot, 0 = empty
	WiresCut         []bool // debounced level per channel
	ButtonDown       bool
}
