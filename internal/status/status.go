// Package status provides a thread-safe status tracker for the bomb-prop daemon.
// The tick loop writes it; HTTP handlers and MQTT heartbeats read snapshots.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/bomb-prop/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs          int64
	SampleMs        int64
	LongPressMs     int64
	HeartbeatMs     int64
	DefaultMinutes  int
	Wires           int
	TieBreak        string
	Broker          string
	HTTPAddr        string
	DisplayEndpoint string
}

// RoundSummary is one finished round from the history store.
type RoundSummary struct {
	ID          string
	Game        int
	Minutes     int
	Outcome     string
	Cuts        int
	Mistakes    int
	DisplayCode string
	StartedAt   time.Time
	EndedAt     time.Time
}

// Duration is how long the round ran.
func (r RoundSummary) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type; slices are copied so it is safe to use after the lock is released.
type Snapshot struct {
	Round         logic.RoundStatus
	Counts        logic.RoundCounts
	Display       string
	DisplayBlink  bool
	Audio         string
	Recent        []RoundSummary
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update sets the round view, outcome counts, and what the display and
// buzzer are doing. Called from the tick loop every iteration.
func (t *Tracker) Update(round logic.RoundStatus, counts logic.RoundCounts, display, audio string) {
	t.mu.Lock()
	t.snap.Round = round
	t.snap.Counts = counts
	t.snap.Display = display
	t.snap.Audio = audio
	t.mu.Unlock()
}

// SetRecent replaces the recent-round list, newest first.
func (t *Tracker) SetRecent(rounds []RoundSummary) {
	cp := make([]RoundSummary, len(rounds))
	copy(cp, rounds)
	t.mu.Lock()
	t.snap.Recent = cp
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetDisplayBlink records whether the display is blinking.
func (t *Tracker) SetDisplayBlink(on bool) {
	t.mu.Lock()
	t.snap.DisplayBlink = on
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Round.Slots = append([]int(nil), t.snap.Round.Slots...)
	s.Round.WiresCut = append([]bool(nil), t.snap.Round.WiresCut...)
	s.Recent = append([]RoundSummary(nil), t.snap.Recent...)
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
