package logic

import "time"

// Countdown is a whole-second mm:ss timer driven by the tick timestamp.
// The remaining time drops by one second per elapsed second, is never
// negative and never goes back up for a given Start.
type Countdown struct {
	total     time.Duration
	startedAt time.Time
	running   bool
	remaining int
}

// Start begins counting down d from now.
func (c *Countdown) Start(now time.Time, d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.total = d
	c.startedAt = now
	c.running = true
	c.remaining = int(d / time.Second)
}

// Tick recomputes the remaining seconds and reports whether they changed.
func (c *Countdown) Tick(now time.Time) bool {
	if !c.running {
		return false
	}
	elapsed := now.Sub(c.startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	r := int((c.total - elapsed.Truncate(time.Second)) / time.Second)
	if r < 0 {
		r = 0
	}
	if r >= c.remaining {
		return false
	}
	c.remaining = r
	return true
}

// IsZero reports whether no time is left.
func (c *Countdown) IsZero() bool {
	return c.remaining == 0
}

// RemainingSeconds returns the whole seconds left.
func (c *Countdown) RemainingSeconds() int {
	return c.remaining
}

// Remaining splits the time left into minutes and seconds for display.
func (c *Countdown) Remaining() (minutes, seconds int) {
	return c.remaining / 60, c.remaining % 60
}
