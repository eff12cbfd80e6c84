package logic

import "time"

const (
	confidenceMax   = 255
	stableThreshold = 128
)

// Debouncer is a software low-pass filter for one noisy digital input.
// Every sample moves a saturating confidence counter one step towards 255
// (active) or 0 (inactive); the input is stable while the counter is above
// 128. The same threshold is used in both directions.
type Debouncer struct {
	interval   time.Duration
	confidence uint8
	lastStep   time.Time
	stepped    bool
}

// NewDebouncer creates a Debouncer that updates its counter at most once per
// interval. An interval of zero steps on every call to Advance.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Advance feeds one raw sample taken at now.
func (d *Debouncer) Advance(now time.Time, raw bool) {
	switch {
	case !d.stepped:
		d.stepped = true
		d.lastStep = now
	case now.Sub(d.lastStep) < d.interval:
		return
	default:
		// Advance the anchor by whole intervals so sampling jitter does not
		// skip steps; re-anchor after a gap of two intervals or more.
		d.lastStep = d.lastStep.Add(d.interval)
		if now.Sub(d.lastStep) >= d.interval {
			d.lastStep = now
		}
	}

	if raw {
		if d.confidence < confidenceMax {
			d.confidence++
		}
		return
	}
	if d.confidence > 0 {
		d.confidence--
	}
}

// IsStable reports whether the filtered input is active.
func (d *Debouncer) IsStable() bool {
	return d.confidence > stableThreshold
}

// Confidence returns the current counter value in [0,255].
func (d *Debouncer) Confidence() int {
	return int(d.confidence)
}
