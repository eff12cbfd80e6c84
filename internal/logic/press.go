package logic

import "time"

type pressPhase int

const (
	phaseIdle pressPhase = iota
	phaseHeld
	phaseLongFired
)

// PressClassifier turns one debounced button into one-shot "pressed" and
// "long-pressed" events.
//
// A press that is released before the long-press duration yields exactly one
// IsPressed. A press held for the long-press duration yields exactly one
// IsLongPressed and no IsPressed. Within a single Advance the release edge is
// evaluated before the hold timer, so a release observed on the very tick the
// threshold is crossed counts as a short press.
type PressClassifier struct {
	level     *Debouncer
	longPress time.Duration

	phase  pressPhase
	downAt time.Time

	pressed     bool
	longPressed bool
}

// NewPressClassifier creates a classifier whose debouncer samples every
// sampleInterval and which fires a long press after longPress of holding.
func NewPressClassifier(sampleInterval, longPress time.Duration) *PressClassifier {
	return &PressClassifier{
		level:     NewDebouncer(sampleInterval),
		longPress: longPress,
	}
}

// Advance feeds one raw sample (true = button down) taken at now.
func (p *PressClassifier) Advance(now time.Time, raw bool) {
	p.level.Advance(now, raw)
	down := p.level.IsStable()

	switch {
	case down && p.phase == phaseIdle:
		p.phase = phaseHeld
		p.downAt = now

	case !down && p.phase != phaseIdle:
		if p.phase == phaseHeld {
			p.pressed = true
		}
		p.phase = phaseIdle

	case down && p.phase == phaseHeld && now.Sub(p.downAt) >= p.longPress:
		p.phase = phaseLongFired
		p.longPressed = true
	}
}

// IsPressed returns true once per completed short press.
func (p *PressClassifier) IsPressed() bool {
	if p.pressed {
		p.pressed = false
		return true
	}
	return false
}

// IsLongPressed returns true once per press held past the long-press duration.
func (p *PressClassifier) IsLongPressed() bool {
	if p.longPressed {
		p.longPressed = false
		return true
	}
	return false
}

// IsDown reports the debounced button level.
func (p *PressClassifier) IsDown() bool {
	return p.level.IsStable()
}
