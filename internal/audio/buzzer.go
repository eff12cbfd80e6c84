// Package audio plays the prop's buzzer cues without ever blocking the caller.
//
// The buzzer is an active buzzer on a single GPIO line: it sounds its own
// fixed tone whenever the line is high. Every cue is a pattern of on/off
// segments evaluated against the tick timestamp in Advance.
package audio

import (
	"fmt"
	"time"

	"github.com/sweeney/bomb-prop/internal/gpio"
)

type mode int

const (
	modeSilent mode = iota
	modeTicking
	modeWin
	modeLose
)

func (m mode) String() string {
	switch m {
	case modeTicking:
		return "ticking"
	case modeWin:
		return "win"
	case modeLose:
		return "lose"
	default:
		return "silent"
	}
}

// Pattern timings.
const (
	TickOn = 40 * time.Millisecond

	chirpOn     = 100 * time.Millisecond
	chirpOff    = 100 * time.Millisecond
	chirpCount  = 3
	chirpPeriod = 1200 * time.Millisecond
)

type beep struct {
	hz int
	d  time.Duration
}

// Buzzer implements logic.Audio over a gpio.Pin.
// Cue methods only record intent; Advance applies it at the next tick.
type Buzzer struct {
	pin gpio.Pin

	mode    mode
	period  time.Duration
	started time.Time
	restart bool // anchor the pattern at the next Advance

	pending   *beep
	current   beep
	beepUntil time.Time

	on      bool
	written bool
}

// NewBuzzer returns a silent buzzer driving pin.
func NewBuzzer(pin gpio.Pin) *Buzzer {
	return &Buzzer{pin: pin}
}

// StartTicking sounds a short click at the start of every period.
func (b *Buzzer) StartTicking(period time.Duration) {
	if period <= 0 {
		panic(fmt.Sprintf("audio: ticking period must be positive, got %v", period))
	}
	b.setMode(modeTicking)
	b.period = period
}

// StartWin plays repeating triple chirps.
func (b *Buzzer) StartWin() { b.setMode(modeWin) }

// StartLose holds a continuous tone.
func (b *Buzzer) StartLose() { b.setMode(modeLose) }

// Mute silences the buzzer and drops any pending beep.
func (b *Buzzer) Mute() {
	b.setMode(modeSilent)
	b.pending = nil
	b.beepUntil = time.Time{}
}

// Beep sounds the buzzer for d starting at the next Advance, then the
// current pattern resumes. A newer beep replaces one still playing.
func (b *Buzzer) Beep(frequencyHz int, d time.Duration) {
	b.pending = &beep{hz: frequencyHz, d: d}
}

func (b *Buzzer) setMode(m mode) {
	b.mode = m
	b.restart = true
}

// Advance drives the pin for instant now. It writes only on level changes.
func (b *Buzzer) Advance(now time.Time) error {
	if b.restart {
		b.started = now
		b.restart = false
	}
	if b.pending != nil {
		b.current = *b.pending
		b.beepUntil = now.Add(b.pending.d)
		b.pending = nil
	}

	want := b.level(now)
	if b.written && want == b.on {
		return nil
	}
	if err := b.pin.Set(want); err != nil {
		return fmt.Errorf("buzzer: %w", err)
	}
	b.on = want
	b.written = true
	return nil
}

func (b *Buzzer) level(now time.Time) bool {
	if now.Before(b.beepUntil) {
		return true
	}

	elapsed := now.Sub(b.started)
	if elapsed < 0 {
		elapsed = 0
	}

	switch b.mode {
	case modeTicking:
		return elapsed%b.period < TickOn
	case modeWin:
		phase := elapsed % chirpPeriod
		slot := chirpOn + chirpOff
		return phase < chirpCount*slot && phase%slot < chirpOn
	case modeLose:
		return true
	default:
		return false
	}
}

// Playing describes the cue in effect at now, for status reporting.
func (b *Buzzer) Playing(now time.Time) string {
	if now.Before(b.beepUntil) {
		return fmt.Sprintf("beep %dHz", b.current.hz)
	}
	return b.mode.String()
}

// On reports the last level written to the pin.
func (b *Buzzer) On() bool {
	return b.on
}

// Close silences the pin and releases it.
func (b *Buzzer) Close() error {
	var errs []error
	if err := b.pin.Set(false); err != nil {
		errs = append(errs, fmt.Errorf("silence: %w", err))
	}
	if err := b.pin.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pin: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
