package audio

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/bomb-prop/internal/gpio"
)

var t0 = time.Date(2025, 1, 15, 20, 0, 0, 0, time.UTC)

const tick = 10 * time.Millisecond

// run advances b from start for d in 10ms steps and returns the level at each step.
func run(t *testing.T, b *Buzzer, start time.Time, d time.Duration) []bool {
	t.Helper()
	var levels []bool
	for at := start; at.Before(start.Add(d)); at = at.Add(tick) {
		require.NoError(t, b.Advance(at))
		levels = append(levels, b.On())
	}
	return levels
}

func countOn(levels []bool) int {
	n := 0
	for _, l := range levels {
		if l {
			n++
		}
	}
	return n
}

func TestBuzzerSilentByDefault(t *testing.T) {
	pin := &gpio.FakePin{}
	b := NewBuzzer(pin)

	levels := run(t, b, t0, time.Second)
	assert.Zero(t, countOn(levels))
	assert.Equal(t, []bool{false}, pin.Levels, "only the initial level should be written")
	assert.Equal(t, "silent", b.Playing(t0))
}

func TestBuzzerTicking(t *testing.T) {
	pin := &gpio.FakePin{}
	b := NewBuzzer(pin)
	b.StartTicking(time.Second)

	levels := run(t, b, t0, 3*time.Second)
	assert.Equal(t, 3*int(TickOn/tick), countOn(levels))
	assert.True(t, levels[0], "click starts on the first tick")
	assert.False(t, levels[int(TickOn/tick)])
	assert.True(t, levels[100])

	// on, off per period
	assert.Len(t, pin.Levels, 6)
	assert.Equal(t, "ticking", b.Playing(t0))
}

func TestBuzzerNeverBlocks(t *testing.T) {
	b := NewBuzzer(&gpio.FakePin{})
	b.StartLose()

	start := time.Now()
	b.Beep(400, time.Hour)
	require.NoError(t, b.Advance(t0))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestBuzzerBeepOverridesAndResumes(t *testing.T) {
	pin := &gpio.FakePin{}
	b := NewBuzzer(pin)
	b.StartTicking(time.Second)
	run(t, b, t0, 500*time.Millisecond)

	at := t0.Add(500 * time.Millisecond)
	b.Beep(2000, 80*time.Millisecond)
	assert.Equal(t, "ticking", b.Playing(at), "beep starts at the next Advance")

	levels := run(t, b, at, 100*time.Millisecond)
	assert.Equal(t, 8, countOn(levels))
	assert.Equal(t, "beep 2000Hz", b.Playing(at.Add(50*time.Millisecond)))
	assert.Equal(t, "ticking", b.Playing(at.Add(80*time.Millisecond)))

	// The ticking pattern keeps its original phase.
	levels = run(t, b, at.Add(100*time.Millisecond), 500*time.Millisecond)
	assert.Equal(t, int(TickOn/tick), countOn(levels))
	assert.True(t, levels[40], "click at t0+1s")
}

func TestBuzzerNewerBeepReplaces(t *testing.T) {
	b := NewBuzzer(&gpio.FakePin{})
	b.Beep(400, 600*time.Millisecond)
	require.NoError(t, b.Advance(t0))

	b.Beep(2000, 20*time.Millisecond)
	levels := run(t, b, t0.Add(tick), 200*time.Millisecond)
	assert.Equal(t, 2, countOn(levels))
}

func TestBuzzerWinChirps(t *testing.T) {
	b := NewBuzzer(&gpio.FakePin{})
	b.StartWin()

	levels := run(t, b, t0, chirpPeriod)
	assert.Equal(t, chirpCount*int(chirpOn/tick), countOn(levels))
	assert.True(t, levels[0])
	assert.False(t, levels[10])
	assert.True(t, levels[20])
	assert.False(t, levels[100], "quiet gap after the chirps")
}

func TestBuzzerLoseIsContinuousUntilMuted(t *testing.T) {
	pin := &gpio.FakePin{}
	b := NewBuzzer(pin)
	b.StartLose()

	levels := run(t, b, t0, 2*time.Second)
	assert.Equal(t, len(levels), countOn(levels))

	b.Mute()
	levels = run(t, b, t0.Add(2*time.Second), time.Second)
	assert.Zero(t, countOn(levels))
	assert.False(t, pin.On())
}

func TestBuzzerMuteDropsPendingBeep(t *testing.T) {
	b := NewBuzzer(&gpio.FakePin{})
	b.Beep(2000, time.Second)
	b.Mute()

	levels := run(t, b, t0, 100*time.Millisecond)
	assert.Zero(t, countOn(levels))
}

func TestBuzzerPinError(t *testing.T) {
	pin := &gpio.FakePin{SetError: errors.New("line busy")}
	b := NewBuzzer(pin)
	b.StartLose()

	err := b.Advance(t0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line busy")

	// The write is retried on the next tick.
	pin.SetError = nil
	require.NoError(t, b.Advance(t0.Add(tick)))
	assert.True(t, pin.On())
}

func TestBuzzerTickingPeriodMustBePositive(t *testing.T) {
	b := NewBuzzer(&gpio.FakePin{})
	assert.Panics(t, func() { b.StartTicking(0) })
}

func TestBuzzerClose(t *testing.T) {
	pin := &gpio.FakePin{}
	b := NewBuzzer(pin)
	b.StartLose()
	require.NoError(t, b.Advance(t0))

	require.NoError(t, b.Close())
	assert.False(t, pin.On())
	assert.True(t, pin.Closed)
}
