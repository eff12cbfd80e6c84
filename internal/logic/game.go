package logic

import (
	"fmt"
	"time"
)

// Display is the 7-segment timer display.
type Display interface {
	ShowTime(minutes, seconds int)
	ShowDashes()
	ShowWin()
	ShowLose()
	ShowGameSelection(n int)
	SetBlink(on bool)
}

// Audio is the buzzer. Every method must return immediately; timed
// behaviour is played out by the implementation on later ticks.
type Audio interface {
	StartTicking(period time.Duration)
	StartWin()
	StartLose()
	Mute()
	Beep(frequencyHz int, d time.Duration)
}

// Cut feedback tones.
const (
	correctBeepHz = 2000
	correctBeep   = 80 * time.Millisecond
	mistakeBeepHz = 400
	mistakeBeep   = 600 * time.Millisecond
)

// Config holds the tunables of a Game.
type Config struct {
	Wires          int
	SampleInterval time.Duration // debounce step interval
	LongPress      time.Duration
	DefaultMinutes int
	MinuteStep     int
	MaxMinutes     int
	Games          int           // number of selectable variants
	FinishedGrace  time.Duration // audio keeps playing this long after a round ends
	TickPeriod     time.Duration // ambient ticking while armed
	TieBreak       TieBreak
}

// DefaultConfig returns the settings of the reference prop.
func DefaultConfig() Config {
	return Config{
		Wires:          5,
		SampleInterval: 2 * time.Millisecond,
		LongPress:      5 * time.Second,
		DefaultMinutes: 30,
		MinuteStep:     5,
		MaxMinutes:     95,
		Games:          2,
		FinishedGrace:  20 * time.Second,
		TickPeriod:     time.Second,
		TieBreak:       WinFirst,
	}
}

// Option configures optional Game behaviour.
type Option func(*Game)

// WithRoundIDs sets the generator used to name each armed round.
func WithRoundIDs(next func() string) Option {
	return func(g *Game) {
		g.newRoundID = next
	}
}

// Game is the outer state machine. It owns the button, the wire bank, the
// validator and the countdown, and drives the display and audio sinks.
// Tick must be called once per scheduler iteration with a single timestamp.
type Game struct {
	cfg     Config
	display Display
	audio   Audio

	button    *PressClassifier
	wires     *WireBank
	validator *Validator
	clock     Countdown

	state        State
	game         int
	minutes      int
	roundID      string
	roundStarted time.Time
	finishedAt   time.Time
	muted        bool

	startTime     time.Time
	counts        RoundCounts
	lastHeartbeat time.Time
	rounds        int
	newRoundID    func() string
}

// NewGame creates a game in no state; the first Tick enters SELECT_GAME.
func NewGame(cfg Config, display Display, audio Audio, rng Rand, startTime time.Time, opts ...Option) *Game {
	g := &Game{
		cfg:           cfg,
		display:       display,
		audio:         audio,
		button:        NewPressClassifier(cfg.SampleInterval, cfg.LongPress),
		wires:         NewWireBank(cfg.Wires, cfg.SampleInterval),
		validator:     NewValidator(cfg.Wires, rng),
		game:          int(VariantOrdered),
		minutes:       cfg.DefaultMinutes,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
	g.newRoundID = func() string {
		return fmt.Sprintf("round-%d", g.rounds)
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Tick advances every component with the input sampled at in.Time and runs
// the state machine. Button events not used by the current state are dropped.
func (g *Game) Tick(in Input) []Event {
	now := in.Time
	g.button.Advance(now, in.Button)
	fresh := g.wires.Advance(now, in.Wires)
	pressed := g.button.IsPressed()
	longPressed := g.button.IsLongPressed()

	var events []Event
	if g.state == "" {
		events = g.enter(now, StateSelectGame, events)
	}

	switch g.state {
	case StateSelectGame:
		if pressed {
			g.game = g.game%g.cfg.Games + 1
			g.display.ShowGameSelection(g.game)
		}
		if longPressed {
			events = g.enter(now, StateSelectTime, events)
		}

	case StateSelectTime:
		if pressed {
			g.minutes = g.nextMinutes()
			g.display.ShowTime(g.minutes, 0)
		}
		if longPressed {
			events = g.enter(now, StateReady, events)
		}

	case StateReady:
		if pressed {
			events = g.enter(now, StateArmed, events)
		}

	case StateArmed:
		events = g.armedTick(now, fresh, events)

	case StateWon, StateLost:
		events = g.enter(now, StateFinished, events)

	case StateFinished:
		if !g.muted && now.Sub(g.finishedAt) >= g.cfg.FinishedGrace {
			g.muted = true
			g.audio.Mute()
			events = append(events, g.event(now, EventAudioMuted))
		}
	}

	return events
}

func (g *Game) armedTick(now time.Time, fresh []int, events []Event) []Event {
	for _, c := range fresh {
		res := g.validator.Resolve(c)
		if !res.Recorded {
			continue
		}
		// Order is not scored in the any-order variant.
		correct := res.Correct || Variant(g.game) == VariantAnyOrder
		if correct {
			g.audio.Beep(correctBeepHz, correctBeep)
		} else {
			g.audio.Beep(mistakeBeepHz, mistakeBeep)
		}
		e := g.event(now, EventWireCut)
		e.Channel = c
		e.Slot = res.Slot
		e.Correct = correct
		events = append(events, e)
	}

	if g.clock.Tick(now) {
		g.display.ShowTime(g.clock.Remaining())
	}

	win, lose := g.outcome()
	if g.cfg.TieBreak == LoseFirst {
		if lose {
			return g.enter(now, StateLost, events)
		}
		if win {
			return g.enter(now, StateWon, events)
		}
		return events
	}
	if win {
		return g.enter(now, StateWon, events)
	}
	if lose {
		return g.enter(now, StateLost, events)
	}
	return events
}

// outcome evaluates the win and lose predicates for the selected variant.
func (g *Game) outcome() (win, lose bool) {
	if Variant(g.game) == VariantAnyOrder {
		return g.validator.TotalCuts() == g.validator.Len(), g.clock.IsZero()
	}
	return g.validator.IsWin(), g.clock.IsZero() || g.validator.IsLose()
}

// mistakes returns the mistake count reported for the selected variant.
func (g *Game) mistakes() int {
	if Variant(g.game) == VariantAnyOrder {
		return 0
	}
	return g.validator.TotalMistakes()
}

// displayCode is empty until a round has been armed; the order is drawn on
// arming.
func (g *Game) displayCode() string {
	if g.roundID == "" {
		return ""
	}
	return g.validator.DisplayCode()
}

func (g *Game) nextMinutes() int {
	next := g.minutes + g.cfg.MinuteStep
	if next > g.cfg.MaxMinutes {
		next = g.cfg.MinuteStep
	}
	return next
}

// enter switches state and runs the entry actions of the new state.
func (g *Game) enter(now time.Time, s State, events []Event) []Event {
	g.state = s

	switch s {
	case StateSelectGame:
		g.display.SetBlink(true)
		g.display.ShowGameSelection(g.game)

	case StateSelectTime:
		g.display.SetBlink(true)
		g.display.ShowTime(g.minutes, 0)

	case StateReady:
		g.display.SetBlink(false)
		g.display.ShowDashes()

	case StateArmed:
		g.rounds++
		g.counts.Armed++
		g.roundID = g.newRoundID()
		g.roundStarted = now
		g.muted = false
		g.validator.Reset()
		g.clock.Start(now, time.Duration(g.minutes)*time.Minute)
		g.audio.StartTicking(g.cfg.TickPeriod)
		g.display.ShowTime(g.clock.Remaining())
		events = append(events, g.event(now, EventState))
		e := g.event(now, EventRoundArmed)
		e.DisplayCode = g.validator.DisplayCode()
		return append(events, e)

	case StateWon:
		g.counts.Won++
		g.display.ShowWin()
		g.audio.StartWin()
		events = append(events, g.event(now, EventState))
		e := g.event(now, EventRoundWon)
		e.DisplayCode = g.validator.DisplayCode()
		return append(events, e)

	case StateLost:
		g.counts.Lost++
		g.display.ShowLose()
		g.audio.StartLose()
		events = append(events, g.event(now, EventState))
		e := g.event(now, EventRoundLost)
		e.DisplayCode = g.validator.DisplayCode()
		return append(events, e)

	case StateFinished:
		g.finishedAt = now
	}

	return append(events, g.event(now, EventState))
}

func (g *Game) event(now time.Time, t EventType) Event {
	return Event{
		Timestamp:        now,
		Type:             t,
		State:            g.state,
		RoundID:          g.roundID,
		RoundStarted:     g.roundStarted,
		Game:             g.game,
		Minutes:          g.minutes,
		Cuts:             g.validator.TotalCuts(),
		Mistakes:         g.mistakes(),
		RemainingSeconds: g.clock.RemainingSeconds(),
	}
}

// State returns the current game state.
func (g *Game) State() State {
	return g.state
}

// Status returns a read-only view of the current round.
func (g *Game) Status() RoundStatus {
	return RoundStatus{
		State:            g.state,
		Game:             g.game,
		Minutes:          g.minutes,
		RoundID:          g.roundID,
		RemainingSeconds: g.clock.RemainingSeconds(),
		Cuts:             g.validator.TotalCuts(),
		Mistakes:         g.mistakes(),
		DisplayCode:      g.displayCode(),
		Slots:            g.validator.Slots(),
		WiresCut:         g.wires.levels(),
		ButtonDown:       g.button.IsDown(),
	}
}

// Counts returns round outcome counts since startup.
func (g *Game) Counts() RoundCounts {
	return g.counts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (g *Game) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(g.lastHeartbeat) < interval {
		return nil
	}

	g.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(g.startTime),
		Counts:    g.counts,
	}
}
