package display

import (
	"log"
	"sync"
)

// LogDisplay writes each changed frame to the log. Used when no display is fitted.
type LogDisplay struct {
	last  string
	blink bool
}

func (d *LogDisplay) show(f Frame) {
	if f.Text == d.last {
		return
	}
	d.last = f.Text
	log.Printf("display: [%s]", f.Text)
}

func (d *LogDisplay) ShowTime(minutes, seconds int) { d.show(TimeFrame(minutes, seconds)) }
func (d *LogDisplay) ShowDashes()                   { d.show(DashesFrame()) }
func (d *LogDisplay) ShowWin()                      { d.show(WinFrame()) }
func (d *LogDisplay) ShowLose()                     { d.show(LoseFrame()) }
func (d *LogDisplay) ShowGameSelection(n int)       { d.show(GameFrame(n)) }

func (d *LogDisplay) SetBlink(on bool) {
	if on != d.blink {
		d.blink = on
		log.Printf("display: blink=%v", on)
	}
}

// Sink is the subset of logic.Display implemented by every display here.
type Sink interface {
	ShowTime(minutes, seconds int)
	ShowDashes()
	ShowWin()
	ShowLose()
	ShowGameSelection(n int)
	SetBlink(on bool)
}

// Mirror forwards every call to a Sink and remembers the current frame so
// other goroutines can read what the prop is showing.
type Mirror struct {
	next Sink

	mu    sync.RWMutex
	frame Frame
	blink bool
}

// NewMirror wraps next. A nil next only records.
func NewMirror(next Sink) *Mirror {
	return &Mirror{next: next, frame: DashesFrame()}
}

func (m *Mirror) set(f Frame) {
	m.mu.Lock()
	m.frame = f
	m.mu.Unlock()
}

func (m *Mirror) ShowTime(minutes, seconds int) {
	m.set(TimeFrame(minutes, seconds))
	if m.next != nil {
		m.next.ShowTime(minutes, seconds)
	}
}

func (m *Mirror) ShowDashes() {
	m.set(DashesFrame())
	if m.next != nil {
		m.next.ShowDashes()
	}
}

func (m *Mirror) ShowWin() {
	m.set(WinFrame())
	if m.next != nil {
		m.next.ShowWin()
	}
}

func (m *Mirror) ShowLose() {
	m.set(LoseFrame())
	if m.next != nil {
		m.next.ShowLose()
	}
}

func (m *Mirror) ShowGameSelection(n int) {
	m.set(GameFrame(n))
	if m.next != nil {
		m.next.ShowGameSelection(n)
	}
}

func (m *Mirror) SetBlink(on bool) {
	m.mu.Lock()
	m.blink = on
	m.mu.Unlock()
	if m.next != nil {
		m.next.SetBlink(on)
	}
}

// Text returns the text currently shown, e.g. "29:58" or "LOSE".
func (m *Mirror) Text() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.frame.Text
}

// Blinking reports whether the display is blinking.
func (m *Mirror) Blinking() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.blink
}
