// Package display drives the 4-digit 7-segment timer.
//
// Every implementation satisfies logic.Display. Frames are built by the same
// renderer so the hardware, the log and the status page agree on what is shown.
package display

import "fmt"

// Segment bits, A at the top running clockwise, G in the middle.
const (
	segA byte = 1 << iota
	segB
	segC
	segD
	segE
	segF
	segG
)

var digits = [10]byte{
	segA | segB | segC | segD | segE | segF,        // 0
	segB | segC,                                    // 1
	segA | segB | segD | segE | segG,               // 2
	segA | segB | segC | segD | segG,               // 3
	segB | segC | segF | segG,                      // 4
	segA | segC | segD | segF | segG,               // 5
	segA | segC | segD | segE | segF | segG,        // 6
	segA | segB | segC,                             // 7
	segA | segB | segC | segD | segE | segF | segG, // 8
	segA | segB | segC | segD | segF | segG,        // 9
}

var letters = map[rune]byte{
	'-': segG,
	' ': 0,
	'A': segA | segB | segC | segE | segF | segG,
	'E': segA | segD | segE | segF | segG,
	'G': segA | segC | segD | segE | segF,
	'H': segB | segC | segE | segF | segG,
	'L': segD | segE | segF,
	'O': segA | segB | segC | segD | segE | segF,
	'S': segA | segC | segD | segF | segG,
	'Y': segB | segC | segD | segF | segG,
}

// Frame is one full display image.
type Frame struct {
	Glyphs [4]byte
	Colon  bool
	Text   string
}

func glyph(r rune) byte {
	if r >= '0' && r <= '9' {
		return digits[r-'0']
	}
	g, ok := letters[r]
	if !ok {
		panic(fmt.Sprintf("display: no glyph for %q", r))
	}
	return g
}

func textFrame(s string) Frame {
	var f Frame
	i := 0
	for _, r := range s {
		f.Glyphs[i] = glyph(r)
		i++
	}
	f.Text = s
	return f
}

// TimeFrame renders mm:ss. The colon shows on even seconds so it blinks at 1Hz.
func TimeFrame(minutes, seconds int) Frame {
	if minutes < 0 || minutes > 99 || seconds < 0 || seconds > 59 {
		panic(fmt.Sprintf("display: time %d:%d out of range", minutes, seconds))
	}
	colon := seconds%2 == 0
	f := textFrame(fmt.Sprintf("%02d%02d", minutes, seconds))
	f.Colon = colon
	sep := " "
	if colon {
		sep = ":"
	}
	f.Text = fmt.Sprintf("%02d%s%02d", minutes, sep, seconds)
	return f
}

// DashesFrame shows "----".
func DashesFrame() Frame { return textFrame("----") }

// WinFrame shows "YEAH".
func WinFrame() Frame { return textFrame("YEAH") }

// LoseFrame shows "LOSE".
func LoseFrame() Frame { return textFrame("LOSE") }

// GameFrame shows "G  n" for variant n (1..9).
func GameFrame(n int) Frame {
	if n < 1 || n > 9 {
		panic(fmt.Sprintf("display: game %d out of range", n))
	}
	return textFrame(fmt.Sprintf("G  %d", n))
}
