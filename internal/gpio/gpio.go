// Package gpio provides button, wire and buzzer line access with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Sample is one read of every input line, already in logical form.
type Sample struct {
	Button bool   // true = pressed
	Wires  []bool // true = cut, index 0 is channel 1
}

// Reader reads GPIO input states.
type Reader interface {
	// Read returns the logical states of the button and every wire channel.
	// The button is wired to ground with a pull-up: raw 0 = pressed.
	// Each wire shorts its line to ground while intact: raw 1 = cut.
	Read() (Sample, error)

	// Close releases GPIO resources.
	Close() error
}

// Pin is a single output line.
type Pin interface {
	Set(on bool) error
	Close() error
}

// Pin definitions (BCM numbering)
const (
	PinButton = 26
	PinBuzzer = 18
)

// DefaultWirePins returns the wire channel lines, channel 1 first.
func DefaultWirePins() []int {
	return []int{17, 27, 22, 23, 24}
}
