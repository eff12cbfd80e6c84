//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

const chipName = "gpiochip0"

// RealReader reads GPIO from actual hardware using Linux GPIO character device.
type RealReader struct {
	chip   *gpiocdev.Chip
	button *gpiocdev.Line
	wires  []*gpiocdev.Line
}

// NewRealReader requests the button and wire lines as inputs with pull-ups.
func NewRealReader(pinButton int, pinWires []int) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealReader{chip: chip}

	// The button closes to ground, each intact wire holds its line at ground.
	r.button, err = chip.RequestLine(pinButton, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("request button pin %d: %w", pinButton, err)
	}

	for i, pin := range pinWires {
		line, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request wire %d pin %d: %w", i+1, pin, err)
		}
		r.wires = append(r.wires, line)
	}

	return r, nil
}

// Read returns the logical states of the button and wires.
// Button: raw 0 = pressed. Wire: raw 1 = cut (pulled up once the short to ground is gone).
func (r *RealReader) Read() (Sample, error) {
	raw, err := r.button.Value()
	if err != nil {
		return Sample{}, fmt.Errorf("read button pin: %w", err)
	}

	s := Sample{Button: raw == 0, Wires: make([]bool, len(r.wires))}
	for i, line := range r.wires {
		raw, err := line.Value()
		if err != nil {
			return Sample{}, fmt.Errorf("read wire %d: %w", i+1, err)
		}
		s.Wires[i] = raw == 1
	}

	return s, nil
}

// Close releases GPIO resources.
// Reconfigures lines to input with pull-down (matching Pi boot defaults) before
// closing so the prop powers up quietly on the next boot.
func (r *RealReader) Close() error {
	var errs []error

	release := func(name string, l *gpiocdev.Line) {
		if l == nil {
			return
		}
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s: %w", name, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}

	release("button pin", r.button)
	for i, l := range r.wires {
		release(fmt.Sprintf("wire %d pin", i+1), l)
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealPin drives one output line, used for the buzzer.
type RealPin struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealPin requests pin as an output driven low.
func NewRealPin(pin int) (*RealPin, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request output pin %d: %w", pin, err)
	}

	return &RealPin{chip: chip, line: line}, nil
}

// Set drives the line high when on.
func (p *RealPin) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := p.line.SetValue(v); err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	return nil
}

// Close drives the line low and releases it.
func (p *RealPin) Close() error {
	var errs []error
	if err := p.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("drive low: %w", err))
	}
	if err := p.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure pin: %w", err))
	}
	if err := p.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pin: %w", err))
	}
	if err := p.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
