package gpio

import "errors"

// FakeReader is a test double that returns scripted GPIO values.
type FakeReader struct {
	// Samples contains scripted readings to return.
	// Each call to Read() consumes the next sample.
	Samples []Sample

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (Sample, error) {
	if f.ReadError != nil {
		return Sample{}, f.ReadError
	}

	if len(f.Samples) == 0 {
		return Sample{}, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	wires := make([]bool, len(sample.Wires))
	copy(wires, sample.Wires)
	return Sample{Button: sample.Button, Wires: wires}, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}

// FakePin records every level written to it.
type FakePin struct {
	Levels   []bool
	Closed   bool
	SetError error
}

// Set records the level.
func (p *FakePin) Set(on bool) error {
	if p.SetError != nil {
		return p.SetError
	}
	p.Levels = append(p.Levels, on)
	return nil
}

// On reports the last level written, false if none.
func (p *FakePin) On() bool {
	if len(p.Levels) == 0 {
		return false
	}
	return p.Levels[len(p.Levels)-1]
}

// Close marks the pin as closed.
func (p *FakePin) Close() error {
	p.Closed = true
	return nil
}
