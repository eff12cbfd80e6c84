package logic

import (
	"fmt"
	"time"
)

// WireBank debounces N independent wire channels.
type WireBank struct {
	channels []*Debouncer
	cut      []bool
}

// NewWireBank creates a bank of n channels, each sampled every sampleInterval.
func NewWireBank(n int, sampleInterval time.Duration) *WireBank {
	b := &WireBank{
		channels: make([]*Debouncer, n),
		cut:      make([]bool, n),
	}
	for i := range b.channels {
		b.channels[i] = NewDebouncer(sampleInterval)
	}
	return b
}

// Advance feeds one raw sample per channel and returns the ids of channels
// whose stable level went from not-cut to cut on this call, in ascending order.
func (b *WireBank) Advance(now time.Time, raw []bool) []int {
	if len(raw) != len(b.channels) {
		panic(fmt.Sprintf("logic: wire sample has %d channels, bank has %d", len(raw), len(b.channels)))
	}

	var fresh []int
	for i, ch := range b.channels {
		ch.Advance(now, raw[i])
		isCut := ch.IsStable()
		if isCut && !b.cut[i] {
			fresh = append(fresh, i+1)
		}
		b.cut[i] = isCut
	}
	return fresh
}

// IsCut reports whether channel id (1-based) is currently in the stable cut state.
func (b *WireBank) IsCut(id int) bool {
	if id < 1 || id > len(b.cut) {
		return false
	}
	return b.cut[id-1]
}

// Len returns the number of channels.
func (b *WireBank) Len() int {
	return len(b.channels)
}

func (b *WireBank) levels() []bool {
	out := make([]bool, len(b.cut))
	copy(out, b.cut)
	return out
}
