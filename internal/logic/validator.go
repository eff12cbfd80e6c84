package logic

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
)

// MaxWires is the largest channel count whose ids still fit the 3 bits per
// slot of the display code.
const MaxWires = 7

// ErrInvalidDisplayCode is returned when a display code does not decode to a
// permutation of the expected size.
var ErrInvalidDisplayCode = errors.New("invalid display code")

// Rand is the randomness source used to draw the solution order.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	// IntN returns a uniform integer in [0,n).
	IntN(n int) int
}

// NewSeededRand returns a PCG generator seeded once from the OS entropy source.
func NewSeededRand() *rand.Rand {
	var seed [16]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic(fmt.Sprintf("logic: read entropy: %v", err))
	}
	return rand.New(rand.NewPCG(binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:])))
}

// GenerateOrder draws a random permutation of 1..n by rejection sampling:
// each slot draws channel ids until it gets one not used by an earlier slot.
func GenerateOrder(n int, r Rand) []int {
	order := make([]int, n)
	used := make([]bool, n+1)
	for i := range order {
		c := r.IntN(n) + 1
		for used[c] {
			c = r.IntN(n) + 1
		}
		used[c] = true
		order[i] = c
	}
	return order
}

// EncodeDisplayCode packs order[i] into 3 bits at offset 3*i and renders the
// result as upper-case hexadecimal.
func EncodeDisplayCode(order []int) string {
	var acc uint64
	for i, c := range order {
		acc += uint64(c) << (3 * i)
	}
	return fmt.Sprintf("%X", acc)
}

// DecodeDisplayCode reverses EncodeDisplayCode for an order of n channels.
func DecodeDisplayCode(code string, n int) ([]int, error) {
	if n < 1 || n > MaxWires {
		return nil, fmt.Errorf("%w: unsupported wire count %d", ErrInvalidDisplayCode, n)
	}
	acc, err := strconv.ParseUint(code, 16, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDisplayCode, err)
	}

	order := make([]int, n)
	seen := make([]bool, n+1)
	for i := range order {
		c := int(acc>>(3*i)) & 0x7
		if c < 1 || c > n || seen[c] {
			return nil, fmt.Errorf("%w: %q is not a permutation of %d wires", ErrInvalidDisplayCode, code, n)
		}
		seen[c] = true
		order[i] = c
	}
	if acc>>(3*n) != 0 {
		return nil, fmt.Errorf("%w: %q has extra digits", ErrInvalidDisplayCode, code)
	}
	return order, nil
}

// Resolution describes how one cut was filed.
type Resolution struct {
	Recorded bool // false if the channel was already recorded this round
	Slot     int
	Correct  bool
}

// Validator scores wire cuts against a secret solution order.
//
// A cut that matches the first empty slot is correct. Any other cut is filed
// into the channel's own slot in the solution order and counted as a
// mistake. Each channel is recorded at most once per round.
type Validator struct {
	n     int
	rng   Rand
	order []int
	code  string
	slots []int

	cuts     int
	mistakes int
}

// NewValidator creates a validator for n channels and draws the first order.
func NewValidator(n int, r Rand) *Validator {
	if n < 1 || n > MaxWires {
		panic(fmt.Sprintf("logic: unsupported wire count %d", n))
	}
	v := &Validator{n: n, rng: r}
	v.Reset()
	return v
}

// Reset starts a new round: a fresh order and empty progress.
func (v *Validator) Reset() {
	v.order = GenerateOrder(v.n, v.rng)
	v.code = EncodeDisplayCode(v.order)
	v.slots = make([]int, v.n)
	v.cuts = 0
	v.mistakes = 0
}

// Resolve files a freshly cut channel (1-based).
func (v *Validator) Resolve(channel int) Resolution {
	if channel < 1 || channel > v.n {
		panic(fmt.Sprintf("logic: channel %d out of range 1..%d", channel, v.n))
	}
	if v.Recorded(channel) {
		return Resolution{}
	}

	next := -1
	for i, c := range v.slots {
		if c == 0 {
			next = i
			break
		}
	}
	if next < 0 {
		panic(fmt.Sprintf("logic: channel %d unrecorded but no empty slot", channel))
	}

	v.cuts++
	if v.order[next] == channel {
		v.slots[next] = channel
		return Resolution{Recorded: true, Slot: next, Correct: true}
	}

	own := v.slotOf(channel)
	if own < 0 || v.slots[own] != 0 {
		panic(fmt.Sprintf("logic: channel %d has no free slot in order %v", channel, v.order))
	}
	v.slots[own] = channel
	v.mistakes++
	return Resolution{Recorded: true, Slot: own}
}

// Recorded reports whether channel has been filed in any slot this round.
func (v *Validator) Recorded(channel int) bool {
	for _, c := range v.slots {
		if c == channel {
			return true
		}
	}
	return false
}

func (v *Validator) slotOf(channel int) int {
	for i, c := range v.order {
		if c == channel {
			return i
		}
	}
	return -1
}

// IsWin reports whether every wire is cut with at most one mistake.
func (v *Validator) IsWin() bool {
	return v.cuts == v.n && v.mistakes < 2
}

// IsLose reports whether two or more mistakes were made.
func (v *Validator) IsLose() bool {
	return v.mistakes > 1
}

// TotalCuts returns the number of recorded cuts.
func (v *Validator) TotalCuts() int { return v.cuts }

// TotalMistakes returns the number of out-of-order cuts.
func (v *Validator) TotalMistakes() int { return v.mistakes }

// DisplayCode returns the hex-encoded solution order for the admin page.
func (v *Validator) DisplayCode() string { return v.code }

// Len returns the number of channels.
func (v *Validator) Len() int { return v.n }

// Order returns a copy of the solution order.
func (v *Validator) Order() []int {
	out := make([]int, len(v.order))
	copy(out, v.order)
	return out
}

// Slots returns a copy of the cut progress; 0 marks an empty slot.
func (v *Validator) Slots() []int {
	out := make([]int, len(v.slots))
	copy(out, v.slots)
	return out
}
