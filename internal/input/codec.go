// Package input defines the per-tick intent of one participant and its
// fixed-width wire encoding.
//
// The wire form is a 16-bit mask kept compatible with the original key-flag
// layout: bit 0 requests a draw, bits 1..10 select a hand slot. A legal
// value carries at most one set bit; anything else is rejected at decode
// instead of being resolved by an implicit precedence rule.
package input

import (
	"errors"
	"fmt"
)

// MaxSlots is the number of playable hand slots addressable on the wire.
const MaxSlots = 10

const (
	flagDraw  uint16 = 1 << 0
	legalMask uint16 = 1<<(MaxSlots+1) - 1
)

// ErrInvalidInput marks a wire value outside the legal codomain.
var ErrInvalidInput = errors.New("input: value outside legal codomain")

// Value is the fixed-width wire form of one participant's tick intent.
type Value uint16

// Kind discriminates the intent variants.
type Kind uint8

const (
	KindNoOp Kind = iota
	KindDraw
	KindPlay
)

func (k Kind) String() string {
	switch k {
	case KindNoOp:
		return "noop"
	case KindDraw:
		return "draw"
	case KindPlay:
		return "play"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Intent is the validated tagged form of a tick action.
// Slot is 1-based and only meaningful when Kind is KindPlay.
type Intent struct {
	Kind Kind
	Slot int
}

// NoOp returns the empty intent.
func NoOp() Intent { return Intent{Kind: KindNoOp} }

// Draw returns the draw intent.
func Draw() Intent { return Intent{Kind: KindDraw} }

// Play returns the intent to play the card in hand slot n (1..MaxSlots).
func Play(slot int) Intent { return Intent{Kind: KindPlay, Slot: slot} }

// Encode packs an intent into its wire value. It is total and injective
// over the legal intent space.
func Encode(it Intent) (Value, error) {
	switch it.Kind {
	case KindNoOp:
		return 0, nil
	case KindDraw:
		return Value(flagDraw), nil
	case KindPlay:
		if it.Slot < 1 || it.Slot > MaxSlots {
			return 0, fmt.Errorf("%w: play slot %d", ErrInvalidInput, it.Slot)
		}
		return Value(1 << uint(it.Slot)), nil
	default:
		return 0, fmt.Errorf("%w: kind %d", ErrInvalidInput, it.Kind)
	}
}

// Decode validates a wire value back into an intent. Multi-bit patterns and
// bits above the slot range fail with ErrInvalidInput; no state is touched.
func Decode(v Value) (Intent, error) {
	bits := uint16(v)
	if bits&^legalMask != 0 {
		return Intent{}, fmt.Errorf("%w: bits above slot range in %#04x", ErrInvalidInput, bits)
	}
	switch {
	case bits == 0:
		return NoOp(), nil
	case bits&(bits-1) != 0:
		return Intent{}, fmt.Errorf("%w: ambiguous multi-bit pattern %#04x", ErrInvalidInput, bits)
	case bits == flagDraw:
		return Draw(), nil
	}
	slot := 0
	for bits > 1 {
		bits >>= 1
		slot++
	}
	return Play(slot), nil
}

func (it Intent) String() string {
	if it.Kind == KindPlay {
		return fmt.Sprintf("play(%d)", it.Slot)
	}
	return it.Kind.String()
}
