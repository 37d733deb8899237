package input

import (
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	intents := []Intent{NoOp(), Draw()}
	for slot := 1; slot <= MaxSlots; slot++ {
		intents = append(intents, Play(slot))
	}

	seen := map[Value]Intent{}
	for _, it := range intents {
		v, err := Encode(it)
		if err != nil {
			t.Fatalf("Encode(%v): %v", it, err)
		}
		if prev, dup := seen[v]; dup {
			t.Fatalf("Encode not injective: %v and %v both map to %#04x", prev, it, v)
		}
		seen[v] = it

		back, err := Decode(v)
		if err != nil {
			t.Fatalf("Decode(%#04x): %v", v, err)
		}
		if back != it {
			t.Errorf("round trip %v -> %#04x -> %v", it, v, back)
		}
	}
}

func TestEncodeRejectsBadSlot(t *testing.T) {
	for _, slot := range []int{0, -1, MaxSlots + 1, 99} {
		if _, err := Encode(Play(slot)); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Encode(Play(%d)): expected ErrInvalidInput, got %v", slot, err)
		}
	}
}

func TestDecodeRejectsIllegalPatterns(t *testing.T) {
	cases := []struct {
		name string
		v    Value
	}{
		{"draw and play together", 0b0000_0011},
		{"two plays", 0b0000_0110},
		{"bit above slot range", 1 << 11},
		{"high bit", 1 << 15},
		{"legal bit plus high bit", 1<<15 | 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := Decode(c.v); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Decode(%#04x): expected ErrInvalidInput, got %v", c.v, err)
			}
		})
	}
}

func TestDecodeSlotMapping(t *testing.T) {
	// Bit N maps to hand slot N: bit 1 is slot 1, bit 10 is slot 10.
	it, err := Decode(1 << 1)
	if err != nil || it != Play(1) {
		t.Errorf("Decode(bit 1) = %v, %v; want play(1)", it, err)
	}
	it, err = Decode(1 << 10)
	if err != nil || it != Play(10) {
		t.Errorf("Decode(bit 10) = %v, %v; want play(10)", it, err)
	}
}
